package rangefetch

import (
	"sync"

	"github.com/okian/ladder/internal/domain/model"
)

// Direction of a pagination walk.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Slot is one cached continuation: resuming with Cursor fetches the page
// whose first rank is Anchor.
type Slot struct {
	Anchor int
	Cursor model.PageCursor
}

// Empty reports whether the slot holds no usable cursor.
func (s Slot) Empty() bool { return !s.Cursor.Valid }

// PageCursorCache remembers the last forward and backward continuation of
// one source. The two slots are independent.
type PageCursorCache struct {
	mu       sync.Mutex
	forward  Slot
	backward Slot
}

// Get returns the slot for d.
func (c *PageCursorCache) Get(d Direction) Slot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d == Backward {
		return c.backward
	}
	return c.forward
}

// Set stores a slot for d. An invalid cursor clears the slot.
func (c *PageCursorCache) Set(d Direction, anchor int, cursor model.PageCursor) {
	s := Slot{Anchor: anchor, Cursor: cursor}
	if !cursor.Valid || anchor < 1 {
		s = Slot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if d == Backward {
		c.backward = s
	} else {
		c.forward = s
	}
}

// Reset empties both slots.
func (c *PageCursorCache) Reset() {
	c.mu.Lock()
	c.forward, c.backward = Slot{}, Slot{}
	c.mu.Unlock()
}

// samePage reports whether two 1-based ranks fall on the same page.
func samePage(a, b, pageSize int) bool {
	return (a-1)/pageSize == (b-1)/pageSize
}
