// Package cursor encodes the opaque page tokens issued by the built-in backends.
//
// A token is base64url(CBOR(State)). Callers never build tokens themselves;
// they only hand back what a previous page returned.
package cursor

import (
	"encoding/base64"
	"errors"
	"fmt"

	cbor "github.com/fxamacker/cbor/v2"

	"github.com/okian/ladder/internal/domain/model"
)

// ErrMalformed is returned for tokens that do not decode.
var ErrMalformed = errors.New("malformed cursor token")

// State is the position a token encodes.
type State struct {
	Source string `cbor:"s"`
	Social string `cbor:"f"`
	Time   string `cbor:"t"`
	Offset int    `cbor:"o"` // zero-based row offset of the page start
}

// Filters returns the filters the state was issued for.
func (s State) Filters() model.Filters {
	return model.Filters{Social: model.SocialScope(s.Social), Time: model.TimeScope(s.Time)}
}

// Rank returns the 1-based rank of the first row the state points at.
func (s State) Rank() int { return s.Offset + 1 }

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// New builds a state for source and filters at offset.
func New(source string, filters model.Filters, offset int) State {
	return State{Source: source, Social: string(filters.Social), Time: string(filters.Time), Offset: offset}
}

// Encode turns a state into a valid page cursor.
func Encode(s State) (model.PageCursor, error) {
	raw, err := encMode.Marshal(s)
	if err != nil {
		return model.PageCursor{}, fmt.Errorf("encode cursor: %w", err)
	}
	return model.NewCursor(base64.RawURLEncoding.EncodeToString(raw)), nil
}

// Decode parses a cursor previously produced by Encode.
func Decode(c model.PageCursor) (State, error) {
	if !c.Valid {
		return State{}, fmt.Errorf("%w: cursor not valid", ErrMalformed)
	}
	raw, err := base64.RawURLEncoding.DecodeString(c.Token)
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var s State
	if err := cbor.Unmarshal(raw, &s); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if s.Offset < 0 {
		return State{}, fmt.Errorf("%w: negative offset", ErrMalformed)
	}
	return s, nil
}

// Around returns the next and previous cursors of a page that starts at
// offset, given the page size and the total row count.
func Around(s State, size, total int) (next, prev model.PageCursor, err error) {
	if s.Offset+size < total {
		n := s
		n.Offset = s.Offset + size
		if next, err = Encode(n); err != nil {
			return model.PageCursor{}, model.PageCursor{}, err
		}
	}
	if s.Offset > 0 {
		p := s
		p.Offset = s.Offset - size
		if p.Offset < 0 {
			p.Offset = 0
		}
		if prev, err = Encode(p); err != nil {
			return model.PageCursor{}, model.PageCursor{}, err
		}
	}
	return next, prev, nil
}
