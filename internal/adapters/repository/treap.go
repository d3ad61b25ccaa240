// Package repository holds the in-memory ordered set behind the merged leaderboard.
package repository

import (
	"math/rand/v2"

	"github.com/okian/ladder/internal/domain/model"
)

// Treap-based ordered set of score entries.
//
// Ordering: Order.Before on value, then arrival sequence ASC. In-order
// traversal yields the leaderboard from best to worst. Subtree sizes give
// O(log n) expected positional queries.

// treap node
type node struct {
	entry model.ScoreEntry
	seq   uint64
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// OrderedSet is a multiset of ScoreEntry keyed by Value, or a set when built
// with Deduplicate. It is not safe for concurrent use; callers hold their own
// lock.
type OrderedSet struct {
	root  *node
	order Order
	seq   uint64

	// indexes, non-nil only when deduplicating
	players map[string]slot
	values  map[int64]uint64
}

// slot locates a stored row.
type slot struct {
	entry model.ScoreEntry
	seq   uint64
}

// NewOrderedSet returns an empty set ranked by order (Descending when nil).
func NewOrderedSet(order Order, opts ...SetOption) *OrderedSet {
	if order == nil {
		order = Descending{}
	}
	s := &OrderedSet{order: order}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Order returns the comparator the set ranks by.
func (s *OrderedSet) Order() Order { return s.order }

// less returns true if (aValue, aSeq) ranks before (bValue, bSeq).
func (s *OrderedSet) less(aValue int64, aSeq uint64, bValue int64, bSeq uint64) bool {
	if aValue != bValue {
		return s.order.Before(aValue, bValue)
	}
	return aSeq < bSeq // arrival order breaks ties
}

func (s *OrderedSet) insert(n *node, e model.ScoreEntry, seq uint64) *node {
	if n == nil {
		return &node{entry: e, seq: seq, prio: rand.Uint64(), size: 1} //nolint:gosec // treap balance only
	}
	if s.less(e.Value, seq, n.entry.Value, n.seq) {
		n.left = s.insert(n.left, e, seq)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = s.insert(n.right, e, seq)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func (s *OrderedSet) deleteNode(n *node, value int64, seq uint64) *node {
	if n == nil {
		return nil
	}
	if value == n.entry.Value && seq == n.seq {
		// Merge children by rotating the higher priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = s.deleteNode(n.right, value, seq)
		} else {
			n = rotateLeft(n)
			n.left = s.deleteNode(n.left, value, seq)
		}
	} else if s.less(value, seq, n.entry.Value, n.seq) {
		n.left = s.deleteNode(n.left, value, seq)
	} else {
		n.right = s.deleteNode(n.right, value, seq)
	}
	fix(n)
	return n
}

// Insert adds e and reports whether the set changed. Equal values keep
// insertion order. Without Deduplicate every row is kept.
func (s *OrderedSet) Insert(e model.ScoreEntry) bool {
	if s.players == nil {
		s.add(e)
		return true
	}
	if prev, ok := s.players[e.PlayerID]; ok && e.PlayerID != "" {
		merged := prev.entry
		if s.order.Before(e.Value, prev.entry.Value) && (e.IsRequestingPlayer || prev.entry.IsRequestingPlayer || !s.taken(e.Value)) {
			merged = e
		}
		merged.IsRequestingPlayer = e.IsRequestingPlayer || prev.entry.IsRequestingPlayer
		if merged == prev.entry {
			return false
		}
		s.remove(prev.entry, prev.seq)
		s.add(merged)
		return true
	}
	if !e.IsRequestingPlayer && s.taken(e.Value) {
		return false
	}
	s.add(e)
	return true
}

// InsertAll adds every entry in order and returns how many were kept.
func (s *OrderedSet) InsertAll(entries []model.ScoreEntry) int {
	kept := 0
	for _, e := range entries {
		if s.Insert(e) {
			kept++
		}
	}
	return kept
}

func (s *OrderedSet) taken(value int64) bool {
	_, ok := s.values[value]
	return ok
}

func (s *OrderedSet) add(e model.ScoreEntry) {
	s.seq++
	s.root = s.insert(s.root, e, s.seq)
	if s.players == nil {
		return
	}
	if e.PlayerID != "" {
		s.players[e.PlayerID] = slot{entry: e, seq: s.seq}
	}
	if !e.IsRequestingPlayer {
		s.values[e.Value] = s.seq
	}
}

func (s *OrderedSet) remove(e model.ScoreEntry, seq uint64) {
	s.root = s.deleteNode(s.root, e.Value, seq)
	if s.players == nil {
		return
	}
	if p, ok := s.players[e.PlayerID]; ok && p.seq == seq {
		delete(s.players, e.PlayerID)
	}
	if v, ok := s.values[e.Value]; ok && v == seq {
		delete(s.values, e.Value)
	}
}

// Len returns the number of entries.
func (s *OrderedSet) Len() int {
	return nsize(s.root)
}

// collect appends up to limit entries in rank order, assigning positional ranks.
func collect(n *node, limit int, out *[]model.ScoreEntry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collect(n.left, limit, out)
	if len(*out) < limit {
		e := n.entry
		e.Rank = len(*out) + 1
		*out = append(*out, e)
	}
	if len(*out) < limit {
		collect(n.right, limit, out)
	}
}

// Top returns the first n entries with merged ranks 1..n.
func (s *OrderedSet) Top(n int) ([]model.ScoreEntry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	if total := s.Len(); n > total {
		n = total
	}
	out := make([]model.ScoreEntry, 0, n)
	collect(s.root, n, &out)
	return out, nil
}

// All returns every entry in rank order.
func (s *OrderedSet) All() []model.ScoreEntry {
	out := make([]model.ScoreEntry, 0, s.Len())
	collect(s.root, s.Len(), &out)
	return out
}

// Extract removes every entry matching pred and returns them in rank order.
func (s *OrderedSet) Extract(pred func(model.ScoreEntry) bool) []model.ScoreEntry {
	var (
		keys    []slot
		matched []model.ScoreEntry
	)
	var walk func(n *node)
	walk = func(n *node) {
		if n == nil {
			return
		}
		walk(n.left)
		if pred(n.entry) {
			keys = append(keys, slot{entry: n.entry, seq: n.seq})
			matched = append(matched, n.entry)
		}
		walk(n.right)
	}
	walk(s.root)
	for _, k := range keys {
		s.remove(k.entry, k.seq)
	}
	return matched
}

// NextAbove returns the last-ranked entry whose value ranks strictly ahead of
// threshold, with its merged rank. ok is false when no entry beats threshold.
func (s *OrderedSet) NextAbove(threshold int64) (model.ScoreEntry, bool) {
	var (
		best   *node
		rank   int
		before int // entries strictly before the current subtree
	)
	n := s.root
	for n != nil {
		if s.order.Before(n.entry.Value, threshold) {
			best = n
			rank = before + nsize(n.left) + 1
			before = rank
			n = n.right
		} else {
			n = n.left
		}
	}
	if best == nil {
		return model.ScoreEntry{}, false
	}
	e := best.entry
	e.Rank = rank
	return e, true
}
