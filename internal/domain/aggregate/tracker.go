package aggregate

import "math/bits"

// MaxSources is the number of sources a CompletionTracker can follow.
const MaxSources = 64

// CompletionTracker records which sources reported for the current build.
type CompletionTracker struct {
	mask uint64
	full uint64
}

// NewCompletionTracker follows n sources, n <= MaxSources.
func NewCompletionTracker(n int) CompletionTracker {
	var full uint64
	switch {
	case n >= MaxSources:
		full = ^uint64(0)
	case n > 0:
		full = uint64(1)<<uint(n) - 1
	}
	return CompletionTracker{full: full}
}

// Reset clears every bit.
func (t *CompletionTracker) Reset() { t.mask = 0 }

// Mark sets the bit of source i. Marking twice is harmless.
func (t *CompletionTracker) Mark(i int) { t.mask |= (uint64(1) << uint(i)) & t.full }

// Done reports whether every source has reported.
func (t CompletionTracker) Done() bool { return t.mask == t.full }

// Pending returns the number of sources yet to report.
func (t CompletionTracker) Pending() int { return bits.OnesCount64(t.full &^ t.mask) }
