// Package repository holds the in-memory ordered set behind the merged leaderboard.
package repository

// Order decides which of two values ranks earlier.
type Order interface {
	// Before reports whether value a ranks strictly ahead of value b.
	Before(a, b int64) bool
	// Name identifies the order in logs.
	Name() string
}

// Descending ranks higher values first (the usual score order).
type Descending struct{}

func (Descending) Before(a, b int64) bool { return a > b }
func (Descending) Name() string           { return "descending" }

// Ascending ranks lower values first (e.g. fastest time).
type Ascending struct{}

func (Ascending) Before(a, b int64) bool { return a < b }
func (Ascending) Name() string           { return "ascending" }
