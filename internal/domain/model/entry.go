// Package model contains domain models passed between layers.
package model

import (
	"math"
)

// Unbounded is the requestedLast sentinel meaning "to the end of the board".
const Unbounded = math.MaxInt

// ScoreEntry is one ranked row. It is treated as immutable once a fetch has
// produced it; merge and extraction work on copies.
type ScoreEntry struct {
	Rank               int    // 1-based, backend-assigned (merged rank after aggregation)
	Value              int64  // ordering key
	DisplayName        string // player name, possibly resolved by a detail lookup
	IsRequestingPlayer bool   // true for the authenticated player's own row
	AvatarKey          string // image cache key; empty when the player has no avatar
	PlayerID           string // backend player id
	Source             string // id of the source that produced the row
}

// HasAvatar reports whether an avatar key is attached.
func (e ScoreEntry) HasAvatar() bool { return e.AvatarKey != "" }

// NoScore returns the personal-best placeholder used when the requesting
// player has no row in the merged leaderboard.
func NoScore() ScoreEntry {
	return ScoreEntry{Rank: 0, Value: math.MinInt64}
}

// IsNoScore reports whether e is the NoScore placeholder.
func (e ScoreEntry) IsNoScore() bool {
	return e.Rank == 0 && e.Value == math.MinInt64 && e.PlayerID == ""
}

// MaxEntry returns the sentinel answer for a nextAbove query with nothing to beat.
func MaxEntry() ScoreEntry {
	return ScoreEntry{Rank: 0, Value: math.MaxInt64}
}

// IsMax reports whether e is the MaxEntry sentinel.
func (e ScoreEntry) IsMax() bool {
	return e.Rank == 0 && e.Value == math.MaxInt64 && e.PlayerID == ""
}
