// Package types contains the JSON shapes returned by the HTTP API.
package types

import "github.com/okian/ladder/internal/domain/model"

// Entry represents a leaderboard row on the wire.
type Entry struct {
	Rank               int    `json:"rank"`
	Value              int64  `json:"value"`
	DisplayName        string `json:"display_name"`
	IsRequestingPlayer bool   `json:"is_requesting_player,omitempty"`
	AvatarKey          string `json:"avatar_key,omitempty"`
	PlayerID           string `json:"player_id,omitempty"`
	Source             string `json:"source,omitempty"`
}

// RangeResponse is the body of a range fetch.
type RangeResponse struct {
	Anchor  int     `json:"anchor"`
	Entries []Entry `json:"entries"`
	Error   string  `json:"error,omitempty"`
}

// NextAboveResponse answers a nextAbove query. Found is false when the
// maximal sentinel was returned.
type NextAboveResponse struct {
	Threshold int64  `json:"threshold"`
	Found     bool   `json:"found"`
	Entry     *Entry `json:"entry,omitempty"`
}

// PersonalBestResponse carries the extracted personal best, if any.
type PersonalBestResponse struct {
	Found bool   `json:"found"`
	Entry *Entry `json:"entry,omitempty"`
}

// FromModel converts a domain entry to its wire shape.
func FromModel(e model.ScoreEntry) Entry {
	return Entry{
		Rank:               e.Rank,
		Value:              e.Value,
		DisplayName:        e.DisplayName,
		IsRequestingPlayer: e.IsRequestingPlayer,
		AvatarKey:          e.AvatarKey,
		PlayerID:           e.PlayerID,
		Source:             e.Source,
	}
}

// FromModels converts a slice, never returning nil.
func FromModels(in []model.ScoreEntry) []Entry {
	out := make([]Entry, len(in))
	for i, e := range in {
		out[i] = FromModel(e)
	}
	return out
}

// ToModel converts a wire entry back to the domain shape.
func ToModel(e Entry) model.ScoreEntry {
	return model.ScoreEntry{
		Rank:               e.Rank,
		Value:              e.Value,
		DisplayName:        e.DisplayName,
		IsRequestingPlayer: e.IsRequestingPlayer,
		AvatarKey:          e.AvatarKey,
		PlayerID:           e.PlayerID,
		Source:             e.Source,
	}
}
