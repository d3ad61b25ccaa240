package model

// PageCursor is an opaque, directional continuation token issued by a backend.
// The zero value is an invalid cursor.
type PageCursor struct {
	Token string
	Valid bool
}

// NewCursor returns a valid cursor wrapping token.
func NewCursor(token string) PageCursor {
	return PageCursor{Token: token, Valid: true}
}

// RawRow is a rank row as a backend returns it, before detail resolution.
type RawRow struct {
	Rank        int
	Value       int64
	PlayerID    string
	DisplayName string
	IsSelf      bool // set by backends that know the requesting player themselves
}

// Page is one fixed-size block of rows plus the cursors around it.
type Page struct {
	Rows     []RawRow
	Next     PageCursor // advances to higher ranks
	Previous PageCursor // retreats to lower ranks
}

// FirstRank returns the rank of the first row or 0 for an empty page.
func (p Page) FirstRank() int {
	if len(p.Rows) == 0 {
		return 0
	}
	return p.Rows[0].Rank
}

// LastRank returns the rank of the last row or 0 for an empty page.
func (p Page) LastRank() int {
	if len(p.Rows) == 0 {
		return 0
	}
	return p.Rows[len(p.Rows)-1].Rank
}

// Detail is the per-player information resolved by a detail lookup.
type Detail struct {
	DisplayName string
	AvatarRef   string
}

// Player is the authenticated player as a source knows them.
type Player struct {
	ID          string
	DisplayName string
}
