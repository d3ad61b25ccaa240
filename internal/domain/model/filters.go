package model

import (
	"fmt"
	"strings"
)

// SocialScope limits a leaderboard to a set of players.
type SocialScope string

// TimeScope limits a leaderboard to a time window.
type TimeScope string

const (
	SocialGlobal  SocialScope = "global"
	SocialFriends SocialScope = "friends"

	TimeAllTime TimeScope = "all_time"
	TimeWeekly  TimeScope = "weekly"
	TimeDaily   TimeScope = "daily"
)

// Filters selects which leaderboard a top cursor is issued for.
type Filters struct {
	Social SocialScope
	Time   TimeScope
}

// DefaultFilters is global, all-time.
func DefaultFilters() Filters {
	return Filters{Social: SocialGlobal, Time: TimeAllTime}
}

// String renders filters as "<social>:<time>".
func (f Filters) String() string {
	return string(f.Social) + ":" + string(f.Time)
}

// ParseSocialScope parses a social scope name.
func ParseSocialScope(s string) (SocialScope, error) {
	switch v := SocialScope(strings.ToLower(strings.TrimSpace(s))); v {
	case SocialGlobal, SocialFriends:
		return v, nil
	case "":
		return SocialGlobal, nil
	default:
		return "", fmt.Errorf("unknown social scope %q", s)
	}
}

// ParseTimeScope parses a time scope name.
func ParseTimeScope(s string) (TimeScope, error) {
	switch v := TimeScope(strings.ToLower(strings.TrimSpace(s))); v {
	case TimeAllTime, TimeWeekly, TimeDaily:
		return v, nil
	case "":
		return TimeAllTime, nil
	default:
		return "", fmt.Errorf("unknown time scope %q", s)
	}
}
