package backend

import "sync/atomic"

// Self holds the requesting player's id for backends that mark or submit on
// its behalf. The zero value is anonymous.
type Self struct {
	id atomic.Pointer[string]
}

// Set replaces the id.
func (s *Self) Set(id string) { s.id.Store(&id) }

// ID returns the id, or "" when anonymous.
func (s *Self) ID() string {
	if p := s.id.Load(); p != nil {
		return *p
	}
	return ""
}

// SelfSetter is implemented by backends whose requesting player can change
// after construction, e.g. on re-authentication.
type SelfSetter interface {
	SetSelf(id string)
}
