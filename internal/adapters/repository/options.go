package repository

// SetOption configures an OrderedSet.
type SetOption func(*OrderedSet)

// Deduplicate makes the set keep one row per player and one row per value.
//
// A player seen again keeps whichever of its rows ranks better, and stays
// flagged as the requesting player if either row was. A row whose value is
// already held by another row is dropped, so the first arrival owns a value.
// Requesting-player rows are exempt from the value rule.
func Deduplicate() SetOption {
	return func(s *OrderedSet) {
		s.players = make(map[string]slot)
		s.values = make(map[int64]uint64)
	}
}
