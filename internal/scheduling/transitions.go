package scheduling

// transitions is the single source of truth for legal status changes.
// Completed and no-show are only reachable through confirmed; terminal states
// have no outgoing edges.
var transitions = map[Status][]Status{
	StatusScheduled: {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted, StatusNoShow},
	StatusCancelled: {},
	StatusCompleted: {},
	StatusNoShow:    {},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing transitions.
func IsTerminal(s Status) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// ValidStatus reports whether s is a member of the closed status set.
func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}
