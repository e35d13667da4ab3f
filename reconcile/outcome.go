package reconcile

// Outcome reports what a remote event did to the store.
type Outcome int

const (
	// OutcomeIgnored means the event described nothing to change, e.g. a delete for an absent id.
	OutcomeIgnored Outcome = iota
	OutcomeInserted
	OutcomeMerged
	OutcomeRemoved
	// OutcomeStale means the event was not newer than the held version. Only
	// fields the local copy never had were filled in.
	OutcomeStale
	// OutcomeForeignBoard means the event belongs to a board that is not active.
	OutcomeForeignBoard
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeInserted:
		return "inserted"
	case OutcomeMerged:
		return "merged"
	case OutcomeRemoved:
		return "removed"
	case OutcomeStale:
		return "stale"
	case OutcomeForeignBoard:
		return "foreign-board"
	}
	return "unknown"
}
