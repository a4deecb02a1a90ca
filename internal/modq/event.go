package modq

// EventKind is the kind of state transition fanned out by the notifier.
type EventKind string

const (
	EventSubmitted       EventKind = "submitted"
	EventApproved        EventKind = "approved"
	EventRejected        EventKind = "rejected"
	EventSecretDiscovery EventKind = "secret_discovery"
)

// Event describes a committed state change. Exactly one of Submission and Grant is set.
type Event struct {
	Kind       EventKind
	Submission *Submission
	Grant      *Grant
	Actor      Actor

	// Counts are the subject user's submission counts at the time of the event.
	Counts QueueCounts

	// GrantHolder reports whether the subject user holds a grant.
	GrantHolder bool

	// Holders is the total number of grant holders.
	Holders int
}

// DecisionEvent returns the event kind matching a reviewer outcome.
func DecisionEvent(o Outcome) EventKind {
	if o == OutcomeApprove {
		return EventApproved
	}
	return EventRejected
}
