package domain

// State is the lifecycle marker of deletable entities.
// Deleting a tag, logbook, property or attribute flips it to Inactive.
type State string

const (
	StateActive   State = "Active"
	StateInactive State = "Inactive"
)

// Normalize maps the zero value to Active.
func (s State) Normalize() State {
	if s == "" {
		return StateActive
	}
	return s
}

func (s State) IsActive() bool {
	return s.Normalize() == StateActive
}

func (s State) Valid() bool {
	switch s {
	case "", StateActive, StateInactive:
		return true
	default:
		return false
	}
}

const (
	// SearchTimeLayout is the layout of the start and end search parameters.
	SearchTimeLayout = "2006-01-02 15:04:05.000"

	// LogCreatedChannel is the signal channel for new log entries.
	LogCreatedChannel = "logbook.log.created"
)
