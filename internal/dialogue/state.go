package dialogue

import "github.com/dwizi/permit-tracker/internal/tracking"

// State is the question the engine is waiting on for a user.
type State int

const (
	StateIdle State = iota
	StateAwaitingAreaSelection
	StateAwaitingSiteSelection
	StateAwaitingDateSelection
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingAreaSelection:
		return "awaiting_area_selection"
	case StateAwaitingSiteSelection:
		return "awaiting_site_selection"
	case StateAwaitingDateSelection:
		return "awaiting_date_selection"
	default:
		return "unknown"
	}
}

// Conversation is the in-memory progress of one user's flow. Pending is the
// permit tree narrowed so far and is empty whenever State is StateIdle.
type Conversation struct {
	UserID  string
	State   State
	Pending tracking.PermitArea
}

func (c *Conversation) reset() {
	c.State = StateIdle
	c.Pending = tracking.PermitArea{}
}

// Event is one inbound chat message. UserID and Destination are namespaced
// by connector, e.g. "slack:U123" and "slack:C456".
type Event struct {
	UserID      string
	Destination string
	Text        string
}
