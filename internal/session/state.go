package session

// State is the session controller's lifecycle phase.
type State int

// Lifecycle states, in the order a full trading day passes through them.
const (
	StateInitializing State = iota
	StateWaiting
	StateCapturing
	StatePostSession
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateWaiting:
		return "WAITING"
	case StateCapturing:
		return "CAPTURING"
	case StatePostSession:
		return "POST_SESSION"
	case StateSleeping:
		return "SLEEPING"
	default:
		return "UNKNOWN"
	}
}
