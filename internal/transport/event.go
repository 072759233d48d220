package transport

// State is the connection state of a transport.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// EventKind classifies transport events.
type EventKind int

const (
	// KindStateChange reports a connection state transition.
	KindStateChange EventKind = iota
	// KindMessage carries one inbound text frame.
	KindMessage
	// KindError reports a recoverable transport failure.
	KindError
)

// Event is one typed notification from the transport. Events are delivered
// on a single channel in the order they occur; inbound message events
// preserve the order the backend produced them within one connection
// lifetime.
type Event struct {
	Kind  EventKind
	State State  // set when Kind == KindStateChange
	Text  string // set when Kind == KindMessage
	Err   error  // set when Kind == KindError
}
