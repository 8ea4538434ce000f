package session

import "dbibackend/internal/protocol"

// EventKind classifies a session event.
type EventKind int

const (
	// EventStateChange reports a dispatcher state transition.
	EventStateChange EventKind = iota
	// EventCommand reports a received command about to be dispatched.
	EventCommand
	// EventRequestError reports a per-request failure that the dispatcher
	// recovered from.
	EventRequestError
	// EventReconnecting reports a reconnect attempt after a transport
	// failure.
	EventReconnecting
	// EventConnected reports an established connection and its generation.
	EventConnected
	// EventOutcome reports the final session outcome.
	EventOutcome
)

// Event is one structured observation from the session core. The core never
// formats text; observers decide how to present events.
type Event struct {
	Kind       EventKind
	State      State
	Command    protocol.Command
	Err        error
	Attempt    int
	Generation int
	Outcome    Outcome
}

// Observer consumes session events.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// OnEvent calls f(ev).
func (f ObserverFunc) OnEvent(ev Event) { f(ev) }

// nopObserver stands in when no observer is installed.
type nopObserver struct{}

func (nopObserver) OnEvent(Event) {}
