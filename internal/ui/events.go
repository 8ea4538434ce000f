package ui

import (
	"log"

	"dbibackend/internal/session"
)

// EventLogger turns session events into log lines. Chatty per-frame events
// are only shown in debug mode; errors, reconnects and the outcome always
// log. It implements session.Observer.
type EventLogger struct {
	debug      bool
	progressUI *ProgressUI
}

// NewEventLogger creates an observer logging at the given verbosity.
// progressUI may be nil; when set, reconnect events also interrupt the bar.
func NewEventLogger(debug bool, progressUI *ProgressUI) *EventLogger {
	return &EventLogger{debug: debug, progressUI: progressUI}
}

// OnEvent logs one session event.
func (l *EventLogger) OnEvent(ev session.Event) {
	switch ev.Kind {
	case session.EventStateChange:
		if l.debug {
			log.Printf("State: %s", ev.State)
		}
	case session.EventCommand:
		if l.debug {
			log.Printf("Received command %d", ev.Command)
		}
	case session.EventRequestError:
		log.Printf("Request failed: %v", ev.Err)
	case session.EventReconnecting:
		log.Printf("Connection lost (%v), reconnect attempt %d", ev.Err, ev.Attempt)
		if l.progressUI != nil {
			l.progressUI.ShowReconnecting(ev.Attempt)
		}
	case session.EventConnected:
		log.Printf("Connected to peer (generation %d)", ev.Generation)
	case session.EventOutcome:
		if ev.Err != nil {
			log.Printf("Session %s: %v", ev.Outcome, ev.Err)
		} else {
			log.Printf("Session %s", ev.Outcome)
		}
	}
}
