// Package session implements the protocol core: the dispatcher state
// machine, the chunked transfer engine and the reconnect policy that ties
// one connect-to-exit lifecycle together.
package session

import (
	"context"
	"errors"
	"time"

	"dbibackend/internal/catalog"
	"dbibackend/internal/config"
	"dbibackend/internal/progress"
	"dbibackend/internal/protocol"
	"dbibackend/internal/transport"
)

// Outcome is the final result of a session.
type Outcome int

const (
	// OutcomeCompleted means the peer sent Exit and the loop drained
	// normally.
	OutcomeCompleted Outcome = iota
	// OutcomeFailed means the retry budget was exhausted by transport
	// failures.
	OutcomeFailed
	// OutcomeCancelled means the session was stopped by the caller.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Controller owns the outer serve loop: acquiring a connection, running the
// dispatcher on it, and applying the retry policy when the transport drops.
type Controller struct {
	cfg        *config.Config
	transport  transport.Transport
	dispatcher *Dispatcher
	policy     *RetryPolicy
	observer   Observer
	generation int
}

// NewController wires a session over t serving cat. Progress increments
// flow into agg; obs receives structured events and may be nil.
func NewController(cfg *config.Config, t transport.Transport, cat *catalog.Catalog, agg *progress.Aggregator, obs Observer) *Controller {
	if obs == nil {
		obs = nopObserver{}
	}
	codec := protocol.NewCodec(cfg.Protocol.MaxPayloadSize)
	engine := NewEngine(codec, cfg.Protocol.ChunkSize, agg)
	return &Controller{
		cfg:        cfg,
		transport:  t,
		dispatcher: NewDispatcher(codec, cat, engine, obs),
		policy:     NewRetryPolicy(cfg.Session.MaxRetries),
		observer:   obs,
	}
}

// Run executes the session until the peer exits, the retry budget runs out,
// or ctx is cancelled. The returned error carries the last failure for
// OutcomeFailed and is nil otherwise.
func (c *Controller) Run(ctx context.Context) (Outcome, error) {
	for {
		if ctx.Err() != nil {
			return c.finish(OutcomeCancelled, nil)
		}

		conn, err := c.transport.Connect(ctx)
		if err != nil {
			if !c.retry(ctx, err) {
				if ctx.Err() != nil {
					return c.finish(OutcomeCancelled, nil)
				}
				return c.finish(OutcomeFailed, err)
			}
			continue
		}

		c.generation++
		c.observer.OnEvent(Event{Kind: EventConnected, Generation: c.generation})

		err = c.dispatcher.Serve(ctx, conn)
		conn.Close()

		switch {
		case err == nil:
			return c.finish(OutcomeCompleted, nil)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return c.finish(OutcomeCancelled, nil)
		case transport.IsDisconnect(err):
			if !c.retry(ctx, err) {
				if ctx.Err() != nil {
					return c.finish(OutcomeCancelled, nil)
				}
				return c.finish(OutcomeFailed, err)
			}
		default:
			return c.finish(OutcomeFailed, err)
		}
	}
}

// Generation returns the current connection generation. It starts at zero
// and increments on every successful (re)connect.
func (c *Controller) Generation() int {
	return c.generation
}

// retry consumes one attempt from the budget and waits out the retry delay.
// It returns false when the budget is exhausted or ctx was cancelled.
func (c *Controller) retry(ctx context.Context, cause error) bool {
	if ctx.Err() != nil {
		return false
	}
	if !c.policy.Next() {
		return false
	}
	c.observer.OnEvent(Event{
		Kind:    EventReconnecting,
		Err:     cause,
		Attempt: c.policy.Attempt(),
	})
	if c.cfg.Session.RetryDelay > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.cfg.Session.RetryDelay):
		}
	}
	return true
}

func (c *Controller) finish(outcome Outcome, err error) (Outcome, error) {
	c.observer.OnEvent(Event{Kind: EventOutcome, Outcome: outcome, Err: err})
	return outcome, err
}
