package session

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"dbibackend/internal/catalog"
	"dbibackend/internal/protocol"
	"dbibackend/internal/transport"
)

// State is the dispatcher's position in the serve loop.
type State int

const (
	StateAwaitingFrame State = iota
	StateDecodingPayload
	StateDispatching
	StateResponding
	StateTerminated
	StateError
)

func (s State) String() string {
	switch s {
	case StateAwaitingFrame:
		return "awaiting-frame"
	case StateDecodingPayload:
		return "decoding-payload"
	case StateDispatching:
		return "dispatching"
	case StateResponding:
		return "responding"
	case StateTerminated:
		return "terminated"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// errTerminated signals an Exit command inside the handler table; it never
// leaves Serve.
var errTerminated = errors.New("exit command received")

type handlerFunc func(ctx context.Context, conn transport.Conn, f protocol.Frame) error

// Dispatcher reads request frames and runs the matching handler to
// completion before reading the next frame. Exactly one command is in
// flight at a time, which keeps retry handling trivial: after a reconnect
// there is never more than one partially-completed exchange.
type Dispatcher struct {
	codec    *protocol.Codec
	catalog  *catalog.Catalog
	engine   *Engine
	observer Observer

	state    State
	handlers map[protocol.Command]handlerFunc
}

// NewDispatcher creates a dispatcher serving cat through engine.
func NewDispatcher(codec *protocol.Codec, cat *catalog.Catalog, engine *Engine, obs Observer) *Dispatcher {
	if obs == nil {
		obs = nopObserver{}
	}
	d := &Dispatcher{
		codec:    codec,
		catalog:  cat,
		engine:   engine,
		observer: obs,
		state:    StateAwaitingFrame,
	}
	d.handlers = map[protocol.Command]handlerFunc{
		protocol.CmdExit:           d.handleExit,
		protocol.CmdListDeprecated: d.handleListDeprecated,
		protocol.CmdFileRange:      d.handleFileRange,
		protocol.CmdList:           d.handleList,
		protocol.CmdFileCount:      d.handleFileCount,
		protocol.CmdFileName:       d.handleFileName,
		protocol.CmdFileSize:       d.handleFileSize,
	}
	return d
}

// State returns the dispatcher's current state.
func (d *Dispatcher) State() State {
	return d.state
}

func (d *Dispatcher) setState(s State) {
	if d.state == s {
		return
	}
	d.state = s
	d.observer.OnEvent(Event{Kind: EventStateChange, State: s})
}

// Serve runs the request/response loop on conn until an Exit command, a
// transport failure, or cancellation. Per-request errors are handled inside
// the loop; only transport failures and context errors are returned.
func (d *Dispatcher) Serve(ctx context.Context, conn transport.Conn) error {
	for {
		d.setState(StateAwaitingFrame)
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := conn.Receive(protocol.HeaderSize)
		if err != nil {
			d.setState(StateError)
			return err
		}

		d.setState(StateDecodingPayload)
		frame, err := d.codec.DecodeHeader(header)
		if err != nil {
			// A malformed header is discarded without side effects. An
			// oversized payload is drained so the loop resumes at the
			// next frame boundary.
			d.observer.OnEvent(Event{Kind: EventRequestError, Err: err})
			if errors.Is(err, protocol.ErrPayloadTooLarge) {
				if err := drainPayload(conn, binary.LittleEndian.Uint32(header[6:10])); err != nil {
					d.setState(StateError)
					return err
				}
			}
			continue
		}
		if len(frame.Payload) > 0 {
			payload, err := conn.Receive(len(frame.Payload))
			if err != nil {
				d.setState(StateError)
				return err
			}
			frame.Payload = payload
		}

		d.setState(StateDispatching)
		d.observer.OnEvent(Event{Kind: EventCommand, Command: frame.Command})

		handler, ok := d.handlers[frame.Command]
		if !ok {
			if err := d.rejectRequest(conn, frame.Command, protocol.StatusBadRequest,
				fmt.Errorf("unknown command %d", frame.Command)); err != nil {
				return err
			}
			continue
		}

		err = handler(ctx, conn, frame)
		switch {
		case err == nil:
			// Next frame.
		case errors.Is(err, errTerminated):
			d.setState(StateTerminated)
			return nil
		default:
			d.setState(StateError)
			return err
		}
	}
}

// drainPayload reads and discards n declared payload bytes in bounded
// steps, keeping the stream aligned on frame boundaries.
func drainPayload(conn transport.Conn, n uint32) error {
	const step = 64 * 1024
	for n > 0 {
		chunk := uint32(step)
		if n < chunk {
			chunk = n
		}
		if _, err := conn.Receive(int(chunk)); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// rejectRequest reports a per-request failure and answers with an error
// frame. Only a transport failure while sending it is returned.
func (d *Dispatcher) rejectRequest(conn transport.Conn, cmd protocol.Command, status protocol.Status, cause error) error {
	d.observer.OnEvent(Event{Kind: EventRequestError, Command: cmd, Err: cause})
	d.setState(StateResponding)
	return conn.Send(d.codec.Encode(protocol.ErrorFrame(cmd, status)))
}

func (d *Dispatcher) respond(conn transport.Conn, cmd protocol.Command, payload []byte) error {
	d.setState(StateResponding)
	frame := protocol.Frame{Type: protocol.TypeResponse, Command: cmd, Payload: payload}
	return conn.Send(d.codec.Encode(frame))
}

func (d *Dispatcher) handleExit(ctx context.Context, conn transport.Conn, f protocol.Frame) error {
	return errTerminated
}

func (d *Dispatcher) handleListDeprecated(ctx context.Context, conn transport.Conn, f protocol.Frame) error {
	return d.rejectRequest(conn, f.Command, protocol.StatusBadRequest,
		errors.New("deprecated list command"))
}

func (d *Dispatcher) handleFileCount(ctx context.Context, conn transport.Conn, f protocol.Frame) error {
	return d.respond(conn, f.Command, protocol.EncodeCount(uint32(d.catalog.Count())))
}

func (d *Dispatcher) handleList(ctx context.Context, conn transport.Conn, f protocol.Frame) error {
	var list bytes.Buffer
	for _, name := range d.catalog.Names() {
		list.WriteString(name)
		list.WriteByte('\n')
	}
	return d.respond(conn, f.Command, list.Bytes())
}

func (d *Dispatcher) handleFileName(ctx context.Context, conn transport.Conn, f protocol.Frame) error {
	index, err := protocol.DecodeIndex(f.Payload)
	if err != nil {
		return d.rejectRequest(conn, f.Command, protocol.StatusBadRequest, err)
	}
	name, err := d.catalog.NameOf(index)
	if err != nil {
		return d.rejectRequest(conn, f.Command, protocol.StatusNotFound, err)
	}
	return d.respond(conn, f.Command, []byte(name))
}

func (d *Dispatcher) handleFileSize(ctx context.Context, conn transport.Conn, f protocol.Frame) error {
	index, err := protocol.DecodeIndex(f.Payload)
	if err != nil {
		return d.rejectRequest(conn, f.Command, protocol.StatusBadRequest, err)
	}
	size, err := d.catalog.SizeOf(index)
	if err != nil {
		return d.rejectRequest(conn, f.Command, protocol.StatusNotFound, err)
	}
	return d.respond(conn, f.Command, protocol.EncodeSize(size))
}

// handleFileRange validates the request against the catalog before any
// response frame is written, so a rejected request sends zero data bytes
// and leaves the counters untouched.
func (d *Dispatcher) handleFileRange(ctx context.Context, conn transport.Conn, f protocol.Frame) error {
	req, err := protocol.DecodeRangeRequest(f.Payload)
	if err != nil {
		return d.rejectRequest(conn, f.Command, protocol.StatusBadRequest, err)
	}

	src, err := d.catalog.OpenRangeReader(req.Index, req.Offset, req.Length)
	switch {
	case errors.Is(err, catalog.ErrIndexOutOfRange):
		return d.rejectRequest(conn, f.Command, protocol.StatusNotFound, err)
	case errors.Is(err, catalog.ErrRangeInvalid):
		return d.rejectRequest(conn, f.Command, protocol.StatusRangeInvalid, err)
	case err != nil:
		// The file went away after the catalog was built. The request is
		// aborted; the catalog keeps its entry.
		return d.rejectRequest(conn, f.Command, protocol.StatusIOFailed, err)
	}
	defer src.Close()

	d.setState(StateResponding)
	err = d.engine.Stream(ctx, conn, req, src)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSourceRead):
		// Some data frames may already be out; the error frame tells the
		// peer the exchange is void. The session continues.
		return d.rejectRequest(conn, f.Command, protocol.StatusIOFailed, err)
	default:
		// Transport loss or cancellation escalates to the controller.
		return err
	}
}
