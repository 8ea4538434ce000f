package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"dbibackend/internal/progress"
	"dbibackend/internal/protocol"
	"dbibackend/internal/transport"
)

// ErrSourceRead marks a failure to read the local file while streaming.
// The dispatcher maps it to an error frame for the current request; it
// never ends the session.
var ErrSourceRead = errors.New("failed to read source file")

// Engine streams one requested byte range to the peer in bounded chunks.
type Engine struct {
	codec     *protocol.Codec
	chunkSize uint32
	progress  *progress.Aggregator
}

// NewEngine creates a transfer engine. chunkSize bounds the payload of each
// data frame and therefore peak memory per request.
func NewEngine(codec *protocol.Codec, chunkSize uint32, agg *progress.Aggregator) *Engine {
	return &Engine{codec: codec, chunkSize: chunkSize, progress: agg}
}

// Stream sends exactly req.Length bytes from src as a sequence of response
// frames. Progress is recorded only after the transport accepts a chunk, so
// the counters never run ahead of the wire. Cancellation is polled between
// chunks; an in-flight chunk always completes so no partial frame is left
// behind.
func (e *Engine) Stream(ctx context.Context, conn transport.Conn, req protocol.RangeRequest, src io.Reader) error {
	// A zero-length range still gets exactly one (empty) response frame,
	// so the peer always sees an answer.
	if req.Length == 0 {
		frame := protocol.Frame{Type: protocol.TypeResponse, Command: protocol.CmdFileRange}
		return conn.Send(e.codec.Encode(frame))
	}

	buf := make([]byte, e.chunkSize)
	remaining := req.Length

	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk := e.chunkSize
		if remaining < chunk {
			chunk = remaining
		}
		if _, err := io.ReadFull(src, buf[:chunk]); err != nil {
			return fmt.Errorf("%w: %v", ErrSourceRead, err)
		}

		frame := protocol.Frame{
			Type:    protocol.TypeResponse,
			Command: protocol.CmdFileRange,
			Payload: buf[:chunk],
		}
		if err := conn.Send(e.codec.Encode(frame)); err != nil {
			// The unsent remainder is never counted; bytes already on
			// the wire stay counted across a reconnect.
			return err
		}

		e.progress.Record(req.Index, uint64(chunk))
		remaining -= chunk
	}
	return nil
}
