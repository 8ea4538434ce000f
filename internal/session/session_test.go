package session

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"dbibackend/internal/catalog"
	"dbibackend/internal/config"
	"dbibackend/internal/progress"
	"dbibackend/internal/protocol"
	"dbibackend/internal/transport"
)

// fakeConn is a scripted in-memory connection. Receive drains the request
// script; Send collects outgoing bytes. When the script runs dry the peer
// is considered gone and reads fail with a connection loss.
type fakeConn struct {
	in  bytes.Buffer
	out bytes.Buffer

	// sendBudget is the number of Send calls that succeed before the
	// connection drops; negative means unlimited.
	sendBudget int

	// onSend runs after each successful Send; used to trigger
	// cancellation between chunks.
	onSend func()

	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{sendBudget: -1}
}

func (c *fakeConn) Receive(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(&c.in, buf); err != nil {
		return nil, transport.ErrConnectionLost
	}
	return buf, nil
}

func (c *fakeConn) Send(p []byte) error {
	if c.sendBudget == 0 {
		return transport.ErrConnectionLost
	}
	if c.sendBudget > 0 {
		c.sendBudget--
	}
	c.out.Write(p)
	if c.onSend != nil {
		c.onSend()
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

// script appends encoded request frames to the connection's input.
func (c *fakeConn) script(codec *protocol.Codec, frames ...protocol.Frame) {
	for _, f := range frames {
		c.in.Write(codec.Encode(f))
	}
}

// drainFrames decodes every frame the host wrote to the connection.
func drainFrames(t *testing.T, codec *protocol.Codec, c *fakeConn) []protocol.Frame {
	t.Helper()
	var frames []protocol.Frame
	r := bytes.NewReader(c.out.Bytes())
	for r.Len() > 0 {
		f, err := codec.Decode(r)
		if err != nil {
			t.Fatalf("host wrote a malformed frame: %v", err)
		}
		frames = append(frames, f)
	}
	return frames
}

// fakeTransport serves a fixed sequence of connection attempts.
type fakeTransport struct {
	results []connectResult
	calls   int
}

type connectResult struct {
	conn *fakeConn
	err  error
}

func (t *fakeTransport) Connect(ctx context.Context) (transport.Conn, error) {
	t.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(t.results) == 0 {
		return nil, transport.ErrConnectFailed
	}
	next := t.results[0]
	t.results = t.results[1:]
	if next.err != nil {
		return nil, next.err
	}
	return next.conn, nil
}

// recorder collects session events for assertions.
type recorder struct {
	events []Event
}

func (r *recorder) OnEvent(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) count(kind EventKind) int {
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// request builds a peer request frame.
func request(cmd protocol.Command, payload []byte) protocol.Frame {
	return protocol.Frame{Type: protocol.TypeRequest, Command: cmd, Payload: payload}
}

func rangeRequest(index uint32, offset uint64, length uint32) protocol.Frame {
	return request(protocol.CmdFileRange, protocol.EncodeRangeRequest(protocol.RangeRequest{
		Index:  index,
		Offset: offset,
		Length: length,
	}))
}

// patternData fills n bytes with a deterministic pattern, so range reads
// can be checked byte for byte.
func patternData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// buildCatalog writes the given files to a temp dir and returns a catalog
// plus the matching aggregator totals.
func buildCatalog(t *testing.T, files map[string]int) (*catalog.Catalog, []progress.FileTotal, map[string][]byte) {
	t.Helper()
	dir := t.TempDir()

	var entries []catalog.Entry
	contents := make(map[string][]byte, len(files))
	for name, size := range files {
		data := patternData(size)
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatal(err)
		}
		contents[name] = data
		entries = append(entries, catalog.Entry{Name: name, Path: path, Size: uint64(size)})
	}
	// Stable index order, as Scan guarantees.
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			if entries[j].Name < entries[i].Name {
				entries[i], entries[j] = entries[j], entries[i]
			}
		}
	}

	totals := make([]progress.FileTotal, len(entries))
	for i, e := range entries {
		totals[i] = progress.FileTotal{Name: e.Name, Size: e.Size}
	}
	return catalog.New(entries), totals, contents
}

func testConfig(chunkSize uint32) *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Protocol.ChunkSize = chunkSize
	cfg.Protocol.MaxPayloadSize = chunkSize
	cfg.Session.RetryDelay = 0
	return cfg
}
