// Package progress does the byte accounting for a session. It is pure
// bookkeeping: the transfer engine reports chunk sizes, the aggregator
// derives snapshots, and rendering belongs to whatever sink consumes them.
package progress

import "time"

// Snapshot is the derived progress state after one recorded chunk. It is
// recomputed on every event and never mutated independently.
type Snapshot struct {
	FileIndex    uint32
	FileName     string
	BytesDone    uint64
	FileTotal    uint64
	OverallDone  uint64
	OverallTotal uint64
	Elapsed      time.Duration
}

// Percent returns overall completion in [0, 100].
func (s Snapshot) Percent() float64 {
	if s.OverallTotal == 0 {
		return 0
	}
	return float64(s.OverallDone) / float64(s.OverallTotal) * 100
}

// Sink receives a snapshot after every recorded chunk. Implementations
// render; the aggregator never asks them for state.
type Sink interface {
	Update(Snapshot)
}

// FileTotal pairs a file's name with its declared size for accounting.
type FileTotal struct {
	Name string
	Size uint64
}

// Aggregator tracks per-file and overall bytes transferred. Per-file counts
// are monotonically non-decreasing; the overall total is the sum of all
// file sizes, fixed at construction.
type Aggregator struct {
	files   []FileTotal
	done    []uint64
	overall uint64
	total   uint64
	started time.Time
	sink    Sink
}

// NewAggregator creates an aggregator over the session's file totals. The
// wall-clock start is captured here; elapsed fields in snapshots are
// presentation-only. sink may be nil.
func NewAggregator(files []FileTotal, sink Sink) *Aggregator {
	a := &Aggregator{
		files:   files,
		done:    make([]uint64, len(files)),
		started: time.Now(),
		sink:    sink,
	}
	for _, f := range files {
		a.total += f.Size
	}
	return a
}

// Record adds n sent bytes to the file at index and pushes the derived
// snapshot to the sink. This is the only way counters advance; bytes that
// never reached the transport are never recorded. Per-file counts saturate
// at the file's declared size, so a range re-requested after a reconnect
// cannot push the counters past the session total.
func (a *Aggregator) Record(index uint32, n uint64) Snapshot {
	if int(index) < len(a.done) {
		if room := a.files[index].Size - a.done[index]; n > room {
			n = room
		}
		a.done[index] += n
		a.overall += n
	}
	snap := a.Snapshot(index)
	if a.sink != nil {
		a.sink.Update(snap)
	}
	return snap
}

// Snapshot returns the current derived state for the file at index without
// recording anything.
func (a *Aggregator) Snapshot(index uint32) Snapshot {
	snap := Snapshot{
		FileIndex:    index,
		OverallDone:  a.overall,
		OverallTotal: a.total,
		Elapsed:      time.Since(a.started),
	}
	if int(index) < len(a.files) {
		snap.FileName = a.files[index].Name
		snap.FileTotal = a.files[index].Size
		snap.BytesDone = a.done[index]
	}
	return snap
}

// OverallDone returns the total bytes recorded so far.
func (a *Aggregator) OverallDone() uint64 {
	return a.overall
}

// OverallTotal returns the immutable session total.
func (a *Aggregator) OverallTotal() uint64 {
	return a.total
}
