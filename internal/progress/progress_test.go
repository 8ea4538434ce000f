package progress

import "testing"

func sessionFiles() []FileTotal {
	return []FileTotal{
		{Name: "a.nsp", Size: 1000},
		{Name: "b.nsp", Size: 500},
	}
}

func TestOverallTotalFixedAtStart(t *testing.T) {
	agg := NewAggregator(sessionFiles(), nil)
	if agg.OverallTotal() != 1500 {
		t.Fatalf("OverallTotal = %d, want 1500", agg.OverallTotal())
	}

	agg.Record(0, 300)
	if agg.OverallTotal() != 1500 {
		t.Errorf("OverallTotal changed after Record: %d", agg.OverallTotal())
	}
}

func TestRecordDerivesSnapshot(t *testing.T) {
	agg := NewAggregator(sessionFiles(), nil)

	snap := agg.Record(0, 300)
	if snap.FileName != "a.nsp" || snap.BytesDone != 300 || snap.FileTotal != 1000 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.OverallDone != 300 || snap.OverallTotal != 1500 {
		t.Errorf("overall = %d/%d, want 300/1500", snap.OverallDone, snap.OverallTotal)
	}
	if got, want := snap.Percent(), 20.0; got != want {
		t.Errorf("Percent = %v, want %v", got, want)
	}

	snap = agg.Record(1, 500)
	if snap.BytesDone != 500 || snap.OverallDone != 800 {
		t.Errorf("after second file: %+v", snap)
	}
}

func TestCountersNeverDecrease(t *testing.T) {
	agg := NewAggregator(sessionFiles(), nil)
	var last uint64
	for i := 0; i < 10; i++ {
		snap := agg.Record(0, 100)
		if snap.BytesDone < last {
			t.Fatalf("BytesDone decreased: %d -> %d", last, snap.BytesDone)
		}
		last = snap.BytesDone
	}
}

func TestPerFileCountSaturatesAtFileSize(t *testing.T) {
	agg := NewAggregator(sessionFiles(), nil)

	agg.Record(1, 400)
	// A re-requested range after a reconnect replays bytes already counted.
	snap := agg.Record(1, 400)

	if snap.BytesDone != 500 {
		t.Errorf("BytesDone = %d, want file size 500", snap.BytesDone)
	}
	if agg.OverallDone() != 500 {
		t.Errorf("OverallDone = %d, want 500", agg.OverallDone())
	}
}

func TestRecordIgnoresUnknownIndex(t *testing.T) {
	agg := NewAggregator(sessionFiles(), nil)
	snap := agg.Record(9, 100)
	if agg.OverallDone() != 0 {
		t.Errorf("OverallDone = %d, want 0", agg.OverallDone())
	}
	if snap.FileTotal != 0 || snap.BytesDone != 0 {
		t.Errorf("snapshot for unknown index = %+v", snap)
	}
}

type recordingSink struct {
	snaps []Snapshot
}

func (r *recordingSink) Update(s Snapshot) { r.snaps = append(r.snaps, s) }

func TestSinkReceivesEverySnapshot(t *testing.T) {
	sink := &recordingSink{}
	agg := NewAggregator(sessionFiles(), sink)

	agg.Record(0, 100)
	agg.Record(0, 200)

	if len(sink.snaps) != 2 {
		t.Fatalf("sink got %d snapshots, want 2", len(sink.snaps))
	}
	if sink.snaps[1].BytesDone != 300 {
		t.Errorf("second snapshot BytesDone = %d, want 300", sink.snaps[1].BytesDone)
	}
}
