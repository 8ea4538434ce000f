package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"dbibackend/internal/progress"
	"dbibackend/pkg/utils"
)

// ProgressUI renders transfer progress snapshots as a terminal progress
// bar. It implements progress.Sink and keeps one bar per file, switching
// when the peer moves on to the next file.
type ProgressUI struct {
	bar        *progressbar.ProgressBar
	fileIndex  uint32
	fileCount  int
	hasBar     bool
	lastUpdate time.Time
}

// NewProgressUI creates a progress UI for a session over fileCount files.
func NewProgressUI(fileCount int) *ProgressUI {
	return &ProgressUI{fileCount: fileCount}
}

// Update renders one snapshot.
func (p *ProgressUI) Update(snap progress.Snapshot) {
	if !p.hasBar || snap.FileIndex != p.fileIndex {
		p.startBar(snap)
	}

	_ = p.bar.Set64(int64(snap.BytesDone))

	now := time.Now()
	if now.Sub(p.lastUpdate) >= 200*time.Millisecond || snap.BytesDone >= snap.FileTotal {
		overall := fmt.Sprintf("%s/%s overall",
			utils.FormatFileSize(int64(snap.OverallDone)),
			utils.FormatFileSize(int64(snap.OverallTotal)))
		p.bar.Describe(fmt.Sprintf("[%d/%d] %s (%.1f%%, %s)",
			snap.FileIndex+1, p.fileCount, snap.FileName, snap.Percent(), overall))
		p.lastUpdate = now
	}

	if snap.BytesDone >= snap.FileTotal && snap.FileTotal > 0 {
		_ = p.bar.Finish()
		p.hasBar = false
	}
}

// ShowReconnecting interrupts the bar with a reconnect notice.
func (p *ProgressUI) ShowReconnecting(attempt int) {
	if p.hasBar {
		_ = p.bar.Clear()
	}
	fmt.Fprintf(os.Stderr, "Connection lost, reconnecting (attempt %d)...\n", attempt)
}

func (p *ProgressUI) startBar(snap progress.Snapshot) {
	p.fileIndex = snap.FileIndex
	p.hasBar = true
	p.bar = progressbar.NewOptions64(int64(snap.FileTotal),
		progressbar.OptionSetDescription(fmt.Sprintf("[%d/%d] %s", snap.FileIndex+1, p.fileCount, snap.FileName)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(false),
	)
}
