package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Veraticus/finwiz/internal/syncer"
	"github.com/schollz/progressbar/v3"
)

// SyncProgress shows an indeterminate bar that ticks once per synced page.
type SyncProgress struct {
	bar    *progressbar.ProgressBar
	writer io.Writer
}

// NewSyncProgress creates the bar. The provider does not say how many pages
// remain, so the bar counts pages instead of filling up.
func NewSyncProgress(writer io.Writer) *SyncProgress {
	if writer == nil {
		writer = os.Stderr
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("pages"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetDescription("[cyan][bold]Syncing transactions...[reset]"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)

	return &SyncProgress{bar: bar, writer: writer}
}

// OnPage matches syncer.Options.OnPage.
func (p *SyncProgress) OnPage(progress syncer.Progress) {
	p.bar.Describe(fmt.Sprintf("[cyan][bold]Syncing transactions...[reset] %d rows", progress.Added))
	if err := p.bar.Add(1); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Finish completes the bar.
func (p *SyncProgress) Finish() {
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}
