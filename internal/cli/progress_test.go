package cli

import (
	"testing"

	"github.com/Veraticus/finwiz/internal/syncer"
	"github.com/stretchr/testify/assert"
)

func TestSyncProgress(t *testing.T) {
	output := &syncBuffer{}
	progress := NewSyncProgress(output)

	progress.OnPage(syncer.Progress{Page: 1, Added: 100, HasMore: true})
	progress.OnPage(syncer.Progress{Page: 2, Added: 140})
	progress.Finish()

	assert.Contains(t, output.String(), "Syncing transactions")
	assert.Equal(t, 2, int(progress.bar.State().CurrentNum))
}
