package sched

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRecorder_WritesEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	rec, err := NewCSVRecorder(path)
	require.NoError(t, err)

	rt := NewRuntime(quietLogger(), WithRecorder(rec))
	th := newTestThread(t, rt, Spec{Name: "render", TPS: 100}, nil)
	_, err = th.Start()
	require.NoError(t, err)
	require.Eventually(t, th.IsRunning, 2*time.Second, time.Millisecond)
	stopAndJoin(t, th)
	require.NoError(t, rec.Close())

	// recording after Close is a no-op
	rec.Record(Event{Kind: EventLaunch, Thread: "late"})

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 5)
	assert.Equal(t, []string{"timestamp", "thread", "event", "tick", "backlog"}, rows[0])
	var kinds []string
	for _, row := range rows[1:] {
		assert.Equal(t, "render", row[1])
		kinds = append(kinds, row[2])
	}
	assert.Equal(t, []string{"Launch", "Started", "Stopping", "Stopped"}, kinds)
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "Backlog", EventBacklog.String())
	assert.Equal(t, "Aborted", EventAborted.String())
	assert.Equal(t, "Unknown", EventKind(99).String())
}
