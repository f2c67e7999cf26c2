// internal/sched/threadEvent.go

package sched

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"
)

// EventKind is the type of a thread lifecycle event.
type EventKind int

const (
	EventLaunch   EventKind = iota // Start spawned the OS thread
	EventStarted                   // OnStart returned, tick loop entered
	EventBacklog                   // task backlog exceeded the threshold
	EventStopping                  // Stop observed by the loop
	EventStopped                   // OnStop returned
	EventAborted                   // bring-up abandoned on dependency timeout
)

func (k EventKind) String() string {
	switch k {
	case EventLaunch:
		return "Launch"
	case EventStarted:
		return "Started"
	case EventBacklog:
		return "Backlog"
	case EventStopping:
		return "Stopping"
	case EventStopped:
		return "Stopped"
	case EventAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Event is emitted by a thread on lifecycle transitions.
type Event struct {
	Time    time.Time
	Kind    EventKind
	Thread  string
	Tick    uint64
	Backlog int
}

// Recorder receives events from any thread and must be safe for concurrent use.
type Recorder interface {
	Record(Event)
}

// CSVRecorder writes events as CSV rows.
type CSVRecorder struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

// NewCSVRecorder creates the file at path and writes the header.
func NewCSVRecorder(path string) (*CSVRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "thread", "event", "tick", "backlog"}); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()
	return &CSVRecorder{f: f, w: w}, nil
}

func (r *CSVRecorder) Record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return
	}
	r.w.Write([]string{
		ev.Time.Format(time.RFC3339Nano),
		ev.Thread,
		ev.Kind.String(),
		strconv.FormatUint(ev.Tick, 10),
		strconv.Itoa(ev.Backlog),
	})
	r.w.Flush()
}

// Close flushes and closes the file. Later Records are dropped.
func (r *CSVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	r.w.Flush()
	err := r.w.Error()
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	r.w, r.f = nil, nil
	return err
}
