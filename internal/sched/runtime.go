// internal/sched/runtime.go

package sched

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/emirpasic/gods/trees/redblacktree"
)

var (
	ErrDuplicateThread   = errors.New("thread name already registered")
	ErrDependencyCycle   = errors.New("dependency cycle")
	ErrForeignThread     = errors.New("thread belongs to another runtime")
	ErrAlreadyStarted    = errors.New("thread already started")
	ErrStopped           = errors.New("thread stopped before start")
	ErrDependencyTimeout = errors.New("timed out waiting for dependencies")
)

// Runtime is the registry of every thread created through it. Threads are
// never removed, so references handed out stay valid for its lifetime.
type Runtime struct {
	mu      sync.Mutex
	threads *arraylist.List    // *Thread in creation order
	byName  *redblacktree.Tree // name -> *Thread

	logger   *slog.Logger
	recorder Recorder
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithRecorder sends lifecycle events of every thread to r.
func WithRecorder(r Recorder) Option {
	return func(rt *Runtime) { rt.recorder = r }
}

// NewRuntime creates an empty registry. A nil logger means slog.Default().
func NewRuntime(logger *slog.Logger, opts ...Option) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{
		threads: arraylist.New(),
		byName:  redblacktree.NewWithStringComparator(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// NewThread registers a new thread running h with the given spec.
func (rt *Runtime) NewThread(spec Spec, h Handler) (*Thread, error) {
	spec = spec.withDefaults()
	if h == nil {
		h = HandlerFuncs{}
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if _, dup := rt.byName.Get(spec.Name); dup {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateThread, spec.Name)
	}
	t := newThread(rt, spec, h)
	rt.threads.Add(t)
	rt.byName.Put(spec.Name, t)
	return t, nil
}

// Lookup finds a thread by name.
func (rt *Runtime) Lookup(name string) (*Thread, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	v, ok := rt.byName.Get(name)
	if !ok {
		return nil, false
	}
	return v.(*Thread), true
}

// Threads returns every registered thread in creation order.
func (rt *Runtime) Threads() []*Thread {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make([]*Thread, 0, rt.threads.Size())
	rt.threads.Each(func(_ int, v interface{}) {
		out = append(out, v.(*Thread))
	})
	return out
}

// Names returns the registered thread names in sorted order.
func (rt *Runtime) Names() []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	names := make([]string, 0, rt.byName.Size())
	for _, k := range rt.byName.Keys() {
		names = append(names, k.(string))
	}
	return names
}

// StopAll requests every thread to stop.
func (rt *Runtime) StopAll() {
	for _, t := range rt.Threads() {
		t.Stop()
	}
}

// JoinAll waits for every launched thread to exit.
func (rt *Runtime) JoinAll() {
	for _, t := range rt.Threads() {
		if t.launched.Load() {
			t.join.Join()
		}
	}
}

// admit records t's dependencies and fills its wait set with those that
// have not finished starting. It runs under the registry lock so it cannot
// interleave with a dependency's ready transition.
func (rt *Runtime) admit(t *Thread, deps []*Thread) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	for _, d := range deps {
		if d == nil {
			continue
		}
		if d.rt != rt {
			return fmt.Errorf("%w: %q", ErrForeignThread, d.Name())
		}
		if path := rt.pathTo(d, t); path != nil {
			return fmt.Errorf("%w: %s -> %s", ErrDependencyCycle, t.Name(), strings.Join(path, " -> "))
		}
	}

	for _, d := range deps {
		if d == nil {
			continue
		}
		t.deps = append(t.deps, d)
		if !d.ready.Load() {
			t.waits.Add(d)
		}
	}
	t.waits.Seal()
	return nil
}

// pathTo returns the chain of names from 'from' to 'to' following declared
// dependencies, or nil if 'to' is unreachable. Caller holds rt.mu.
func (rt *Runtime) pathTo(from, to *Thread) []string {
	visited := make(map[*Thread]bool)
	var visit func(n *Thread) []string
	visit = func(n *Thread) []string {
		if n == to {
			return []string{n.Name()}
		}
		if visited[n] {
			return nil
		}
		visited[n] = true
		for _, d := range n.deps {
			if p := visit(d); p != nil {
				return append([]string{n.Name()}, p...)
			}
		}
		return nil
	}
	return visit(from)
}

// markReady flags t as done starting and removes it from every other
// thread's wait set.
func (rt *Runtime) markReady(t *Thread) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	t.ready.Store(true)
	t.running.Store(!t.stopping.Load())
	rt.threads.Each(func(_ int, v interface{}) {
		if other := v.(*Thread); other != t {
			other.waits.Remove(t)
		}
	})
}

func (rt *Runtime) emit(ev Event) {
	if rt.recorder != nil {
		rt.recorder.Record(ev)
	}
}
