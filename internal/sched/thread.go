// internal/sched/thread.go

package sched

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultIdlePoll is the idle poll period used when a Spec leaves IdlePoll unset.
const DefaultIdlePoll = time.Millisecond

// Spec is the immutable configuration of a thread.
type Spec struct {
	Name              string
	TPS               int        // ticks per second, 0 ticks as fast as possible
	Order             QueueOrder // when the task queue is drained
	TaskWarnThreshold int        // backlog size that triggers a warning, <= 0 disables
	IdlePoll          time.Duration
	DependencyTimeout time.Duration // 0 waits for dependencies forever
}

func (s Spec) withDefaults() Spec {
	if s.TPS < 0 {
		s.TPS = 0
	}
	if s.IdlePoll <= 0 {
		s.IdlePoll = DefaultIdlePoll
	}
	if s.DependencyTimeout < 0 {
		s.DependencyTimeout = 0
	}
	return s
}

// Handler is the work a thread runs. All methods are called on the thread's
// own OS thread.
type Handler interface {
	// OnStart runs once, after all dependencies have finished starting.
	OnStart()
	// OnTick runs once per tick with the wall clock in microseconds.
	// It is never called for QueueOnly threads.
	OnTick(nowMicros int64, tick uint64)
	// OnStop runs once after the loop has exited.
	OnStop()
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are no-ops.
type HandlerFuncs struct {
	Start func()
	Tick  func(nowMicros int64, tick uint64)
	Stop  func()
}

func (h HandlerFuncs) OnStart() {
	if h.Start != nil {
		h.Start()
	}
}

func (h HandlerFuncs) OnTick(nowMicros int64, tick uint64) {
	if h.Tick != nil {
		h.Tick(nowMicros, tick)
	}
}

func (h HandlerFuncs) OnStop() {
	if h.Stop != nil {
		h.Stop()
	}
}

// JoinHandle is closed when a thread's OS thread exits.
type JoinHandle struct {
	done chan struct{}
	err  error
}

// Join blocks until the thread has exited.
func (j *JoinHandle) Join() { <-j.done }

func (j *JoinHandle) Done() <-chan struct{} { return j.done }

// Err reports why bring-up was abandoned. It is only meaningful after Done
// is closed, and nil when the thread ran its full lifecycle.
func (j *JoinHandle) Err() error {
	select {
	case <-j.done:
		return j.err
	default:
		return nil
	}
}

// Thread is a dedicated OS thread that ticks its Handler at a fixed rate and
// runs closures handed to it by other threads.
type Thread struct {
	rt      *Runtime
	spec    Spec
	handler Handler
	logger  *slog.Logger

	queue *TaskQueue
	waits *WaitSet
	pacer *Pacer
	deps  []*Thread // guarded by rt.mu

	launched atomic.Bool
	started  atomic.Bool
	running  atomic.Bool
	stopping atomic.Bool
	ready    atomic.Bool // finished starting, never reset

	stopOnce sync.Once
	stopCh   chan struct{}
	join     *JoinHandle
}

func newThread(rt *Runtime, spec Spec, h Handler) *Thread {
	t := &Thread{
		rt:      rt,
		spec:    spec,
		handler: h,
		logger:  rt.logger.With("thread", spec.Name),
		waits:   NewWaitSet(),
		pacer:   NewPacer(spec.TPS),
		stopCh:  make(chan struct{}),
		join:    &JoinHandle{done: make(chan struct{})},
	}
	t.queue = NewTaskQueue(spec.TaskWarnThreshold, t.backlogExceeded, t.logger)
	return t
}

func (t *Thread) Name() string { return t.spec.Name }

func (t *Thread) Spec() Spec { return t.spec }

// TPS returns the configured tick rate.
func (t *Thread) TPS() int { return t.spec.TPS }

// HasStarted reports whether Start was called and the OS thread has not exited.
func (t *Thread) HasStarted() bool { return t.started.Load() }

// IsRunning reports whether the loop is active and not asked to stop.
func (t *Thread) IsRunning() bool { return t.running.Load() }

func (t *Thread) IsStopping() bool { return t.stopping.Load() }

// LastFrameTime is the duration of the most recent loop iteration.
func (t *Thread) LastFrameTime() time.Duration { return t.pacer.LastFrame() }

func (t *Thread) TickCount() uint64 { return t.pacer.Count() }

// Join returns the thread's join handle. It is valid before Start.
func (t *Thread) Join() *JoinHandle { return t.join }

// Start spawns the OS thread. The thread waits until every dependency that
// has not yet finished starting does so, then calls OnStart and enters its
// loop. Dependencies that already finished starting are not waited for.
func (t *Thread) Start(deps ...*Thread) (*JoinHandle, error) {
	if t.stopping.Load() {
		return nil, fmt.Errorf("%w: %q", ErrStopped, t.Name())
	}
	if !t.launched.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: %q", ErrAlreadyStarted, t.Name())
	}
	if err := t.rt.admit(t, deps); err != nil {
		t.launched.Store(false)
		return nil, err
	}

	t.started.Store(true)
	t.rt.emit(Event{Time: time.Now(), Kind: EventLaunch, Thread: t.Name()})
	go t.run()
	return t.join, nil
}

// Stop asks the loop to exit. It takes effect at the next loop iteration;
// an OnTick or drain in progress completes first. Stop is idempotent.
func (t *Thread) Stop() {
	t.stopOnce.Do(func() {
		t.rt.mu.Lock()
		t.stopping.Store(true)
		t.running.Store(false)
		t.rt.mu.Unlock()
		close(t.stopCh)
	})
}

// AddTask queues task to run on this thread. Tasks handed to a thread that
// is not running, or whose queue is disabled, are dropped with a warning.
func (t *Thread) AddTask(task func()) {
	if !t.running.Load() {
		t.logger.Warn("dropping task: thread not running")
		return
	}
	if t.spec.Order == QueueDisabled {
		t.logger.Warn("dropping task: task queue disabled")
		return
	}
	t.queue.Push(task)
}

func (t *Thread) run() {
	runtime.LockOSThread()
	defer func() {
		t.running.Store(false)
		t.started.Store(false)
		close(t.join.done)
	}()

	if err := t.awaitDependencies(); err != nil {
		t.join.err = err
		if errors.Is(err, ErrStopped) {
			t.logger.Debug("thread stopped before start")
		} else {
			t.logger.Error("thread start aborted", "error", err)
		}
		t.rt.emit(Event{Time: time.Now(), Kind: EventAborted, Thread: t.Name()})
		return
	}

	t.handler.OnStart()
	t.rt.markReady(t)
	t.rt.emit(Event{Time: time.Now(), Kind: EventStarted, Thread: t.Name()})
	t.logger.Debug("thread started", "tps", t.spec.TPS, "order", t.spec.Order.String())

	if t.spec.Order == QueueOnly {
		t.queueLoop()
	} else {
		t.tickLoop()
	}

	t.running.Store(false)
	t.rt.emit(Event{Time: time.Now(), Kind: EventStopping, Thread: t.Name(), Tick: t.pacer.Count()})
	t.handler.OnStop()
	t.rt.emit(Event{Time: time.Now(), Kind: EventStopped, Thread: t.Name(), Tick: t.pacer.Count()})
	t.logger.Debug("thread stopped", "ticks", t.pacer.Count())
}

func (t *Thread) awaitDependencies() error {
	var timeout <-chan time.Time
	if d := t.spec.DependencyTimeout; d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-t.waits.Drained():
		return nil
	case <-t.stopCh:
		return fmt.Errorf("%w: %q", ErrStopped, t.Name())
	case <-timeout:
		return fmt.Errorf("%w after %s: %s", ErrDependencyTimeout, t.spec.DependencyTimeout,
			strings.Join(t.waits.Pending(), ", "))
	}
}

func (t *Thread) tickLoop() {
	for !t.stopping.Load() {
		now := time.Now()
		t.pacer.Begin(now)

		if t.spec.Order == QueueBeforeTick {
			t.queue.Drain()
		}
		t.handler.OnTick(now.UnixMicro(), t.pacer.Next())
		if t.spec.Order == QueueAfterTick {
			t.queue.Drain()
		}

		t.sleepUntil(t.pacer.Deadline())
	}
}

func (t *Thread) queueLoop() {
	for !t.stopping.Load() {
		if t.queue.Len() > 0 {
			t.queue.Drain()
			continue
		}
		timer := time.NewTimer(t.spec.IdlePoll)
		select {
		case <-timer.C:
		case <-t.queue.Ready():
		case <-t.stopCh:
		}
		timer.Stop()
	}
}

// sleepUntil sleeps until deadline or until Stop is called.
func (t *Thread) sleepUntil(deadline time.Time) {
	d := time.Until(deadline)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-t.stopCh:
	}
}

func (t *Thread) backlogExceeded(backlog int) {
	t.logger.Warn("task backlog exceeded threshold", "backlog", backlog, "threshold", t.spec.TaskWarnThreshold)
	t.rt.emit(Event{Time: time.Now(), Kind: EventBacklog, Thread: t.Name(), Tick: t.pacer.Count(), Backlog: backlog})
}
