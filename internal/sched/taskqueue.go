// internal/sched/taskqueue.go

package sched

import (
	"log/slog"
	"sync"
)

// TaskQueue is a double-buffered queue of closures. Any goroutine may Push;
// only the owning thread calls Drain. The mutex is held for the append and
// for the front/back swap, never while tasks run.
type TaskQueue struct {
	mu    sync.Mutex
	back  []func() // appended to by producers, guarded by mu
	front []func() // owned by the draining thread

	threshold int               // backlog warning threshold, <= 0 disables
	onBacklog func(backlog int) // called outside mu when the threshold is exceeded
	notify    chan struct{}     // 1-slot wake-up for idle owners
	logger    *slog.Logger
}

// NewTaskQueue creates an empty queue. onBacklog may be nil.
func NewTaskQueue(threshold int, onBacklog func(backlog int), logger *slog.Logger) *TaskQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskQueue{
		threshold: threshold,
		onBacklog: onBacklog,
		notify:    make(chan struct{}, 1),
		logger:    logger,
	}
}

// Push appends task to the back queue. It never blocks on task execution.
func (q *TaskQueue) Push(task func()) {
	if task == nil {
		return
	}
	q.mu.Lock()
	q.back = append(q.back, task)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of tasks waiting for the next drain.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.back)
}

// Ready is signalled after a Push. It may fire spuriously.
func (q *TaskQueue) Ready() <-chan struct{} { return q.notify }

// Drain swaps the buffers and runs every task that was pushed before the
// swap, in push order. Tasks pushed while draining wait for the next call.
// It returns the number of tasks run.
func (q *TaskQueue) Drain() int {
	q.mu.Lock()
	backlog := len(q.back)
	q.front, q.back = q.back, q.front[:0]
	q.mu.Unlock()

	if q.threshold > 0 && backlog > q.threshold && q.onBacklog != nil {
		q.onBacklog(backlog)
	}

	for i, task := range q.front {
		q.front[i] = nil
		q.run(task)
	}
	q.front = q.front[:0]
	return backlog
}

func (q *TaskQueue) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panicked", "panic", r)
		}
	}()
	task()
}
