package job

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Loop is a sched.Handler standing in for an engine subsystem. Every tick it
// spends Work on simulated load and, if Forward is set, hands a follow-up
// task to another thread. The follow-up sleeps for TaskWork on the receiving
// thread, like an upload or an I/O request would.
type Loop struct {
	Name     string
	Work     time.Duration
	TaskWork time.Duration
	Forward  func(task func()) // usually another thread's AddTask
	Logger   *slog.Logger

	ticks     atomic.Uint64
	forwarded atomic.Uint64
	delivered atomic.Uint64
	starts    atomic.Int32
	stops     atomic.Int32
}

func (l *Loop) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func (l *Loop) OnStart() {
	l.starts.Add(1)
	l.logger().Info("subsystem up", "subsystem", l.Name)
}

func (l *Loop) OnTick(nowMicros int64, tick uint64) {
	l.ticks.Add(1)
	Spin(l.Work)
	if l.Forward != nil {
		l.forwarded.Add(1)
		l.Forward(l.frame(nowMicros, tick))
	}
}

func (l *Loop) OnStop() {
	l.stops.Add(1)
	l.logger().Info("subsystem down", "subsystem", l.Name,
		"ticks", l.ticks.Load(), "forwarded", l.forwarded.Load(), "delivered", l.delivered.Load())
}

// frame builds the task forwarded for one tick.
func (l *Loop) frame(nowMicros int64, tick uint64) func() {
	work := SleepWork(l.TaskWork)
	return func() {
		_ = work(context.Background())
		l.delivered.Add(1)
		l.logger().Debug("frame delivered", "from", l.Name, "tick", tick,
			"lag_us", time.Now().UnixMicro()-nowMicros)
	}
}

// Stats is a snapshot of a Loop's counters.
type Stats struct {
	Starts, Stops               int
	Ticks, Forwarded, Delivered uint64
}

func (l *Loop) Stats() Stats {
	return Stats{
		Starts:    int(l.starts.Load()),
		Stops:     int(l.stops.Load()),
		Ticks:     l.ticks.Load(),
		Forwarded: l.forwarded.Load(),
		Delivered: l.delivered.Load(),
	}
}
