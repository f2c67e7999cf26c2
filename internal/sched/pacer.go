// internal/sched/pacer.go

package sched

import (
	"sync/atomic"
	"time"
)

// MaxOverhead bounds the accumulated drift compensation in either direction.
const MaxOverhead = 2 * time.Millisecond

// Pacer keeps a loop at a fixed tick rate. It accumulates the difference
// between measured and budgeted iteration time and shortens or lengthens
// the next sleep by that amount.
type Pacer struct {
	budget   time.Duration // zero means unpaced
	overhead time.Duration
	last     time.Time
	start    time.Time

	count     atomic.Uint64
	lastFrame atomic.Int64
}

// NewPacer creates a pacer for tps ticks per second. tps <= 0 runs unpaced.
func NewPacer(tps int) *Pacer {
	p := &Pacer{}
	if tps > 0 {
		p.budget = time.Duration(1_000_000/tps) * time.Microsecond
	}
	return p
}

// Budget is the per-tick time slot, zero when unpaced.
func (p *Pacer) Budget() time.Duration { return p.budget }

// Begin marks the start of an iteration at now and returns the time since the
// previous one. The first call measures nothing and leaves overhead at zero.
func (p *Pacer) Begin(now time.Time) time.Duration {
	var d time.Duration
	if !p.last.IsZero() {
		d = now.Sub(p.last)
		if p.budget > 0 {
			p.overhead += d - p.budget
			p.overhead = min(max(p.overhead, -MaxOverhead), MaxOverhead)
		}
		p.lastFrame.Store(int64(d))
	}
	p.last = now
	p.start = now
	return d
}

// Overhead is the current clamped drift.
func (p *Pacer) Overhead() time.Duration { return p.overhead }

// Deadline is when the current iteration should end: the iteration start
// plus the budget minus accumulated overhead. Unpaced loops get the start.
func (p *Pacer) Deadline() time.Time {
	if p.budget <= 0 {
		return p.start
	}
	return p.start.Add(p.budget - p.overhead)
}

// Next returns the current tick number and advances it.
func (p *Pacer) Next() uint64 { return p.count.Add(1) - 1 }

// Count returns how many ticks have been handed out.
func (p *Pacer) Count() uint64 { return p.count.Load() }

// LastFrame returns the duration of the last full iteration.
func (p *Pacer) LastFrame() time.Duration { return time.Duration(p.lastFrame.Load()) }
