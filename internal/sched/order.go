// internal/sched/order.go

package sched

import (
	"fmt"
	"strings"
)

// QueueOrder selects whether and when a thread drains its task queue
// relative to OnTick.
type QueueOrder int

const (
	QueueDisabled QueueOrder = iota
	QueueBeforeTick
	QueueAfterTick
	QueueOnly
)

func (o QueueOrder) String() string {
	switch o {
	case QueueDisabled:
		return "disabled"
	case QueueBeforeTick:
		return "before_tick"
	case QueueAfterTick:
		return "after_tick"
	case QueueOnly:
		return "queue_only"
	default:
		return "unknown"
	}
}

// Timed reports whether the order uses the paced tick loop.
func (o QueueOrder) Timed() bool { return o != QueueOnly }

// ParseQueueOrder accepts the names produced by String, case-insensitively.
// "-" may be used in place of "_", and an empty string means disabled.
func ParseQueueOrder(s string) (QueueOrder, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "", "disabled":
		return QueueDisabled, nil
	case "before_tick":
		return QueueBeforeTick, nil
	case "after_tick":
		return QueueAfterTick, nil
	case "queue_only":
		return QueueOnly, nil
	default:
		return QueueDisabled, fmt.Errorf("unknown queue order %q", s)
	}
}
