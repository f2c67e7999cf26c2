package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueueOrder(t *testing.T) {
	cases := map[string]QueueOrder{
		"":            QueueDisabled,
		"disabled":    QueueDisabled,
		"before_tick": QueueBeforeTick,
		"After-Tick":  QueueAfterTick,
		" queue_only": QueueOnly,
	}
	for in, want := range cases {
		got, err := ParseQueueOrder(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseQueueOrder("sometimes")
	assert.Error(t, err)
}

func TestQueueOrder_StringRoundTrip(t *testing.T) {
	for _, o := range []QueueOrder{QueueDisabled, QueueBeforeTick, QueueAfterTick, QueueOnly} {
		got, err := ParseQueueOrder(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, got)
	}
	assert.Equal(t, "unknown", QueueOrder(42).String())
	assert.False(t, QueueOnly.Timed())
	assert.True(t, QueueDisabled.Timed())
}
