package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	ev, err := NewEnvelope("server", TypeLeaderboardUpdated, LeaderboardUpdated{Mode: "server-coop", Name: "Ann, Bob", Score: 450})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, TypeLeaderboardUpdated, ev.EventType)
	assert.Equal(t, "events.leaderboard.updated", Subject(ev.EventType))

	var got LeaderboardUpdated
	require.NoError(t, ev.Decode(&got))
	assert.Equal(t, "Ann, Bob", got.Name)
	assert.Equal(t, 450, got.Score)
}

func TestMemoryBusFilter(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	var (
		mu  sync.Mutex
		got []string
	)
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{TypeSessionStarted}}, func(ctx context.Context, ev *Envelope) {
		mu.Lock()
		got = append(got, ev.EventType)
		mu.Unlock()
	})
	require.NoError(t, err)

	for _, typ := range []string{TypeSessionStarted, TypeSessionFinished, TypeSessionStarted} {
		ev, err := NewEnvelope("test", typ, struct{}{})
		require.NoError(t, err)
		require.NoError(t, bus.Publish(context.Background(), ev))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{TypeSessionStarted, TypeSessionStarted}, got)
	mu.Unlock()
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(4)
	defer bus.Close()

	calls := make(chan struct{}, 4)
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		calls <- struct{}{}
	})
	require.NoError(t, err)
	sub.Unsubscribe()

	ev, _ := NewEnvelope("test", TypeSessionFinished, SessionFinished{})
	require.NoError(t, bus.Publish(context.Background(), ev))
	require.NoError(t, bus.Close())

	assert.Empty(t, calls)
}

func TestMemoryBusClosed(t *testing.T) {
	bus := NewMemoryBus(1)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	ev, _ := NewEnvelope("test", TypeSessionStarted, SessionStarted{})
	assert.ErrorIs(t, bus.Publish(context.Background(), ev), ErrClosed)
}

func TestMetricsExporter(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()

	reg := prometheus.NewRegistry()
	me := NewMetricsExporter(bus, reg)

	ev, _ := NewEnvelope("test", TypeSessionStarted, SessionStarted{})
	require.NoError(t, bus.Publish(context.Background(), ev))

	me.Start(time.Millisecond)
	me.Stop()

	assert.Equal(t, float64(1), testutil.ToFloat64(me.published))
}
