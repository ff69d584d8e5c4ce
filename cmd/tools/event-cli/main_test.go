package main

import (
	"context"
	"testing"
	"time"

	"github.com/annel0/spacebobble/internal/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStringList(t *testing.T) {
	assert.Nil(t, parseStringList(""))
	assert.Equal(t, []string{"a", "b"}, parseStringList(" a, ,b "))
}

func TestFormatEvent(t *testing.T) {
	ev, err := eventbus.NewEnvelope("game-server", eventbus.TypeLeaderboardUpdated,
		eventbus.LeaderboardUpdated{Mode: "server-coop", Name: "Blue", Score: 1500})
	require.NoError(t, err)

	out := formatEvent(ev)
	assert.Contains(t, out, "game-server")
	assert.Contains(t, out, "[leaderboard.updated]")
	assert.Contains(t, out, "Mode: server-coop Blue = 1500")
}

func TestTailEventsStopsAtLimit(t *testing.T) {
	bus := eventbus.NewMemoryBus(16)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan int64, 1)
	go func() {
		n, err := tailEvents(ctx, bus, eventbus.Filter{Types: []string{eventbus.TypeSessionStarted}}, 2)
		assert.NoError(t, err)
		done <- n
	}()

	// подписка оформляется асинхронно
	time.Sleep(50 * time.Millisecond)
	for i := 0; i < 3; i++ {
		ev, err := eventbus.NewEnvelope("test", eventbus.TypeSessionStarted, eventbus.SessionStarted{SessionID: "s"})
		require.NoError(t, err)
		require.NoError(t, bus.Publish(ctx, ev))
	}

	select {
	case n := <-done:
		assert.GreaterOrEqual(t, n, int64(2))
	case <-ctx.Done():
		t.Fatal("tail did not stop at limit")
	}
}
