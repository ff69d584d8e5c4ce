package session

import (
	"context"
	"testing"
	"time"

	"github.com/annel0/spacebobble/internal/eventbus"
	"github.com/annel0/spacebobble/internal/protocol"
	"github.com/annel0/spacebobble/internal/scores"
	"github.com/annel0/spacebobble/internal/storage"
	"github.com/annel0/spacebobble/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayout() *world.Layout {
	return &world.Layout{
		Blocks: []world.Block{world.NewSolid(0, 10)},
		Rescuables: []protocol.RescuablePacket{
			{ID: 1, X: 100, Y: 100},
			{ID: 2, X: 200, Y: 100, MovingLeft: true},
		},
		Hazards: world.DefaultHazards(),
	}
}

func startCoordinator(t *testing.T, opts Options) *Coordinator {
	t.Helper()
	if opts.Layout == nil {
		opts.Layout = testLayout()
	}
	c := NewCoordinator(opts)
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-c.Done()
	})
	return c
}

func joinStarted(t *testing.T, c *Coordinator, n int) []Ticket {
	t.Helper()
	ctx := context.Background()
	tickets := make([]Ticket, n)
	for i := range tickets {
		tk, err := c.Join(ctx)
		require.NoError(t, err)
		tickets[i] = tk
	}
	for _, tk := range tickets {
		require.NoError(t, c.WaitStart(ctx, tk))
	}
	return tickets
}

func TestHeadcountGate(t *testing.T) {
	c := startCoordinator(t, Options{MinPlayers: 2})
	ctx := context.Background()

	first, err := c.Join(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.PlayerID)

	short, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.WaitStart(short, first), context.DeadlineExceeded)

	released := make(chan error, 1)
	go func() { released <- c.WaitStart(ctx, first) }()

	second, err := c.Join(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, second.PlayerID)
	assert.Equal(t, first.SessionID, second.SessionID)

	select {
	case err := <-released:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("первый игрок не дождался старта")
	}
	require.NoError(t, c.WaitStart(ctx, second))

	st, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.True(t, st.Started)
	assert.Equal(t, []int{1, 2}, st.Players)
	assert.Equal(t, uint64(1), st.Sessions)
}

func TestStartTimeout(t *testing.T) {
	c := startCoordinator(t, Options{MinPlayers: 2, StartTimeout: 20 * time.Millisecond})
	tk, err := c.Join(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, c.WaitStart(context.Background(), tk), ErrStartTimeout)
}

func TestTickBeforeStartAndUnknownPlayer(t *testing.T) {
	c := startCoordinator(t, Options{MinPlayers: 2})
	ctx := context.Background()

	tk, err := c.Join(ctx)
	require.NoError(t, err)

	_, err = c.Tick(ctx, tk.PlayerID, protocol.TickEnvelope{})
	assert.ErrorIs(t, err, ErrNotStarted)

	_, err = c.Tick(ctx, 99, protocol.TickEnvelope{})
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestTickMergesAvatarsLastWriteWins(t *testing.T) {
	c := startCoordinator(t, Options{MinPlayers: 2})
	ctx := context.Background()
	tk := joinStarted(t, c, 2)

	_, err := c.Tick(ctx, tk[0].PlayerID, protocol.TickEnvelope{Avatar: protocol.AvatarPacket{X: 1, Y: 1, Health: 3}})
	require.NoError(t, err)
	_, err = c.Tick(ctx, tk[0].PlayerID, protocol.TickEnvelope{Avatar: protocol.AvatarPacket{X: 5, Y: 6, Health: 2}})
	require.NoError(t, err)

	// чужой PlayerID в пакете игнорируется
	snap, err := c.Tick(ctx, tk[1].PlayerID, protocol.TickEnvelope{Avatar: protocol.AvatarPacket{PlayerID: 1, X: 9, Y: 9, Health: 3}})
	require.NoError(t, err)

	require.Len(t, snap.Avatars, 2)
	assert.Equal(t, protocol.AvatarPacket{PlayerID: 1, X: 5, Y: 6, Health: 2}, snap.Avatars[0])
	assert.Equal(t, protocol.AvatarPacket{PlayerID: 2, X: 9, Y: 9, Health: 3}, snap.Avatars[1])
	assert.Nil(t, snap.Saved)
	assert.False(t, snap.Finished)
}

func TestSavedSetSentOncePerConnection(t *testing.T) {
	c := startCoordinator(t, Options{MinPlayers: 2})
	ctx := context.Background()
	tk := joinStarted(t, c, 2)
	p1, p2 := tk[0].PlayerID, tk[1].PlayerID

	snap, err := c.Tick(ctx, p1, protocol.TickEnvelope{Saved: []protocol.RescuablePacket{{ID: 1}}})
	require.NoError(t, err)
	require.Len(t, snap.Saved, 1)
	assert.True(t, snap.Saved[0].Saved)

	snap, err = c.Tick(ctx, p1, protocol.TickEnvelope{})
	require.NoError(t, err)
	assert.Nil(t, snap.Saved)

	// второй игрок получает изменение ровно один раз
	snap, err = c.Tick(ctx, p2, protocol.TickEnvelope{})
	require.NoError(t, err)
	require.Len(t, snap.Saved, 1)
	snap, err = c.Tick(ctx, p2, protocol.TickEnvelope{})
	require.NoError(t, err)
	assert.Nil(t, snap.Saved)

	// повтор уже спасённого не меняет множество
	snap, err = c.Tick(ctx, p2, protocol.TickEnvelope{Saved: []protocol.RescuablePacket{{ID: 1}}})
	require.NoError(t, err)
	assert.Nil(t, snap.Saved)
}

func TestFinishedWhenAllSaved(t *testing.T) {
	c := startCoordinator(t, Options{MinPlayers: 2})
	ctx := context.Background()
	tk := joinStarted(t, c, 2)

	snap, err := c.Tick(ctx, tk[0].PlayerID, protocol.TickEnvelope{Saved: []protocol.RescuablePacket{{ID: 1}}})
	require.NoError(t, err)
	assert.False(t, snap.Finished)

	snap, err = c.Tick(ctx, tk[1].PlayerID, protocol.TickEnvelope{Saved: []protocol.RescuablePacket{{ID: 2}}})
	require.NoError(t, err)
	assert.True(t, snap.Finished)
	assert.Len(t, snap.Saved, 2)

	snap, err = c.Tick(ctx, tk[0].PlayerID, protocol.TickEnvelope{})
	require.NoError(t, err)
	assert.True(t, snap.Finished)
}

func TestLeaderboardRecordsWinningTeamOnly(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), storage.ModeServerCoop, "Old", 10))

	c := startCoordinator(t, Options{MinPlayers: 2, Store: store})
	ctx := context.Background()
	tk := joinStarted(t, c, 2)

	snap, err := c.Submit(ctx, tk[0].PlayerID, protocol.FinalScore{Name: "Ann", Team: scores.TeamRed, Total: 300})
	require.NoError(t, err)
	assert.Nil(t, snap.Leaderboard)

	snap, err = c.Submit(ctx, tk[1].PlayerID, protocol.FinalScore{Name: "Bob", Team: scores.TeamBlue, Total: 450})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Old": 10, "Bob": 450}, snap.Leaderboard)

	board, err := store.Load(ctx, storage.ModeServerCoop)
	require.NoError(t, err)
	assert.Equal(t, scores.Leaderboard{"Old": 10, "Bob": 450}, board)

	// таблица остаётся в ответах, но не пересчитывается
	snap, err = c.Tick(ctx, tk[0].PlayerID, protocol.TickEnvelope{})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Old": 10, "Bob": 450}, snap.Leaderboard)
}

func TestLeaderboardWithoutStore(t *testing.T) {
	c := startCoordinator(t, Options{MinPlayers: 2})
	ctx := context.Background()
	tk := joinStarted(t, c, 2)

	_, err := c.Submit(ctx, tk[0].PlayerID, protocol.FinalScore{Name: "Ann", Team: scores.TeamRed, Total: 200})
	require.NoError(t, err)
	snap, err := c.Submit(ctx, tk[1].PlayerID, protocol.FinalScore{Name: "Bob", Team: scores.TeamBlue, Total: 200})
	require.NoError(t, err)

	// при равенстве побеждает синяя команда
	assert.Equal(t, map[string]int{"Bob": 200}, snap.Leaderboard)
}

func TestResetWhenLastPlayerLeaves(t *testing.T) {
	c := startCoordinator(t, Options{MinPlayers: 2})
	ctx := context.Background()
	tk := joinStarted(t, c, 2)

	_, err := c.Tick(ctx, tk[0].PlayerID, protocol.TickEnvelope{Saved: []protocol.RescuablePacket{{ID: 1}}})
	require.NoError(t, err)

	c.Leave(tk[0].PlayerID)
	st, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.True(t, st.Started)
	assert.Equal(t, []int{2}, st.Players)

	c.Leave(tk[1].PlayerID)
	c.Leave(tk[1].PlayerID)
	st, err = c.Stats(ctx)
	require.NoError(t, err)
	assert.False(t, st.Started)
	assert.Empty(t, st.Players)
	assert.Zero(t, st.Saved)
	assert.NotEqual(t, tk[0].SessionID, st.SessionID)

	// новая сессия снова ждёт порога, ID продолжают расти
	next, err := c.Join(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, next.PlayerID)
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.WaitStart(short, next), context.DeadlineExceeded)
}

func TestEventsPublished(t *testing.T) {
	bus := eventbus.NewMemoryBus(16)
	defer bus.Close()

	events := make(chan *eventbus.Envelope, 16)
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{}, func(ctx context.Context, ev *eventbus.Envelope) {
		events <- ev
	})
	require.NoError(t, err)

	c := startCoordinator(t, Options{MinPlayers: 1, Bus: bus, Source: "test"})
	tk := joinStarted(t, c, 1)

	select {
	case ev := <-events:
		assert.Equal(t, eventbus.TypeSessionStarted, ev.EventType)
		assert.Equal(t, tk[0].SessionID, ev.CorrelationID)
		var started eventbus.SessionStarted
		require.NoError(t, ev.Decode(&started))
		assert.Equal(t, []int{1}, started.Players)
	case <-time.After(time.Second):
		t.Fatal("нет события session.started")
	}
}

func TestClosedCoordinator(t *testing.T) {
	c := NewCoordinator(Options{MinPlayers: 1, Layout: testLayout()})
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	cancel()
	<-c.Done()

	_, err := c.Join(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	c.Leave(1)
}

func TestLeaderboardKeepsBestScore(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), storage.ModeServerCoop, "bob", 900))

	c := startCoordinator(t, Options{MinPlayers: 1, Store: store})
	ctx := context.Background()
	tk := joinStarted(t, c, 1)

	snap, err := c.Submit(ctx, tk[0].PlayerID, protocol.FinalScore{Name: "bob", Team: scores.TeamBlue, Total: 100})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"bob": 900}, snap.Leaderboard)

	board, err := store.Load(ctx, storage.ModeServerCoop)
	require.NoError(t, err)
	assert.Equal(t, 900, board["bob"])
}

// gatedStore задерживает Put до закрытия release
type gatedStore struct {
	*storage.MemoryStore
	release chan struct{}
}

func (s *gatedStore) Put(ctx context.Context, mode storage.Mode, name string, score int) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.MemoryStore.Put(ctx, mode, name, score)
}

func TestSlowStoreDoesNotStallTicks(t *testing.T) {
	store := &gatedStore{MemoryStore: storage.NewMemoryStore(), release: make(chan struct{})}
	c := startCoordinator(t, Options{MinPlayers: 2, Store: store})
	ctx := context.Background()
	tk := joinStarted(t, c, 2)

	_, err := c.Submit(ctx, tk[0].PlayerID, protocol.FinalScore{Name: "Ann", Team: scores.TeamRed, Total: 300})
	require.NoError(t, err)

	submitted := make(chan protocol.Snapshot, 1)
	go func() {
		snap, err := c.Submit(ctx, tk[1].PlayerID, protocol.FinalScore{Name: "Bob", Team: scores.TeamBlue, Total: 450})
		assert.NoError(t, err)
		submitted <- snap
	}()

	// пока хранилище висит, такты обслуживаются
	assert.Eventually(t, func() bool {
		st, err := c.Stats(ctx)
		return err == nil && st.Scores == 2
	}, time.Second, 5*time.Millisecond)
	tickCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	snap, err := c.Tick(tickCtx, tk[0].PlayerID, protocol.TickEnvelope{})
	require.NoError(t, err)
	assert.Nil(t, snap.Leaderboard)

	select {
	case <-submitted:
		t.Fatal("ответ на последний счёт пришёл до записи таблицы")
	default:
	}

	close(store.release)
	select {
	case snap := <-submitted:
		assert.Equal(t, map[string]int{"Bob": 450}, snap.Leaderboard)
	case <-time.After(time.Second):
		t.Fatal("нет ответа на последний счёт")
	}

	snap, err = c.Tick(ctx, tk[0].PlayerID, protocol.TickEnvelope{})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Bob": 450}, snap.Leaderboard)
}

func TestEventsFallBackToGlobalBus(t *testing.T) {
	bus := eventbus.NewMemoryBus(16)
	defer bus.Close()
	eventbus.Init(bus)
	t.Cleanup(func() { eventbus.Init(nil) })

	events := make(chan *eventbus.Envelope, 16)
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{Types: []string{eventbus.TypeSessionStarted}},
		func(ctx context.Context, ev *eventbus.Envelope) { events <- ev })
	require.NoError(t, err)

	c := startCoordinator(t, Options{MinPlayers: 1, Source: "global"})
	joinStarted(t, c, 1)

	select {
	case ev := <-events:
		assert.Equal(t, "global", ev.Source)
	case <-time.After(time.Second):
		t.Fatal("нет события в глобальной шине")
	}
}
