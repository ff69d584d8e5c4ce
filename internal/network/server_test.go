package network

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/annel0/spacebobble/internal/protocol"
	"github.com/annel0/spacebobble/internal/scores"
	"github.com/annel0/spacebobble/internal/session"
	"github.com/annel0/spacebobble/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xtaci/kcp-go/v5"
)

func testLayout() *world.Layout {
	return &world.Layout{
		Blocks:     []world.Block{world.NewSolid(0, 5), world.NewTrapdoor(4, 5)},
		Rescuables: world.DefaultRescuables()[:2],
		Hazards:    world.DefaultHazards()[:3],
	}
}

func startServer(t *testing.T, transport string, minPlayers int) (*GameServer, *Metrics) {
	t.Helper()

	coord := session.NewCoordinator(session.Options{MinPlayers: minPlayers, Layout: testLayout()})
	ctx, cancel := context.WithCancel(context.Background())
	go coord.Run(ctx)

	metrics := NewMetrics(prometheus.NewRegistry())
	srv, err := NewGameServer(ServerOptions{
		Transport:         transport,
		Addr:              "127.0.0.1:0",
		CompressThreshold: 512,
		Metrics:           metrics,
	}, coord)
	require.NoError(t, err)
	srv.Start()

	t.Cleanup(func() {
		srv.Stop()
		cancel()
		<-coord.Done()
	})
	return srv, metrics
}

type testClient struct {
	raw   net.Conn
	codec *protocol.Conn
}

func dial(t *testing.T, srv *GameServer, transport string) *testClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := Dial(ctx, transport, srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testClient{raw: conn, codec: protocol.NewConn(conn, 512)}
}

func (c *testClient) playerID(t *testing.T) int {
	t.Helper()
	id, err := protocol.Expect[protocol.PlayerID](c.codec)
	require.NoError(t, err)
	return id.PlayerID
}

func (c *testClient) readLayout(t *testing.T) {
	t.Helper()
	level, err := protocol.Expect[protocol.LevelLayout](c.codec)
	require.NoError(t, err)
	assert.Len(t, level.Blocks, 2)

	resc, err := protocol.Expect[protocol.RescuableLayout](c.codec)
	require.NoError(t, err)
	assert.Len(t, resc.Rescuables, 2)

	haz, err := protocol.Expect[protocol.HazardLayout](c.codec)
	require.NoError(t, err)
	assert.Len(t, haz.Hazards, 3)
}

func TestLayoutWithheldUntilHeadcount(t *testing.T) {
	srv, metrics := startServer(t, TransportTCP, 2)

	first := dial(t, srv, TransportTCP)
	assert.Equal(t, 1, first.playerID(t))

	// с одним игроком раскладка не приходит
	require.NoError(t, first.raw.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, err := first.codec.Read()
	var nerr net.Error
	require.ErrorAs(t, err, &nerr)
	assert.True(t, nerr.Timeout())
	require.NoError(t, first.raw.SetReadDeadline(time.Time{}))

	second := dial(t, srv, TransportTCP)
	assert.Equal(t, 2, second.playerID(t))

	first.readLayout(t)
	second.readLayout(t)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.total))
	assert.Equal(t, 2, srv.ConnectionCount())
}

func TestReceiveThenRespond(t *testing.T) {
	srv, _ := startServer(t, TransportTCP, 2)

	a := dial(t, srv, TransportTCP)
	idA := a.playerID(t)
	b := dial(t, srv, TransportTCP)
	idB := b.playerID(t)
	a.readLayout(t)
	b.readLayout(t)

	require.NoError(t, a.codec.Write(protocol.TickEnvelope{
		Avatar: protocol.AvatarPacket{PlayerID: idA, X: 10, Y: 20, Health: 3},
		Saved:  []protocol.RescuablePacket{{ID: 1}},
	}))
	snap, err := protocol.Expect[protocol.Snapshot](a.codec)
	require.NoError(t, err)
	require.Len(t, snap.Avatars, 1)
	assert.Equal(t, idA, snap.Avatars[0].PlayerID)
	assert.Len(t, snap.Saved, 1)

	require.NoError(t, b.codec.Write(protocol.TickEnvelope{
		Avatar: protocol.AvatarPacket{PlayerID: idB, X: 30, Y: 40, Health: 3},
		Saved:  []protocol.RescuablePacket{{ID: 2}},
	}))
	snap, err = protocol.Expect[protocol.Snapshot](b.codec)
	require.NoError(t, err)
	assert.Len(t, snap.Avatars, 2)
	assert.Len(t, snap.Saved, 2)
	assert.True(t, snap.Finished)

	require.NoError(t, a.codec.Write(protocol.FinalScore{Name: "Ann", Team: scores.TeamRed, Total: 300}))
	snap, err = protocol.Expect[protocol.Snapshot](a.codec)
	require.NoError(t, err)
	assert.Nil(t, snap.Leaderboard)

	require.NoError(t, b.codec.Write(protocol.FinalScore{Name: "Bob", Team: scores.TeamBlue, Total: 450}))
	snap, err = protocol.Expect[protocol.Snapshot](b.codec)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Bob": 450}, snap.Leaderboard)
}

func TestUnexpectedMessageClosesOnlyThatConnection(t *testing.T) {
	srv, metrics := startServer(t, TransportTCP, 1)

	bad := dial(t, srv, TransportTCP)
	bad.playerID(t)
	bad.readLayout(t)

	good := dial(t, srv, TransportTCP)
	good.playerID(t)
	good.readLayout(t)

	require.NoError(t, bad.codec.Write(protocol.PlayerID{PlayerID: 7}))
	_, err := bad.codec.Read()
	assert.Error(t, err)

	require.NoError(t, good.codec.Write(protocol.TickEnvelope{}))
	_, err = protocol.Expect[protocol.Snapshot](good.codec)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.errors.WithLabelValues("loop")) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestDisconnectReleasesSlot(t *testing.T) {
	srv, metrics := startServer(t, TransportTCP, 2)

	c := dial(t, srv, TransportTCP)
	c.playerID(t)
	require.NoError(t, c.raw.Close())

	assert.Eventually(t, func() bool {
		return srv.ConnectionCount() == 0 && testutil.ToFloat64(metrics.active) == 0
	}, time.Second, 10*time.Millisecond)

	st, err := srv.coord.Stats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.Players)
}

func TestKCPTransport(t *testing.T) {
	srv, metrics := startServer(t, TransportKCP, 1)

	// Dial сам отправляет Hello, дальше сервер говорит первым
	c := dial(t, srv, TransportKCP)
	assert.Equal(t, 1, c.playerID(t))
	c.readLayout(t)

	require.NoError(t, c.codec.Write(protocol.TickEnvelope{}))
	snap, err := protocol.Expect[protocol.Snapshot](c.codec)
	require.NoError(t, err)
	assert.Len(t, snap.Avatars, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.frames.WithLabelValues("in", "hello")))
}

func TestKCPWithoutHelloIsRejected(t *testing.T) {
	srv, metrics := startServer(t, TransportKCP, 1)

	// сырая KCP-сессия в обход Dial: первым кадром идёт такт
	conn, err := kcp.DialWithOptions(srv.Addr().String(), nil, 10, 3)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, protocol.NewConn(conn, 0).Write(protocol.TickEnvelope{}))

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.errors.WithLabelValues("hello")) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestListenUnknownTransport(t *testing.T) {
	_, err := Listen("sctp", "127.0.0.1:0")
	assert.Error(t, err)
}
