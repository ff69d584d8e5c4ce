package entity

import (
	"bytes"
	"context"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/annel0/spacebobble/internal/logging"
	"github.com/annel0/spacebobble/internal/physics"
	"github.com/annel0/spacebobble/internal/protocol"
	"github.com/annel0/spacebobble/internal/vec"
	"github.com/annel0/spacebobble/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(r, from, to int) []world.Block {
	var out []world.Block
	for c := from; c <= to; c++ {
		out = append(out, world.NewSolid(c, r))
	}
	return out
}

func TestIntent(t *testing.T) {
	var i Intent
	i = i.With(IntentLeft, true).With(IntentJump, true)
	assert.True(t, i.Has(IntentLeft))
	assert.True(t, i.Has(IntentJump))
	assert.False(t, i.Has(IntentRight))

	i = i.With(IntentLeft, false)
	assert.False(t, i.Has(IntentLeft))

	assert.Equal(t, physics.Move{Dir: -1}, intentMove(IntentLeft|IntentRight), "влево приоритетнее")
	assert.Equal(t, physics.Move{Dir: 1, Jump: true}, intentMove(IntentRight|IntentJump))
}

func TestPlayerPolicyMovesByIntent(t *testing.T) {
	eng := physics.NewEngine()
	blocks := row(4, 0, 20)
	a := NewAvatar(1, vec.Vec2Float{X: 100, Y: 70})

	a.Intent = IntentRight
	a.Update(eng, blocks)
	assert.Equal(t, 103.0, a.Pos().X)
	assert.True(t, a.Body.OnGround)

	a.Intent = IntentLeft
	a.Update(eng, blocks)
	assert.Equal(t, 100.0, a.Pos().X)
}

func TestWanderPolicyBouncesOffWall(t *testing.T) {
	eng := physics.NewEngine()
	blocks := append(row(4, 0, 20), world.NewSolid(6, 3)) // стена x 150..175
	h := NewHazard(1, vec.Vec2Float{X: 118, Y: 70}, false)

	for i := 0; i < 5; i++ {
		h.Update(eng, blocks)
	}
	assert.True(t, h.MovingLeft, "после стены существо разворачивается")
	assert.LessOrEqual(t, h.Rect().Right(), 150.0)

	x := h.Pos().X
	h.Update(eng, blocks)
	assert.Less(t, h.Pos().X, x)
}

func TestProjectilePolicy(t *testing.T) {
	p := NewProjectile(1, vec.Vec2Float{X: 100, Y: 30}, false)
	blocks := []world.Block{world.NewSolid(5, 1)} // x 125..150

	p.Update(nil, blocks)
	assert.Equal(t, 107.5, p.Pos().X)
	assert.True(t, p.Alive())

	for i := 0; i < 3 && p.Alive(); i++ {
		p.Update(nil, blocks)
	}
	assert.False(t, p.Alive(), "снаряд гибнет о стену")
}

func TestRedirectSelectorNeverRepeatsPrevious(t *testing.T) {
	sel := NewRedirectSelector(rand.New(rand.NewSource(1)))
	hazards := []*Entity{
		NewHazard(1, vec.Vec2Float{}, false),
		NewHazard(2, vec.Vec2Float{}, false),
		NewHazard(3, vec.Vec2Float{}, false),
	}

	first := sel.Select(hazards)
	require.NotNil(t, first)
	assert.True(t, first.Redirected)
	assert.Equal(t, RedirectedSpeed, first.Body.Speed)

	// пока текущий управляется, выбор не меняется
	assert.Same(t, first, sel.Select(hazards))

	prev := first
	for i := 0; i < 50; i++ {
		Release(prev)
		next := sel.Select(hazards)
		require.NotNil(t, next)
		assert.NotEqual(t, prev.ID, next.ID)
		assert.Equal(t, HazardSpeed, prev.Body.Speed)
		assert.IsType(t, WanderPolicy{}, prev.Policy)
		prev = next
	}
}

func TestRedirectSelectorSingleCandidate(t *testing.T) {
	sel := NewRedirectSelector(rand.New(rand.NewSource(7)))
	only := NewHazard(9, vec.Vec2Float{}, true)

	assert.Same(t, only, sel.Select([]*Entity{only}))
	Release(only)
	assert.Same(t, only, sel.Select([]*Entity{only}), "единственного кандидата можно выбрать повторно")

	dead := NewHazard(10, vec.Vec2Float{}, true)
	dead.Health = 0
	assert.Nil(t, NewRedirectSelector(rand.New(rand.NewSource(1))).Select([]*Entity{dead}))
}

func TestRegistryUpsert(t *testing.T) {
	r := NewRegistry()
	created := 0
	mk := func() *Entity { created++; return NewRescuable(4, vec.Vec2Float{}, false) }

	a, isNew := r.Upsert(4, mk)
	assert.True(t, isNew)
	b, isNew := r.Upsert(4, mk)
	assert.False(t, isNew)
	assert.Same(t, a, b)
	assert.Equal(t, 1, created)

	r.Add(NewRescuable(2, vec.Vec2Float{}, false))
	ids := []int{}
	for _, e := range r.All() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int{2, 4}, ids)

	a.Saved = true
	removed := r.RemoveIf(func(e *Entity) bool { return e.Saved })
	require.Len(t, removed, 1)
	assert.Equal(t, 4, removed[0].ID)
	assert.Equal(t, 1, r.Len())
	assert.False(t, r.Remove(4))
}

func TestMirrors(t *testing.T) {
	m := NewAvatarMirror(protocol.AvatarPacket{PlayerID: 2, X: 10, Y: 20, Health: 3})
	assert.True(t, m.Mirror)
	m.Update(physics.NewEngine(), nil)
	assert.Equal(t, vec.Vec2Float{X: 10, Y: 20}, m.Pos(), "отражение не двигается само")

	m.ApplyAvatar(protocol.AvatarPacket{PlayerID: 2, X: 50, Y: 60, Health: 0})
	assert.False(t, m.Alive())
	assert.Equal(t, protocol.AvatarPacket{PlayerID: 2, X: 50, Y: 60}, m.AvatarPacket())

	h := NewHazardMirror(protocol.HazardPacket{ID: 3, X: 1, Y: 2, MovingLeft: true})
	assert.Equal(t, CoopHazardSize, h.Body.Size.X)
	assert.Equal(t, protocol.HazardPacket{ID: 3, X: 1, Y: 2, MovingLeft: true}, h.HazardPacket())

	s := NewRescuableMirror(protocol.RescuablePacket{ID: 5, X: 3, Y: 4, Saved: true})
	assert.True(t, s.RescuablePacket().Saved)
}

func TestGateOpener(t *testing.T) {
	trap := world.NewTrapdoorWithDelay(4, 8, time.Hour) // x 100..200, y 200
	defer trap.Close()
	blocks := []world.Block{trap}

	a := NewAvatar(1, vec.Vec2Float{X: 120, Y: 170})
	g := NewGateOpener()
	now := time.Now()

	assert.Equal(t, 0, g.Handle(context.Background(), a, blocks, now))

	a.Intent = IntentCrouch
	assert.Equal(t, 1, g.Handle(context.Background(), a, blocks, now))
	assert.Eventually(t, trap.IsOpen, time.Second, 5*time.Millisecond)

	// удержание команды не открывает повторно
	assert.Equal(t, 0, g.Handle(context.Background(), a, blocks, now.Add(time.Second)))

	// новый фронт раньше паузы игнорируется
	a.Intent = 0
	g.Handle(context.Background(), a, blocks, now.Add(100*time.Millisecond))
	a.Intent = IntentCrouch
	assert.Equal(t, 0, g.Handle(context.Background(), a, blocks, now.Add(200*time.Millisecond)))

	// люк над аватаром не открывается по приседанию
	a.Intent = 0
	g.Handle(context.Background(), a, blocks, now.Add(time.Second))
	a.Body.Pos.Y = 260
	a.Intent = IntentCrouch
	assert.Equal(t, 0, g.Handle(context.Background(), a, blocks, now.Add(2*time.Second)))
	assert.True(t, TrapdoorAbove(a, trap))
}

// lockedBuffer буфер для записи из горутины логгера
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Contains(s string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(b.buf.String(), s)
}

func TestGateOpenerLogsCancelledOpen(t *testing.T) {
	buf := &lockedBuffer{}
	logging.Configure(logging.Options{ConsoleLevel: logging.DEBUG, Console: buf, DisableFile: true})
	defer logging.Configure(logging.DefaultOptions())
	logger, err := logging.NewLogger("gate-test")
	require.NoError(t, err)

	// люк уже открыт надолго, поэтому Open ждёт и получает отмену
	trap := world.NewTrapdoorWithDelay(4, 8, time.Hour)
	defer trap.Close()
	require.NoError(t, trap.Open(context.Background()))

	g := NewGateOpener()
	g.logger = logger
	a := NewAvatar(7, vec.Vec2Float{X: 120, Y: 170})
	a.Intent = IntentCrouch

	ctx, cancel := context.WithCancel(context.Background())
	assert.Equal(t, 1, g.Handle(ctx, a, []world.Block{trap}, time.Now()))
	cancel()

	assert.Eventually(t, func() bool {
		return buf.Contains("не открыт для сущности 7: context canceled")
	}, time.Second, 5*time.Millisecond)
}
