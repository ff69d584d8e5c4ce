package entity

import (
	"github.com/annel0/spacebobble/internal/physics"
	"github.com/annel0/spacebobble/internal/vec"
	"github.com/annel0/spacebobble/internal/world"
)

// MovementPolicy определяет, как сущность выбирает движение на такт
type MovementPolicy interface {
	Step(e *Entity, eng *physics.Engine, blocks []world.Block) physics.Result
}

// intentMove переводит команды в движение: влево приоритетнее вправо
func intentMove(i Intent) physics.Move {
	m := physics.Move{Jump: i.Has(IntentJump)}
	switch {
	case i.Has(IntentLeft):
		m.Dir = -1
	case i.Has(IntentRight):
		m.Dir = 1
	}
	return m
}

// PlayerPolicy движение по командам локального игрока
type PlayerPolicy struct{}

func (PlayerPolicy) Step(e *Entity, eng *physics.Engine, blocks []world.Block) physics.Result {
	return eng.Step(&e.Body, blocks, intentMove(e.Intent), nil)
}

// RedirectedPolicy опасное существо под управлением второго игрока
type RedirectedPolicy struct{}

func (RedirectedPolicy) Step(e *Entity, eng *physics.Engine, blocks []world.Block) physics.Result {
	return eng.Step(&e.Body, blocks, intentMove(e.Intent), nil)
}

// WanderPolicy автономное блуждание с разворотом у стен
type WanderPolicy struct{}

func (WanderPolicy) Step(e *Entity, eng *physics.Engine, blocks []world.Block) physics.Result {
	m := physics.Move{Dir: 1}
	if e.MovingLeft {
		m.Dir = -1
	}
	return eng.Step(&e.Body, blocks, m, func(b *physics.Body, bl world.Block) {
		if physics.ShouldBounce(b, bl) {
			e.MovingLeft = !e.MovingLeft
		}
	})
}

// ReplayPolicy позиция приходит из пакетов, собственного движения нет
type ReplayPolicy struct{}

func (ReplayPolicy) Step(*Entity, *physics.Engine, []world.Block) physics.Result {
	return physics.Result{}
}

// ProjectilePolicy прямолинейный полёт без гравитации; снаряд гибнет о стену
type ProjectilePolicy struct{}

func (ProjectilePolicy) Step(e *Entity, _ *physics.Engine, blocks []world.Block) physics.Result {
	dx := e.Body.Speed
	if e.MovingLeft {
		dx = -dx
	}
	e.Body.Pos = e.Body.Pos.Add(vec.Vec2Float{X: dx})

	r := e.Rect()
	for _, bl := range blocks {
		if world.Collides(bl, r) {
			e.Health = 0
			return physics.Result{HitWall: true}
		}
	}
	return physics.Result{}
}
