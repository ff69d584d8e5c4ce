// Package physics двигает прямоугольные тела по уровню из блоков:
// гравитация, прыжок и разрешение столкновений по осям раздельно.
package physics

import (
	"github.com/annel0/spacebobble/internal/vec"
	"github.com/annel0/spacebobble/internal/world"
)

const (
	DefaultGravity   = 0.5
	DefaultJumpForce = -15.0

	// Границы правила отскока
	BounceTopRow    = 0.0
	BounceBelowLine = 1000.0
)

// Body кинематическое состояние сущности
type Body struct {
	Pos       vec.Vec2Float
	Size      vec.Vec2Float
	VelocityY float64
	Speed     float64
	OnGround  bool
}

// Rect прямоугольник тела в текущей позиции
func (b *Body) Rect() vec.Rect {
	return vec.RectAt(b.Pos, b.Size)
}

// Overlaps проверяет пересечение двух тел (симметрично)
func Overlaps(a, b *Body) bool {
	return a.Rect().Intersects(b.Rect())
}

// Move намерение на один шаг: Dir -1 влево, 1 вправо, 0 на месте
type Move struct {
	Dir  int
	Jump bool
}

// BounceFunc вызывается при горизонтальном столкновении с блоком
type BounceFunc func(body *Body, block world.Block)

// Result что произошло за шаг
type Result struct {
	HitWall    bool
	Landed     bool
	HitCeiling bool
}

// Engine параметры симуляции
type Engine struct {
	Gravity   float64
	JumpForce float64
}

// NewEngine создаёт движок с параметрами по умолчанию
func NewEngine() *Engine {
	return &Engine{Gravity: DefaultGravity, JumpForce: DefaultJumpForce}
}

// Step выполняет один шаг симуляции тела
func (e *Engine) Step(b *Body, blocks []world.Block, m Move, bounce BounceFunc) Result {
	if m.Jump && b.OnGround {
		b.VelocityY = e.JumpForce
		b.OnGround = false
	}
	b.VelocityY += e.Gravity

	target := vec.Vec2Float{
		X: b.Pos.X + float64(m.Dir)*b.Speed,
		Y: b.Pos.Y + b.VelocityY,
	}
	return e.Resolve(b, blocks, target, bounce)
}

// Resolve переносит тело в target, разрешая столкновения:
//  1. X проверяется на текущем Y, при столкновении X откатывается;
//  2. Y проверяется на текущем X: при падении тело встаёт на блок,
//     при подъёме упирается в его низ, вертикальная скорость обнуляется;
//  3. X повторно проверяется на новом Y.
//
// Открытые люки не участвуют ни в одной проверке.
func (e *Engine) Resolve(b *Body, blocks []world.Block, target vec.Vec2Float, bounce BounceFunc) Result {
	var res Result
	x, y := target.X, target.Y
	w, h := b.Size.X, b.Size.Y

	horizontal := vec.Rect{X: x, Y: b.Pos.Y, W: w, H: h}
	for _, bl := range blocks {
		if world.Collides(bl, horizontal) {
			res.HitWall = true
			x = b.Pos.X
			if bounce != nil {
				bounce(b, bl)
			}
			break
		}
	}

	descending := b.VelocityY >= 0
	for _, bl := range blocks {
		if !world.Collides(bl, vec.Rect{X: b.Pos.X, Y: y, W: w, H: h}) {
			continue
		}
		r := bl.Rect()
		if descending {
			y = r.Y - h
			res.Landed = true
		} else {
			y = r.Bottom()
			res.HitCeiling = true
		}
		b.VelocityY = 0
	}
	b.OnGround = res.Landed

	if x != b.Pos.X {
		recheck := vec.Rect{X: x, Y: y, W: w, H: h}
		for _, bl := range blocks {
			if world.Collides(bl, recheck) {
				res.HitWall = true
				x = b.Pos.X
				break
			}
		}
	}

	b.Pos = vec.Vec2Float{X: x, Y: y}
	return res
}

// ShouldBounce правило разворота автономных существ у блока.
// Ветка для отрицательной скорости срабатывает только на самом верхнем ряду,
// для положительной на любом блоке выше линии BounceBelowLine.
func ShouldBounce(b *Body, block world.Block) bool {
	top := block.Rect().Y
	return (b.Speed < 0 && top == BounceTopRow) || (b.Speed > 0 && top < BounceBelowLine)
}
