package entity

import (
	"fmt"

	"github.com/annel0/spacebobble/internal/physics"
	"github.com/annel0/spacebobble/internal/vec"
	"github.com/annel0/spacebobble/internal/world"
)

// Kind вид сущности
type Kind uint8

const (
	KindAvatar Kind = iota + 1
	KindHazard
	KindRescuable
	KindProjectile
)

func (k Kind) String() string {
	switch k {
	case KindAvatar:
		return "avatar"
	case KindHazard:
		return "hazard"
	case KindRescuable:
		return "rescuable"
	case KindProjectile:
		return "projectile"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Параметры видов
const (
	AvatarSize       = 30.0
	AvatarSpeed      = 3.0
	AvatarHealth     = 5
	RespawnHealth    = 3
	HazardSize       = 30.0
	CoopHazardSize   = 35.0
	HazardSpeed      = 1.0
	RedirectedSpeed  = 4.0
	HazardHealth     = 5
	RescuableSize    = 30.0
	RescuableSpeed   = 0.3
	RescuableHealth  = 1
	ProjectileWidth  = 10.0
	ProjectileHeight = 7.0
	ProjectileSpeed  = 7.5
	ProjectileHealth = 1
)

// Intent набор активных в этом такте команд движения
type Intent uint8

const (
	IntentLeft Intent = 1 << iota
	IntentRight
	IntentJump
	IntentCrouch
	IntentLookUp
)

// Has проверяет, активна ли команда
func (i Intent) Has(flag Intent) bool { return i&flag != 0 }

// With возвращает набор с включённой или выключенной командой
func (i Intent) With(flag Intent, on bool) Intent {
	if on {
		return i | flag
	}
	return i &^ flag
}

// Entity единая запись движущейся сущности. Поведение задаёт Policy.
type Entity struct {
	ID     int
	Kind   Kind
	Body   physics.Body
	Health int
	Intent Intent
	Policy MovementPolicy

	MovingLeft bool // направление автономного движения
	Saved      bool
	Invincible bool
	Redirected bool
	Mirror     bool // состояние приходит с сервера
}

// Alive true, пока здоровье положительно
func (e *Entity) Alive() bool { return e.Health > 0 }

// Rect прямоугольник сущности
func (e *Entity) Rect() vec.Rect { return e.Body.Rect() }

// Pos текущая позиция
func (e *Entity) Pos() vec.Vec2Float { return e.Body.Pos }

// Overlaps проверяет пересечение с другой сущностью
func (e *Entity) Overlaps(other *Entity) bool {
	return physics.Overlaps(&e.Body, &other.Body)
}

// Damage снимает здоровье, не опуская ниже нуля
func (e *Entity) Damage(amount int) {
	e.Health -= amount
	if e.Health < 0 {
		e.Health = 0
	}
}

// Update выполняет шаг политики движения
func (e *Entity) Update(eng *physics.Engine, blocks []world.Block) physics.Result {
	if e.Policy == nil {
		return physics.Result{}
	}
	return e.Policy.Step(e, eng, blocks)
}

func newEntity(id int, kind Kind, pos vec.Vec2Float, size vec.Vec2Float, speed float64, health int, policy MovementPolicy) *Entity {
	return &Entity{
		ID:   id,
		Kind: kind,
		Body: physics.Body{
			Pos:   pos,
			Size:  size,
			Speed: speed,
		},
		Health: health,
		Policy: policy,
	}
}

func square(s float64) vec.Vec2Float { return vec.Vec2Float{X: s, Y: s} }

// NewAvatar аватар локального игрока, управляется Intent
func NewAvatar(id int, pos vec.Vec2Float) *Entity {
	return newEntity(id, KindAvatar, pos, square(AvatarSize), AvatarSpeed, AvatarHealth, PlayerPolicy{})
}

// NewHazard автономное опасное существо
func NewHazard(id int, pos vec.Vec2Float, movingLeft bool) *Entity {
	e := newEntity(id, KindHazard, pos, square(HazardSize), HazardSpeed, HazardHealth, WanderPolicy{})
	e.MovingLeft = movingLeft
	return e
}

// NewRescuable автономное спасаемое существо
func NewRescuable(id int, pos vec.Vec2Float, movingLeft bool) *Entity {
	e := newEntity(id, KindRescuable, pos, square(RescuableSize), RescuableSpeed, RescuableHealth, WanderPolicy{})
	e.MovingLeft = movingLeft
	return e
}

// NewProjectile снаряд, летящий горизонтально
func NewProjectile(id int, pos vec.Vec2Float, movingLeft bool) *Entity {
	e := newEntity(id, KindProjectile, pos, vec.Vec2Float{X: ProjectileWidth, Y: ProjectileHeight},
		ProjectileSpeed, ProjectileHealth, ProjectilePolicy{})
	e.MovingLeft = movingLeft
	return e
}
