package entity

import (
	"github.com/annel0/spacebobble/internal/protocol"
	"github.com/annel0/spacebobble/internal/vec"
)

// NewAvatarMirror отражение аватара другого игрока
func NewAvatarMirror(p protocol.AvatarPacket) *Entity {
	e := newEntity(p.PlayerID, KindAvatar, vec.Vec2Float{X: p.X, Y: p.Y}, square(AvatarSize), 0, p.Health, ReplayPolicy{})
	e.Mirror = true
	return e
}

// NewHazardMirror опасное существо кооператива, симулируется локально из точки появления
func NewHazardMirror(p protocol.HazardPacket) *Entity {
	e := NewHazard(p.ID, vec.Vec2Float{X: p.X, Y: p.Y}, p.MovingLeft)
	e.Body.Size = square(CoopHazardSize)
	e.Mirror = true
	return e
}

// NewRescuableMirror спасаемое кооператива, симулируется локально из точки появления
func NewRescuableMirror(p protocol.RescuablePacket) *Entity {
	e := NewRescuable(p.ID, vec.Vec2Float{X: p.X, Y: p.Y}, p.MovingLeft)
	e.Saved = p.Saved
	e.Mirror = true
	return e
}

// ApplyAvatar переносит в отражение состояние из пакета
func (e *Entity) ApplyAvatar(p protocol.AvatarPacket) {
	e.Body.Pos = vec.Vec2Float{X: p.X, Y: p.Y}
	e.Health = p.Health
}

// AvatarPacket снимок аватара
func (e *Entity) AvatarPacket() protocol.AvatarPacket {
	return protocol.AvatarPacket{PlayerID: e.ID, X: e.Body.Pos.X, Y: e.Body.Pos.Y, Health: e.Health}
}

// HazardPacket снимок опасного существа
func (e *Entity) HazardPacket() protocol.HazardPacket {
	return protocol.HazardPacket{ID: e.ID, X: e.Body.Pos.X, Y: e.Body.Pos.Y, MovingLeft: e.MovingLeft}
}

// RescuablePacket снимок спасаемого
func (e *Entity) RescuablePacket() protocol.RescuablePacket {
	return protocol.RescuablePacket{ID: e.ID, X: e.Body.Pos.X, Y: e.Body.Pos.Y, MovingLeft: e.MovingLeft, Saved: e.Saved}
}
