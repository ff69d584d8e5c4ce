package world

import (
	"fmt"

	"github.com/annel0/spacebobble/internal/vec"
)

const (
	// TileSize сторона клетки уровня в пикселях
	TileSize = 25.0
	// TrapdoorTiles ширина люка в клетках
	TrapdoorTiles = 4
)

// Shape форма блока
type Shape uint8

const (
	ShapeSolid Shape = iota + 1
	ShapeTrapdoor
)

func (s Shape) String() string {
	switch s {
	case ShapeSolid:
		return "solid"
	case ShapeTrapdoor:
		return "trapdoor"
	default:
		return fmt.Sprintf("shape(%d)", uint8(s))
	}
}

// Block неподвижный элемент уровня, привязанный к клетке
type Block interface {
	Shape() Shape
	Cell() vec.Vec2
	Rect() vec.Rect
	// Passable true, если блок сейчас не участвует в столкновениях
	Passable() bool
}

// Collides проверяет, мешает ли блок прямоугольнику r
func Collides(b Block, r vec.Rect) bool {
	return !b.Passable() && b.Rect().Intersects(r)
}

// Solid сплошной блок 1x1 клетка
type Solid struct {
	cell vec.Vec2
}

// NewSolid создаёт сплошной блок в клетке (col, row)
func NewSolid(col, row int) *Solid {
	return &Solid{cell: vec.Vec2{X: col, Y: row}}
}

func (s *Solid) Shape() Shape   { return ShapeSolid }
func (s *Solid) Cell() vec.Vec2 { return s.cell }
func (s *Solid) Passable() bool { return false }
func (s *Solid) Rect() vec.Rect {
	pos := s.cell.ToWorld(TileSize)
	return vec.Rect{X: pos.X, Y: pos.Y, W: TileSize, H: TileSize}
}
