package vec

import "math"

// Vec2Float представляет 2D координаты с плавающей точкой.
// Ось Y направлена вниз, как на экране.
type Vec2Float struct {
	X, Y float64
}

// ToTile возвращает клетку, в которую попадает точка
func (v Vec2Float) ToTile(tile float64) Vec2 {
	return Vec2{X: int(math.Floor(v.X / tile)), Y: int(math.Floor(v.Y / tile))}
}

// Add складывает два вектора
func (v Vec2Float) Add(other Vec2Float) Vec2Float {
	return Vec2Float{X: v.X + other.X, Y: v.Y + other.Y}
}
