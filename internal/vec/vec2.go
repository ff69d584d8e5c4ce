package vec

// Vec2 целочисленные координаты клетки уровня (колонка, строка)
type Vec2 struct {
	X, Y int
}

// ToWorld переводит клетку в мировые координаты левого верхнего угла
func (v Vec2) ToWorld(tile float64) Vec2Float {
	return Vec2Float{X: float64(v.X) * tile, Y: float64(v.Y) * tile}
}
