package vec

// Rect прямоугольник, выровненный по осям: (X, Y) левый верхний угол
type Rect struct {
	X, Y, W, H float64
}

// RectAt строит прямоугольник заданного размера в позиции pos
func RectAt(pos Vec2Float, size Vec2Float) Rect {
	return Rect{X: pos.X, Y: pos.Y, W: size.X, H: size.Y}
}

func (r Rect) Right() float64  { return r.X + r.W }
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Intersects проверяет строгое пересечение: касание границами не считается.
// Отношение симметрично.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.Right() && o.X < r.Right() &&
		r.Y < o.Bottom() && o.Y < r.Bottom()
}

// Translate возвращает прямоугольник, сдвинутый на d
func (r Rect) Translate(d Vec2Float) Rect {
	return Rect{X: r.X + d.X, Y: r.Y + d.Y, W: r.W, H: r.H}
}
