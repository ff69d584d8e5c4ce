package world

import (
	"context"
	"sync"
	"time"

	"github.com/annel0/spacebobble/internal/vec"
)

// AutoCloseDelay через сколько открытый люк закрывается сам
const AutoCloseDelay = 500 * time.Millisecond

// Trapdoor люк шириной в 4 клетки. Пока открыт, не участвует в столкновениях.
//
// Состояние принадлежит самому люку: open/released/gen меняются только под mu.
// На каждое открытие приходится ровно одно отложенное закрытие, явный Close его отменяет.
type Trapdoor struct {
	cell  vec.Vec2
	delay time.Duration

	mu       sync.Mutex
	open     bool
	released chan struct{} // закрывается при переходе в closed
	gen      uint64
	timer    *time.Timer
}

// NewTrapdoor создаёт закрытый люк в клетке (col, row)
func NewTrapdoor(col, row int) *Trapdoor {
	return NewTrapdoorWithDelay(col, row, AutoCloseDelay)
}

// NewTrapdoorWithDelay создаёт люк с нестандартной задержкой автозакрытия
func NewTrapdoorWithDelay(col, row int, delay time.Duration) *Trapdoor {
	return &Trapdoor{cell: vec.Vec2{X: col, Y: row}, delay: delay}
}

func (t *Trapdoor) Shape() Shape   { return ShapeTrapdoor }
func (t *Trapdoor) Cell() vec.Vec2 { return t.cell }
func (t *Trapdoor) Passable() bool { return t.IsOpen() }
func (t *Trapdoor) Rect() vec.Rect {
	pos := t.cell.ToWorld(TileSize)
	return vec.Rect{X: pos.X, Y: pos.Y, W: TileSize * TrapdoorTiles, H: TileSize}
}

// IsOpen возвращает текущее состояние
func (t *Trapdoor) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Open открывает люк. Если люк уже открыт, ждёт его закрытия и открывает заново.
// Возвращает ctx.Err(), если контекст отменён во время ожидания.
func (t *Trapdoor) Open(ctx context.Context) error {
	for {
		t.mu.Lock()
		if !t.open {
			t.open = true
			t.released = make(chan struct{})
			t.gen++
			gen := t.gen
			t.timer = time.AfterFunc(t.delay, func() { t.closeGen(gen) })
			t.mu.Unlock()
			return nil
		}
		released := t.released
		t.mu.Unlock()

		select {
		case <-released:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close закрывает люк и будит ожидающих. На закрытом люке ничего не делает.
func (t *Trapdoor) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked()
}

// closeGen срабатывает по таймеру; устаревший таймер прошлого открытия игнорируется
func (t *Trapdoor) closeGen(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		return
	}
	t.closeLocked()
}

func (t *Trapdoor) closeLocked() {
	if !t.open {
		return
	}
	t.open = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	close(t.released)
}
