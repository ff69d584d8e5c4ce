package entity

import (
	"context"
	"time"

	"github.com/annel0/spacebobble/internal/logging"
	"github.com/annel0/spacebobble/internal/world"
)

// DelayBetween минимальная пауза между открытиями люков одной сущностью
const DelayBetween = 500 * time.Millisecond

// GateOpener открывает люки под сущностью по IntentCrouch и над ней по IntentLookUp.
// Срабатывает по фронту команды и не чаще DelayBetween.
type GateOpener struct {
	Delay time.Duration

	last       time.Time
	prevCrouch bool
	prevLookUp bool
	logger     *logging.Logger
}

// NewGateOpener создаёт обработчик с паузой DelayBetween
func NewGateOpener() *GateOpener {
	return &GateOpener{Delay: DelayBetween, logger: logging.GetComponentLogger("gate")}
}

// Handle проверяет команды сущности и открывает подходящие люки.
// Open вызывается в отдельной горутине, чтобы ожидание занятого люка не тормозило такт.
// Возвращает количество люков, которым отправлено открытие.
func (g *GateOpener) Handle(ctx context.Context, e *Entity, blocks []world.Block, now time.Time) int {
	crouch := e.Intent.Has(IntentCrouch)
	lookUp := e.Intent.Has(IntentLookUp)
	crouchEdge := crouch && !g.prevCrouch
	lookUpEdge := lookUp && !g.prevLookUp
	g.prevCrouch, g.prevLookUp = crouch, lookUp

	if !crouchEdge && !lookUpEdge {
		return 0
	}
	if !g.last.IsZero() && now.Sub(g.last) < g.Delay {
		return 0
	}
	g.last = now

	opened := 0
	for _, t := range world.Trapdoors(blocks) {
		if (crouchEdge && TrapdoorBelow(e, t)) || (lookUpEdge && TrapdoorAbove(e, t)) {
			opened++
			go g.open(ctx, e.ID, t)
		}
	}
	return opened
}

// open ждёт люк; отмена ctx (конец игры, отключение) только логируется
func (g *GateOpener) open(ctx context.Context, id int, t *world.Trapdoor) {
	if err := t.Open(ctx); err != nil && g.logger != nil {
		col := t.Cell().X
		g.logger.Debug("Люк в колонке %d не открыт для сущности %d: %v", col, id, err)
	}
}

func overlapsColumn(e *Entity, t *world.Trapdoor) bool {
	r, tr := e.Rect(), t.Rect()
	return r.X < tr.Right() && r.Right() > tr.X
}

// TrapdoorBelow люк ниже сущности и перекрывает её по горизонтали
func TrapdoorBelow(e *Entity, t *world.Trapdoor) bool {
	return e.Body.Pos.Y < t.Rect().Y && overlapsColumn(e, t)
}

// TrapdoorAbove люк выше сущности и перекрывает её по горизонтали
func TrapdoorAbove(e *Entity, t *world.Trapdoor) bool {
	return e.Body.Pos.Y > t.Rect().Y && overlapsColumn(e, t)
}
