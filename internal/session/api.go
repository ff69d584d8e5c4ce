package session

import (
	"context"
	"time"

	"github.com/annel0/spacebobble/internal/protocol"
)

// send кладёт команду в inbox, пока координатор жив
func (c *Coordinator) send(ctx context.Context, cmd interface{}) error {
	select {
	case c.inbox <- cmd:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, c *Coordinator, ch <-chan T) (T, error) {
	var zero T
	select {
	case v := <-ch:
		return v, nil
	case <-c.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Join регистрирует подключение и выдаёт ID игрока
func (c *Coordinator) Join(ctx context.Context) (Ticket, error) {
	ch := make(chan Ticket, 1)
	if err := c.send(ctx, joinCmd{reply: ch}); err != nil {
		return Ticket{}, err
	}
	return await(ctx, c, ch)
}

// WaitStart блокируется, пока сессия не наберёт порог игроков
func (c *Coordinator) WaitStart(ctx context.Context, t Ticket) error {
	var timeout <-chan time.Time
	if c.opts.StartTimeout > 0 {
		timer := time.NewTimer(c.opts.StartTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-t.ready:
		return nil
	case <-timeout:
		return ErrStartTimeout
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick сливает такт клиента и возвращает ответ для него
func (c *Coordinator) Tick(ctx context.Context, playerID int, env protocol.TickEnvelope) (protocol.Snapshot, error) {
	ch := make(chan reply, 1)
	if err := c.send(ctx, tickCmd{ctx: ctx, playerID: playerID, env: env, reply: ch}); err != nil {
		return protocol.Snapshot{}, err
	}
	r, err := await(ctx, c, ch)
	if err != nil {
		return protocol.Snapshot{}, err
	}
	return r.snap, r.err
}

// Submit принимает итоговый счёт игрока
func (c *Coordinator) Submit(ctx context.Context, playerID int, score protocol.FinalScore) (protocol.Snapshot, error) {
	ch := make(chan reply, 1)
	if err := c.send(ctx, scoreCmd{ctx: ctx, playerID: playerID, score: score, reply: ch}); err != nil {
		return protocol.Snapshot{}, err
	}
	r, err := await(ctx, c, ch)
	if err != nil {
		return protocol.Snapshot{}, err
	}
	return r.snap, r.err
}

// Leave освобождает место игрока. Не блокируется после остановки координатора.
func (c *Coordinator) Leave(playerID int) {
	select {
	case c.inbox <- leaveCmd{playerID: playerID}:
	case <-c.done:
	}
}

// Stats текущее состояние сессии
func (c *Coordinator) Stats(ctx context.Context) (Stats, error) {
	ch := make(chan Stats, 1)
	if err := c.send(ctx, statsCmd{reply: ch}); err != nil {
		return Stats{}, err
	}
	return await(ctx, c, ch)
}
