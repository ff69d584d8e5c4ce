package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/annel0/spacebobble/internal/logging"
	"github.com/annel0/spacebobble/internal/protocol"
	"github.com/annel0/spacebobble/internal/session"
)

// GameConnection воркер одного клиента: рукопожатие, ожидание старта,
// затем строгий цикл «прочитать сообщение, ответить снимком».
type GameConnection struct {
	id       uint64
	conn     net.Conn
	codec    *protocol.Conn
	server   *GameServer
	playerID int
	logger   *logging.Logger
}

func newGameConnection(id uint64, conn net.Conn, s *GameServer) *GameConnection {
	return &GameConnection{
		id:     id,
		conn:   conn,
		codec:  protocol.NewConn(conn, s.opts.CompressThreshold),
		server: s,
		logger: s.logger.With(fmt.Sprintf("[conn %d]", id)),
	}
}

func (c *GameConnection) handle(ctx context.Context) {
	c.logger.Info("Соединение от %s", c.conn.RemoteAddr())

	// остановка сервера прерывает блокирующее чтение
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	stage, err := c.run(ctx)

	c.conn.Close()
	c.server.remove(c.id)

	switch {
	case err == nil, isDisconnect(err), ctx.Err() != nil:
		c.logger.Info("Соединение закрыто (игрок %d)", c.playerID)
	default:
		c.server.opts.Metrics.failed(stage)
		c.logger.Error("Соединение завершено с ошибкой на стадии %s: %v", stage, err)
	}
}

// run возвращает стадию, на которой произошла ошибка
func (c *GameConnection) run(ctx context.Context) (string, error) {
	coord := c.server.coord

	if c.server.transport() == TransportKCP {
		if err := c.readHello(); err != nil {
			return "hello", err
		}
	}

	ticket, err := coord.Join(ctx)
	if err != nil {
		return "join", err
	}
	c.playerID = ticket.PlayerID
	defer coord.Leave(ticket.PlayerID)

	if err := c.write(protocol.PlayerID{PlayerID: ticket.PlayerID}); err != nil {
		return "handshake", err
	}

	// Пока идёт ожидание, следим за сокетом: отключившийся клиент
	// освобождает место, не дожидаясь старта.
	waitCtx, cancelWait := context.WithCancel(ctx)
	defer cancelWait()
	peeked := make(chan error, 1)
	go func() {
		err := c.codec.Peek()
		peeked <- err
		if err != nil {
			cancelWait()
		}
	}()

	c.logger.Info("Игрок %d ждёт начала сессии %s", ticket.PlayerID, ticket.SessionID)
	if err := coord.WaitStart(waitCtx, ticket); err != nil {
		select {
		case perr := <-peeked:
			if perr != nil {
				return "wait", perr
			}
		default:
		}
		return "wait", err
	}

	if err := c.sendLayout(); err != nil {
		return "layout", err
	}

	// чтение начинается только после того, как Peek отпустил буфер
	if err := <-peeked; err != nil {
		return "loop", err
	}

	diagCtx, stopDiag := context.WithCancel(ctx)
	defer stopDiag()
	go c.diagnostics(diagCtx)

	for {
		if err := c.serveOne(ctx); err != nil {
			return "loop", err
		}
	}
}

// readHello принимает первый кадр KCP-клиента до выдачи ID
func (c *GameConnection) readHello() error {
	if c.server.opts.ReadTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.server.opts.ReadTimeout))
		defer c.conn.SetReadDeadline(time.Time{})
	}
	if _, err := protocol.Expect[protocol.Hello](c.codec); err != nil {
		return err
	}
	c.server.opts.Metrics.frame("in", protocol.KindHello)
	return nil
}

// sendLayout отправляет блоки, спасаемых и опасных строго в этом порядке
func (c *GameConnection) sendLayout() error {
	layout := c.server.coord.Layout()

	if err := c.write(protocol.LevelLayout{Blocks: layout.BlockPackets()}); err != nil {
		return err
	}
	if err := c.write(protocol.RescuableLayout{Rescuables: layout.Rescuables}); err != nil {
		return err
	}
	return c.write(protocol.HazardLayout{Hazards: layout.Hazards})
}

// serveOne читает одно сообщение и отвечает ровно одним снимком
func (c *GameConnection) serveOne(ctx context.Context) error {
	if c.server.opts.ReadTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.server.opts.ReadTimeout))
	}

	msg, err := c.codec.Read()
	if err != nil {
		return err
	}
	c.server.opts.Metrics.frame("in", msg.Kind())

	start := time.Now()
	var snap protocol.Snapshot
	switch m := msg.(type) {
	case protocol.TickEnvelope:
		snap, err = c.server.coord.Tick(ctx, c.playerID, m)
	case protocol.FinalScore:
		snap, err = c.server.coord.Submit(ctx, c.playerID, m)
	default:
		return fmt.Errorf("%w: %s от клиента", protocol.ErrUnexpected, msg.Kind())
	}
	if err != nil {
		return err
	}
	c.server.opts.Metrics.observeTick(time.Since(start).Seconds())

	return c.write(snap)
}

func (c *GameConnection) write(p protocol.Payload) error {
	if err := c.codec.Write(p); err != nil {
		return err
	}
	c.server.opts.Metrics.frame("out", p.Kind())
	return nil
}

// diagnostics периодически пишет состояние сессии, пока жив воркер
func (c *GameConnection) diagnostics(ctx context.Context) {
	ticker := time.NewTicker(c.server.opts.DiagnosticsEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st, err := c.server.coord.Stats(ctx)
			if err != nil {
				return
			}
			c.logger.Debug("Сессия %s: игроков %d, спасено %d/%d, завершена=%v",
				st.SessionID, len(st.Players), st.Saved, st.TotalRescuables, st.Finished)
		}
	}
}

// isDisconnect обычное закрытие соединения клиентом
func isDisconnect(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, session.ErrClosed)
}
