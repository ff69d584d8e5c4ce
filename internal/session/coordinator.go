package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/annel0/spacebobble/internal/eventbus"
	"github.com/annel0/spacebobble/internal/logging"
	"github.com/annel0/spacebobble/internal/protocol"
	"github.com/annel0/spacebobble/internal/scores"
	"github.com/annel0/spacebobble/internal/storage"
	"github.com/annel0/spacebobble/internal/world"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrClosed координатор остановлен
	ErrClosed = errors.New("session: coordinator closed")
	// ErrUnknownPlayer игрок не присоединялся или уже ушёл
	ErrUnknownPlayer = errors.New("session: unknown player")
	// ErrNotStarted такт до прохождения порога игроков
	ErrNotStarted = errors.New("session: not started")
	// ErrStartTimeout порог игроков не набран за StartTimeout
	ErrStartTimeout = errors.New("session: start timeout")
)

// Options параметры координатора
type Options struct {
	MinPlayers   int
	StartTimeout time.Duration // 0 = ждать бесконечно
	Layout       *world.Layout
	Store        storage.LeaderboardStore // может быть nil
	Mode         storage.Mode
	Bus          eventbus.EventBus // nil: шина процесса из eventbus.Init
	Source       string            // имя источника событий
}

// Ticket выдаётся при подключении. ready закрывается, когда набран порог.
type Ticket struct {
	PlayerID  int
	SessionID string
	ready     <-chan struct{}
}

// Stats срез состояния для диагностики и REST
type Stats struct {
	SessionID       string         `json:"session_id"`
	Started         bool           `json:"started"`
	Players         []int          `json:"players"`
	MinPlayers      int            `json:"min_players"`
	Saved           int            `json:"saved"`
	TotalRescuables int            `json:"total_rescuables"`
	Finished        bool           `json:"finished"`
	Scores          int            `json:"scores"`
	Leaderboard     map[string]int `json:"leaderboard,omitempty"`
	Sessions        uint64         `json:"sessions"`
}

type member struct {
	id        int
	sentSaved uint64 // версия множества спасённых, отправленная этому игроку
}

// Coordinator единственный владелец состояния сессии. Все изменения идут
// через inbox и выполняются горутиной Run.
type Coordinator struct {
	opts   Options
	inbox  chan interface{}
	done   chan struct{}
	logger *logging.Logger
	tracer trace.Tracer

	// состояние горутины Run
	sessionID    string
	sessions     uint64
	nextID       int
	members      map[int]*member
	ready        chan struct{}
	started      bool
	avatars      map[int]protocol.AvatarPacket
	saved        map[int]protocol.RescuablePacket
	savedOrder   []int
	savedVersion uint64
	finished     bool
	results      []scores.Result
	leaderboard  scores.Leaderboard
	computing    bool           // таблица считается в persistLeaderboard
	waiters      []pendingReply // отложенные ответы на FinalScore
}

type pendingReply struct {
	member *member
	reply  chan reply
}

// NewCoordinator создаёт координатор. Run нужно запустить отдельно.
func NewCoordinator(opts Options) *Coordinator {
	if opts.MinPlayers < 1 {
		opts.MinPlayers = 1
	}
	if opts.Layout == nil {
		opts.Layout = &world.Layout{}
	}
	if opts.Mode == "" {
		opts.Mode = storage.ModeServerCoop
	}
	if opts.Source == "" {
		opts.Source = "session"
	}

	c := &Coordinator{
		opts:   opts,
		inbox:  make(chan interface{}, 64),
		done:   make(chan struct{}),
		logger: logging.GetSessionLogger(),
		tracer: otel.Tracer("spacebobble/session"),
		nextID: 1,
	}
	c.reset()
	return c
}

// Layout уровень и точки появления, общие для всех сессий
func (c *Coordinator) Layout() *world.Layout {
	return c.opts.Layout
}

// MinPlayers порог игроков для старта
func (c *Coordinator) MinPlayers() int {
	return c.opts.MinPlayers
}

// Done закрывается после выхода Run
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

func (c *Coordinator) reset() {
	c.sessionID = uuid.NewString()
	c.members = make(map[int]*member)
	c.ready = make(chan struct{})
	c.started = false
	c.avatars = make(map[int]protocol.AvatarPacket)
	c.saved = make(map[int]protocol.RescuablePacket)
	c.savedOrder = nil
	c.savedVersion = 0
	c.finished = false
	c.results = nil
	c.leaderboard = nil
	c.computing = false
	c.waiters = nil
}

// Run обрабатывает команды до отмены ctx
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)
	c.logger.Info("🎮 Координатор запущен: порог %d игроков, сессия %s", c.opts.MinPlayers, c.sessionID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("🛑 Координатор остановлен")
			return ctx.Err()
		case cmd := <-c.inbox:
			c.handleCommand(cmd)
		}
	}
}

func (c *Coordinator) handleCommand(cmd interface{}) {
	switch cmd := cmd.(type) {
	case joinCmd:
		cmd.reply <- c.join()
	case tickCmd:
		snap, err := c.tick(cmd.ctx, cmd.playerID, cmd.env)
		cmd.reply <- reply{snap: snap, err: err}
	case scoreCmd:
		snap, deferred, err := c.submit(cmd.ctx, cmd.playerID, cmd.score, cmd.reply)
		if !deferred {
			cmd.reply <- reply{snap: snap, err: err}
		}
	case boardCmd:
		c.boardReady(cmd)
	case leaveCmd:
		c.leave(cmd.playerID)
	case statsCmd:
		cmd.reply <- c.stats()
	default:
		c.logger.Warn("Неизвестная команда %T", cmd)
	}
}

func (c *Coordinator) join() Ticket {
	id := c.nextID
	c.nextID++
	c.members[id] = &member{id: id}
	c.logger.Info("👤 Игрок %d присоединился (%d/%d)", id, len(c.members), c.opts.MinPlayers)

	if !c.started && len(c.members) >= c.opts.MinPlayers {
		c.started = true
		c.sessions++
		close(c.ready)
		c.logger.Info("🚀 Сессия %s началась, игроков: %d", c.sessionID, len(c.members))
		c.publish(eventbus.TypeSessionStarted, eventbus.SessionStarted{
			SessionID: c.sessionID,
			Players:   c.playerIDs(),
		})
	}

	return Ticket{PlayerID: id, SessionID: c.sessionID, ready: c.ready}
}

func (c *Coordinator) leave(id int) {
	if _, ok := c.members[id]; !ok {
		return
	}
	delete(c.members, id)
	c.logger.Info("👋 Игрок %d отключился, осталось %d", id, len(c.members))

	if len(c.members) > 0 || !c.started {
		return
	}

	if !c.finished {
		c.publish(eventbus.TypeSessionFinished, eventbus.SessionFinished{
			SessionID: c.sessionID,
			Saved:     len(c.saved),
			Total:     len(c.opts.Layout.Rescuables),
			Abandoned: true,
		})
	}
	old := c.sessionID
	c.reset()
	c.logger.Info("♻️ Сессия %s сброшена, новая сессия %s ждёт игроков", old, c.sessionID)
}

func (c *Coordinator) tick(ctx context.Context, id int, env protocol.TickEnvelope) (protocol.Snapshot, error) {
	m, ok := c.members[id]
	if !ok {
		return protocol.Snapshot{}, fmt.Errorf("%w: %d", ErrUnknownPlayer, id)
	}
	if !c.started {
		return protocol.Snapshot{}, ErrNotStarted
	}

	_, span := c.tracer.Start(ctx, "session.tick",
		trace.WithAttributes(attribute.Int("player.id", id), attribute.Int("saved.new", len(env.Saved))))
	defer span.End()

	// игрок пишет только свой аватар
	env.Avatar.PlayerID = id
	c.avatars[id] = env.Avatar

	added := 0
	for _, r := range env.Saved {
		if _, dup := c.saved[r.ID]; dup {
			continue
		}
		r.Saved = true
		c.saved[r.ID] = r
		c.savedOrder = append(c.savedOrder, r.ID)
		added++
	}
	if added > 0 {
		c.savedVersion++
		c.logger.Debug("Игрок %d спас %d, всего %d/%d", id, added, len(c.saved), len(c.opts.Layout.Rescuables))
	}

	total := len(c.opts.Layout.Rescuables)
	if !c.finished && total > 0 && len(c.saved) >= total {
		c.finished = true
		c.logger.Info("🏁 Сессия %s завершена: спасены все %d", c.sessionID, total)
		c.publish(eventbus.TypeSessionFinished, eventbus.SessionFinished{
			SessionID: c.sessionID,
			Saved:     len(c.saved),
			Total:     total,
		})
	}

	return c.snapshot(m), nil
}

// submit принимает итог игрока. deferred=true: ответ уйдёт в waiter позже.
func (c *Coordinator) submit(ctx context.Context, id int, fs protocol.FinalScore, waiter chan reply) (snap protocol.Snapshot, deferred bool, err error) {
	m, ok := c.members[id]
	if !ok {
		return protocol.Snapshot{}, false, fmt.Errorf("%w: %d", ErrUnknownPlayer, id)
	}

	c.results = append(c.results, fs.Result())
	c.logger.Info("🧮 Итог игрока %d: %s (%s) %d", id, fs.Name, fs.Team, fs.Total)

	if c.leaderboard == nil && !c.computing && len(c.results) == c.opts.MinPlayers {
		if c.computeLeaderboard(ctx, waiter, m) {
			return protocol.Snapshot{}, true, nil
		}
	}
	return c.snapshot(m), false, nil
}

// computeLeaderboard сводит итоги в запись таблицы режима. Без хранилища
// таблица готова сразу. С хранилищем Load/Put идут вне горутины Run,
// результат возвращается в inbox командой boardCmd, а ответ отправителю
// последнего счёта ждёт её прихода. true: ответ отложен.
func (c *Coordinator) computeLeaderboard(ctx context.Context, waiter chan reply, m *member) bool {
	name, total, ok := scores.Aggregate(c.results)
	if !ok {
		c.leaderboard = scores.Leaderboard{}
		return false
	}
	if c.opts.Store == nil {
		c.applyLeaderboard(scores.Leaderboard{}, name, total)
		return false
	}

	c.computing = true
	c.waiters = append(c.waiters, pendingReply{member: m, reply: waiter})
	go c.persistLeaderboard(context.WithoutCancel(ctx), c.sessionID, name, total)
	return true
}

// persistLeaderboard работает вне горутины Run и трогает только хранилище
func (c *Coordinator) persistLeaderboard(ctx context.Context, sessionID, name string, total int) {
	ctx, span := c.tracer.Start(ctx, "session.leaderboard",
		trace.WithAttributes(attribute.String("winner", name), attribute.Int("total", total)))
	defer span.End()

	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	board, err := c.opts.Store.Load(sctx, c.opts.Mode)
	if err != nil {
		span.RecordError(err)
		c.logger.Error("Не удалось загрузить таблицу рекордов: %v", err)
		board = scores.Leaderboard{}
	}
	if err := c.opts.Store.Put(sctx, c.opts.Mode, name, total); err != nil {
		span.RecordError(err)
		c.logger.Error("Не удалось сохранить таблицу рекордов: %v", err)
	}

	select {
	case c.inbox <- boardCmd{sessionID: sessionID, board: board, name: name, total: total}:
	case <-c.done:
	}
}

// boardReady принимает таблицу из persistLeaderboard
func (c *Coordinator) boardReady(cmd boardCmd) {
	if cmd.sessionID != c.sessionID {
		c.logger.Debug("Таблица сессии %s пришла после сброса, пропускаем", cmd.sessionID)
		return
	}
	c.applyLeaderboard(cmd.board, cmd.name, cmd.total)
}

func (c *Coordinator) applyLeaderboard(board scores.Leaderboard, name string, total int) {
	board.Put(name, total)
	c.leaderboard = board
	c.computing = false

	c.logger.Info("🏆 Таблица рекордов: %s = %d (рекорд %d)", name, total, board[name])
	c.publish(eventbus.TypeLeaderboardUpdated, eventbus.LeaderboardUpdated{
		SessionID: c.sessionID,
		Mode:      string(c.opts.Mode),
		Name:      name,
		Score:     total,
	})

	for _, w := range c.waiters {
		w.reply <- reply{snap: c.snapshot(w.member)}
	}
	c.waiters = nil
}

// snapshot ответ конкретному игроку. Спасённые включаются, только если
// игрок ещё не видел текущую версию множества.
func (c *Coordinator) snapshot(m *member) protocol.Snapshot {
	snap := protocol.Snapshot{
		Avatars:  c.avatarList(),
		Finished: c.finished,
	}
	if m.sentSaved != c.savedVersion {
		snap.Saved = c.savedList()
		m.sentSaved = c.savedVersion
	}
	if c.leaderboard != nil {
		snap.Leaderboard = c.leaderboard.Clone()
	}
	return snap
}

func (c *Coordinator) avatarList() []protocol.AvatarPacket {
	out := make([]protocol.AvatarPacket, 0, len(c.avatars))
	for _, a := range c.avatars {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

func (c *Coordinator) savedList() []protocol.RescuablePacket {
	out := make([]protocol.RescuablePacket, 0, len(c.savedOrder))
	for _, id := range c.savedOrder {
		out = append(out, c.saved[id])
	}
	return out
}

func (c *Coordinator) playerIDs() []int {
	ids := make([]int, 0, len(c.members))
	for id := range c.members {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (c *Coordinator) stats() Stats {
	s := Stats{
		SessionID:       c.sessionID,
		Started:         c.started,
		Players:         c.playerIDs(),
		MinPlayers:      c.opts.MinPlayers,
		Saved:           len(c.saved),
		TotalRescuables: len(c.opts.Layout.Rescuables),
		Finished:        c.finished,
		Scores:          len(c.results),
		Sessions:        c.sessions,
	}
	if c.leaderboard != nil {
		s.Leaderboard = c.leaderboard.Clone()
	}
	return s
}

// publish отправляет событие из горутины Run, не дожидаясь шины.
// Без Options.Bus используется глобальная шина процесса.
func (c *Coordinator) publish(eventType string, payload interface{}) {
	bus := c.opts.Bus
	if bus == nil {
		bus = eventbus.Global()
	}
	if bus == nil {
		return
	}
	ev, err := eventbus.NewEnvelope(c.opts.Source, eventType, payload)
	if err != nil {
		c.logger.Error("Событие %s: %v", eventType, err)
		return
	}
	ev.CorrelationID = c.sessionID

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := bus.Publish(ctx, ev); err != nil {
			c.logger.Warn("Не удалось опубликовать %s: %v", eventType, err)
		}
	}()
}
