package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/annel0/spacebobble/internal/logging"
	"github.com/annel0/spacebobble/internal/network"
	"github.com/annel0/spacebobble/internal/physics"
	"github.com/annel0/spacebobble/internal/protocol"
	"github.com/annel0/spacebobble/internal/scores"
	"github.com/annel0/spacebobble/internal/storage"
	"github.com/annel0/spacebobble/internal/vec"
	"github.com/annel0/spacebobble/internal/world"
	"github.com/annel0/spacebobble/internal/world/entity"
)

// Правила кооперативного клиента
const (
	SpareLives        = 2
	HazardPenalty     = 150
	RescueReward      = 500
	InvincibleFor     = 2 * time.Second
	DefaultTickRate   = 60
	DefaultSendPeriod = 50 * time.Millisecond
)

var (
	spawnPos   = vec.Vec2Float{X: 50, Y: 50}
	respawnPos = vec.Vec2Float{X: 300, Y: 50}
)

// ErrNotReady обмен до рукопожатия
var ErrNotReady = errors.New("client: handshake not completed")

// Options параметры клиента
type Options struct {
	Name              string
	Intents           IntentSource
	Store             storage.LeaderboardStore // таблица сохраняется в режиме server-coop, может быть nil
	TickRate          int
	SendInterval      time.Duration
	CompressThreshold int
}

// Relay локальная симуляция одного клиента и её сверка с сервером.
// Step и Exchange работают из разных горутин, состояние под mu.
type Relay struct {
	opts   Options
	conn   net.Conn
	codec  *protocol.Conn
	eng    *physics.Engine
	gates  *entity.GateOpener
	logger *logging.Logger

	changes chan struct{}

	mu          sync.Mutex
	ready       bool
	playerID    int
	score       *scores.Score
	blocks      []world.Block
	avatar      *entity.Entity
	others      *entity.Registry
	hazards     *entity.Registry
	rescuables  *entity.Registry
	pending     []protocol.RescuablePacket
	lives       int
	respawnedAt time.Time
	gameOver    bool
	finished    bool
	scoreSent   bool
	leaderboard scores.Leaderboard
	done        bool
	gateCtx     context.Context
}

// NewRelay оборачивает уже открытое соединение
func NewRelay(conn net.Conn, opts Options) *Relay {
	if opts.Intents == nil {
		opts.Intents = Idle
	}
	if opts.TickRate <= 0 {
		opts.TickRate = DefaultTickRate
	}
	if opts.SendInterval <= 0 {
		opts.SendInterval = DefaultSendPeriod
	}

	return &Relay{
		opts:       opts,
		conn:       conn,
		codec:      protocol.NewConn(conn, opts.CompressThreshold),
		eng:        physics.NewEngine(),
		gates:      entity.NewGateOpener(),
		logger:     logging.GetClientLogger(),
		changes:    make(chan struct{}, 1),
		others:     entity.NewRegistry(),
		hazards:    entity.NewRegistry(),
		rescuables: entity.NewRegistry(),
		lives:      SpareLives,
		gateCtx:    context.Background(),
	}
}

// Connect подключается к серверу и выполняет рукопожатие
func Connect(ctx context.Context, transport, addr string, opts Options) (*Relay, error) {
	conn, err := network.Dial(ctx, transport, addr)
	if err != nil {
		return nil, err
	}
	r := NewRelay(conn, opts)
	if err := r.Handshake(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return r, nil
}

// Close закрывает соединение
func (r *Relay) Close() error {
	return r.conn.Close()
}

// Handshake получает ID игрока и, после старта сессии, раскладку уровня
func (r *Relay) Handshake(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { r.conn.Close() })
	defer stop()

	id, err := protocol.Expect[protocol.PlayerID](r.codec)
	if err != nil {
		return fmt.Errorf("player id: %w", err)
	}
	r.logger.Info("Получен ID игрока %d, ждём остальных", id.PlayerID)

	level, err := protocol.Expect[protocol.LevelLayout](r.codec)
	if err != nil {
		return fmt.Errorf("level layout: %w", err)
	}
	blocks, err := world.BlocksFromPackets(level.Blocks)
	if err != nil {
		return err
	}
	resc, err := protocol.Expect[protocol.RescuableLayout](r.codec)
	if err != nil {
		return fmt.Errorf("rescuable layout: %w", err)
	}
	haz, err := protocol.Expect[protocol.HazardLayout](r.codec)
	if err != nil {
		return fmt.Errorf("hazard layout: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.playerID = id.PlayerID
	r.score = scores.NewScore(r.opts.Name, scores.TeamForPlayer(id.PlayerID))
	r.blocks = blocks
	r.avatar = entity.NewAvatar(id.PlayerID, spawnPos)
	for _, p := range resc.Rescuables {
		r.rescuables.Add(entity.NewRescuableMirror(p))
	}
	for _, p := range haz.Hazards {
		r.hazards.Add(entity.NewHazardMirror(p))
	}
	r.ready = true

	r.logger.Info("🎮 Игра началась: блоков %d, спасаемых %d, опасных %d, команда %s",
		len(blocks), len(resc.Rescuables), len(haz.Hazards), r.score.Team)
	r.notify()
	return nil
}

// PlayerID ID, выданный сервером
func (r *Relay) PlayerID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playerID
}

// Changes сигнализирует об изменении счёта, жизней или конца игры.
// Несколько изменений подряд сливаются в один сигнал.
func (r *Relay) Changes() <-chan struct{} {
	return r.changes
}

func (r *Relay) notify() {
	select {
	case r.changes <- struct{}{}:
	default:
	}
}

// Step один такт локальной симуляции
func (r *Relay) Step(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready || r.done {
		return
	}

	a := r.avatar
	a.Intent = r.opts.Intents.Intent()
	if a.Alive() {
		r.gates.Handle(r.gateCtx, a, r.blocks, now)
	}

	// урон от опасных считается каждым клиентом сам
	for _, h := range r.hazards.All() {
		if a.Alive() && !a.Invincible && a.Overlaps(h) {
			a.Damage(1)
			r.score.Add(-HazardPenalty)
			r.notify()
		}
		h.Update(r.eng, r.blocks)
	}

	for _, s := range r.rescuables.All() {
		if a.Alive() && !a.Invincible && !s.Saved && a.Overlaps(s) {
			s.Saved = true
			r.rescuables.Remove(s.ID)
			r.pending = append(r.pending, s.RescuablePacket())
			r.score.Add(RescueReward)
			r.notify()
			continue
		}
		s.Update(r.eng, r.blocks)
	}

	if a.Alive() {
		a.Update(r.eng, r.blocks)
	}

	if a.Invincible && now.Sub(r.respawnedAt) > InvincibleFor {
		a.Invincible = false
	}

	r.checkStatus(now)

	// погибшие отражения больше не нужны
	r.others.RemoveIf(func(e *entity.Entity) bool { return !e.Alive() })
}

func (r *Relay) checkStatus(now time.Time) {
	a := r.avatar
	if a.Alive() {
		return
	}
	if r.lives > 0 {
		r.lives--
		a.Health = entity.RespawnHealth
		a.Body.Pos = respawnPos
		a.Body.VelocityY = 0
		a.Invincible = true
		r.respawnedAt = now
		r.logger.Info("💀 Игрок %d погиб, осталось запасных жизней: %d", r.playerID, r.lives)
		r.notify()
		return
	}

	for _, o := range r.others.All() {
		if o.Alive() {
			return
		}
	}
	if !r.gameOver {
		r.gameOver = true
		r.finished = true
		r.logger.Info("☠️ Все игроки погибли")
		r.notify()
	}
}

// Exchange отправляет такт и читает ровно один ответ. Когда игра окончена,
// дополнительно отправляет итоговый счёт и читает ответ на него.
func (r *Relay) Exchange(ctx context.Context) error {
	r.mu.Lock()
	if !r.ready {
		r.mu.Unlock()
		return ErrNotReady
	}
	env := protocol.TickEnvelope{Avatar: r.avatar.AvatarPacket(), Saved: r.pending}
	r.pending = nil
	r.mu.Unlock()

	snap, err := r.roundTrip(ctx, env)
	if err != nil {
		return err
	}
	r.apply(snap)

	r.mu.Lock()
	sendScore := r.finished && !r.scoreSent && !r.done
	var final protocol.FinalScore
	if sendScore {
		r.scoreSent = true
		res := r.score.Result()
		final = protocol.FinalScore{Name: res.Name, Team: res.Team, Total: res.Total}
	}
	r.mu.Unlock()

	if !sendScore {
		return nil
	}
	r.logger.Info("📨 Отправляем итог: %d", final.Total)
	snap, err = r.roundTrip(ctx, final)
	if err != nil {
		return err
	}
	r.apply(snap)
	return nil
}

func (r *Relay) roundTrip(ctx context.Context, msg protocol.Payload) (protocol.Snapshot, error) {
	stop := context.AfterFunc(ctx, func() { r.conn.Close() })
	defer stop()

	if err := r.codec.Write(msg); err != nil {
		return protocol.Snapshot{}, err
	}
	return protocol.Expect[protocol.Snapshot](r.codec)
}

// apply сверяет локальные отражения с ответом сервера
func (r *Relay) apply(snap protocol.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range snap.Avatars {
		if p.PlayerID == r.playerID {
			continue
		}
		m, _ := r.others.Upsert(p.PlayerID, func() *entity.Entity { return entity.NewAvatarMirror(p) })
		m.ApplyAvatar(p)
	}

	for _, p := range snap.Saved {
		if s, ok := r.rescuables.Get(p.ID); ok && p.Saved {
			s.Saved = true
			r.rescuables.Remove(p.ID)
		}
	}

	if snap.Finished && !r.finished {
		r.finished = true
		r.logger.Info("🏁 Все спасаемые спасены")
		r.notify()
	}

	if snap.Leaderboard != nil && !r.done {
		r.leaderboard = scores.Leaderboard(snap.Leaderboard).Clone()
		r.done = true
		r.persistLeaderboard()
		r.notify()
	}
}

func (r *Relay) persistLeaderboard() {
	if r.opts.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.opts.Store.Save(ctx, storage.ModeServerCoop, r.leaderboard); err != nil {
		r.logger.Error("Не удалось сохранить таблицу рекордов: %v", err)
		return
	}
	r.logger.Info("🏆 Таблица рекордов сохранена (%d записей)", len(r.leaderboard))
}

// Done true после получения таблицы рекордов
func (r *Relay) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Leaderboard таблица, присланная сервером, или nil
func (r *Relay) Leaderboard() scores.Leaderboard {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.leaderboard == nil {
		return nil
	}
	return r.leaderboard.Clone()
}

// Run крутит симуляцию с частотой TickRate и обмен раз в SendInterval,
// пока не придёт таблица рекордов, не отменится ctx или не случится ошибка.
func (r *Relay) Run(ctx context.Context) error {
	if !r.ready {
		return ErrNotReady
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.mu.Lock()
	r.gateCtx = ctx
	r.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Second / time.Duration(r.opts.TickRate))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				r.Step(now)
			}
		}
	}()

	err := r.exchangeLoop(ctx)
	cancel()
	wg.Wait()
	return err
}

func (r *Relay) exchangeLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.SendInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Exchange(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("exchange: %w", err)
			}
			if r.Done() {
				r.logger.Info("✅ Сессия завершена")
				return nil
			}
		}
	}
}

// Summary строка состояния игрока
func (r *Relay) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summaryLocked()
}

func (r *Relay) summaryLocked() Summary {
	s := Summary{Name: r.opts.Name, Finished: r.finished, GameOver: r.gameOver, LivesLeft: r.lives}
	if r.avatar != nil && r.avatar.Alive() {
		s.LivesLeft++
	}
	if r.score != nil {
		s.Team = r.score.Team
		s.Score = r.score.Total()
	}
	return s
}

// View срез мира для отображения
func (r *Relay) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := View{PlayerID: r.playerID, Summary: r.summaryLocked()}
	if !r.ready {
		return v
	}
	v.Avatar = r.avatar.AvatarPacket()
	v.Invincible = r.avatar.Invincible
	for _, o := range r.others.All() {
		v.Others = append(v.Others, o.AvatarPacket())
	}
	for _, h := range r.hazards.All() {
		v.Hazards = append(v.Hazards, h.HazardPacket())
	}
	for _, s := range r.rescuables.All() {
		v.Rescuables = append(v.Rescuables, s.RescuablePacket())
	}
	return v
}
