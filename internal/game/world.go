package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/annel0/spacebobble/internal/logging"
	"github.com/annel0/spacebobble/internal/physics"
	"github.com/annel0/spacebobble/internal/scores"
	"github.com/annel0/spacebobble/internal/vec"
	"github.com/annel0/spacebobble/internal/world"
	"github.com/annel0/spacebobble/internal/world/entity"
)

// Правила локальной игры
const (
	HazardKillReward   = 1000
	RescueReward       = 1000
	HazardHitPenalty   = 500
	SpareLives         = 2
	InvincibleFor      = 2 * time.Second
	ProjectileCooldown = 100 * time.Millisecond
	spawnLines         = 6
)

var (
	avatarSpawn   = vec.Vec2Float{X: 150, Y: 150}
	avatarRespawn = vec.Vec2Float{X: 300, Y: 50}
	spawnColumns  = [2]float64{50, 980}
)

// Ограничения количества существ по уровням
var (
	hazardCaps    = map[world.Difficulty]int{world.Easy: 5, world.Medium: 10, world.Hard: 15}
	rescuableCaps = map[world.Difficulty]int{world.Easy: 4, world.Medium: 6, world.Hard: 8}
)

var ErrNoSuchPlayer = errors.New("game: no such player")

// LevelLoader возвращает блоки уровня по сложности
type LevelLoader func(world.Difficulty) ([]world.Block, error)

// Input команды одного игрока на такт
type Input struct {
	Intent entity.Intent
	Fire   bool
}

type player struct {
	avatar      *entity.Entity
	gates       *entity.GateOpener
	input       Input
	lives       int
	respawnedAt time.Time
	facingLeft  bool
	lastShot    time.Time
}

// LocalWorld офлайн-игра одного компьютера: уровни EASY→MEDIUM→HARD,
// опасные существа появляются постоянно, спасаемые только при загрузке уровня.
// Все методы безопасны для вызова из разных горутин.
type LocalWorld struct {
	mode   Mode
	rng    *rand.Rand
	eng    *physics.Engine
	load   LevelLoader
	logger *logging.Logger

	ctx    context.Context // для открытия люков
	cancel context.CancelFunc

	changes chan struct{}

	mu          sync.Mutex
	level       world.Difficulty
	blocks      []world.Block
	players     []*player
	controller  Input // второй игрок в режиме Versus
	hazards     *entity.Registry
	rescuables  *entity.Registry
	projectiles *entity.Registry
	selector    *entity.RedirectSelector
	score       *scores.Score
	nextID      int
	finished    bool
	gameOver    bool
	ticks       uint64
}

// NewLocalWorld создаёт игру на уровне EASY со встроенными уровнями
func NewLocalWorld(mode Mode, rng *rand.Rand) (*LocalWorld, error) {
	return NewLocalWorldWithLoader(mode, rng, world.LoadLevel)
}

// NewLocalWorldWithLoader как NewLocalWorld, но уровни берутся из load
func NewLocalWorldWithLoader(mode Mode, rng *rand.Rand, load LevelLoader) (*LocalWorld, error) {
	if mode < Solo || mode > LocalCoop {
		return nil, fmt.Errorf("неизвестный режим игры %d", int(mode))
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	ctx, cancel := context.WithCancel(context.Background())

	w := &LocalWorld{
		mode:        mode,
		rng:         rng,
		eng:         physics.NewEngine(),
		load:        load,
		logger:      logging.GetComponentLogger("game"),
		ctx:         ctx,
		cancel:      cancel,
		changes:     make(chan struct{}, 1),
		level:       world.Easy,
		hazards:     entity.NewRegistry(),
		rescuables:  entity.NewRegistry(),
		projectiles: entity.NewRegistry(),
		selector:    entity.NewRedirectSelector(rng),
		score:       scores.NewScore("", scores.TeamRed),
	}
	for i := 0; i < mode.Avatars(); i++ {
		w.players = append(w.players, &player{gates: entity.NewGateOpener(), lives: SpareLives})
	}

	if err := w.loadLevel(); err != nil {
		cancel()
		return nil, err
	}
	w.logger.Info("🎮 Локальная игра %s, уровень %s", mode, w.level)
	return w, nil
}

// Close отменяет ожидающие открытия люков
func (w *LocalWorld) Close() {
	w.cancel()
}

// SetName имя игрока для таблицы рекордов
func (w *LocalWorld) SetName(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.score.Name = name
}

// SetInput задаёт команды игрока с номером idx (с нуля). В режиме Versus
// idx=1 управляет выбранным опасным существом.
func (w *LocalWorld) SetInput(idx int, in Input) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.mode == Versus && idx == 1 {
		w.controller = in
		return nil
	}
	if idx < 0 || idx >= len(w.players) {
		return fmt.Errorf("%w: %d", ErrNoSuchPlayer, idx)
	}
	w.players[idx].input = in
	return nil
}

// Changes сигнализирует об изменении счёта, жизней, уровня или конце игры
func (w *LocalWorld) Changes() <-chan struct{} {
	return w.changes
}

func (w *LocalWorld) notify() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

func (w *LocalWorld) genID() int {
	w.nextID++
	return w.nextID
}

// loadLevel сбрасывает существ и ставит аватары в начальную точку
func (w *LocalWorld) loadLevel() error {
	blocks, err := w.load(w.level)
	if err != nil {
		return fmt.Errorf("уровень %s: %w", w.level, err)
	}
	w.blocks = blocks
	w.hazards.Clear()
	w.rescuables.Clear()
	w.projectiles.Clear()

	for i, p := range w.players {
		pos := avatarSpawn
		pos.X += float64(i) * 50
		p.avatar = entity.NewAvatar(i+1, pos)
	}

	for w.rescuables.Len() < rescuableCaps[w.level] {
		pos, left := w.spawnPoint()
		w.rescuables.Add(entity.NewRescuable(w.genID(), pos, left))
	}
	return nil
}

// spawnPoint случайная точка у левой или правой стены на одной из шести линий
func (w *LocalWorld) spawnPoint() (vec.Vec2Float, bool) {
	line := w.rng.Intn(spawnLines) + 1
	col := w.rng.Intn(len(spawnColumns))
	return vec.Vec2Float{X: spawnColumns[col], Y: float64(100 + (line-1)*100)}, col == 1
}

func (w *LocalWorld) spawnHazards() {
	for w.hazards.Len() < hazardCaps[w.level] {
		pos, left := w.spawnPoint()
		w.hazards.Add(entity.NewHazard(w.genID(), pos, left))
	}
}

// Update один такт игры
func (w *LocalWorld) Update(now time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finished || w.gameOver {
		return nil
	}
	w.ticks++

	w.spawnHazards()
	w.moveEntities(now)
	w.saveRescuables()
	w.hazardCollisions()
	if w.mode == Versus {
		w.selector.Select(w.hazards.All())
	}
	w.fire(now)
	w.checkLives(now)
	w.updateProjectiles()
	w.collectDead()
	return w.nextLevel()
}

func (w *LocalWorld) moveEntities(now time.Time) {
	for _, p := range w.players {
		a := p.avatar
		if !a.Alive() {
			continue
		}
		a.Intent = p.input.Intent
		switch {
		case a.Intent.Has(entity.IntentLeft):
			p.facingLeft = true
		case a.Intent.Has(entity.IntentRight):
			p.facingLeft = false
		}
		p.gates.Handle(w.ctx, a, w.blocks, now)
		a.Update(w.eng, w.blocks)
	}

	for _, h := range w.hazards.All() {
		if h.Redirected {
			h.Intent = w.controller.Intent
		}
		h.Update(w.eng, w.blocks)
	}
	for _, s := range w.rescuables.All() {
		s.Update(w.eng, w.blocks)
	}
}

func (w *LocalWorld) saveRescuables() {
	for _, s := range w.rescuables.All() {
		for _, p := range w.players {
			if p.avatar.Alive() && s.Alive() && s.Overlaps(p.avatar) {
				s.Saved = true
				s.Health = 0
				w.score.Add(RescueReward)
				w.notify()
			}
		}
	}
}

func (w *LocalWorld) hazardCollisions() {
	for _, p := range w.players {
		a := p.avatar
		if !a.Alive() || a.Invincible {
			continue
		}
		for _, h := range w.hazards.All() {
			if h.Alive() && a.Overlaps(h) {
				a.Damage(1)
				w.score.Add(-HazardHitPenalty)
				w.notify()
			}
		}
	}
}

// fire выпускает снаряд из аватара не чаще ProjectileCooldown
func (w *LocalWorld) fire(now time.Time) {
	for _, p := range w.players {
		a := p.avatar
		if !p.input.Fire || !a.Alive() {
			continue
		}
		if !p.lastShot.IsZero() && now.Sub(p.lastShot) < ProjectileCooldown {
			continue
		}
		p.lastShot = now

		pos := vec.Vec2Float{X: a.Body.Pos.X + a.Body.Size.X, Y: a.Body.Pos.Y + a.Body.Size.Y/2}
		if p.facingLeft {
			pos.X = a.Body.Pos.X - a.Body.Size.X + 5
		}
		w.projectiles.Add(entity.NewProjectile(w.genID(), pos, p.facingLeft))
	}
}

func (w *LocalWorld) checkLives(now time.Time) {
	for _, p := range w.players {
		a := p.avatar
		if !a.Alive() && p.lives > 0 {
			p.lives--
			a.Health = entity.RespawnHealth
			a.Body.Pos = avatarRespawn
			a.Body.VelocityY = 0
			a.Invincible = true
			p.respawnedAt = now
			w.logger.Debug("Аватар %d возрождён, запасных жизней %d", a.ID, p.lives)
			w.notify()
		}
		if a.Invincible && now.Sub(p.respawnedAt) > InvincibleFor {
			a.Invincible = false
		}
	}

	for _, p := range w.players {
		if p.avatar.Alive() || p.lives > 0 {
			return
		}
	}
	w.gameOver = true
	w.logger.Info("☠️ Игра окончена на уровне %s, счёт %d", w.level, w.score.Total())
	w.notify()
}

// updateProjectiles двигает снаряды; снаряд исчезает о стену, о существо
// (снимая ему единицу здоровья) или об аватар
func (w *LocalWorld) updateProjectiles() {
	for _, pr := range w.projectiles.All() {
		if res := pr.Update(w.eng, w.blocks); res.HitWall {
			w.projectiles.Remove(pr.ID)
			continue
		}
		for _, h := range w.hazards.All() {
			if h.Alive() && pr.Overlaps(h) {
				h.Damage(1)
				pr.Health = 0
			}
		}
		for _, p := range w.players {
			if p.avatar.Alive() && pr.Overlaps(p.avatar) {
				pr.Health = 0
			}
		}
		if !pr.Alive() {
			w.projectiles.Remove(pr.ID)
		}
	}
}

func (w *LocalWorld) collectDead() {
	killed := w.hazards.RemoveIf(func(e *entity.Entity) bool { return !e.Alive() })
	if len(killed) > 0 {
		w.score.Add(HazardKillReward * len(killed))
		w.notify()
	}
	w.rescuables.RemoveIf(func(e *entity.Entity) bool { return !e.Alive() })
}

// nextLevel переходит на следующий уровень, когда спасать больше некого
func (w *LocalWorld) nextLevel() error {
	if w.rescuables.Len() > 0 {
		return nil
	}
	next, ok := w.level.Next()
	if !ok {
		w.finished = true
		w.logger.Info("🏁 Все уровни пройдены, счёт %d", w.score.Total())
		w.notify()
		return nil
	}
	w.level = next
	w.logger.Info("⬆️ Уровень %s", w.level)
	w.notify()
	return w.loadLevel()
}

// Run крутит Update с частотой rate, пока игра не закончится или не отменится ctx
func (w *LocalWorld) Run(ctx context.Context, rate int) error {
	if rate <= 0 {
		rate = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := w.Update(now); err != nil {
				return err
			}
			if w.Finished() || w.GameOver() {
				return nil
			}
		}
	}
}

// Avatar первый аватар
func (w *LocalWorld) Avatar() entity.Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.players[0].avatar
}

// Avatars копии всех аватаров
func (w *LocalWorld) Avatars() []entity.Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]entity.Entity, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, *p.avatar)
	}
	return out
}

// Hazards копии живых опасных существ в порядке ID
func (w *LocalWorld) Hazards() []entity.Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	return copyAll(w.hazards)
}

// Rescuables копии оставшихся спасаемых
func (w *LocalWorld) Rescuables() []entity.Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	return copyAll(w.rescuables)
}

// Projectiles копии летящих снарядов
func (w *LocalWorld) Projectiles() []entity.Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	return copyAll(w.projectiles)
}

func copyAll(r *entity.Registry) []entity.Entity {
	all := r.All()
	out := make([]entity.Entity, 0, len(all))
	for _, e := range all {
		out = append(out, *e)
	}
	return out
}

// Blocks блоки текущего уровня
func (w *LocalWorld) Blocks() []world.Block {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.blocks
}

// Score итог игрока на текущий момент
func (w *LocalWorld) Score() scores.Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.score.Result()
}

// Lives запасные жизни игрока idx
func (w *LocalWorld) Lives(idx int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if idx < 0 || idx >= len(w.players) {
		return 0
	}
	return w.players[idx].lives
}

// Level текущий уровень
func (w *LocalWorld) Level() world.Difficulty {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.level
}

// Mode режим игры
func (w *LocalWorld) Mode() Mode { return w.mode }

// Finished true после прохождения HARD
func (w *LocalWorld) Finished() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.finished
}

// GameOver true, когда у всех аватаров кончились жизни
func (w *LocalWorld) GameOver() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gameOver
}
