package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/spacebobble/internal/client"
	"github.com/annel0/spacebobble/internal/config"
	"github.com/annel0/spacebobble/internal/game"
	"github.com/annel0/spacebobble/internal/logging"
	"github.com/annel0/spacebobble/internal/storage"
)

// Локальная игра без экрана: игроками управляют скрипты блуждания со стрельбой.
// Итог записывается в таблицу рекордов режима.
func main() {
	var (
		configPath = flag.String("config", "", "путь к YAML конфигурации")
		modeName   = flag.String("mode", "solo", "solo | versus | local-coop")
		name       = flag.String("name", "bot", "имя в таблице рекордов")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "сид")
		limit      = flag.Duration("limit", 5*time.Minute, "максимальная длительность партии")
	)
	flag.Parse()

	if err := config.LoadEnv(); err != nil {
		log.Fatalf("❌ %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	mode, err := game.ParseMode(*modeName)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	if err := logging.InitDefaultLogger("local"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *limit)
	defer cancel()

	if err := run(ctx, cfg, mode, *name, *seed); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, mode game.Mode, name string, seed int64) error {
	store, err := storage.Open(cfg.Leaderboard)
	if err != nil {
		return err
	}
	defer store.Close()

	w, err := game.NewLocalWorld(mode, rand.New(rand.NewSource(seed)))
	if err != nil {
		return err
	}
	defer w.Close()
	w.SetName(name)

	// один скрипт на каждого управляющего: аватары и, в versus, существо
	players := mode.Avatars()
	if mode == game.Versus {
		players = 2
	}
	scripts := make([]*client.Wanderer, players)
	for i := range scripts {
		scripts[i] = client.NewWanderer(seed + int64(i))
	}
	rng := rand.New(rand.NewSource(seed ^ 0x5bd1e995))

	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for i, s := range scripts {
					_ = w.SetInput(i, game.Input{Intent: s.Intent(), Fire: rng.Intn(3) == 0})
				}
			case <-w.Changes():
				logging.Debug("📊 %s: счёт %d, жизней %d", w.Level(), w.Score().Total, w.Lives(0))
			}
		}
	}()

	err = w.Run(ctx, cfg.Client.TickRate)
	res := w.Score()
	switch {
	case w.Finished():
		logging.Info("🏁 Все уровни пройдены! Счёт %d", res.Total)
	case w.GameOver():
		logging.Info("☠️ Игра окончена на уровне %s. Счёт %d", w.Level(), res.Total)
	default:
		logging.Info("⏹ Партия прервана на уровне %s. Счёт %d", w.Level(), res.Total)
	}
	if err != nil && ctx.Err() == nil {
		return err
	}

	boardMode, err := storage.ParseMode(mode.String())
	if err != nil {
		return err
	}
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Put(saveCtx, boardMode, res.Name, res.Total); err != nil {
		return err
	}
	logging.Info("🏆 %s = %d записан в таблицу %s", res.Name, res.Total, boardMode)
	return nil
}
