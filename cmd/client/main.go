package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/spacebobble/internal/client"
	"github.com/annel0/spacebobble/internal/config"
	"github.com/annel0/spacebobble/internal/logging"
	"github.com/annel0/spacebobble/internal/storage"
)

// Консольный клиент кооператива: аватаром управляет скрипт блуждания.
// Полезен для нагрузочных прогонов сервера.
func main() {
	var (
		configPath = flag.String("config", "", "путь к YAML конфигурации")
		addr       = flag.String("addr", "", "адрес сервера (перекрывает client.server_addr)")
		name       = flag.String("name", "", "имя игрока (перекрывает client.name)")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "сид скрипта движения")
	)
	flag.Parse()

	if err := config.LoadEnv(); err != nil {
		log.Fatalf("❌ %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	if *addr != "" {
		cfg.Client.ServerAddr = *addr
	}
	if *name != "" {
		cfg.Client.Name = *name
	}

	if err := logging.InitDefaultLogger("client"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *seed); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, seed int64) error {
	// таблица сохраняется локально, как её прислал сервер
	store, err := storage.NewFileStore(cfg.Leaderboard.Dir)
	if err != nil {
		return err
	}
	defer store.Close()

	logging.Info("🔌 Подключение к %s (%s) как %s...", cfg.Client.ServerAddr, cfg.Client.Transport, cfg.Client.Name)
	relay, err := client.Connect(ctx, cfg.Client.Transport, cfg.Client.ServerAddr, client.Options{
		Name:         cfg.Client.Name,
		Intents:      client.NewWanderer(seed),
		Store:        store,
		TickRate:     cfg.Client.TickRate,
		SendInterval: cfg.Client.SendInterval,
	})
	if err != nil {
		return err
	}
	defer relay.Close()

	// строка состояния обновляется по сигналам клиента
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-relay.Changes():
				logging.Info("📊 %s", relay.Summary())
			}
		}
	}()

	if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	if board := relay.Leaderboard(); board != nil {
		logging.Info("🏆 Таблица рекордов:")
		for i, e := range board.Ranked() {
			logging.Info("   %d. %s: %d", i+1, e.Name, e.Score)
		}
	}
	return nil
}
