package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/spacebobble/internal/api"
	"github.com/annel0/spacebobble/internal/auth"
	"github.com/annel0/spacebobble/internal/config"
	"github.com/annel0/spacebobble/internal/eventbus"
	"github.com/annel0/spacebobble/internal/logging"
	"github.com/annel0/spacebobble/internal/network"
	"github.com/annel0/spacebobble/internal/observability"
	"github.com/annel0/spacebobble/internal/session"
	"github.com/annel0/spacebobble/internal/storage"
	"github.com/annel0/spacebobble/internal/world"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию GAME_CONFIG)")
	flag.Parse()

	if err := config.LoadEnv(); err != nil {
		log.Fatalf("❌ %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	logging.Configure(logging.Options{
		Dir:          cfg.Logging.Dir,
		ConsoleLevel: logging.ParseLevel(cfg.Logging.ConsoleLevel),
		FileLevel:    logging.ParseLevel(cfg.Logging.FileLevel),
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
	})
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	logging.Info("🎮 Запуск Space Bobble сервера...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

func run(ctx context.Context, cfg *config.Config) error {
	// === ТЕЛЕМЕТРИЯ ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logging.Warn("Ошибка остановки телеметрии: %v", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// === ШИНА СОБЫТИЙ ===
	var bus eventbus.EventBus
	if cfg.EventBus.URL != "" {
		js, err := eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream, time.Duration(cfg.EventBus.Retention)*time.Hour)
		if err != nil {
			return err
		}
		logging.Info("📨 JetStream %s, стрим %s", cfg.EventBus.URL, cfg.EventBus.Stream)
		bus = js
	} else {
		bus = eventbus.NewMemoryBus(1024)
		logging.Debug("Шина событий в памяти")
	}
	defer bus.Close()
	eventbus.Init(bus)
	defer eventbus.Init(nil)

	if _, err := eventbus.StartLoggingListener(bus); err != nil {
		return err
	}
	busMetrics := eventbus.NewMetricsExporter(bus, reg)
	busMetrics.Start(10 * time.Second)
	defer busMetrics.Stop()

	// === ТАБЛИЦЫ РЕКОРДОВ ===
	store, err := storage.Open(cfg.Leaderboard)
	if err != nil {
		return err
	}
	defer store.Close()
	logging.Info("🏆 Хранилище таблиц рекордов: %s", cfg.Leaderboard.Backend)

	// === СЕССИЯ ===
	layout, err := world.DefaultLayout(world.Difficulty(cfg.Session.Level))
	if err != nil {
		return err
	}
	coord := session.NewCoordinator(session.Options{
		MinPlayers:   cfg.Session.MinPlayers,
		StartTimeout: cfg.Session.StartTimeout,
		Layout:       layout,
		Store:        store,
		Mode:         storage.ModeServerCoop,
		Source:       "game-server", // события уходят в шину процесса из eventbus.Init
	})
	coordDone := make(chan error, 1)
	go func() { coordDone <- coord.Run(ctx) }()

	// === ИГРОВОЙ СЕРВЕР ===
	gameServer, err := network.NewGameServer(network.ServerOptions{
		Transport:         cfg.Server.Transport,
		Addr:              cfg.Server.GameAddr(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		DiagnosticsEvery:  cfg.Server.DiagnosticsEvery,
		CompressThreshold: cfg.Server.CompressThreshold,
		Metrics:           network.NewMetrics(reg),
	}, coord)
	if err != nil {
		return err
	}
	gameServer.Start()
	defer gameServer.Stop()

	// === REST API ===
	var rest *api.RestServer
	restErr := make(chan error, 1)
	if cfg.API.Enabled {
		issuer, err := auth.NewIssuer(cfg.API.GetJWTSecret(), cfg.API.TokenTTL)
		if err != nil {
			return err
		}
		gin.SetMode(gin.ReleaseMode)
		rest, err = api.NewRestServer(api.Config{
			Addr:              cfg.Server.RESTAddr(),
			Session:           coord,
			Store:             store,
			Bus:               bus,
			Issuer:            issuer,
			AdminPasswordHash: cfg.API.GetAdminPasswordHash(),
			CacheTTL:          cfg.API.CacheTTL,
			Registerer:        reg,
			Gatherer:          reg,
		})
		if err != nil {
			return err
		}
		go func() { restErr <- rest.Start() }()
	}

	logging.Info("✅ Все сервисы запущены и готовы принимать соединения")
	logging.Info("   🎮 Игровой трафик: %s %s, игроков для старта: %d", cfg.Server.Transport, gameServer.Addr(), cfg.Session.MinPlayers)
	if rest != nil {
		logging.Info("   🌐 REST API: http://%s", cfg.Server.RESTAddr())
		logging.Info("   ❤️  Health check: http://%s/health", cfg.Server.RESTAddr())
	}

	select {
	case <-ctx.Done():
		logging.Info("📡 Получен сигнал, завершение работы...")
	case err := <-coordDone:
		if err != nil && ctx.Err() == nil {
			return err
		}
	case err := <-restErr:
		if err != nil {
			return err
		}
	}

	// === GRACEFUL SHUTDOWN ===
	if rest != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rest.Stop(shutdownCtx); err != nil {
			logging.Error("❌ Ошибка остановки REST API: %v", err)
		}
	}
	return nil
}
