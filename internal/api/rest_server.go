package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/annel0/spacebobble/internal/auth"
	"github.com/annel0/spacebobble/internal/eventbus"
	"github.com/annel0/spacebobble/internal/logging"
	"github.com/annel0/spacebobble/internal/middleware"
	"github.com/annel0/spacebobble/internal/scores"
	"github.com/annel0/spacebobble/internal/session"
	"github.com/annel0/spacebobble/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const requestTimeout = 3 * time.Second

// SessionStats источник состояния текущей сессии
type SessionStats interface {
	Stats(ctx context.Context) (session.Stats, error)
}

// RestServer представляет REST API сервер
type RestServer struct {
	router    *gin.Engine
	http      *http.Server
	session   SessionStats
	store     storage.LeaderboardStore
	issuer    *auth.Issuer
	adminHash string
	cache     *LeaderboardCache
	metrics   *ServerMetrics
	logger    *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Addr              string                   // адрес для запуска сервера
	Session           SessionStats             // координатор сессии
	Store             storage.LeaderboardStore // таблицы рекордов
	Bus               eventbus.EventBus        // для сброса кэша, может быть nil
	Issuer            *auth.Issuer             // токены администратора
	AdminPasswordHash string                   // bcrypt, пусто = вход администратора выключен
	CacheTTL          time.Duration
	Registerer        prometheus.Registerer
	Gatherer          prometheus.Gatherer
}

// NewRestServer создает новый REST API сервер
func NewRestServer(cfg Config) (*RestServer, error) {
	if cfg.Addr == "" {
		cfg.Addr = ":8088"
	}
	if cfg.Store == nil {
		return nil, errors.New("api: leaderboard store is required")
	}
	if cfg.Issuer == nil {
		iss, err := auth.NewIssuer("", time.Hour)
		if err != nil {
			return nil, err
		}
		cfg.Issuer = iss
	}

	cache, err := NewLeaderboardCache(cfg.CacheTTL)
	if err != nil {
		return nil, err
	}
	if cfg.Bus != nil {
		if err := cache.Follow(context.Background(), cfg.Bus); err != nil {
			cache.Close()
			return nil, err
		}
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	router.Use(middleware.NewRequestLogger().Handler())
	router.Use(otelgin.Middleware("rest_api"))

	promMw := middleware.NewPrometheusMiddleware("rest_api", cfg.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, cfg.Gatherer)

	rs := &RestServer{
		router:    router,
		session:   cfg.Session,
		store:     cfg.Store,
		issuer:    cfg.Issuer,
		adminHash: cfg.AdminPasswordHash,
		cache:     cache,
		metrics:   NewServerMetrics(),
		logger:    logging.GetAPILogger(),
	}
	rs.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	rs.setupRoutes()
	return rs, nil
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	api := rs.router.Group("/api")
	{
		api.GET("/session", rs.handleSession)
		api.GET("/leaderboard/:mode", rs.handleLeaderboard)
	}

	admin := api.Group("/admin")
	admin.POST("/login", rs.handleLogin)

	protected := admin.Group("/")
	protected.Use(rs.jwtMiddleware(), rs.adminMiddleware())
	{
		protected.DELETE("/leaderboard/:mode", rs.handleResetLeaderboard)
	}

	rs.router.GET("/health", rs.handleHealth)
}

// Handler маршрутизатор, для тестов и встраивания
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// LoginRequest представляет запрос на вход
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// LoginResponse представляет ответ на вход
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// LeaderboardResponse таблица рекордов режима по убыванию счёта
type LeaderboardResponse struct {
	Mode    storage.Mode   `json:"mode"`
	Entries []scores.Entry `json:"entries"`
	Cached  bool           `json:"cached"`
}

// handleLogin выдаёт токен администратора по паролю
func (rs *RestServer) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, LoginResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	if rs.adminHash == "" {
		c.JSON(http.StatusServiceUnavailable, LoginResponse{
			Success: false,
			Message: "Вход администратора не настроен",
		})
		return
	}

	if !auth.CheckPassword(rs.adminHash, req.Password) {
		rs.logger.Warn("Неудачная попытка входа администратора с %s", c.ClientIP())
		c.JSON(http.StatusUnauthorized, LoginResponse{
			Success: false,
			Message: "Неверный пароль",
		})
		return
	}

	token, err := rs.issuer.Issue("admin", true)
	if err != nil {
		rs.logger.Error("Ошибка генерации токена: %v", err)
		c.JSON(http.StatusInternalServerError, LoginResponse{
			Success: false,
			Message: "Внутренняя ошибка сервера",
		})
		return
	}

	rs.logger.Info("🔑 Администратор вошёл с %s", c.ClientIP())
	c.JSON(http.StatusOK, LoginResponse{
		Success: true,
		Token:   token,
		Message: "Вход выполнен",
	})
}

// handleSession возвращает состояние сессии и метрики процесса
func (rs *RestServer) handleSession(c *gin.Context) {
	data := gin.H{"process": rs.metrics.Snapshot()}

	if rs.session != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		st, err := rs.session.Stats(ctx)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, GenericResponse{
				Success: false,
				Message: "Сессия недоступна: " + err.Error(),
			})
			return
		}
		data["session"] = st
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Состояние сессии",
		Data:    data,
	})
}

// handleLeaderboard возвращает таблицу рекордов режима
func (rs *RestServer) handleLeaderboard(c *gin.Context) {
	mode, err := storage.ParseMode(c.Param("mode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неизвестный режим",
		})
		return
	}

	if entries, ok := rs.cache.Get(mode); ok {
		c.JSON(http.StatusOK, GenericResponse{
			Success: true,
			Message: "Таблица рекордов",
			Data:    LeaderboardResponse{Mode: mode, Entries: entries, Cached: true},
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	board, err := rs.store.Load(ctx, mode)
	if err != nil {
		rs.logger.Error("Ошибка чтения таблицы %s: %v", mode, err)
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка чтения таблицы рекордов",
		})
		return
	}

	entries := board.Ranked()
	rs.cache.Set(mode, entries)

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Таблица рекордов",
		Data:    LeaderboardResponse{Mode: mode, Entries: entries},
	})
}

// handleResetLeaderboard очищает таблицу рекордов режима
func (rs *RestServer) handleResetLeaderboard(c *gin.Context) {
	mode, err := storage.ParseMode(c.Param("mode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неизвестный режим",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := rs.store.Reset(ctx, mode); err != nil {
		rs.logger.Error("Ошибка очистки таблицы %s: %v", mode, err)
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка очистки таблицы рекордов",
		})
		return
	}
	rs.cache.Invalidate(mode)

	rs.logger.Info("🧹 Таблица рекордов %s очищена", mode)
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Таблица рекордов очищена",
	})
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// Start запускает REST сервер и блокируется до Stop
func (rs *RestServer) Start() error {
	rs.logger.Info("🌐 REST API слушает %s", rs.http.Addr)
	if err := rs.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop дожидается завершения текущих запросов и останавливает сервер
func (rs *RestServer) Stop(ctx context.Context) error {
	defer rs.cache.Close()
	return rs.http.Shutdown(ctx)
}
