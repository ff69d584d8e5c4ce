package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
// Отсутствующие в YAML поля сохраняют значения из Default().
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Session     SessionConfig     `yaml:"session"`
	Client      ClientConfig      `yaml:"client"`
	Leaderboard LeaderboardConfig `yaml:"leaderboard"`
	Logging     LoggingConfig     `yaml:"logging"`
	EventBus    EventBusConfig    `yaml:"eventbus"`
	API         APIConfig         `yaml:"api"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

type ServerConfig struct {
	Transport         string        `yaml:"transport"` // tcp | kcp
	Host              string        `yaml:"host"`
	GamePort          int           `yaml:"game_port"`
	RESTPort          int           `yaml:"rest_port"`
	ReadTimeout       time.Duration `yaml:"read_timeout"` // 0 = без таймаута
	DiagnosticsEvery  time.Duration `yaml:"diagnostics_every"`
	CompressThreshold int           `yaml:"compress_threshold"`
}

type SessionConfig struct {
	MinPlayers   int           `yaml:"min_players"`
	StartTimeout time.Duration `yaml:"start_timeout"` // 0 = ждать бесконечно
	Level        int           `yaml:"level"`
}

type ClientConfig struct {
	ServerAddr   string        `yaml:"server_addr"`
	Transport    string        `yaml:"transport"`
	Name         string        `yaml:"name"`
	TickRate     int           `yaml:"tick_rate"`
	SendInterval time.Duration `yaml:"send_interval"`
}

type LeaderboardConfig struct {
	Backend string       `yaml:"backend"` // file | memory | badger | redis | maria | mongo
	Dir     string       `yaml:"dir"`     // пусто = рядом с исполняемым файлом
	Badger  BadgerConfig `yaml:"badger"`
	Redis   RedisConfig  `yaml:"redis"`
	Maria   MariaConfig  `yaml:"maria"`
	Mongo   MongoConfig  `yaml:"mongo"`
}

type BadgerConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type MariaConfig struct {
	DSN string `yaml:"dsn"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
	MaxSizeMB    int    `yaml:"max_size_mb"`
	MaxBackups   int    `yaml:"max_backups"`
	MaxAgeDays   int    `yaml:"max_age_days"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // пусто = шина в памяти
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type APIConfig struct {
	Enabled           bool          `yaml:"enabled"`
	JWTSecret         string        `yaml:"jwt_secret"`
	AdminPasswordHash string        `yaml:"admin_password_hash"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// Default возвращает конфигурацию со всеми значениями по умолчанию
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Transport:         "tcp",
			DiagnosticsEvery:  5 * time.Second,
			CompressThreshold: 4096,
		},
		Session: SessionConfig{
			MinPlayers: 2,
			Level:      1,
		},
		Client: ClientConfig{
			ServerAddr:   "localhost:6666",
			Transport:    "tcp",
			Name:         "player",
			TickRate:     60,
			SendInterval: 50 * time.Millisecond,
		},
		Leaderboard: LeaderboardConfig{
			Backend: "file",
			Badger:  BadgerConfig{Path: "data/leaderboard"},
			Redis:   RedisConfig{Addr: "localhost:6379", KeyPrefix: "bobble:leaderboard:"},
			Mongo:   MongoConfig{URI: "mongodb://localhost:27017", Database: "bobble"},
		},
		Logging: LoggingConfig{
			Dir:          "logs",
			ConsoleLevel: "info",
			FileLevel:    "trace",
			MaxSizeMB:    20,
			MaxBackups:   5,
			MaxAgeDays:   14,
		},
		EventBus: EventBusConfig{
			Stream:    "BOBBLE",
			Retention: 24,
		},
		API: APIConfig{
			Enabled:  true,
			TokenTTL: time.Hour,
			CacheTTL: 10 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4318",
			ServiceName: "bobble-server",
		},
	}
}

// GetGamePort возвращает игровой порт с поддержкой fallback значений
func (s *ServerConfig) GetGamePort() int {
	return getPortWithEnvFallback(s.GamePort, "GAME_PORT", 6666)
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "GAME_REST_PORT", 8088)
}

// GameAddr возвращает адрес игрового слушателя
func (s *ServerConfig) GameAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.GetGamePort())
}

// RESTAddr возвращает адрес REST API
func (s *ServerConfig) RESTAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.GetRESTPort())
}

// GetJWTSecret возвращает секрет из конфига или GAME_JWT_SECRET
func (a *APIConfig) GetJWTSecret() string {
	if a.JWTSecret != "" {
		return a.JWTSecret
	}
	return os.Getenv("GAME_JWT_SECRET")
}

// GetAdminPasswordHash возвращает bcrypt-хэш пароля администратора из конфига или GAME_ADMIN_HASH
func (a *APIConfig) GetAdminPasswordHash() string {
	if a.AdminPasswordHash != "" {
		return a.AdminPasswordHash
	}
	return os.Getenv("GAME_ADMIN_HASH")
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// LoadEnv подгружает переменные из .env файлов. Отсутствующий файл не ошибка.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("ошибка чтения %s: %w", f, err)
		}
	}
	return nil
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV GAME_CONFIG, иначе возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("GAME_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения конфигурации %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, без которых сервер не сможет стартовать
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case "tcp", "kcp":
	default:
		return fmt.Errorf("неизвестный транспорт %q", c.Server.Transport)
	}
	if c.Session.MinPlayers < 1 {
		return fmt.Errorf("session.min_players должен быть >= 1, получено %d", c.Session.MinPlayers)
	}
	if c.Session.Level < 1 || c.Session.Level > 3 {
		return fmt.Errorf("session.level должен быть 1..3, получено %d", c.Session.Level)
	}
	if c.Client.TickRate <= 0 {
		return fmt.Errorf("client.tick_rate должен быть > 0")
	}
	return nil
}
