package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/annel0/spacebobble/internal/config"
	"github.com/annel0/spacebobble/internal/scores"
)

// Mode режим игры. У каждого режима своя таблица рекордов.
type Mode string

const (
	ModeSolo       Mode = "solo"
	ModeVersus     Mode = "versus"
	ModeLocalCoop  Mode = "local-coop"
	ModeServerCoop Mode = "server-coop"
)

var (
	// ErrNotFound возвращается, когда режим не известен хранилищу
	ErrNotFound = errors.New("storage: not found")
	// ErrClosed возвращается при обращении к закрытому хранилищу
	ErrClosed = errors.New("storage: closed")
)

// Modes все режимы в порядке меню
func Modes() []Mode {
	return []Mode{ModeSolo, ModeVersus, ModeLocalCoop, ModeServerCoop}
}

// ParseMode разбирает имя режима без учёта регистра
func ParseMode(name string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Modes() {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: mode %q", ErrNotFound, name)
}

// FileName имя файла таблицы рекордов режима
func (m Mode) FileName() string {
	return "leaderboard_" + string(m) + ".json"
}

// LeaderboardStore хранилище таблиц рекордов.
//
// Load для режима без записей возвращает пустую таблицу и nil.
// Save заменяет таблицу режима целиком.
// Put записывает одну строку, не трогая остальные.
type LeaderboardStore interface {
	Load(ctx context.Context, mode Mode) (scores.Leaderboard, error)
	Save(ctx context.Context, mode Mode, board scores.Leaderboard) error
	// Put хранит лучший счёт имени: меньший результат прежний не затирает
	Put(ctx context.Context, mode Mode, name string, score int) error
	Reset(ctx context.Context, mode Mode) error
	Close() error
}

// Open создаёт хранилище по конфигурации
func Open(cfg config.LeaderboardConfig) (LeaderboardStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "file":
		return NewFileStore(cfg.Dir)
	case "memory":
		return NewMemoryStore(), nil
	case "badger":
		return NewBadgerStore(cfg.Badger.Path)
	case "redis":
		return NewRedisStore(cfg.Redis)
	case "maria", "mysql":
		return NewMariaStore(cfg.Maria.DSN)
	case "mongo", "mongodb":
		return NewMongoStore(cfg.Mongo)
	default:
		return nil, fmt.Errorf("неизвестный бэкенд таблицы рекордов: %q", cfg.Backend)
	}
}

func validate(mode Mode, name string) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	if name == "" {
		return errors.New("пустое имя в таблице рекордов")
	}
	return nil
}
