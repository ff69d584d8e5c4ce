package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/spacebobble/internal/config"
	"github.com/annel0/spacebobble/internal/logging"
	"github.com/annel0/spacebobble/internal/scores"
	"github.com/go-redis/redis/v8"
)

// RedisStore хранит таблицу режима в sorted set <prefix><mode>:
// member = имя, score = счёт.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore подключается к Redis и проверяет соединение
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "bobble:leaderboard:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.GetStorageLogger().Info("🔴 Connected to Redis at %s", cfg.Addr)
	return &RedisStore{client: client, keyPrefix: cfg.KeyPrefix}, nil
}

func (s *RedisStore) key(mode Mode) string {
	return s.keyPrefix + string(mode)
}

// Load читает sorted set целиком
func (s *RedisStore) Load(ctx context.Context, mode Mode) (scores.Leaderboard, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	members, err := s.client.ZRangeWithScores(ctx, s.key(mode), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}

	board := make(scores.Leaderboard, len(members))
	for _, z := range members {
		name, ok := z.Member.(string)
		if !ok {
			continue
		}
		board.Put(name, int(z.Score))
	}
	return board, nil
}

// Save заменяет sorted set в транзакции MULTI/EXEC
func (s *RedisStore) Save(ctx context.Context, mode Mode, board scores.Leaderboard) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}

	key := s.key(mode)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(board) == 0 {
			return nil
		}
		members := make([]*redis.Z, 0, len(board))
		for _, e := range board.Entries() {
			members = append(members, &redis.Z{Score: float64(e.Score), Member: e.Name})
		}
		pipe.ZAdd(ctx, key, members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save leaderboard: %w", err)
	}
	return nil
}

// Put записывает одну строку. ZADD GT обновляет только больший счёт (Redis 6.2+).
func (s *RedisStore) Put(ctx context.Context, mode Mode, name string, score int) error {
	if err := validate(mode, name); err != nil {
		return err
	}
	args := redis.ZAddArgs{
		GT:      true,
		Members: []redis.Z{{Score: float64(score), Member: name}},
	}
	if err := s.client.ZAddArgs(ctx, s.key(mode), args).Err(); err != nil {
		return fmt.Errorf("failed to put score: %w", err)
	}
	return nil
}

// Reset удаляет ключ режима
func (s *RedisStore) Reset(ctx context.Context, mode Mode) error {
	return s.client.Del(ctx, s.key(mode)).Err()
}

// Close закрывает клиент
func (s *RedisStore) Close() error {
	return s.client.Close()
}
