package api

import (
	"context"
	"time"

	"github.com/annel0/spacebobble/internal/eventbus"
	"github.com/annel0/spacebobble/internal/logging"
	"github.com/annel0/spacebobble/internal/scores"
	"github.com/annel0/spacebobble/internal/storage"
	"github.com/dgraph-io/ristretto/v2"
)

const defaultCacheTTL = 10 * time.Second

// LeaderboardCache кэш отсортированных таблиц рекордов по режимам.
// Запись сбрасывается событием leaderboard.updated или по TTL.
type LeaderboardCache struct {
	cache *ristretto.Cache[string, []scores.Entry]
	ttl   time.Duration
	sub   eventbus.Subscription
}

// NewLeaderboardCache создаёт кэш; ttl <= 0 заменяется значением по умолчанию
func NewLeaderboardCache(ttl time.Duration) (*LeaderboardCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, []scores.Entry]{
		NumCounters: 1000,
		MaxCost:     1 << 20, // стоимость = число записей таблицы
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &LeaderboardCache{cache: cache, ttl: ttl}, nil
}

// Get возвращает таблицу режима, ok=false при промахе
func (lc *LeaderboardCache) Get(mode storage.Mode) ([]scores.Entry, bool) {
	return lc.cache.Get(string(mode))
}

// Set кладёт таблицу режима в кэш
func (lc *LeaderboardCache) Set(mode storage.Mode, entries []scores.Entry) {
	cost := int64(len(entries))
	if cost == 0 {
		cost = 1
	}
	lc.cache.SetWithTTL(string(mode), entries, cost, lc.ttl)
	lc.cache.Wait()
}

// Invalidate сбрасывает таблицу режима
func (lc *LeaderboardCache) Invalidate(mode storage.Mode) {
	lc.cache.Del(string(mode))
}

// Follow подписывает кэш на leaderboard.updated
func (lc *LeaderboardCache) Follow(ctx context.Context, bus eventbus.EventBus) error {
	logger := logging.GetAPILogger()
	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: []string{eventbus.TypeLeaderboardUpdated}},
		func(_ context.Context, ev *eventbus.Envelope) {
			var p eventbus.LeaderboardUpdated
			if err := ev.Decode(&p); err != nil {
				logger.Warn("Некорректное событие %s: %v", ev.EventType, err)
				return
			}
			lc.Invalidate(storage.Mode(p.Mode))
			logger.Debug("Кэш таблицы %s сброшен", p.Mode)
		})
	if err != nil {
		return err
	}
	lc.sub = sub
	return nil
}

// Close отписывается от шины и освобождает кэш
func (lc *LeaderboardCache) Close() {
	if lc.sub != nil {
		lc.sub.Unsubscribe()
	}
	lc.cache.Close()
}
