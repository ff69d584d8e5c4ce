package storage

import (
	"context"
	"sync"

	"github.com/annel0/spacebobble/internal/scores"
)

// MemoryStore хранит таблицы в памяти процесса. Подходит для тестов и
// серверов без постоянного хранилища.
type MemoryStore struct {
	mu     sync.RWMutex
	boards map[Mode]scores.Leaderboard
	closed bool
}

// NewMemoryStore создаёт пустое хранилище
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{boards: make(map[Mode]scores.Leaderboard)}
}

// Load возвращает копию таблицы режима
func (s *MemoryStore) Load(ctx context.Context, mode Mode) (scores.Leaderboard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	board, ok := s.boards[mode]
	if !ok {
		return scores.Leaderboard{}, nil
	}
	return board.Clone(), nil
}

// Save заменяет таблицу режима
func (s *MemoryStore) Save(ctx context.Context, mode Mode, board scores.Leaderboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.boards[mode] = board.Clone()
	return nil
}

// Put записывает одну строку, оставляя лучший счёт имени
func (s *MemoryStore) Put(ctx context.Context, mode Mode, name string, score int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(mode, name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	board, ok := s.boards[mode]
	if !ok {
		board = scores.Leaderboard{}
		s.boards[mode] = board
	}
	board.Put(name, score)
	return nil
}

// Reset очищает таблицу режима
func (s *MemoryStore) Reset(ctx context.Context, mode Mode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	delete(s.boards, mode)
	return nil
}

// Close помечает хранилище закрытым
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
