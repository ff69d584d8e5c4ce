package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/annel0/spacebobble/internal/scores"
)

// FileStore хранит таблицу каждого режима в JSON-файле leaderboard_<mode>.json.
// По умолчанию файлы лежат рядом с исполняемым файлом.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore создаёт файловое хранилище в каталоге dir.
// Пустой dir означает каталог исполняемого файла.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("не удалось определить путь к исполняемому файлу: %w", err)
		}
		dir = filepath.Dir(exe)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать каталог %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir каталог с файлами таблиц
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(mode Mode) string {
	return filepath.Join(s.dir, mode.FileName())
}

// Load читает таблицу режима. Отсутствующий файл означает пустую таблицу.
func (s *FileStore) Load(ctx context.Context, mode Mode) (scores.Leaderboard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(mode)
}

func (s *FileStore) read(mode Mode) (scores.Leaderboard, error) {
	data, err := os.ReadFile(s.path(mode))
	if errors.Is(err, fs.ErrNotExist) {
		return scores.Leaderboard{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения таблицы %s: %w", mode, err)
	}

	board := scores.Leaderboard{}
	if len(data) == 0 {
		return board, nil
	}
	if err := json.Unmarshal(data, &board); err != nil {
		return nil, fmt.Errorf("повреждённая таблица %s: %w", mode, err)
	}
	return board, nil
}

// write пишет во временный файл и переименовывает его, чтобы не оставить
// полузаписанную таблицу
func (s *FileStore) write(mode Mode, board scores.Leaderboard) error {
	data, err := json.MarshalIndent(board, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации таблицы %s: %w", mode, err)
	}

	tmp, err := os.CreateTemp(s.dir, mode.FileName()+".*")
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("ошибка записи таблицы %s: %w", mode, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path(mode))
}

// Save заменяет таблицу режима
func (s *FileStore) Save(ctx context.Context, mode Mode, board scores.Leaderboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if board == nil {
		board = scores.Leaderboard{}
	}
	return s.write(mode, board)
}

// Put читает таблицу, записывает строку и сохраняет файл.
// Файл не переписывается, если счёт не лучше прежнего.
func (s *FileStore) Put(ctx context.Context, mode Mode, name string, score int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(mode, name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	board, err := s.read(mode)
	if err != nil {
		return err
	}
	if !board.Put(name, score) {
		return nil
	}
	return s.write(mode, board)
}

// Reset удаляет файл режима
func (s *FileStore) Reset(ctx context.Context, mode Mode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(mode))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Close ничего не держит открытым
func (s *FileStore) Close() error {
	return nil
}
