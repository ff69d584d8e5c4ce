package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/spacebobble/internal/scores"
	"github.com/dgraph-io/badger/v3"
)

// BadgerStore встроенное KV-хранилище таблиц рекордов.
// Каждая строка таблицы лежит под ключом lb:<mode>:<name>.
type BadgerStore struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerStore открывает (или создаёт) базу в каталоге path
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerStore{
		db:      db,
		dbPath:  path,
		isReady: true,
	}, nil
}

func modePrefix(mode Mode) []byte {
	return []byte("lb:" + string(mode) + ":")
}

func entryKey(mode Mode, name string) []byte {
	return append(modePrefix(mode), name...)
}

// Load собирает таблицу режима обходом по префиксу
func (s *BadgerStore) Load(ctx context.Context, mode Mode) (scores.Leaderboard, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, ErrClosed
	}

	board := scores.Leaderboard{}
	prefix := modePrefix(mode)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			name := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				var e scores.Entry
				if err := json.Unmarshal(val, &e); err != nil {
					return err
				}
				board.Put(name, e.Score)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения таблицы %s: %w", mode, err)
	}
	return board, nil
}

func putEntry(txn *badger.Txn, mode Mode, name string, score int) error {
	data, err := json.Marshal(scores.Entry{Name: name, Score: score})
	if err != nil {
		return err
	}
	return txn.Set(entryKey(mode, name), data)
}

func dropMode(txn *badger.Txn, mode Mode) error {
	prefix := modePrefix(mode)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Save заменяет таблицу режима в одной транзакции
func (s *BadgerStore) Save(ctx context.Context, mode Mode, board scores.Leaderboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrClosed
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := dropMode(txn, mode); err != nil {
			return err
		}
		for _, e := range board.Entries() {
			if err := putEntry(txn, mode, e.Name, e.Score); err != nil {
				return err
			}
		}
		return nil
	})
}

// Put записывает строку, если счёт лучше сохранённого
func (s *BadgerStore) Put(ctx context.Context, mode Mode, name string, score int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(mode, name); err != nil {
		return err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrClosed
	}

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(mode, name))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			var old scores.Entry
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &old) }); err != nil {
				return err
			}
			if old.Score >= score {
				return nil
			}
		}
		return putEntry(txn, mode, name, score)
	})
}

// Reset удаляет все строки режима
func (s *BadgerStore) Reset(ctx context.Context, mode Mode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrClosed
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return dropMode(txn, mode)
	})
}

// Close закрывает базу
func (s *BadgerStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}

	s.isReady = false
	return s.db.Close()
}
