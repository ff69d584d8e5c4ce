package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/annel0/spacebobble/internal/scores"
	_ "github.com/go-sql-driver/mysql"
)

// MariaStore реализует LeaderboardStore для MariaDB/MySQL.
// Использует таблицу leaderboard с ключом (mode, name).
type MariaStore struct {
	db *sql.DB
}

// NewMariaStore подключается к базе и создаёт таблицу, если её нет.
//
// Параметры:
//
//	dsn - строка подключения к базе данных (user:pass@tcp(host:port)/dbname)
func NewMariaStore(dsn string) (*MariaStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	store := &MariaStore{db: db}
	if err := store.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}

	return store, nil
}

func (s *MariaStore) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS leaderboard (
			mode       VARCHAR(32)  NOT NULL,
			name       VARCHAR(255) NOT NULL,
			score      INT          NOT NULL,
			updated_at TIMESTAMP    DEFAULT CURRENT_TIMESTAMP
			           ON UPDATE    CURRENT_TIMESTAMP,
			PRIMARY KEY (mode, name)
		) ENGINE=InnoDB
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("ошибка создания таблицы leaderboard: %w", err)
	}
	return nil
}

// Load читает все строки режима
func (s *MariaStore) Load(ctx context.Context, mode Mode) (scores.Leaderboard, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name, score FROM leaderboard WHERE mode = ?`, string(mode))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения таблицы %s: %w", mode, err)
	}
	defer rows.Close()

	board := scores.Leaderboard{}
	for rows.Next() {
		var (
			name  string
			score int
		)
		if err := rows.Scan(&name, &score); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки: %w", err)
		}
		board.Put(name, score)
	}
	return board, rows.Err()
}

const upsertQuery = `
	INSERT INTO leaderboard (mode, name, score)
	VALUES (?, ?, ?)
	ON DUPLICATE KEY UPDATE score = GREATEST(score, VALUES(score))
`

// Save заменяет таблицу режима в одной транзакции
func (s *MariaStore) Save(ctx context.Context, mode Mode, board scores.Leaderboard) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM leaderboard WHERE mode = ?`, string(mode)); err != nil {
		return fmt.Errorf("ошибка очистки таблицы %s: %w", mode, err)
	}
	for _, e := range board.Entries() {
		if _, err := tx.ExecContext(ctx, upsertQuery, string(mode), e.Name, e.Score); err != nil {
			return fmt.Errorf("ошибка записи %s: %w", e.Name, err)
		}
	}
	return tx.Commit()
}

// Put записывает строку через INSERT ... ON DUPLICATE KEY UPDATE, сохраняя лучший счёт
func (s *MariaStore) Put(ctx context.Context, mode Mode, name string, score int) error {
	if err := validate(mode, name); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, upsertQuery, string(mode), name, score); err != nil {
		return fmt.Errorf("ошибка сохранения счёта: %w", err)
	}
	return nil
}

// Reset удаляет строки режима
func (s *MariaStore) Reset(ctx context.Context, mode Mode) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM leaderboard WHERE mode = ?`, string(mode))
	return err
}

// Close закрывает соединение с базой данных
func (s *MariaStore) Close() error {
	return s.db.Close()
}
