package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Типы событий игры
const (
	TypeSessionStarted     = "session.started"
	TypeSessionFinished    = "session.finished"
	TypeLeaderboardUpdated = "leaderboard.updated"
)

// SessionStarted сессия прошла порог минимального числа игроков
type SessionStarted struct {
	SessionID string `json:"session_id"`
	Players   []int  `json:"players"`
}

// SessionFinished все спасаемые спасены или последний игрок ушёл
type SessionFinished struct {
	SessionID string `json:"session_id"`
	Saved     int    `json:"saved"`
	Total     int    `json:"total"`
	Abandoned bool   `json:"abandoned,omitempty"`
}

// LeaderboardUpdated в таблицу режима добавлена запись
type LeaderboardUpdated struct {
	SessionID string `json:"session_id,omitempty"`
	Mode      string `json:"mode"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
}

// NewEnvelope упаковывает полезную нагрузку в JSON-конверт с новым UUID
func NewEnvelope(source, eventType string, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   1,
		Priority:  5,
		Payload:   data,
	}, nil
}

// Decode разбирает полезную нагрузку конверта
func (ev *Envelope) Decode(out interface{}) error {
	if err := json.Unmarshal(ev.Payload, out); err != nil {
		return fmt.Errorf("decode %s: %w", ev.EventType, err)
	}
	return nil
}
