package session

import (
	"context"

	"github.com/annel0/spacebobble/internal/protocol"
	"github.com/annel0/spacebobble/internal/scores"
)

// Команды координатору. Каждая несёт свой канал ответа с буфером 1,
// поэтому координатор никогда не блокируется на отправке ответа.

type joinCmd struct {
	reply chan Ticket
}

type tickCmd struct {
	ctx      context.Context
	playerID int
	env      protocol.TickEnvelope
	reply    chan reply
}

type scoreCmd struct {
	ctx      context.Context
	playerID int
	score    protocol.FinalScore
	reply    chan reply
}

type leaveCmd struct {
	playerID int
}

type statsCmd struct {
	reply chan Stats
}

// boardCmd результат записи таблицы рекордов из фоновой горутины
type boardCmd struct {
	sessionID string
	board     scores.Leaderboard
	name      string
	total     int
}

type reply struct {
	snap protocol.Snapshot
	err  error
}
