// Package scores содержит счёт игрока, принадлежность команде и таблицу рекордов.
package scores

import "strings"

// Team команда игрока в кооперативе
type Team string

const (
	TeamRed  Team = "RED"
	TeamBlue Team = "BLUE"
)

// TeamForPlayer: нечётный ID играет за красных, чётный за синих
func TeamForPlayer(playerID int) Team {
	if playerID%2 == 0 {
		return TeamBlue
	}
	return TeamRed
}

// Score текущий счёт игрока. Итог никогда не бывает отрицательным.
type Score struct {
	Name  string
	Team  Team
	total int
}

// NewScore создаёт нулевой счёт
func NewScore(name string, team Team) *Score {
	return &Score{Name: strings.TrimSpace(name), Team: team}
}

// Total возвращает текущий итог
func (s *Score) Total() int {
	return s.total
}

// SetTotal устанавливает итог, отрицательные значения обрезаются до нуля
func (s *Score) SetTotal(v int) {
	if v < 0 {
		v = 0
	}
	s.total = v
}

// Add прибавляет delta (может быть отрицательной) с тем же ограничением
func (s *Score) Add(delta int) {
	s.SetTotal(s.total + delta)
}

// Result итоговый счёт игрока, отправляемый серверу в конце сессии
func (s *Score) Result() Result {
	return Result{Name: s.Name, Team: s.Team, Total: s.total}
}

// Result зафиксированный итог игрока
type Result struct {
	Name  string
	Team  Team
	Total int
}
