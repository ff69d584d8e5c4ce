package scores

import (
	"sort"
	"strings"
)

// Leaderboard отображение имя -> счёт. Порядок обхода задаёт Entries.
type Leaderboard map[string]int

// Entry строка таблицы рекордов
type Entry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Put записывает счёт под именем. Хранится лучший результат имени:
// меньший счёт прежнюю запись не затирает. true, если запись изменилась.
func (l Leaderboard) Put(name string, score int) bool {
	if old, ok := l[name]; ok && old >= score {
		return false
	}
	l[name] = score
	return true
}

// Merge переносит записи other в l, оставляя лучший счёт каждого имени
func (l Leaderboard) Merge(other Leaderboard) {
	for name, score := range other {
		l.Put(name, score)
	}
}

// Entries возвращает записи, упорядоченные по имени
func (l Leaderboard) Entries() []Entry {
	out := make([]Entry, 0, len(l))
	for name, score := range l {
		out = append(out, Entry{Name: name, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Ranked возвращает записи по убыванию счёта, при равенстве по имени
func (l Leaderboard) Ranked() []Entry {
	out := l.Entries()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Clone копирует таблицу
func (l Leaderboard) Clone() Leaderboard {
	out := make(Leaderboard, len(l))
	for name, score := range l {
		out[name] = score
	}
	return out
}

// Aggregate сводит итоги игроков в одну запись таблицы: побеждает команда
// с большей суммой, при равенстве записывается синяя. Имя записи состоит из
// имён игроков команды через ", " без повторов. ok=false для пустого ввода.
func Aggregate(results []Result) (name string, total int, ok bool) {
	if len(results) == 0 {
		return "", 0, false
	}

	type side struct {
		total int
		names []string
		seen  map[string]struct{}
	}
	teams := map[Team]*side{
		TeamRed:  {seen: map[string]struct{}{}},
		TeamBlue: {seen: map[string]struct{}{}},
	}

	for _, r := range results {
		s, known := teams[r.Team]
		if !known {
			continue
		}
		s.total += r.Total
		if _, dup := s.seen[r.Name]; !dup {
			s.seen[r.Name] = struct{}{}
			s.names = append(s.names, r.Name)
		}
	}

	red, blue := teams[TeamRed], teams[TeamBlue]
	winner, other := blue, red
	if red.total > blue.total {
		winner, other = red, blue
	}
	// команда без игроков не может победить
	if len(winner.names) == 0 {
		winner = other
	}
	if len(winner.names) == 0 {
		return "", 0, false
	}

	return strings.Join(winner.names, ", "), winner.total, true
}
