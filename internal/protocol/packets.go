package protocol

import "github.com/annel0/spacebobble/internal/scores"

// Имена форм блоков на проводе
const (
	ShapeSolid    = "solid"
	ShapeTrapdoor = "trapdoor"
)

// BlockPacket описывает блок уровня клеткой и формой
type BlockPacket struct {
	Col   int    `json:"col"`
	Row   int    `json:"row"`
	Shape string `json:"shape"`
}

// AvatarPacket состояние аватара игрока. Идентичность по PlayerID.
type AvatarPacket struct {
	PlayerID int     `json:"player_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Health   int     `json:"health"`
}

// HazardPacket состояние опасного существа
type HazardPacket struct {
	ID         int     `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	MovingLeft bool    `json:"moving_left"`
}

// RescuablePacket состояние существа, которое можно спасти
type RescuablePacket struct {
	ID         int     `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	MovingLeft bool    `json:"moving_left"`
	Saved      bool    `json:"saved"`
}

// Hello первый кадр клиента по KCP: слушатель kcp-go создаёт сессию
// только после первой датаграммы клиента, а дальше первым говорит сервер.
type Hello struct{}

// PlayerID первое сообщение сервера после подключения
type PlayerID struct {
	PlayerID int `json:"player_id"`
}

// LevelLayout блоки уровня
type LevelLayout struct {
	Blocks []BlockPacket `json:"blocks"`
}

// RescuableLayout начальные позиции спасаемых
type RescuableLayout struct {
	Rescuables []RescuablePacket `json:"rescuables"`
}

// HazardLayout начальные позиции опасных существ
type HazardLayout struct {
	Hazards []HazardPacket `json:"hazards"`
}

// TickEnvelope сообщение клиента за такт обмена: свой аватар и спасённые с прошлого раза
type TickEnvelope struct {
	Avatar AvatarPacket      `json:"avatar"`
	Saved  []RescuablePacket `json:"saved,omitempty"`
}

// FinalScore итог клиента после окончания игры
type FinalScore struct {
	Name  string      `json:"name"`
	Team  scores.Team `json:"team"`
	Total int         `json:"total"`
}

// Result переводит пакет в итог игрока
func (f FinalScore) Result() scores.Result {
	return scores.Result{Name: f.Name, Team: f.Team, Total: f.Total}
}

// Snapshot единственный ответ сервера на каждое сообщение клиента.
// Saved присутствует только если множество спасённых изменилось с прошлого ответа
// этому клиенту, Leaderboard только когда таблица посчитана.
type Snapshot struct {
	Saved       []RescuablePacket `json:"saved,omitempty"`
	Avatars     []AvatarPacket    `json:"avatars"`
	Finished    bool              `json:"finished,omitempty"`
	Leaderboard map[string]int    `json:"leaderboard,omitempty"`
}
