package client

import (
	"fmt"

	"github.com/annel0/spacebobble/internal/protocol"
	"github.com/annel0/spacebobble/internal/scores"
)

// View срез мира для слоя отображения
type View struct {
	PlayerID   int
	Avatar     protocol.AvatarPacket
	Invincible bool
	Others     []protocol.AvatarPacket
	Hazards    []protocol.HazardPacket
	Rescuables []protocol.RescuablePacket
	Summary    Summary
}

// Summary строка состояния игрока
type Summary struct {
	Name      string
	Team      scores.Team
	Score     int
	LivesLeft int // с учётом текущей жизни
	Finished  bool
	GameOver  bool
}

func (s Summary) String() string {
	return fmt.Sprintf("%s %s: %d, жизней %d", s.Team, s.Name, s.Score, s.LivesLeft)
}
