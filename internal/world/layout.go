package world

import (
	"fmt"

	"github.com/annel0/spacebobble/internal/protocol"
)

// Layout всё, что сервер отправляет клиенту перед началом игры
type Layout struct {
	Blocks     []Block
	Rescuables []protocol.RescuablePacket
	Hazards    []protocol.HazardPacket
}

// DefaultLayout уровень d с фиксированными точками появления кооператива
func DefaultLayout(d Difficulty) (*Layout, error) {
	blocks, err := LoadLevel(d)
	if err != nil {
		return nil, err
	}
	return &Layout{
		Blocks:     blocks,
		Rescuables: DefaultRescuables(),
		Hazards:    DefaultHazards(),
	}, nil
}

// DefaultHazards стартовые позиции опасных существ в кооперативе
func DefaultHazards() []protocol.HazardPacket {
	return []protocol.HazardPacket{
		{ID: 1, X: 450, Y: 100, MovingLeft: true},
		{ID: 2, X: 150, Y: 200, MovingLeft: false},
		{ID: 3, X: 720, Y: 400, MovingLeft: true},
		{ID: 4, X: 55, Y: 500, MovingLeft: false},
		{ID: 5, X: 800, Y: 500, MovingLeft: false},
		{ID: 6, X: 450, Y: 100, MovingLeft: true},
		{ID: 7, X: 900, Y: 700, MovingLeft: false},
		{ID: 8, X: 200, Y: 700, MovingLeft: true},
	}
}

// DefaultRescuables стартовые позиции спасаемых в кооперативе
func DefaultRescuables() []protocol.RescuablePacket {
	return []protocol.RescuablePacket{
		{ID: 1, X: 760, Y: 100, MovingLeft: false},
		{ID: 2, X: 555, Y: 300, MovingLeft: true},
		{ID: 3, X: 50, Y: 300, MovingLeft: false},
		{ID: 4, X: 45, Y: 500, MovingLeft: true},
		{ID: 5, X: 800, Y: 500, MovingLeft: false},
		{ID: 6, X: 450, Y: 100, MovingLeft: true},
		{ID: 7, X: 825, Y: 700, MovingLeft: false},
		{ID: 8, X: 55, Y: 700, MovingLeft: true},
	}
}

// BlockPackets переводит блоки в пакеты для отправки
func (l *Layout) BlockPackets() []protocol.BlockPacket {
	return PacketsFromBlocks(l.Blocks)
}

// PacketsFromBlocks переводит блоки в пакеты
func PacketsFromBlocks(blocks []Block) []protocol.BlockPacket {
	out := make([]protocol.BlockPacket, 0, len(blocks))
	for _, b := range blocks {
		cell := b.Cell()
		out = append(out, protocol.BlockPacket{Col: cell.X, Row: cell.Y, Shape: b.Shape().String()})
	}
	return out
}

// BlocksFromPackets восстанавливает блоки клиента. Каждый люк получает собственное состояние.
func BlocksFromPackets(packets []protocol.BlockPacket) ([]Block, error) {
	out := make([]Block, 0, len(packets))
	for _, p := range packets {
		switch p.Shape {
		case protocol.ShapeSolid:
			out = append(out, NewSolid(p.Col, p.Row))
		case protocol.ShapeTrapdoor:
			out = append(out, NewTrapdoor(p.Col, p.Row))
		default:
			return nil, fmt.Errorf("неизвестная форма блока %q в (%d, %d)", p.Shape, p.Col, p.Row)
		}
	}
	return out, nil
}
