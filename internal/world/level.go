package world

import (
	"bufio"
	"embed"
	"fmt"
	"io"
	"strings"
)

//go:embed levels/*.txt
var levelFS embed.FS

// Difficulty уровень сложности, он же номер уровня
type Difficulty int

const (
	Easy Difficulty = iota + 1
	Medium
	Hard
)

func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "EASY"
	case Medium:
		return "MEDIUM"
	case Hard:
		return "HARD"
	default:
		return fmt.Sprintf("difficulty(%d)", int(d))
	}
}

// Next возвращает следующий уровень; ok=false после HARD
func (d Difficulty) Next() (Difficulty, bool) {
	if d >= Hard {
		return d, false
	}
	return d + 1, true
}

// ParseLevel разбирает текстовый уровень: строка файла = ряд клеток,
// '1' сплошной блок, '2' люк (левая клетка люка), остальные символы пустые.
func ParseLevel(r io.Reader) ([]Block, error) {
	var blocks []Block

	sc := bufio.NewScanner(r)
	row := 0
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		for col := 0; col < len(line); col++ {
			switch line[col] {
			case '1':
				blocks = append(blocks, NewSolid(col, row))
			case '2':
				blocks = append(blocks, NewTrapdoor(col, row))
			}
		}
		row++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения уровня: %w", err)
	}
	return blocks, nil
}

// LoadLevel загружает встроенный уровень для сложности d
func LoadLevel(d Difficulty) ([]Block, error) {
	f, err := levelFS.Open(fmt.Sprintf("levels/lvl%d.txt", int(d)))
	if err != nil {
		return nil, fmt.Errorf("уровень %s не найден: %w", d, err)
	}
	defer f.Close()
	return ParseLevel(f)
}

// Trapdoors выбирает люки из списка блоков
func Trapdoors(blocks []Block) []*Trapdoor {
	var out []*Trapdoor
	for _, b := range blocks {
		if t, ok := b.(*Trapdoor); ok {
			out = append(out, t)
		}
	}
	return out
}
