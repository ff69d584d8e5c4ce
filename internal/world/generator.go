package world

import (
	"strings"

	"github.com/annel0/spacebobble/internal/util"
)

// Параметры сетки уровня по умолчанию (1280x720 при клетке 25)
const (
	DefaultCols = 52
	DefaultRows = 29
)

// LevelGenerator строит уровни в текстовом формате по шуму Перлина
type LevelGenerator struct {
	Seed          int64
	NoiseScale    float64 // Масштаб шума вдоль платформы
	PlatformEvery int     // Шаг между рядами платформ в клетках
	FirstPlatform int     // Ряд первой платформы
	GapThreshold  float64 // Ниже этого значения шума в платформе дыра
	TrapdoorAbove float64 // Выше этого значения начинается люк
}

// NewLevelGenerator создаёт генератор с настройками, похожими на встроенные уровни
func NewLevelGenerator(seed int64) *LevelGenerator {
	return &LevelGenerator{
		Seed:          seed,
		NoiseScale:    0.15,
		PlatformEvery: 4,
		FirstPlatform: 5,
		GapThreshold:  0.42,
		TrapdoorAbove: 0.62,
	}
}

// Generate возвращает строки уровня cols x rows: стены по краям, пол внизу,
// ряды платформ с дырами и люками по шуму.
func (g *LevelGenerator) Generate(cols, rows int) []string {
	noise := util.NewNoise(g.Seed)

	grid := make([][]byte, rows)
	for r := range grid {
		grid[r] = []byte(strings.Repeat(" ", cols))
		grid[r][0] = '1'
		grid[r][cols-1] = '1'
	}
	for c := 0; c < cols; c++ {
		grid[rows-1][c] = '1'
	}

	for r := g.FirstPlatform; r < rows-1; r += g.PlatformEvery {
		for c := 1; c < cols-1; c++ {
			v := noise.At(float64(c)*g.NoiseScale, float64(r)*g.NoiseScale)
			switch {
			case v < g.GapThreshold:
				// дыра
			case v > g.TrapdoorAbove && c+TrapdoorTiles < cols-1:
				grid[r][c] = '2'
				c += TrapdoorTiles - 1
			default:
				grid[r][c] = '1'
			}
		}
	}

	lines := make([]string, rows)
	for r := range grid {
		lines[r] = strings.TrimRight(string(grid[r]), " ")
	}
	return lines
}

// GenerateLevel генерирует уровень в виде текста, пригодного для ParseLevel
func GenerateLevel(seed int64, cols, rows int) string {
	return strings.Join(NewLevelGenerator(seed).Generate(cols, rows), "\n") + "\n"
}
