package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/annel0/spacebobble/internal/world"
)

// Генератор уровней в текстовом формате ('1' блок, '2' люк).
// Результат проверяется разбором перед записью.
func main() {
	var (
		seed = flag.Int64("seed", time.Now().UnixNano(), "сид шума")
		cols = flag.Int("cols", world.DefaultCols, "ширина в клетках")
		rows = flag.Int("rows", world.DefaultRows, "высота в клетках")
		out  = flag.String("out", "", "файл результата (по умолчанию stdout)")
	)
	flag.Parse()

	text := world.GenerateLevel(*seed, *cols, *rows)

	blocks, err := world.ParseLevel(strings.NewReader(text))
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Сгенерирован некорректный уровень: %v\n", err)
		os.Exit(1)
	}

	if *out == "" {
		fmt.Print(text)
		return
	}
	if err := os.WriteFile(*out, []byte(text), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Ошибка записи %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "✅ Уровень %dx%d (сид %d, блоков %d) записан в %s\n", *cols, *rows, *seed, len(blocks), *out)
}
