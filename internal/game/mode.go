package game

import (
	"fmt"
	"strings"
)

// Mode режим локальной игры
type Mode int

const (
	Solo      Mode = iota + 1 // один игрок, опасные блуждают сами
	Versus                    // второй игрок управляет одним опасным существом
	LocalCoop                 // два аватара на одном экране, общий счёт
)

func (m Mode) String() string {
	switch m {
	case Solo:
		return "solo"
	case Versus:
		return "versus"
	case LocalCoop:
		return "local-coop"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Avatars количество аватаров в режиме
func (m Mode) Avatars() int {
	if m == LocalCoop {
		return 2
	}
	return 1
}

// ParseMode разбирает имя режима без учёта регистра
func ParseMode(name string) (Mode, error) {
	for _, m := range []Mode{Solo, Versus, LocalCoop} {
		if strings.EqualFold(strings.TrimSpace(name), m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("неизвестный режим игры %q", name)
}
