package client

import (
	"math/rand"
	"sync"
	"time"

	"github.com/annel0/spacebobble/internal/world/entity"
)

// IntentSource отдаёт команды игрока на текущий такт.
// Привязка к устройствам ввода живёт снаружи.
type IntentSource interface {
	Intent() entity.Intent
}

// IntentFunc адаптер функции к IntentSource
type IntentFunc func() entity.Intent

func (f IntentFunc) Intent() entity.Intent { return f() }

// Idle источник без команд
var Idle = IntentFunc(func() entity.Intent { return 0 })

// Wanderer скриптовый игрок для безголового клиента: идёт в одну сторону,
// иногда разворачивается и прыгает.
type Wanderer struct {
	mu       sync.Mutex
	rng      *rand.Rand
	left     bool
	switchAt time.Time
	now      func() time.Time
}

// NewWanderer создаёт скриптовый источник команд
func NewWanderer(seed int64) *Wanderer {
	return &Wanderer{rng: rand.New(rand.NewSource(seed)), now: time.Now}
}

func (w *Wanderer) Intent() entity.Intent {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if now.After(w.switchAt) {
		w.left = w.rng.Intn(2) == 0
		w.switchAt = now.Add(time.Duration(500+w.rng.Intn(2500)) * time.Millisecond)
	}

	var i entity.Intent
	if w.left {
		i = i.With(entity.IntentLeft, true)
	} else {
		i = i.With(entity.IntentRight, true)
	}
	if w.rng.Intn(30) == 0 {
		i = i.With(entity.IntentJump, true)
	}
	if w.rng.Intn(120) == 0 {
		i = i.With(entity.IntentCrouch, true)
	}
	return i
}
