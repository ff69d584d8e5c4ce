package entity

import "math/rand"

// RedirectSelector выбирает опасное существо, которым управляет второй игрок.
// Новый выбор не совпадает с предыдущим, если есть альтернатива.
type RedirectSelector struct {
	rng     *rand.Rand
	last    int
	hasLast bool
}

// NewRedirectSelector создаёт селектор со своим источником случайности
func NewRedirectSelector(rng *rand.Rand) *RedirectSelector {
	return &RedirectSelector{rng: rng}
}

// Select возвращает управляемое существо, назначая новое, если текущего нет.
// nil, если выбирать не из кого.
func (s *RedirectSelector) Select(hazards []*Entity) *Entity {
	var candidates []*Entity
	for _, h := range hazards {
		if !h.Alive() {
			continue
		}
		if h.Redirected {
			return h
		}
		candidates = append(candidates, h)
	}
	if len(candidates) == 0 {
		return nil
	}

	pool := candidates
	if s.hasLast && len(candidates) > 1 {
		pool = pool[:0:0]
		for _, h := range candidates {
			if h.ID != s.last {
				pool = append(pool, h)
			}
		}
	}

	chosen := pool[s.rng.Intn(len(pool))]
	for _, h := range hazards {
		if h.ID == s.last && h != chosen {
			Release(h)
		}
	}

	chosen.Redirected = true
	chosen.Body.Speed = RedirectedSpeed
	chosen.Policy = RedirectedPolicy{}
	s.last = chosen.ID
	s.hasLast = true
	return chosen
}

// Release возвращает существо к автономному блужданию
func Release(h *Entity) {
	h.Redirected = false
	h.Intent = 0
	h.Body.Speed = HazardSpeed
	h.Policy = WanderPolicy{}
}
