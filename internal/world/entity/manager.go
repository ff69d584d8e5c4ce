package entity

import "sort"

// Registry сущности одного вида по ID с семантикой upsert.
// Не синхронизирован: владелец сериализует доступ сам.
type Registry struct {
	entities map[int]*Entity
}

// NewRegistry создаёт пустой реестр
func NewRegistry() *Registry {
	return &Registry{entities: make(map[int]*Entity)}
}

// Upsert возвращает сущность с ID, создавая её через create при отсутствии
func (r *Registry) Upsert(id int, create func() *Entity) (*Entity, bool) {
	if e, ok := r.entities[id]; ok {
		return e, false
	}
	e := create()
	r.entities[id] = e
	return e, true
}

// Add добавляет или заменяет сущность
func (r *Registry) Add(e *Entity) {
	r.entities[e.ID] = e
}

// Get возвращает сущность по ID
func (r *Registry) Get(id int) (*Entity, bool) {
	e, ok := r.entities[id]
	return e, ok
}

// Remove удаляет сущность
func (r *Registry) Remove(id int) bool {
	if _, ok := r.entities[id]; !ok {
		return false
	}
	delete(r.entities, id)
	return true
}

// RemoveIf удаляет все сущности, подходящие под условие, и возвращает их
func (r *Registry) RemoveIf(pred func(*Entity) bool) []*Entity {
	var removed []*Entity
	for id, e := range r.entities {
		if pred(e) {
			removed = append(removed, e)
			delete(r.entities, id)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].ID < removed[j].ID })
	return removed
}

// Len количество сущностей
func (r *Registry) Len() int {
	return len(r.entities)
}

// All сущности в порядке возрастания ID
func (r *Registry) All() []*Entity {
	out := make([]*Entity, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clear удаляет все сущности
func (r *Registry) Clear() {
	r.entities = make(map[int]*Entity)
}
