package eventbus

import (
	"context"
	"sync"
)

var (
	globalMu  sync.RWMutex
	globalBus EventBus
)

// Init устанавливает шину процесса. Её используют компоненты, которым
// шина не передана явно (например, session.Coordinator без Options.Bus).
func Init(bus EventBus) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalBus = bus
}

// Global возвращает шину процесса или nil.
func Global() EventBus {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalBus
}

// Publish отправляет событие в шину процесса, если она инициализирована.
func Publish(ctx context.Context, ev *Envelope) error {
	bus := Global()
	if bus == nil {
		return nil
	}
	return bus.Publish(ctx, ev)
}
