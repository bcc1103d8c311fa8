package notify

import (
	"context"
	"sync"
)

var _ Notifier = (*Local)(nil)

// Local fans changes out to subscribers in the same process. Handlers run
// synchronously on the publisher's goroutine, in subscription order.
type Local struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]Handler
	order    []int
}

func NewLocal() *Local {
	return &Local{handlers: make(map[int]Handler)}
}

func (l *Local) Publish(ctx context.Context, change Change) error {
	l.mu.RLock()
	handlers := make([]Handler, 0, len(l.order))
	for _, id := range l.order {
		handlers = append(handlers, l.handlers[id])
	}
	l.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, change)
	}
	return nil
}

func (l *Local) Subscribe(_ context.Context, handler Handler) (func(), error) {
	l.mu.Lock()
	id := l.next
	l.next++
	l.handlers[id] = handler
	l.order = append(l.order, id)
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.handlers, id)
			for i, v := range l.order {
				if v == id {
					l.order = append(l.order[:i], l.order[i+1:]...)
					break
				}
			}
		})
	}, nil
}
