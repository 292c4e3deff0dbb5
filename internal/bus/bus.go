package bus

import (
	"log/slog"
	"sync"

	"figlens/internal/domain"
)

// InMemoryBus is a Go-channel based event bus for in-process communication.
// Selection events flow bridge → inspector, finished updates fan out to every
// registered display surface. Delivery is at-most-once: when the selection
// buffer is full the oldest pending event is dropped, because only the newest
// selection matters.
type InMemoryBus struct {
	selections chan domain.SelectionEvent
	handlers   map[string]func(domain.Update)
	mu         sync.RWMutex
	closed     bool
	logger     *slog.Logger
}

// New creates a new InMemoryBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryBus{
		selections: make(chan domain.SelectionEvent, bufferSize),
		handlers:   make(map[string]func(domain.Update)),
		logger:     logger,
	}
}

// Publish enqueues a selection event. A full buffer sheds the oldest pending
// event rather than blocking the bridge's read loop.
func (b *InMemoryBus) Publish(ev domain.SelectionEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus")
		return
	}

	for {
		select {
		case b.selections <- ev:
			return
		default:
		}
		select {
		case stale := <-b.selections:
			b.logger.Debug("selection superseded before processing", "file", stale.FileKey)
		default:
		}
	}
}

func (b *InMemoryBus) Subscribe() <-chan domain.SelectionEvent {
	return b.selections
}

// SendUpdate delivers a finished pass to every display surface synchronously,
// in registration-independent map order. Handlers must not block.
func (b *InMemoryBus) SendUpdate(u domain.Update) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.handlers) == 0 {
		b.logger.Warn("no display surface registered for update", "rev", u.Rev)
		return
	}
	for _, handler := range b.handlers {
		handler(u)
	}
}

func (b *InMemoryBus) OnUpdate(name string, handler func(domain.Update)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = handler
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.selections)
	}
}
