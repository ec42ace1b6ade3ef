package event

import (
	"sync"

	"go.uber.org/zap"
)

// Handler receives every message the bus delivers.
type Handler func(Message)

// Bus is an unbounded FIFO mailbox. Send never blocks and may be called from
// any goroutine; DispatchBatch hands messages to subscribers in
// subscription order. A Dispatcher drives DispatchBatch on a timer, or the
// owner calls it at a fixed point of its own loop.
type Bus struct {
	mu    sync.Mutex // protects queue
	queue []Message

	subMu    sync.RWMutex // protects handlers
	handlers []Handler

	log *zap.Logger
}

func NewBus(log *zap.Logger) *Bus {
	return &Bus{
		queue: make([]Message, 0, 64),
		log:   log,
	}
}

// Send appends a message to the queue.
func (b *Bus) Send(m Message) {
	if m == nil {
		return
	}
	b.mu.Lock()
	b.queue = append(b.queue, m)
	b.mu.Unlock()
}

// Subscribe registers a handler for every message.
func (b *Bus) Subscribe(fn Handler) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.handlers = append(b.handlers, fn)
}

// Subscribe registers a handler for messages whose dynamic type is T.
func Subscribe[T Message](b *Bus, fn func(T)) {
	b.Subscribe(func(m Message) {
		if typed, ok := m.(T); ok {
			fn(typed)
		}
	})
}

// Len returns the number of queued messages.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// DispatchBatch takes up to max messages from the head of the queue and
// delivers each to every subscriber. It returns the number of messages taken.
func (b *Bus) DispatchBatch(max int) int {
	b.mu.Lock()
	batch := takeBatch(&b.queue, max)
	b.mu.Unlock()
	if len(batch) == 0 {
		return 0
	}

	b.subMu.RLock()
	handlers := b.handlers
	b.subMu.RUnlock()

	for _, m := range batch {
		for _, h := range handlers {
			b.deliver(h, m)
		}
	}
	b.log.Debug("messages dispatched", zap.Int("count", len(batch)))
	return len(batch)
}

// deliver isolates a panicking subscriber so the remaining subscribers and
// messages are still served.
func (b *Bus) deliver(h Handler, m Message) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("message subscriber panicked",
				zap.String("kind", m.MessageKind()),
				zap.Any("panic", r),
			)
		}
	}()
	h(m)
}
