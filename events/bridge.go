package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-hostbridge/core"
	"github.com/goliatone/go-hostbridge/handle"
)

type registration struct {
	id       uuid.UUID
	callback Callback
}

// Bridge routes emitted events to the callback currently registered for the
// event's resource handle. Registration is resolved at delivery time, not at
// emission: re-registering while events are in flight routes them to the new
// callback, and a missing registration drops the event silently. Shutdown is
// terminal; no callback fires after it returns.
type Bridge struct {
	logger core.Logger
	now    func() time.Time

	mu         sync.Mutex
	cond       *sync.Cond
	callbacks  map[handle.ID]registration
	queue      []Payload
	delivering bool
	closed     bool
	delivered  uint64
	dropped    uint64

	done chan struct{}
}

type Option func(*Bridge)

func WithLogger(logger core.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		if now != nil {
			b.now = now
		}
	}
}

// WithQueueCapacity sizes the initial backing array. The queue stays
// unbounded regardless.
func WithQueueCapacity(capacity int) Option {
	return func(b *Bridge) {
		if capacity > 0 {
			b.queue = make([]Payload, 0, capacity)
		}
	}
}

func New(opts ...Option) *Bridge {
	bridge := &Bridge{
		now:       core.SystemClock,
		callbacks: make(map[handle.ID]registration),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(bridge)
	}
	bridge.cond = sync.NewCond(&bridge.mu)
	go bridge.dispatch()
	return bridge
}

// Register stores callback for the handle, replacing and releasing any
// previous registration. It returns the registration's callback ID.
func (b *Bridge) Register(id handle.ID, callback Callback) (uuid.UUID, error) {
	if callback == nil {
		return uuid.Nil, core.NewBadInput("events: callback is required")
	}
	if id == handle.Nil {
		return uuid.Nil, core.NewBadInput("events: resource handle is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return uuid.Nil, core.NewBackendError("events: bridge is shut down")
	}
	reg := registration{id: uuid.New(), callback: callback}
	b.callbacks[id] = reg
	return reg.id, nil
}

// Unregister releases the stored callback. It is idempotent.
func (b *Bridge) Unregister(id handle.ID) {
	b.mu.Lock()
	delete(b.callbacks, id)
	b.mu.Unlock()
}

// Emit queues an event and returns immediately. It never blocks the emitting
// thread: the queue is unbounded and enqueue is a slice append under the
// lock. Events emitted after shutdown are dropped.
func (b *Bridge) Emit(id handle.ID, eventType Type, data map[string]any) {
	payload := Payload{
		Type:      eventType,
		Handle:    id,
		Data:      data,
		Timestamp: b.now().UnixMilli(),
	}
	b.mu.Lock()
	if b.closed {
		b.dropped++
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, payload)
	b.cond.Broadcast()
	b.mu.Unlock()
}

// EmitDirect bypasses the queue for latency-sensitive events and invokes the
// current callback synchronously from the calling goroutine. Fire and
// forget: callback errors and panics are logged, never propagated.
func (b *Bridge) EmitDirect(id handle.ID, eventType Type, data map[string]any) {
	payload := Payload{
		Type:      eventType,
		Handle:    id,
		Data:      data,
		Timestamp: b.now().UnixMilli(),
	}
	b.mu.Lock()
	if b.closed {
		b.dropped++
		b.mu.Unlock()
		return
	}
	reg, ok := b.callbacks[id]
	b.mu.Unlock()
	if !ok {
		b.markDropped()
		return
	}
	b.invoke(reg, payload)
	b.mu.Lock()
	b.delivered++
	b.mu.Unlock()
}

func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Registered: len(b.callbacks),
		Pending:    len(b.queue),
		Delivered:  b.delivered,
		Dropped:    b.dropped,
	}
}

// Flush blocks until every queued event has been dispatched. It is the
// deterministic barrier tests and embedders use instead of timing races.
func (b *Bridge) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for (len(b.queue) > 0 || b.delivering) && !b.closed {
		b.cond.Wait()
	}
	if b.closed {
		return core.NewBackendError("events: bridge is shut down")
	}
	return nil
}

// Shutdown releases every registration and stops the dispatcher. Queued but
// undelivered events are dropped. It is idempotent and terminal: once it
// returns, no callback will fire again.
func (b *Bridge) Shutdown() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.closed = true
	b.dropped += uint64(len(b.queue))
	b.queue = nil
	b.callbacks = make(map[handle.ID]registration)
	b.cond.Broadcast()
	b.mu.Unlock()
	<-b.done
}

func (b *Bridge) dispatch() {
	defer close(b.done)
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if b.closed {
			b.mu.Unlock()
			return
		}
		payload := b.queue[0]
		b.queue = b.queue[1:]
		reg, ok := b.callbacks[payload.Handle]
		b.delivering = true
		b.mu.Unlock()

		if ok {
			b.invoke(reg, payload)
		}

		b.mu.Lock()
		b.delivering = false
		if ok {
			b.delivered++
		} else {
			b.dropped++
		}
		if len(b.queue) == 0 {
			b.cond.Broadcast()
		}
		b.mu.Unlock()
	}
}

func (b *Bridge) markDropped() {
	b.mu.Lock()
	b.dropped++
	b.mu.Unlock()
}

// invoke runs a host callback with the lock released. A failing callback
// must never crash the native process or stall the dispatcher.
func (b *Bridge) invoke(reg registration, payload Payload) {
	defer func() {
		if recovered := recover(); recovered != nil {
			core.LogError(nil, b.logger, "event callback panicked", map[string]any{
				"handle":      uint64(payload.Handle),
				"event_type":  string(payload.Type),
				"callback_id": reg.id.String(),
				"panic":       fmt.Sprint(recovered),
			})
		}
	}()
	if err := reg.callback(payload); err != nil {
		core.LogError(nil, b.logger, "event callback failed", map[string]any{
			"handle":      uint64(payload.Handle),
			"event_type":  string(payload.Type),
			"callback_id": reg.id.String(),
			"error":       err.Error(),
		})
	}
}
