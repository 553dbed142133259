package event

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Type identifies a category of event.
type Type string

// Known event types.
const (
	// CredentialsChanged fires when provider credentials are stored or removed.
	CredentialsChanged Type = "provider.credentials_changed"
	// KeyTested fires after a provider connection test; Data["status"] is
	// "ok" or "invalid".
	KeyTested Type = "provider.key_tested"
	// ConfigReloaded fires after the config file was re-read successfully.
	ConfigReloaded Type = "config.reloaded"
	// CachesCleared fires after an operator purged the caches.
	CachesCleared Type = "cache.cleared"
)

// Event represents something that happened in the system.
type Event struct {
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Handler is a function that processes an event.
type Handler func(Event)

// Bus is an in-process event bus backed by a buffered channel. Handlers run
// sequentially on the dispatch goroutine. A nil *Bus drops everything, so
// optional publishers need no guard.
type Bus struct {
	ch     chan Event
	mu     sync.RWMutex
	subs   map[Type][]Handler
	logger *slog.Logger
	done   chan struct{}
	once   sync.Once
}

// NewBus creates a new event bus with the given buffer size.
func NewBus(logger *slog.Logger, bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Bus{
		ch:     make(chan Event, bufSize),
		subs:   make(map[Type][]Handler),
		logger: logger.With(slog.String("component", "events")),
		done:   make(chan struct{}),
	}
}

// Subscribe registers a handler for the given event types.
func (b *Bus) Subscribe(h Handler, types ...Type) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range types {
		b.subs[t] = append(b.subs[t], h)
	}
}

// Publish sends an event to the bus. Non-blocking; drops with a warning if
// the buffer is full.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	select {
	case b.ch <- e:
	default:
		b.logger.Warn("event bus full, dropping event", slog.String("type", string(e.Type)))
	}
}

// Start drains the channel and dispatches events to subscribers until ctx
// is canceled or Stop is called, then dispatches whatever is still
// buffered. Call this in a goroutine.
func (b *Bus) Start(ctx context.Context) {
	for {
		select {
		case e := <-b.ch:
			b.dispatch(e)
		case <-ctx.Done():
			b.drain()
			return
		case <-b.done:
			b.drain()
			return
		}
	}
}

// Stop signals the bus to stop processing events after draining the buffer.
func (b *Bus) Stop() {
	b.once.Do(func() { close(b.done) })
}

func (b *Bus) drain() {
	for {
		select {
		case e := <-b.ch:
			b.dispatch(e)
		default:
			return
		}
	}
}

func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	handlers := b.subs[e.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked", slog.String("type", string(e.Type)), slog.Any("panic", r))
				}
			}()
			h(e)
		}()
	}
}
