// Package event provides the in-process plugin.EventBus used to connect
// the roster and prediction plugins.
package event

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fieldcast/fieldcast/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ plugin.EventBus = (*Bus)(nil)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("event bus closed")

// Bus is an in-memory event bus. Publish runs handlers in the caller's
// goroutine; PublishAsync runs each handler in its own goroutine and Close
// waits for those to finish.
type Bus struct {
	mu       sync.RWMutex
	topics   map[string][]subscriber
	wildcard []subscriber
	nextID   uint64
	closed   bool

	inflight sync.WaitGroup
	logger   *zap.Logger
	now      func() time.Time
}

type subscriber struct {
	id      uint64
	handler plugin.EventHandler
}

// NewBus creates an empty bus. A nil logger is replaced with a no-op one.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		topics: make(map[string][]subscriber),
		logger: logger,
		now:    time.Now,
	}
}

// Publish delivers event to topic and wildcard subscribers synchronously.
func (b *Bus) Publish(ctx context.Context, event plugin.Event) error {
	subs, event, ok := b.prepare(event)
	if !ok {
		return ErrClosed
	}
	for _, s := range subs {
		b.call(ctx, s.handler, event)
	}
	return nil
}

// PublishAsync delivers event without waiting for handlers. Events
// published after Close are dropped.
func (b *Bus) PublishAsync(ctx context.Context, event plugin.Event) {
	subs, event, ok := b.prepare(event)
	if !ok {
		b.logger.Warn("dropping event on closed bus", zap.String("topic", event.Topic))
		return
	}
	b.inflight.Add(len(subs))
	for _, s := range subs {
		go func(h plugin.EventHandler) {
			defer b.inflight.Done()
			b.call(ctx, h, event)
		}(s.handler)
	}
}

// Subscribe registers handler for one topic.
func (b *Bus) Subscribe(topic string, handler plugin.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.topics[topic] = append(b.topics[topic], subscriber{id: id, handler: handler})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.topics[topic] = remove(b.topics[topic], id)
		if len(b.topics[topic]) == 0 {
			delete(b.topics, topic)
		}
	}
}

// SubscribeAll registers handler for every topic.
func (b *Bus) SubscribeAll(handler plugin.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.wildcard = append(b.wildcard, subscriber{id: id, handler: handler})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.wildcard = remove(b.wildcard, id)
	}
}

// Topics returns the number of subscribers per topic.
func (b *Bus) Topics() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]int, len(b.topics))
	for topic, subs := range b.topics {
		out[topic] = len(subs)
	}
	return out
}

// Close rejects further events and waits for in-flight async handlers or
// for ctx to end.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// prepare snapshots the subscribers under the read lock and stamps the
// event time when the publisher left it zero.
func (b *Bus) prepare(event plugin.Event) ([]subscriber, plugin.Event, bool) {
	if event.Timestamp.IsZero() {
		event.Timestamp = b.now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, event, false
	}
	topic := b.topics[event.Topic]
	subs := make([]subscriber, 0, len(topic)+len(b.wildcard))
	subs = append(subs, topic...)
	subs = append(subs, b.wildcard...)
	return subs, event, true
}

func (b *Bus) call(ctx context.Context, handler plugin.EventHandler, event plugin.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.String("source", event.Source),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, event)
}

func remove(subs []subscriber, id uint64) []subscriber {
	for i, s := range subs {
		if s.id == id {
			out := make([]subscriber, 0, len(subs)-1)
			out = append(out, subs[:i]...)
			return append(out, subs[i+1:]...)
		}
	}
	return subs
}
