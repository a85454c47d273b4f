// Package broadcast provides an observable value holder with replay-latest
// fan-out to any number of subscribers.
package broadcast

import (
	"context"
	"iter"
	"sync"
)

// Option configures a Broadcaster
type Option func(*options)

type options struct {
	bufferSize int
}

// WithBufferSize sets how many pending values each subscriber may hold.
// When the buffer is full the oldest pending value is dropped.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// Broadcaster holds the latest value of T and pushes every published value to
// its subscribers. Publish never blocks on a slow subscriber.
//
// Values are handed out as-is; publishers must treat a value as immutable
// once it has been published.
type Broadcaster[T any] struct {
	mu         sync.RWMutex
	current    T
	subs       map[uint64]*Subscription[T]
	nextID     uint64
	bufferSize int
	closed     bool
}

// New creates a Broadcaster whose current value is initial
func New[T any](initial T, opts ...Option) *Broadcaster[T] {
	o := options{bufferSize: 1}
	for _, opt := range opts {
		opt(&o)
	}
	return &Broadcaster[T]{
		current:    initial,
		subs:       make(map[uint64]*Subscription[T]),
		bufferSize: o.bufferSize,
	}
}

// Publish replaces the current value and offers it to every subscriber
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = v
	if b.closed {
		return
	}
	for _, s := range b.subs {
		s.offer(v)
	}
}

// Value returns the latest published value
func (b *Broadcaster[T]) Value() T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

// Subscribe registers a new subscriber. The latest value is available on the
// subscription immediately. Subscribing to a closed Broadcaster returns an
// already finished subscription.
func (b *Broadcaster[T]) Subscribe() *Subscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &Subscription[T]{
		id:     b.nextID,
		ch:     make(chan T, b.bufferSize),
		parent: b,
	}
	b.nextID++

	if b.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}

	s.ch <- b.current
	b.subs[s.id] = s
	return s
}

// SubscriberCount returns the number of active subscriptions
func (b *Broadcaster[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription. Later publishes still update Value.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		delete(b.subs, id)
		s.once.Do(func() { close(s.ch) })
	}
}

func (b *Broadcaster[T]) remove(s *Subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subs, s.id)
	s.once.Do(func() { close(s.ch) })
}

// Subscription is one consumer's view of a Broadcaster
type Subscription[T any] struct {
	id     uint64
	ch     chan T
	parent *Broadcaster[T]
	once   sync.Once
}

// offer is called with the parent's write lock held, so it is the only sender
func (s *Subscription[T]) offer(v T) {
	select {
	case s.ch <- v:
		return
	default:
	}
	// Full: drop the oldest pending value so the newest one always lands.
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- v:
	default:
	}
}

// C returns the delivery channel. It is closed on Unsubscribe or when the
// Broadcaster is closed.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Next blocks until a value is available. ok is false when the subscription
// has ended; err is set when ctx is done first.
func (s *Subscription[T]) Next(ctx context.Context) (v T, ok bool, err error) {
	select {
	case v, ok = <-s.ch:
		return v, ok, nil
	case <-ctx.Done():
		return v, false, ctx.Err()
	}
}

// All yields values until the subscription ends, ctx is done, or the
// consumer stops iterating.
func (s *Subscription[T]) All(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, ok, err := s.Next(ctx)
			if err != nil || !ok {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Unsubscribe stops delivery to this subscription. Safe to call more than once.
func (s *Subscription[T]) Unsubscribe() {
	s.parent.remove(s)
}
