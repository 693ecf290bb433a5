package cbvpubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrAlreadySubscribed is returned when a channel is subscribed twice.
var ErrAlreadySubscribed = errors.New("already subscribed")

// Broker fans published values out to subscribed channels. Publishing never
// blocks: a subscriber whose channel is full misses the value, and the miss is
// counted as a drop.
type Broker[T any] struct {
	mtx         sync.Mutex
	subscribers map[chan<- T]*subscriber[T]
	active      atomic.Bool
}

type subscriber[T any] struct {
	allow func(T) bool
	stats Stats
}

// NewBroker returns a broker with no subscribers.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{
		subscribers: map[chan<- T]*subscriber[T]{},
	}
}

// Publish sends val to every subscriber that allows it.
func (b *Broker[T]) Publish(val T) {
	if !b.active.Load() {
		return
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()

	for ch, sub := range b.subscribers {
		if sub.allow != nil && !sub.allow(val) {
			sub.stats.Skips++
			continue
		}
		select {
		case ch <- val:
			sub.stats.Sends++
		default:
			sub.stats.Drops++
		}
	}
}

// Subscribe ch to published values which pass allow, which may be nil. It
// blocks until the context is canceled, then unsubscribes and returns the
// stats for the subscription.
func (b *Broker[T]) Subscribe(ctx context.Context, allow func(T) bool, ch chan<- T) (Stats, error) {
	if err := b.add(ch, allow); err != nil {
		return Stats{}, err
	}

	<-ctx.Done()

	stats, ok := b.remove(ch)
	if !ok {
		return Stats{}, fmt.Errorf("subscriber vanished")
	}

	return stats, ctx.Err()
}

// Subscribers returns the number of active subscribers.
func (b *Broker[T]) Subscribers() int {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return len(b.subscribers)
}

func (b *Broker[T]) add(ch chan<- T, allow func(T) bool) error {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if _, ok := b.subscribers[ch]; ok {
		return ErrAlreadySubscribed
	}

	b.subscribers[ch] = &subscriber[T]{allow: allow}
	b.active.Store(true)

	return nil
}

func (b *Broker[T]) remove(ch chan<- T) (Stats, bool) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	sub, ok := b.subscribers[ch]
	if !ok {
		return Stats{}, false
	}

	delete(b.subscribers, ch)
	b.active.Store(len(b.subscribers) > 0)

	return sub.stats, true
}

// Stats counts what happened to values published while a subscription was
// active.
type Stats struct {
	Skips uint64 `json:"skips"`
	Sends uint64 `json:"sends"`
	Drops uint64 `json:"drops"`
}

func (s Stats) String() string {
	return fmt.Sprintf("skips=%d sends=%d drops=%d", s.Skips, s.Sends, s.Drops)
}
