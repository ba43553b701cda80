// Package events fans structural change records out to subscribers.
package events

import (
	"context"
	"sync"
	"sync/atomic"

	"nengosim/internal/model"
)

// DefaultBuffer is the channel capacity used when Subscribe is given a
// non-positive buffer.
const DefaultBuffer = 64

// Bus delivers model.Change records to every live subscription. Publishing
// never blocks: a subscriber whose buffer is full misses the record and its
// Dropped counter is incremented.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[*Subscription]struct{}
	closed      bool
}

type Subscription struct {
	bus       *Bus
	channel   chan model.Change
	kinds     map[model.ChangeKind]struct{}
	cancel    context.CancelFunc
	dropped   atomic.Uint64
	closeOnce sync.Once
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscription that lives until ctx is done, the
// subscription is cancelled or the bus is closed. When kinds is non-empty
// only records of those kinds are delivered. Subscribing to a closed bus
// returns an already-closed subscription.
func (b *Bus) Subscribe(ctx context.Context, buffer int, kinds ...model.ChangeKind) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		bus:     b,
		channel: make(chan model.Change, buffer),
		cancel:  cancel,
	}
	if len(kinds) > 0 {
		sub.kinds = make(map[model.ChangeKind]struct{}, len(kinds))
		for _, kind := range kinds {
			sub.kinds[kind] = struct{}{}
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		sub.close()
		return sub
	}
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-subCtx.Done()
		sub.Cancel()
	}()
	return sub
}

// Publish delivers change to matching subscribers. Channels are only closed
// under the write lock, so sending under the read lock is safe.
func (b *Bus) Publish(change model.Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for sub := range b.subscribers {
		if !sub.wants(change.Kind) {
			continue
		}
		select {
		case sub.channel <- change:
		default:
			sub.dropped.Add(1)
		}
	}
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close ends every subscription. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subscribers
	b.subscribers = make(map[*Subscription]struct{})
	for sub := range subs {
		sub.close()
	}
	b.mu.Unlock()

	for sub := range subs {
		sub.cancel()
	}
}

func (s *Subscription) C() <-chan model.Change { return s.channel }

// Dropped reports how many records were skipped because the buffer was full.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Cancel removes the subscription and closes its channel. It is idempotent.
func (s *Subscription) Cancel() {
	s.cancel()
	s.bus.mu.Lock()
	delete(s.bus.subscribers, s)
	s.close()
	s.bus.mu.Unlock()
}

func (s *Subscription) wants(kind model.ChangeKind) bool {
	if s.kinds == nil {
		return true
	}
	_, ok := s.kinds[kind]
	return ok
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		close(s.channel)
	})
}
