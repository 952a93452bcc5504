package eventbus

import "sync"

// Keyed is a publish/subscribe hub partitioned by key. Subscribers only see
// values published on their key. Delivery is non-blocking: a subscriber whose
// buffer is full misses the value.
type Keyed[K comparable, T any] struct {
	mu     sync.RWMutex
	subs   map[K][]chan T
	buffer int
	closed bool
}

// NewKeyed creates a Keyed hub whose subscriber channels hold buffer values.
func NewKeyed[K comparable, T any](buffer int) *Keyed[K, T] {
	if buffer <= 0 {
		buffer = 1
	}
	return &Keyed[K, T]{subs: make(map[K][]chan T), buffer: buffer}
}

// Publish delivers v to every subscriber of key.
func (b *Keyed[K, T]) Publish(key K, v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs[key] {
		select {
		case ch <- v:
		default:
		}
	}
}

// Subscribe returns a channel receiving values published on key. The channel
// is closed by Unsubscribe or Close.
func (b *Keyed[K, T]) Subscribe(key K) <-chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs[key] = append(b.subs[key], ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Keyed[K, T]) Unsubscribe(key K, sub <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[key]
	for i, ch := range list {
		if ch == sub {
			list = append(list[:i], list[i+1:]...)
			if len(list) == 0 {
				delete(b.subs, key)
			} else {
				b.subs[key] = list
			}
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Subscribers returns the number of live subscribers of key.
func (b *Keyed[K, T]) Subscribers(key K) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[key])
}

// Close closes every subscriber channel. Later publishes are dropped.
func (b *Keyed[K, T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, list := range b.subs {
		for _, ch := range list {
			close(ch)
		}
	}
	b.subs = nil
}
