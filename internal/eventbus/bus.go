// Package eventbus provides small in-process publish/subscribe hubs.
package eventbus

type broadcast struct{}

// Bus broadcasts events of type T to every subscriber.
type Bus[T any] struct {
	hub *Keyed[broadcast, T]
}

// New creates a Bus with 8-slot subscriber buffers.
func New[T any]() *Bus[T] { return &Bus[T]{hub: NewKeyed[broadcast, T](8)} }

// Publish sends the event to all subscribers. Delivery is non-blocking.
func (b *Bus[T]) Publish(e T) { b.hub.Publish(broadcast{}, e) }

// Subscribe registers a subscriber and returns its channel.
func (b *Bus[T]) Subscribe() <-chan T { return b.hub.Subscribe(broadcast{}) }

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus[T]) Unsubscribe(sub <-chan T) { b.hub.Unsubscribe(broadcast{}, sub) }

// Close closes the bus and all subscriber channels.
func (b *Bus[T]) Close() { b.hub.Close() }
