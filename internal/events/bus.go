// Package events carries the engine's update notifications to in-process
// subscribers such as the websocket hub.
package events

import (
	"context"
	"sync"
)

// Topics published by the engine.
const (
	TopicFeed         = "feed"
	TopicDailySummary = "daily-summary"
	TopicVelocity     = "velocity"
	TopicMostChanged  = "most-changed"
	TopicTimeline     = "timeline"
	TopicParams       = "params"
)

// subscriberBuffer bounds how far a subscriber may fall behind before it
// starts losing messages.
const subscriberBuffer = 64

// Message is one published notification.
type Message struct {
	Topic   string
	Payload []byte
}

type subscriber struct {
	topics map[string]bool // empty means all topics
	ch     chan Message
}

// Bus is an in-process publish/subscribe fan-out. Publishing never blocks:
// subscribers that do not drain their channel lose messages rather than
// stalling the publisher.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscriber
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Publish delivers the message to every subscriber matching topic.
func (b *Bus) Publish(topic string, payload []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if len(sub.topics) > 0 && !sub.topics[topic] {
			continue
		}
		select {
		case sub.ch <- Message{Topic: topic, Payload: payload}:
		default:
		}
	}
}

// Subscribe registers for the given topics; no topics means every topic.
// The subscription is released, and its channel closed, when cleanup is
// called or ctx is canceled, whichever comes first.
func (b *Bus) Subscribe(ctx context.Context, topics ...string) (<-chan Message, func()) {
	sub := &subscriber{ch: make(chan Message, subscriberBuffer)}
	if len(topics) > 0 {
		sub.topics = make(map[string]bool, len(topics))
		for _, t := range topics {
			sub.topics[t] = true
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.ch)
			}
		})
	}

	stop := context.AfterFunc(ctx, release)
	cleanup := func() {
		stop()
		release()
	}
	return sub.ch, cleanup
}

// Close releases every subscription. Publishing and subscribing after Close
// are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
