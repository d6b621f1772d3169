package local

import (
	"context"
	"sync"
)

// LocalMessage is an in-process pub/sub message.
type LocalMessage struct {
	Channel string
	Payload string
}

// LocalPubSub fans messages out to in-process subscribers. It stands in
// for Redis pub/sub when the server runs single-node, carrying the chat
// broadcast and announcement channels.
type LocalPubSub struct {
	mu      sync.RWMutex
	subs    map[string][]chan *LocalMessage
	bufSize int
}

// NewPubSub creates a LocalPubSub with the given per-subscriber buffer.
func NewPubSub(bufSize int) *LocalPubSub {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &LocalPubSub{
		subs:    make(map[string][]chan *LocalMessage),
		bufSize: bufSize,
	}
}

// Publish delivers message to every subscriber of channel. A subscriber
// whose buffer is full misses the message rather than blocking the
// publisher.
func (ps *LocalPubSub) Publish(_ context.Context, channel, message string) error {
	msg := &LocalMessage{Channel: channel, Payload: message}
	ps.mu.RLock()
	targets := ps.subs[channel]
	ps.mu.RUnlock()
	for _, ch := range targets {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers one receive channel across the given channels.
// The returned cancel detaches the subscription and closes the channel.
func (ps *LocalPubSub) Subscribe(_ context.Context, channels ...string) (<-chan *LocalMessage, func(), error) {
	ch := make(chan *LocalMessage, ps.bufSize)

	ps.mu.Lock()
	for _, name := range channels {
		ps.subs[name] = append(ps.subs[name], ch)
	}
	ps.mu.Unlock()

	cancel := func() {
		ps.mu.Lock()
		defer ps.mu.Unlock()
		for _, name := range channels {
			list := ps.subs[name]
			for i, sub := range list {
				if sub == ch {
					ps.subs[name] = append(list[:i], list[i+1:]...)
					break
				}
			}
		}
		close(ch)
	}

	return ch, cancel, nil
}
