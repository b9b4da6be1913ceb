// Package msgcache keeps a bounded, time-ordered window of recently seen
// messages per channel and lets callers wait for the next message to arrive
// in a channel.
package msgcache

import (
	"context"
	"sync"
	"time"
)

// Message is the cached projection of a channel message.
type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	Author    string
	Content   string
	CreatedAt time.Time
}

type waiter struct {
	after     time.Time
	excludeID string
	ch        chan Message
}

// Cache is a per-channel ring of recent messages. Appends evict oldest-first
// once a channel exceeds its capacity.
type Cache struct {
	mu       sync.Mutex
	capacity int
	channels map[string][]Message
	waiters  map[string][]*waiter
}

func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Cache{
		capacity: capacity,
		channels: make(map[string][]Message),
		waiters:  make(map[string][]*waiter),
	}
}

// Append records a message and wakes any waiter whose predicate it satisfies.
func (c *Cache) Append(msg Message) {
	c.mu.Lock()

	buf := append(c.channels[msg.ChannelID], msg)
	if len(buf) > c.capacity {
		buf = buf[len(buf)-c.capacity:]
	}
	c.channels[msg.ChannelID] = buf

	pending := c.waiters[msg.ChannelID]
	remaining := pending[:0]
	var woken []*waiter
	for _, w := range pending {
		if msg.ID != w.excludeID && msg.CreatedAt.After(w.after) {
			woken = append(woken, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	c.waiters[msg.ChannelID] = remaining
	c.mu.Unlock()

	for _, w := range woken {
		w.ch <- msg
	}
}

// Before returns up to limit messages in channelID with created_at <= at,
// newest first, excluding excludeID.
func (c *Cache) Before(channelID string, at time.Time, excludeID string, limit int) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := c.channels[channelID]
	var out []Message
	for i := len(buf) - 1; i >= 0 && len(out) < limit; i-- {
		msg := buf[i]
		if msg.ID == excludeID || msg.CreatedAt.After(at) {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// After returns the buffered messages in channelID with created_at >= at,
// oldest first, excluding excludeID.
func (c *Cache) After(channelID string, at time.Time, excludeID string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Message
	for _, msg := range c.channels[channelID] {
		if msg.ID == excludeID || msg.CreatedAt.Before(at) {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// WaitNext blocks until a message strictly newer than after arrives in
// channelID, the timeout elapses, or ctx is cancelled. The second return
// value reports whether a message was received; a timeout is not an error.
func (c *Cache) WaitNext(ctx context.Context, channelID string, after time.Time, excludeID string, timeout time.Duration) (Message, bool) {
	w := &waiter{after: after, excludeID: excludeID, ch: make(chan Message, 1)}

	c.mu.Lock()
	c.waiters[channelID] = append(c.waiters[channelID], w)
	c.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-w.ch:
		return msg, true
	case <-timer.C:
	case <-ctx.Done():
	}

	c.remove(channelID, w)

	// Append may have delivered between the timeout and the removal.
	select {
	case msg := <-w.ch:
		return msg, true
	default:
		return Message{}, false
	}
}

func (c *Cache) remove(channelID string, target *waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.waiters[channelID]
	for i, w := range pending {
		if w == target {
			c.waiters[channelID] = append(pending[:i], pending[i+1:]...)
			return
		}
	}
}
