// ABOUTME: Thread-safe TTL cache for suppressing duplicate Telegram updates
// ABOUTME: Long polling can redeliver updates after restarts or timeouts

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	at   time.Time
	elem *list.Element
}

// Cache tracks recently handled update IDs with a TTL and a size cap.
// Insertion order is kept in a linked list so capacity eviction is O(1).
type Cache struct {
	mu      sync.Mutex
	seen    map[int]*entry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a dedupe cache. A background goroutine sweeps expired
// entries once a minute until Close.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[int]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Seen atomically checks whether updateID was already handled and marks
// it if not. Returns true for duplicates.
func (c *Cache) Seen(updateID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.seen[updateID]; ok && time.Since(e.at) < c.ttl {
		return true
	}

	c.mark(updateID)
	return false
}

// mark records updateID. Must be called with mu held.
func (c *Cache) mark(updateID int) {
	now := time.Now()

	if e, ok := c.seen[updateID]; ok {
		e.at = now
		c.order.MoveToBack(e.elem)
		return
	}

	if len(c.seen) >= c.maxSize {
		if front := c.order.Front(); front != nil {
			old, _ := front.Value.(int)
			c.order.Remove(front)
			delete(c.seen, old)
		}
	}

	c.seen[updateID] = &entry{at: now, elem: c.order.PushBack(updateID)}
}

// Len returns the number of tracked entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *Cache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for id, e := range c.seen {
		if now.Sub(e.at) > c.ttl {
			c.order.Remove(e.elem)
			delete(c.seen, id)
		}
	}
}

// Close stops the sweep goroutine. Safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
