package local

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("cache: key not found")

// Config holds LocalCache settings.
type Config struct {
	GCInterval time.Duration
}

// record is a cached string value with an optional expiry. Sessions and
// notification markers carry a TTL; activity snapshots do not.
type record struct {
	data     string
	expireAt time.Time
	noExpiry bool
}

func (r *record) expired() bool {
	return !r.noExpiry && time.Now().After(r.expireAt)
}

// LocalCache is the in-process Cache used when no Redis is configured.
// Expired records linger until read or collected by the GC sweep.
type LocalCache struct {
	mu         sync.Mutex // serializes SetNX check-and-store
	kv         sync.Map   // key → *record
	lists      sync.Map   // key → *strList
	gcInterval time.Duration
	stopGC     chan struct{}
}

// NewCache creates a LocalCache and starts its GC sweep.
func NewCache(cfg Config) (*LocalCache, error) {
	interval := cfg.GCInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	c := &LocalCache{
		gcInterval: interval,
		stopGC:     make(chan struct{}),
	}
	go c.collect()
	return c, nil
}

// Close stops the GC sweep.
func (c *LocalCache) Close() {
	close(c.stopGC)
}

func (c *LocalCache) collect() {
	ticker := time.NewTicker(c.gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.kv.Range(func(k, v interface{}) bool {
				if r, ok := v.(*record); ok && r.expired() {
					c.kv.Delete(k)
				}
				return true
			})
		case <-c.stopGC:
			return
		}
	}
}

// ---- KV ----

func (c *LocalCache) Get(_ context.Context, key string) (string, error) {
	v, ok := c.kv.Load(key)
	if !ok {
		return "", ErrNotFound
	}
	r := v.(*record)
	if r.expired() {
		c.kv.Delete(key)
		return "", ErrNotFound
	}
	return r.data, nil
}

func (c *LocalCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.kv.Store(key, newRecord(value, ttl))
	return nil
}

func (c *LocalCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.kv.Delete(k)
	}
	return nil
}

func (c *LocalCache) Exists(_ context.Context, key string) (bool, error) {
	v, ok := c.kv.Load(key)
	if !ok {
		return false, nil
	}
	r := v.(*record)
	if r.expired() {
		c.kv.Delete(key)
		return false, nil
	}
	return true, nil
}

func (c *LocalCache) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.kv.Load(key); ok {
		if r, live := v.(*record); live && !r.expired() {
			return false, nil
		}
	}
	c.kv.Store(key, newRecord(value, ttl))
	return true, nil
}

func (c *LocalCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	v, ok := c.kv.Load(key)
	if !ok {
		return ErrNotFound
	}
	r := v.(*record)
	if r.expired() {
		c.kv.Delete(key)
		return ErrNotFound
	}
	c.kv.Store(key, &record{data: r.data, expireAt: time.Now().Add(ttl)})
	return nil
}

func newRecord(value string, ttl time.Duration) *record {
	r := &record{data: value}
	if ttl > 0 {
		r.expireAt = time.Now().Add(ttl)
	} else {
		r.noExpiry = true
	}
	return r
}

// ---- List ----

// strList backs the chat history ring.
type strList struct {
	mu   sync.Mutex
	data []string
}

func (c *LocalCache) listFor(key string) *strList {
	v, _ := c.lists.LoadOrStore(key, &strList{})
	return v.(*strList)
}

// LPush prepends values in argument order, so the last value lands at
// index 0, matching Redis.
func (c *LocalCache) LPush(_ context.Context, key string, values ...string) error {
	l := c.listFor(key)
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, v := range values {
		l.data = append([]string{v}, l.data...)
	}
	return nil
}

func (c *LocalCache) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	l := c.listFor(key)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := int64(len(l.data))
	if start >= n {
		return nil, nil
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	out := make([]string, stop-start+1)
	copy(out, l.data[start:stop+1])
	return out, nil
}

func (c *LocalCache) LTrim(_ context.Context, key string, start, stop int64) error {
	l := c.listFor(key)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := int64(len(l.data))
	if start >= n {
		l.data = nil
		return nil
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	l.data = l.data[start : stop+1]
	return nil
}
