package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryCache is a process-local Cache used when no Redis URL is configured.
// Expired entries are dropped on read and by a sweep that runs on writes at
// most once per sweepInterval.
type MemoryCache struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	now       func() time.Time
	nextSweep time.Time
}

const sweepInterval = time.Minute

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Ping(_ context.Context) error { return nil }

func (c *MemoryCache) SetJobStatus(_ context.Context, jobID string, status string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep()
	c.entries[JobStatusKey(jobID)] = memoryEntry{value: status, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) GetJobStatus(_ context.Context, jobID string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.live(JobStatusKey(jobID))
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

// IncrWithExpiry increments key, starting a new window of length expiry
// when the key is absent or expired.
func (c *MemoryCache) IncrWithExpiry(_ context.Context, key string, expiry time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep()
	e, ok := c.live(key)
	var n int64
	if ok {
		n, _ = strconv.ParseInt(e.value, 10, 64)
	} else {
		e.expiresAt = c.now().Add(expiry)
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	c.entries[key] = e
	return n, nil
}

func (c *MemoryCache) Close() error { return nil }

// live returns the entry for key, dropping it if expired. Caller holds mu.
func (c *MemoryCache) live(key string) (memoryEntry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

// sweep deletes every expired entry if the sweep interval has elapsed.
// Caller holds mu.
func (c *MemoryCache) sweep() {
	now := c.now()
	if now.Before(c.nextSweep) {
		return
	}
	c.nextSweep = now.Add(sweepInterval)
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

var _ Cache = (*MemoryCache)(nil)
