package gateway

import (
	"strconv"
	"sync"
	"time"
)

// auditCache remembers recently resolved audit log actors so a burst of
// events from one attacker does not hammer the audit log endpoint.
type auditCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]auditCacheEntry
}

type auditCacheEntry struct {
	actorID string
	at      time.Time
}

func newAuditCache(ttl time.Duration) *auditCache {
	return &auditCache{
		ttl:     ttl,
		entries: make(map[string]auditCacheEntry),
	}
}

func (c *auditCache) key(scopeID string, action int) string {
	return scopeID + ":" + strconv.Itoa(action)
}

func (c *auditCache) store(scopeID string, action int, actorID string) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[c.key(scopeID, action)] = auditCacheEntry{actorID: actorID, at: now}
	for k, v := range c.entries {
		if now.Sub(v.at) > c.ttl {
			delete(c.entries, k)
		}
	}
}

func (c *auditCache) get(scopeID string, action int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[c.key(scopeID, action)]
	if !ok || time.Since(e.at) > c.ttl {
		return "", false
	}
	return e.actorID, true
}
