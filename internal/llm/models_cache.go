package llm

import (
	"sync"
	"time"

	"github.com/set-night/interviewcoach/internal/domain"
)

// ModelsCache keeps the last fetched catalogue. Listing honours the TTL;
// price lookups use whatever was fetched last, since prices rarely move.
type ModelsCache struct {
	mu       sync.RWMutex
	models   []domain.AIModel
	byID     map[string]domain.AIModel
	cachedAt time.Time
	ttl      time.Duration
	now      func() time.Time
}

func NewModelsCache(ttl time.Duration) *ModelsCache {
	return &ModelsCache{ttl: ttl, now: time.Now}
}

// Get returns nil when nothing is cached or the entry has expired.
func (c *ModelsCache) Get() []domain.AIModel {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.models == nil || c.now().Sub(c.cachedAt) > c.ttl {
		return nil
	}
	return c.models
}

// Lookup finds a model by id in the last catalogue, expired or not.
func (c *ModelsCache) Lookup(id string) (domain.AIModel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byID[id]
	return m, ok
}

func (c *ModelsCache) Set(models []domain.AIModel) {
	byID := make(map[string]domain.AIModel, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = models
	c.byID = byID
	c.cachedAt = c.now()
}
