// Package cache holds the most recent search result and the captured portal
// credentials.
package cache

import (
	"sync"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/pkg/models"
)

// DefaultIdentity keys the credentials of the single operator session.
const DefaultIdentity = "default"

// Cache is a single overwritten search slot plus credentials keyed by user
// identity. Readers never observe a partially written result.
type Cache struct {
	mu          sync.RWMutex
	result      *models.TrainSearchResult
	credentials map[string]models.CapturedCredentials
	generation  uint64
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{credentials: make(map[string]models.CapturedCredentials)}
}

// SetResult replaces the search slot.
func (c *Cache) SetResult(res *models.TrainSearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = res
	c.generation++
}

// Result returns the cached search result or a CacheEmpty error.
func (c *Cache) Result() (*models.TrainSearchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.result == nil {
		return nil, apperr.ErrCacheEmpty
	}
	return c.result, nil
}

// Trains returns the cached train list or a CacheEmpty error.
func (c *Cache) Trains() ([]models.TrainRecord, error) {
	res, err := c.Result()
	if err != nil {
		return nil, err
	}
	return res.Trains, nil
}

// SetCredentials stores credentials for identity.
func (c *Cache) SetCredentials(identity string, creds models.CapturedCredentials) {
	if identity == "" {
		identity = DefaultIdentity
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credentials[identity] = creds
}

// Credentials returns the credentials stored for identity.
func (c *Cache) Credentials(identity string) (models.CapturedCredentials, error) {
	if identity == "" {
		identity = DefaultIdentity
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	creds, ok := c.credentials[identity]
	if !ok {
		return models.CapturedCredentials{}, apperr.New(apperr.CacheEmpty, "cache.credentials",
			"no credentials captured for %q; run a train search first", identity)
	}
	return creds, nil
}

// Generation counts search results stored since start.
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Clear empties the search slot and every credential.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = nil
	c.credentials = make(map[string]models.CapturedCredentials)
}
