package bridge

import (
	"sync"

	"github.com/pitabwire/outlookbridge/internal/odata"
)

// SessionFactory builds an authenticated client for a service root.
type SessionFactory func(serviceRoot, token string) *odata.Client

// SessionCache keeps the most recently used client. A call with the same
// service root and token reuses it; any change replaces it.
type SessionCache struct {
	factory SessionFactory

	mu     sync.Mutex
	root   string
	token  string
	client *odata.Client
}

// NewSessionCache creates an empty cache.
func NewSessionCache(factory SessionFactory) *SessionCache {
	return &SessionCache{factory: factory}
}

// Get returns the client for (serviceRoot, token) and whether it was reused.
func (c *SessionCache) Get(serviceRoot, token string) (*odata.Client, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.root == serviceRoot && c.token == token {
		return c.client, true
	}
	c.client = c.factory(serviceRoot, token)
	c.root = serviceRoot
	c.token = token
	return c.client, false
}

// Current returns the cached client, or nil.
func (c *SessionCache) Current() *odata.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}
