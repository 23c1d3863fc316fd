package services

import (
	"sync"

	"github.com/Govind-619/PayRoute/gateways"
)

// AdapterEntry is the outcome of initializing one gateway: an adapter, or
// the error Initialize returned.
type AdapterEntry struct {
	Version int64
	Adapter gateways.Adapter
	Err     error
}

// AdapterCache holds one initialized adapter per gateway, tagged with the
// config version it was built from. A failed initialization is cached too,
// so a broken gateway is not retried until its row changes.
type AdapterCache struct {
	mu      sync.RWMutex
	entries map[uint]AdapterEntry
}

func NewAdapterCache() *AdapterCache {
	return &AdapterCache{entries: make(map[uint]AdapterEntry)}
}

// Get returns the entry for gatewayID if it was built from version.
func (c *AdapterCache) Get(gatewayID uint, version int64) (AdapterEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[gatewayID]
	if !ok || e.Version != version {
		return AdapterEntry{}, false
	}
	return e, true
}

// Put stores the outcome of building gatewayID at version. Concurrent
// builders for the same key may both store; the last write wins.
func (c *AdapterCache) Put(gatewayID uint, version int64, adapter gateways.Adapter, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[gatewayID] = AdapterEntry{Version: version, Adapter: adapter, Err: err}
}

func (c *AdapterCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint]AdapterEntry)
}

func (c *AdapterCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
