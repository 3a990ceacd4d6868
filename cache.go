package sheetdb

import (
	"reflect"
	"sync"
)

// instanceCache is the advisory per-table map from business key to the most
// recently hydrated record. It exists to avoid store round-trips for records
// already seen this session; it is never authoritative and never consulted
// for range-optimized queries, which need store-fresh ordering.
type instanceCache struct {
	mu    sync.Mutex
	byKey map[string]reflect.Value
}

func newInstanceCache() *instanceCache {
	return &instanceCache{byKey: make(map[string]reflect.Value)}
}

func (c *instanceCache) put(key string, rowVal reflect.Value) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey[key] = rowVal
}

func (c *instanceCache) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byKey, key)
}

// snapshot returns the cached records in unspecified order.
func (c *instanceCache) snapshot() []reflect.Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]reflect.Value, 0, len(c.byKey))
	for _, v := range c.byKey {
		out = append(out, v)
	}
	return out
}
