package apkchannel

import (
	"bytes"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/avast/apkchannel/signingblock"
)

// Cache memoizes lookups on one APK, which must not change while the cache is in use.
// Results are computed on first use, errors included. Concurrent callers asking for the
// same result share a single read of the file.
type Cache struct {
	path  string
	group singleflight.Group

	mu      sync.Mutex
	results map[string]cacheResult
}

type cacheResult struct {
	value any
	err   error
}

const (
	cacheKeyPairs   = "pairs"
	cacheKeyChannel = "channel"
)

// NewCache returns an empty cache of the APK at path.
func NewCache(path string) *Cache {
	return &Cache{
		path:    path,
		results: make(map[string]cacheResult),
	}
}

// Get is a memoized GetIdValue.
func (c *Cache) Get(id uint32) ([]byte, error) {
	v, err := c.getOrCompute(cacheKeyPairs, func() (any, error) {
		return signingblock.ReadPairs(c.path)
	})
	if err != nil {
		return nil, err
	}

	pairs, _ := v.(*signingblock.Pairs)
	value, ok := pairs.Get(id)
	if !ok {
		return nil, nil
	}
	return bytes.Clone(value), nil
}

// Channel is a memoized GetChannel.
func (c *Cache) Channel() (string, error) {
	v, err := c.getOrCompute(cacheKeyChannel, func() (any, error) {
		return GetChannel(c.path)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cache) getOrCompute(key string, compute func() (any, error)) (any, error) {
	if res, ok := c.lookup(key); ok {
		return res.value, res.err
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Another caller may have finished between lookup and Do.
		if res, ok := c.lookup(key); ok {
			return res.value, res.err
		}

		v, err := compute()
		c.mu.Lock()
		c.results[key] = cacheResult{value: v, err: err}
		c.mu.Unlock()
		return v, err
	})
	return v, err
}

func (c *Cache) lookup(key string) (cacheResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.results[key]
	return res, ok
}

func (c *Cache) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("Cache(%s, %d results)", c.path, len(c.results))
}
