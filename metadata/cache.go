// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package metadata

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dennisklicker/Conseil/etl/index"
	"github.com/dennisklicker/Conseil/log"
)

var cachelog = log.NewLogger("attrcache")

const defaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	values        []string
	lastRefreshed time.Time
	ttl           time.Duration
}

func (e *cacheEntry) stale() bool {
	return e.lastRefreshed.IsZero() || time.Since(e.lastRefreshed) > e.ttl
}

// AttributeValueCache materializes the distinct value set for
// cardinality-safe attributes. Stale entries are served immediately while
// at most one refresh per attribute runs in the background, using
// singleflight to collapse concurrent refresh requests for the same key.
type AttributeValueCache struct {
	indexer *index.Indexer

	mu      sync.RWMutex
	entries map[string]*cacheEntry

	group singleflight.Group
}

func NewAttributeValueCache(indexer *index.Indexer) *AttributeValueCache {
	return &AttributeValueCache{indexer: indexer, entries: make(map[string]*cacheEntry)}
}

func cacheKey(entity Entity, attr Attribute) string {
	return entity.Name + "." + attr.Name
}

// Values returns the attribute's cached distinct value set filtered by
// prefix, refreshing in the background if the entry is stale or absent.
// The refresh itself blocks the first caller for a cold cache; subsequent
// staleness only triggers a background refresh while the old values are
// returned immediately.
func (c *AttributeValueCache) Values(ctx context.Context, entity Entity, attr Attribute, tableKey string, prefix string) ([]string, error) {
	key := cacheKey(entity, attr)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && !entry.stale() {
		return filterPrefix(entry.values, prefix), nil
	}

	if ok {
		// serve stale values immediately, refresh in the background
		go c.refresh(context.Background(), key, entity, attr, tableKey)
		return filterPrefix(entry.values, prefix), nil
	}

	// cold cache: block this caller on the single in-flight refresh
	values, err := c.refresh(ctx, key, entity, attr, tableKey)
	if err != nil {
		return nil, err
	}
	return filterPrefix(values, prefix), nil
}

func (c *AttributeValueCache) refresh(ctx context.Context, key string, entity Entity, attr Attribute, tableKey string) ([]string, error) {
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		ttl := defaultCacheTTL
		if d, ok := attr.cacheTTL(); ok && d > 0 {
			ttl = d
		}
		values, err := c.indexer.DistinctColumnValues(ctx, tableKey, attr.Column(), "", maxCachedValues(attr))
		if err != nil {
			cachelog.Errorf("refreshing attribute cache %s: %v", key, err)
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = &cacheEntry{values: values, lastRefreshed: time.Now(), ttl: ttl}
		c.mu.Unlock()
		return values, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// maxCachedValues bounds materialization to the configured cardinality,
// defaulting to a safe ceiling when the attribute carries none.
func maxCachedValues(attr Attribute) int {
	if attr.Cardinality != nil {
		return *attr.Cardinality
	}
	return 10000
}

func filterPrefix(values []string, prefix string) []string {
	if prefix == "" {
		return values
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if len(v) >= len(prefix) && v[:len(prefix)] == prefix {
			out = append(out, v)
		}
	}
	return out
}
