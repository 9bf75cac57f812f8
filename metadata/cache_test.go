// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterPrefix(t *testing.T) {
	values := []string{"alice", "alex", "bob"}
	assert.Equal(t, []string{"alice", "alex"}, filterPrefix(values, "al"))
	assert.Equal(t, values, filterPrefix(values, ""))
	assert.Empty(t, filterPrefix(values, "zz"))
}

func TestMaxCachedValuesDefaultsWhenUnbounded(t *testing.T) {
	assert.Equal(t, 10000, maxCachedValues(Attribute{}))
}

func TestMaxCachedValuesHonorsCardinality(t *testing.T) {
	n := 5000
	assert.Equal(t, 5000, maxCachedValues(Attribute{Cardinality: &n}))
}

func TestCacheEntryStale(t *testing.T) {
	e := &cacheEntry{}
	assert.True(t, e.stale(), "a never-refreshed entry is always stale")
}
