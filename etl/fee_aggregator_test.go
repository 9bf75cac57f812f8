// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package etl

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dennisklicker/Conseil/etl/model"
)

func TestFeeWindowStatsEmpty(t *testing.T) {
	w := newFeeWindow(3)
	mean, high, low, n := w.stats()
	assert.Zero(t, n)
	assert.Zero(t, mean)
	assert.Zero(t, high)
	assert.Zero(t, low)
}

func TestFeeWindowStats(t *testing.T) {
	w := newFeeWindow(3)
	w.add(10)
	w.add(20)
	w.add(30)

	mean, high, low, n := w.stats()
	assert.Equal(t, 3, n)
	assert.Equal(t, int64(30), high)
	assert.Equal(t, int64(10), low)
	assert.Equal(t, 20.0, mean)
}

// TestFeeWindowRingBufferEviction checks that once capacity is exceeded the
// oldest sample is evicted, matching the sliding-window semantics
// FeeAggregator.Aggregate relies on.
func TestFeeWindowRingBufferEviction(t *testing.T) {
	w := newFeeWindow(2)
	w.add(10)
	w.add(20)
	w.add(30) // evicts 10

	mean, high, low, n := w.stats()
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(30), high)
	assert.Equal(t, int64(20), low)
	assert.Equal(t, 25.0, mean)
}

func TestClassifyOpKind(t *testing.T) {
	assert.Equal(t, model.OpKindDelegation, classifyOpKind(true, true))
	assert.Equal(t, model.OpKindTransaction, classifyOpKind(true, false))
	assert.Equal(t, model.OpKindTransaction, classifyOpKind(false, false))
}
