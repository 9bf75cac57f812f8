// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package etl

import (
	"context"
	"sync"
	"time"

	"blockwatch.cc/packdb/pack"

	"github.com/dennisklicker/Conseil/etl/index"
	"github.com/dennisklicker/Conseil/etl/model"
	"github.com/dennisklicker/Conseil/log"
)

var felog = log.NewLogger("fees")

// feeWindow is a fixed-capacity ring buffer of the most recent fees observed
// for one operation kind.
type feeWindow struct {
	fees []int64
	cap  int
	pos  int
}

func newFeeWindow(capacity int) *feeWindow {
	return &feeWindow{cap: capacity}
}

func (w *feeWindow) add(fee int64) {
	if len(w.fees) < w.cap {
		w.fees = append(w.fees, fee)
		return
	}
	w.fees[w.pos] = fee
	w.pos = (w.pos + 1) % w.cap
}

func (w *feeWindow) stats() (mean float64, high, low int64, n int) {
	n = len(w.fees)
	if n == 0 {
		return 0, 0, 0, 0
	}
	var sum int64
	high, low = w.fees[0], w.fees[0]
	for _, f := range w.fees {
		sum += f
		if f > high {
			high = f
		}
		if f < low {
			low = f
		}
	}
	return float64(sum) / float64(n), high, low, n
}

// FeeAggregator computes periodic sliding-window fee statistics per
// operation kind. BlocksProcessor feeds it samples as it indexes
// transactions; IndexerLoop drives its periodic persistence.
type FeeAggregator struct {
	indexer *index.Indexer

	mu      sync.Mutex
	windows map[model.OpKind]*feeWindow
	sample  int
}

// NewFeeAggregator creates an aggregator keeping the last numberOfFeesAveraged
// samples per operation kind.
func NewFeeAggregator(indexer *index.Indexer, numberOfFeesAveraged int) *FeeAggregator {
	if numberOfFeesAveraged <= 0 {
		numberOfFeesAveraged = 1000
	}
	return &FeeAggregator{indexer: indexer, windows: make(map[model.OpKind]*feeWindow), sample: numberOfFeesAveraged}
}

// Observe records a single operation's fee against its kind.
func (a *FeeAggregator) Observe(kind model.OpKind, fee int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	w, ok := a.windows[kind]
	if !ok {
		w = newFeeWindow(a.sample)
		a.windows[kind] = w
	}
	w.add(fee)
}

// Aggregate persists one FeeStat row per observed operation kind, computed
// over the current sliding window. Called every feeUpdateInterval main-loop
// iterations.
func (a *FeeAggregator) Aggregate(ctx context.Context) (int, error) {
	a.mu.Lock()
	snapshot := make(map[model.OpKind]*feeWindow, len(a.windows))
	for k, w := range a.windows {
		snapshot[k] = w
	}
	a.mu.Unlock()

	var rows []pack.Item
	now := time.Now()
	for kind, w := range snapshot {
		mean, high, low, n := w.stats()
		if n == 0 {
			continue
		}
		rows = append(rows, &model.FeeStat{
			Kind:       kind,
			Timestamp:  now,
			Mean:       mean,
			High:       high,
			Low:        low,
			SampleSize: n,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := a.indexer.Insert(ctx, model.FeeStatTableKey, rows); err != nil {
		felog.Errorf("persisting fee aggregates: %v", err)
		return 0, err
	}
	return len(rows), nil
}

// classifyOpKind infers a coarse fee-bucket kind from a transaction's shape.
// Full operation-kind tagging (origination, reveal, ...) lives with the
// upstream node's operation encoding; here we only need enough resolution
// for meaningful fee buckets.
func classifyOpKind(hasEntrypoint, hasDelegate bool) model.OpKind {
	switch {
	case hasDelegate:
		return model.OpKindDelegation
	case hasEntrypoint:
		return model.OpKindTransaction
	default:
		return model.OpKindTransaction
	}
}
