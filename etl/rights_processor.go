// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package etl

import (
	"context"
	"sync/atomic"
	"time"

	"blockwatch.cc/packdb/pack"

	"github.com/dennisklicker/Conseil/etl/index"
	"github.com/dennisklicker/Conseil/etl/model"
	"github.com/dennisklicker/Conseil/log"
	"github.com/dennisklicker/Conseil/rpc"
)

var rplog = log.NewLogger("rights")

// RightsProcessor handles baking/endorsing rights: a periodic
// future-rights fetch, a synchronous pass over freshly indexed blocks, and
// a timestamp backfill.
type RightsProcessor struct {
	indexer *index.Indexer
	client  *rpc.Client

	// running guards writeFutureRights against overlapping ticks.
	running int32
}

func NewRightsProcessor(indexer *index.Indexer, client *rpc.Client) *RightsProcessor {
	return &RightsProcessor{indexer: indexer, client: client}
}

// WriteFutureRights fetches baking/endorsing rights for the next
// lookaheadCycles starting at currentCycle and inserts them as new rows;
// rows already stored for the same level and delegate are neither updated
// nor de-duplicated. Concurrent
// ticks are dropped rather than queued: if a previous run is still in
// flight this call is a no-op and returns false.
func (p *RightsProcessor) WriteFutureRights(ctx context.Context, currentCycle int64, lookaheadCycles int64) (bool, error) {
	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		rplog.Debugf("writeFutureRights already running, skipping tick")
		return false, nil
	}
	defer atomic.StoreInt32(&p.running, 0)

	var rows []pack.Item
	for c := currentCycle; c < currentCycle+lookaheadCycles; c++ {
		baking, err := p.client.GetBakingRights(ctx, c)
		if err != nil {
			return true, err
		}
		endorsing, err := p.client.GetEndorsingRights(ctx, c)
		if err != nil {
			return true, err
		}
		for _, r := range baking {
			row, err := p.toModelRights(ctx, r)
			if err != nil {
				return true, err
			}
			rows = append(rows, row)
		}
		for _, r := range endorsing {
			row, err := p.toModelRights(ctx, r)
			if err != nil {
				return true, err
			}
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return true, nil
	}
	if err := p.indexer.Insert(ctx, model.RightsTableKey, rows); err != nil {
		return true, err
	}
	rplog.Infof("inserted %d rights rows for cycles [%d,%d)", len(rows), currentCycle, currentCycle+lookaheadCycles)
	return true, nil
}

// ProcessBakingAndEndorsingRights inserts rights derived directly from a
// just-indexed page of blocks, run synchronously inside the same cycle as
// BlocksProcessor.
func (p *RightsProcessor) ProcessBakingAndEndorsingRights(ctx context.Context, page *rpc.BlockPage) error {
	var rows []pack.Item
	for _, b := range page.Blocks {
		for _, e := range b.Endorsements {
			acc, err := p.indexer.LookupOrCreateAccount(ctx, e.Delegate)
			if err != nil {
				return err
			}
			for _, slot := range e.Slots {
				rows = append(rows, &model.Rights{
					Level:         b.Level,
					Cycle:         b.Cycle,
					DelegateId:    model.AccountID(acc.RowId),
					Slot:          slot,
					Kind:          model.RightsKindEndorsing,
					EstimatedTime: b.Timestamp,
				})
			}
		}
		if b.Baker.IsValid() {
			acc, err := p.indexer.LookupOrCreateAccount(ctx, b.Baker)
			if err != nil {
				return err
			}
			rows = append(rows, &model.Rights{
				Level:         b.Level,
				Cycle:         b.Cycle,
				DelegateId:    model.AccountID(acc.RowId),
				Kind:          model.RightsKindBaking,
				EstimatedTime: b.Timestamp,
			})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return p.indexer.Insert(ctx, model.RightsTableKey, rows)
}

// UpdateRightsTimestamps backfills EstimatedTime for rights rows whose
// block has since been indexed.
func (p *RightsProcessor) UpdateRightsTimestamps(ctx context.Context) (int, error) {
	t, err := p.indexer.Table(model.RightsTableKey)
	if err != nil {
		return 0, err
	}
	q := pack.NewQuery("rights-missing-timestamp").WithTable(t).AndEqual("T", time.Time{})
	res, err := t.Query(ctx, q)
	if err != nil {
		return 0, err
	}
	defer res.Close()

	var updated []pack.Item
	err = res.Walk(func(r pack.Row) error {
		row := &model.Rights{}
		if err := r.Decode(row); err != nil {
			return err
		}
		ts, err := p.indexer.LookupBlockTimestamp(ctx, row.Level)
		if err != nil {
			// block not indexed yet; leave for next tick
			return nil
		}
		row.EstimatedTime = ts
		updated = append(updated, row)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(updated) == 0 {
		return 0, nil
	}
	if err := p.indexer.Update(ctx, model.RightsTableKey, updated); err != nil {
		return 0, err
	}
	return len(updated), nil
}

func (p *RightsProcessor) toModelRights(ctx context.Context, r *rpc.Rights) (*model.Rights, error) {
	kind := model.RightsKindBaking
	if r.Kind == rpc.RightsKindEndorsing {
		kind = model.RightsKindEndorsing
	}
	var delegateId model.AccountID
	if r.Delegate.IsValid() {
		acc, err := p.indexer.LookupOrCreateAccount(ctx, r.Delegate)
		if err != nil {
			return nil, err
		}
		delegateId = model.AccountID(acc.RowId)
	}
	return &model.Rights{
		Level:      r.Level,
		Cycle:      r.Cycle,
		DelegateId: delegateId,
		Slot:       r.Slot,
		Kind:       kind,
	}, nil
}
