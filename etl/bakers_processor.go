// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package etl

import (
	"context"

	"blockwatch.cc/packdb/pack"
	"blockwatch.cc/tzgo/tezos"

	"github.com/dennisklicker/Conseil/etl/index"
	"github.com/dennisklicker/Conseil/etl/model"
	"github.com/dennisklicker/Conseil/log"
	"github.com/dennisklicker/Conseil/rpc"
)

var bklog = log.NewLogger("bakers")

// BakersProcessor mirrors AccountsProcessor for BakerCheckpoint rows. Each
// snapshot records the account balance as StakingBalance and marks the
// baker Active; DelegatedBalance and NumDelegators are left zero.
type BakersProcessor struct {
	indexer *index.Indexer
	client  *rpc.Client
}

func NewBakersProcessor(indexer *index.Indexer, client *rpc.Client) *BakersProcessor {
	return &BakersProcessor{indexer: indexer, client: client}
}

func (p *BakersProcessor) ProcessCheckpoint(ctx context.Context, batchSize int) (int, error) {
	t, err := p.indexer.Table(model.BakerCheckpointTableKey)
	if err != nil {
		return 0, &BakersProcessingFailed{Message: "open checkpoint table", Cause: err}
	}

	q := pack.NewQuery("pending-baker-checkpoints").WithTable(t)
	res, err := t.Query(ctx, q)
	if err != nil {
		return 0, &BakersProcessingFailed{Message: "read checkpoints", Cause: err}
	}
	var pending []*model.BakerCheckpoint
	err = res.Walk(func(r pack.Row) error {
		c := &model.BakerCheckpoint{}
		if err := r.Decode(c); err != nil {
			return err
		}
		pending = append(pending, c)
		return nil
	})
	res.Close()
	if err != nil {
		return 0, &BakersProcessingFailed{Message: "decode checkpoints", Cause: err}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	collapsed := model.CollapseBakerCheckpoints(pending)

	if batchSize <= 0 {
		batchSize = 100
	}
	processed := 0
	for start := 0; start < len(collapsed); start += batchSize {
		end := start + batchSize
		if end > len(collapsed) {
			end = len(collapsed)
		}
		chunk := collapsed[start:end]

		byAddr := make(map[string]*model.CollapsedCheckpoint, len(chunk))
		byLevel := make(map[int64][]tezos.Address)
		for _, c := range chunk {
			byAddr[c.Address.String()] = c
			byLevel[c.Level] = append(byLevel[c.Level], c.Address)
		}

		// each baker's state is fetched at its own collapsed level
		var states []*rpc.AccountState
		for level, addrs := range byLevel {
			levelStates, err := p.client.GetAccountsAt(ctx, level, addrs)
			if err != nil {
				bklog.Errorf("fetching baker state failed: %v", err)
				return processed, &BakersProcessingFailed{Message: "fetch baker state", Cause: err}
			}
			states = append(states, levelStates...)
		}

		var snapshots []pack.Item
		var deleteIds []uint64
		for _, st := range states {
			c, ok := byAddr[st.Address.String()]
			if !ok {
				continue
			}
			snapshots = append(snapshots, &model.BakerSnapshot{
				BakerId:        c.AccountId,
				BlockLevel:     c.Level,
				StakingBalance: st.Balance,
				Active:         true,
			})
			deleteIds = append(deleteIds, c.SourceIds...)
		}

		if err := p.indexer.Insert(ctx, model.BakerSnapshotTableKey, snapshots); err != nil {
			return processed, &BakersProcessingFailed{Message: "persist snapshots", Cause: err}
		}
		if err := p.indexer.DeleteIds(ctx, model.BakerCheckpointTableKey, deleteIds); err != nil {
			return processed, &BakersProcessingFailed{Message: "delete consumed checkpoints", Cause: err}
		}
		processed += len(snapshots)
	}

	return processed, nil
}
