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

var aplog = log.NewLogger("accounts")

// AccountsProcessor consumes AccountCheckpoint rows and reconciles account
// snapshot state.
type AccountsProcessor struct {
	indexer *index.Indexer
	client  *rpc.Client
}

func NewAccountsProcessor(indexer *index.Indexer, client *rpc.Client) *AccountsProcessor {
	return &AccountsProcessor{indexer: indexer, client: client}
}

// ProcessCheckpoint reads all pending AccountCheckpoint rows, collapses them
// to the latest (level, hash) per account, fetches state in batches and
// persists snapshots. On success, exactly the source rows collapsed into a
// processed entry are deleted — newer rows inserted concurrently are left
// untouched. On a node failure the rows of the failing batch and of every
// later batch are kept; batches already persisted earlier in the same call
// keep their deletions.
func (p *AccountsProcessor) ProcessCheckpoint(ctx context.Context, batchSize int) (int, error) {
	t, err := p.indexer.Table(model.AccountCheckpointTableKey)
	if err != nil {
		return 0, &AccountsProcessingFailed{Message: "open checkpoint table", Cause: err}
	}

	q := pack.NewQuery("pending-account-checkpoints").WithTable(t)
	res, err := t.Query(ctx, q)
	if err != nil {
		return 0, &AccountsProcessingFailed{Message: "read checkpoints", Cause: err}
	}
	var pending []*model.AccountCheckpoint
	err = res.Walk(func(r pack.Row) error {
		c := &model.AccountCheckpoint{}
		if err := r.Decode(c); err != nil {
			return err
		}
		pending = append(pending, c)
		return nil
	})
	res.Close()
	if err != nil {
		return 0, &AccountsProcessingFailed{Message: "decode checkpoints", Cause: err}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	collapsed := model.CollapseAccountCheckpoints(pending)

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

		// each account's state is fetched at its own collapsed level
		var states []*rpc.AccountState
		for level, addrs := range byLevel {
			levelStates, err := p.client.GetAccountsAt(ctx, level, addrs)
			if err != nil {
				// surface the failure; nothing in this or later chunks is
				// deleted, so the next cycle retries those checkpoints
				aplog.Errorf("fetching account state failed: %v", err)
				return processed, &AccountsProcessingFailed{Message: "fetch account state", Cause: err}
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
			var delegateId model.AccountID
			if st.Delegate.IsValid() {
				delAcc, err := p.indexer.LookupOrCreateAccount(ctx, st.Delegate)
				if err != nil {
					return processed, &AccountsProcessingFailed{Message: "resolve delegate", Cause: err}
				}
				delegateId = model.AccountID(delAcc.RowId)
			}
			snapshots = append(snapshots, &model.AccountSnapshot{
				AccountId:  c.AccountId,
				BlockLevel: c.Level,
				Balance:    st.Balance,
				DelegateId: delegateId,
				Counter:    st.Counter,
			})
			deleteIds = append(deleteIds, c.SourceIds...)
		}

		if err := p.indexer.Insert(ctx, model.AccountSnapshotTableKey, snapshots); err != nil {
			return processed, &AccountsProcessingFailed{Message: "persist snapshots", Cause: err}
		}
		if err := p.indexer.DeleteIds(ctx, model.AccountCheckpointTableKey, deleteIds); err != nil {
			return processed, &AccountsProcessingFailed{Message: "delete consumed checkpoints", Cause: err}
		}
		processed += len(snapshots)
	}

	return processed, nil
}
