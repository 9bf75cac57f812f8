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

var bplog = log.NewLogger("blocks")

// BlocksProcessor persists one page of blocks (and everything that fans out
// from them) as a single write transaction.
type BlocksProcessor struct {
	indexer  *index.Indexer
	registry *TokenRegistry
	tns      *TNSResolver
	fees     *FeeAggregator
}

func NewBlocksProcessor(indexer *index.Indexer, registry *TokenRegistry, tns *TNSResolver, fees *FeeAggregator) *BlocksProcessor {
	return &BlocksProcessor{indexer: indexer, registry: registry, tns: tns, fees: fees}
}

// ProcessBlocksPage persists page.Blocks in level-ascending order inside a
// single transaction and returns the number of blocks committed. Re-running
// this on an already-processed page is a no-op: a block whose hash is
// already stored (alreadyIndexed) is skipped before anything is written, so
// neither the block row nor its checkpoint rows are re-emitted.
func (p *BlocksProcessor) ProcessBlocksPage(ctx context.Context, page *rpc.BlockPage) (int, error) {
	count := 0
	err := p.indexer.WithTx(ctx, func(ctx context.Context) error {
		var parent *model.Block
		for _, raw := range page.Blocks {
			already, err := p.alreadyIndexed(ctx, raw.Hash)
			if err != nil {
				return err
			}
			if already {
				continue
			}

			var bakerId model.AccountID
			if raw.Baker.IsValid() {
				acc, err := p.indexer.LookupOrCreateAccount(ctx, raw.Baker)
				if err != nil {
					return err
				}
				bakerId = model.AccountID(acc.RowId)
			}

			block, err := model.NewBlock(raw, parent, bakerId)
			if err != nil {
				return err
			}

			if err := p.indexer.Insert(ctx, model.BlockTableKey, []pack.Item{block}); err != nil {
				return err
			}

			if err := p.fanOutCheckpoints(ctx, raw); err != nil {
				return err
			}

			if err := p.extractTokenActivity(ctx, raw); err != nil {
				return err
			}

			if p.tns != nil {
				p.tns.Apply(raw)
			}

			if p.fees != nil {
				for _, tx := range raw.Transactions {
					p.fees.Observe(classifyOpKind(tx.Entrypoint != "", tx.Delegate.IsValid()), tx.Fee)
				}
			}

			count++
			parent = block
		}
		return nil
	})
	if err != nil {
		return 0, &BlocksProcessingFailed{Message: "commit page", Cause: err}
	}
	return count, nil
}

func (p *BlocksProcessor) alreadyIndexed(ctx context.Context, hash tezos.BlockHash) (bool, error) {
	t, err := p.indexer.Table(model.BlockTableKey)
	if err != nil {
		return false, err
	}
	q := pack.NewQuery("block-exists").WithTable(t).AndEqual("H", hash.Bytes()).WithLimit(1)
	res, err := t.Query(ctx, q)
	if err != nil {
		return false, err
	}
	defer res.Close()
	return res.Rows() > 0, nil
}

// fanOutCheckpoints emits AccountCheckpoint/BakerCheckpoint rows for every
// account/baker touched by raw.
func (p *BlocksProcessor) fanOutCheckpoints(ctx context.Context, raw *rpc.Block) error {
	seen := make(map[string]bool)
	var accountCheckpoints []pack.Item
	var bakerCheckpoints []pack.Item

	addAccount := func(addr tezos.Address) error {
		if !addr.IsValid() || seen[addr.String()] {
			return nil
		}
		seen[addr.String()] = true
		acc, err := p.indexer.LookupOrCreateAccount(ctx, addr)
		if err != nil {
			return err
		}
		accountCheckpoints = append(accountCheckpoints, &model.AccountCheckpoint{
			AccountId:  model.AccountID(acc.RowId),
			Address:    addr,
			BlockLevel: raw.Level,
			BlockHash:  raw.Hash,
		})
		return nil
	}

	bakerSeen := make(map[string]bool)
	addBaker := func(addr tezos.Address) error {
		if !addr.IsValid() || bakerSeen[addr.String()] {
			return nil
		}
		bakerSeen[addr.String()] = true
		acc, err := p.indexer.LookupOrCreateAccount(ctx, addr)
		if err != nil {
			return err
		}
		bakerCheckpoints = append(bakerCheckpoints, &model.BakerCheckpoint{
			BakerId:    model.BakerID(acc.RowId),
			Address:    addr,
			BlockLevel: raw.Level,
			BlockHash:  raw.Hash,
		})
		return nil
	}

	if raw.Baker.IsValid() {
		if err := addBaker(raw.Baker); err != nil {
			return err
		}
	}
	for _, tx := range raw.Transactions {
		if err := addAccount(tx.Source); err != nil {
			return err
		}
		if err := addAccount(tx.Destination); err != nil {
			return err
		}
		if tx.Delegate.IsValid() {
			if err := addBaker(tx.Delegate); err != nil {
				return err
			}
		}
	}
	for _, e := range raw.Endorsements {
		if err := addBaker(e.Delegate); err != nil {
			return err
		}
	}

	if len(accountCheckpoints) > 0 {
		if err := p.indexer.Insert(ctx, model.AccountCheckpointTableKey, accountCheckpoints); err != nil {
			return err
		}
	}
	if len(bakerCheckpoints) > 0 {
		if err := p.indexer.Insert(ctx, model.BakerCheckpointTableKey, bakerCheckpoints); err != nil {
			return err
		}
	}
	return nil
}

// extractTokenActivity matches logs/calls in raw against the token registry
// and persists the resulting TokenTransfer and TokenBalance rows.
func (p *BlocksProcessor) extractTokenActivity(ctx context.Context, raw *rpc.Block) error {
	if p.registry == nil {
		return nil
	}

	receiptsByOp := make(map[int]*rpc.Receipt, len(raw.Receipts))
	for i := range raw.Receipts {
		receiptsByOp[raw.Receipts[i].OpIndex] = &raw.Receipts[i]
	}

	var transfers []pack.Item
	for _, l := range raw.Logs {
		xfer, from, to, ok := p.registry.MatchLog(raw.Level, l.OpIndex, l)
		if !ok {
			continue
		}
		if err := p.resolveTransferParties(ctx, xfer, from, to); err != nil {
			return err
		}
		transfers = append(transfers, xfer)
	}

	var balances []pack.Item
	for _, tx := range raw.Transactions {
		if xfer, from, to, ok := p.registry.MatchCall(raw.Level, tx.OpIndex, tx); ok {
			if err := p.resolveTransferParties(ctx, xfer, from, to); err != nil {
				return err
			}
			transfers = append(transfers, xfer)
			continue
		}
		bal, owner, ok := p.registry.MatchBalanceProbe(raw.Level, tx, receiptsByOp[tx.OpIndex])
		if !ok {
			continue
		}
		acc, err := p.indexer.LookupOrCreateAccount(ctx, owner)
		if err != nil {
			return err
		}
		bal.OwnerId = model.AccountID(acc.RowId)
		balances = append(balances, bal)
	}

	if len(transfers) > 0 {
		if err := p.indexer.Insert(ctx, model.TokenTransferTableKey, transfers); err != nil {
			return err
		}
	}
	if len(balances) > 0 {
		if err := p.indexer.Insert(ctx, model.TokenBalanceTableKey, balances); err != nil {
			return err
		}
	}
	return nil
}

// resolveTransferParties fills xfer.FromId/ToId from from/to, resolving
// each through the shared account table the same way fanOutCheckpoints
// does; a zero-value (unresolvable) address is left as AccountID 0.
func (p *BlocksProcessor) resolveTransferParties(ctx context.Context, xfer *model.TokenTransfer, from, to tezos.Address) error {
	if from.IsValid() {
		acc, err := p.indexer.LookupOrCreateAccount(ctx, from)
		if err != nil {
			return err
		}
		xfer.FromId = model.AccountID(acc.RowId)
	}
	if to.IsValid() {
		acc, err := p.indexer.LookupOrCreateAccount(ctx, to)
		if err != nil {
			return err
		}
		xfer.ToId = model.AccountID(acc.RowId)
	}
	return nil
}
