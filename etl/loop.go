// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/dennisklicker/Conseil/etl/index"
	"github.com/dennisklicker/Conseil/etl/model"
	"github.com/dennisklicker/Conseil/log"
	"github.com/dennisklicker/Conseil/rpc"
)

var looplog = log.NewLogger("loop")

// LoopConfig carries every timing/threshold knob IndexerLoop needs.
type LoopConfig struct {
	Mode                         Mode
	IgnoreProcessFailures        bool // sourced from LORRE_FAILURE_IGNORE, passed in explicitly
	BootupConnectionCheckTimeout time.Duration
	BootupRetryInterval          time.Duration
	SleepInterval                time.Duration
	FeeUpdateInterval            int64 // in main-loop iterations
	LookaheadCycles              int64
	AccountsBatchSize            int
	BakersBatchSize              int
	ResetEvents                  []model.ResetEvent
}

// IndexerLoop drives BlockFetchPlanner -> NodeClient -> BlocksProcessor ->
// {Accounts,Bakers,Rights}Processor, applying AccountsResetHandler before
// each cycle.
type IndexerLoop struct {
	cfg LoopConfig

	client     *rpc.Client
	indexer    *index.Indexer
	planner    *BlockFetchPlanner
	blocks     *BlocksProcessor
	accounts   *AccountsProcessor
	bakers     *BakersProcessor
	rights     *RightsProcessor
	resets     *AccountsResetHandler
	fees       *FeeAggregator
}

func NewIndexerLoop(
	cfg LoopConfig,
	client *rpc.Client,
	indexer *index.Indexer,
	planner *BlockFetchPlanner,
	blocks *BlocksProcessor,
	accounts *AccountsProcessor,
	bakers *BakersProcessor,
	rights *RightsProcessor,
	resets *AccountsResetHandler,
	fees *FeeAggregator,
) *IndexerLoop {
	return &IndexerLoop{
		cfg: cfg, client: client, indexer: indexer, planner: planner,
		blocks: blocks, accounts: accounts, bakers: bakers, rights: rights,
		resets: resets, fees: fees,
	}
}

// Run executes the full state machine until ctx is canceled (tail mode) or
// the configured depth is fully processed (Everything/Custom modes), or a
// non-ignored processing failure occurs.
func (l *IndexerLoop) Run(ctx context.Context) error {
	if err := l.waitForConnection(ctx); err != nil {
		return err
	}

	pendingResets, err := l.loadPendingResets(ctx)
	if err != nil {
		return fmt.Errorf("loop: loading pending resets: %w", err)
	}

	var iteration int64
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		nextResets, err := l.runCycle(ctx, iteration, pendingResets)
		if err != nil {
			if l.cfg.IgnoreProcessFailures {
				looplog.Errorf("cycle %d failed, continuing (ignoreProcessFailures=true): %v", iteration, err)
				// resets are retained unchanged
			} else {
				looplog.Errorf("cycle %d failed, terminating (ignoreProcessFailures=false): %v", iteration, err)
				return err
			}
		} else {
			pendingResets = nextResets
		}

		iteration++

		if l.cfg.Mode.Kind != ModeNewest {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.cfg.SleepInterval):
		}
	}
}

// runCycle executes one [Cycle] iteration: apply_resets, process_blocks,
// future rights fetch (when LookaheadCycles > 0), maybe_fees,
// update_rights_timestamps.
func (l *IndexerLoop) runCycle(ctx context.Context, iteration int64, resets []model.ResetEvent) ([]model.ResetEvent, error) {
	unhandled, err := l.resets.ApplyUnhandledAccountsResets(ctx, resets)
	if err != nil {
		return resets, err
	}

	if err := l.processBlocks(ctx); err != nil {
		return resets, err
	}

	if l.cfg.LookaheadCycles > 0 {
		head, err := l.client.GetBlockHead(ctx)
		if err != nil {
			return resets, err
		}
		if _, err := l.rights.WriteFutureRights(ctx, head.Cycle, l.cfg.LookaheadCycles); err != nil {
			looplog.Warnf("future rights fetch failed: %v", err)
		}
	}

	if l.fees != nil && l.cfg.FeeUpdateInterval > 0 && iteration%l.cfg.FeeUpdateInterval == 0 {
		if _, err := l.fees.Aggregate(ctx); err != nil {
			looplog.Warnf("fee aggregation failed: %v", err)
		}
	}

	if _, err := l.rights.UpdateRightsTimestamps(ctx); err != nil {
		looplog.Warnf("rights timestamp backfill failed: %v", err)
	}

	return unhandled, nil
}

// processBlocks plans and drains the page sequence for this cycle, fanning
// out to the dependent processors per page, strictly in order
// (parallelism=1).
func (l *IndexerLoop) processBlocks(ctx context.Context) error {
	dbLevel, err := l.indexer.Tip(ctx)
	if err != nil {
		return err
	}
	dbKnown := dbLevel > 0

	pages, total, err := l.planner.Plan(ctx, l.cfg.Mode, dbLevel, dbKnown)
	if err != nil {
		return err
	}
	if total > 0 {
		looplog.Infof("planned %d levels to fetch", total)
	}

	for {
		page, ok, err := pages.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		if _, err := l.blocks.ProcessBlocksPage(ctx, page); err != nil {
			return err
		}
		if err := l.rights.ProcessBakingAndEndorsingRights(ctx, page); err != nil {
			return err
		}
		if _, err := l.accounts.ProcessCheckpoint(ctx, l.cfg.AccountsBatchSize); err != nil {
			return err
		}
		if _, err := l.bakers.ProcessCheckpoint(ctx, l.cfg.BakersBatchSize); err != nil {
			return err
		}
	}
	return nil
}

// waitForConnection polls the node until reachable, sleeping
// BootupRetryInterval between attempts.
func (l *IndexerLoop) waitForConnection(ctx context.Context) error {
	for {
		checkCtx, cancel := context.WithTimeout(ctx, l.cfg.BootupConnectionCheckTimeout)
		_, err := l.client.GetBlockHead(checkCtx)
		cancel()
		if err == nil {
			return nil
		}
		looplog.Warnf("node unreachable, retrying in %s: %v", l.cfg.BootupRetryInterval, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.cfg.BootupRetryInterval):
		}
	}
}

// loadPendingResets computes the configured ResetEvents that are already
// due (activation_level <= L_db) but not yet applied, with a 5-second
// ceiling.
func (l *IndexerLoop) loadPendingResets(ctx context.Context) ([]model.ResetEvent, error) {
	loadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	dbLevel, err := l.indexer.Tip(loadCtx)
	if err != nil {
		return nil, err
	}
	return l.resets.UnprocessedResetRequestLevels(l.cfg.ResetEvents, dbLevel), nil
}
