// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package etl

import (
	"context"
	"fmt"

	"blockwatch.cc/tzgo/tezos"

	"github.com/dennisklicker/Conseil/log"
	"github.com/dennisklicker/Conseil/rpc"
)

var plannerLog = log.NewLogger("planner")

// ModeKind selects the fetch strategy BlockFetchPlanner computes pages for.
type ModeKind int

const (
	ModeNewest ModeKind = iota
	ModeEverything
	ModeCustom
)

// Mode describes how much of the chain to (re)fetch. N and HeadHash are only
// meaningful for ModeCustom.
type Mode struct {
	Kind     ModeKind
	N        int64
	HeadHash tezos.BlockHash
}

// BlockFetchPlanner computes which blocks to fetch given the configured Mode,
// the latest persisted level and the node's head.
type BlockFetchPlanner struct {
	client *rpc.Client
	// BootstrapWindow is how far back of the head to start from in ModeNewest
	// when no level has ever been persisted (L_db unknown). Default 0 means
	// "from genesis".
	BootstrapWindow int64
}

func NewBlockFetchPlanner(client *rpc.Client, bootstrapWindow int64) *BlockFetchPlanner {
	return &BlockFetchPlanner{client: client, BootstrapWindow: bootstrapWindow}
}

// Plan returns a lazy page sequence and the total level count it covers
// (used for progress reporting), given mode, the latest persisted level
// dbLevel and whether any level has ever been persisted (dbKnown).
func (p *BlockFetchPlanner) Plan(ctx context.Context, mode Mode, dbLevel int64, dbKnown bool) (*rpc.PageSeq, int64, error) {
	head, err := p.client.GetBlockHead(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("planner: fetching head: %w", err)
	}

	var from, to int64
	switch mode.Kind {
	case ModeNewest:
		to = head.Level
		if !dbKnown {
			if p.BootstrapWindow > 0 {
				from = head.Level - p.BootstrapWindow
				if from < 0 {
					from = 0
				}
			}
		} else {
			from = dbLevel + 1
		}

	case ModeEverything:
		from = 0
		to = head.Level

	case ModeCustom:
		to = head.Level
		from = head.Level - mode.N + 1
		if from < 0 {
			from = 0
		}
		if mode.HeadHash.IsValid() && !mode.HeadHash.Equal(head.Hash) {
			// The configured anchor no longer matches the live head. We prefer
			// the live head and log the
			// divergence rather than halting, keeping the planner available
			// for the common "anchor pinned to an older run" case.
			plannerLog.Warnf("custom mode head anchor %s diverges from live head %s, using live head",
				mode.HeadHash, head.Hash)
		}

	default:
		return nil, 0, fmt.Errorf("planner: unknown mode %d", mode.Kind)
	}

	if from > to {
		// nothing to do: already caught up
		return p.client.GetBlocksRange(to+1, to), 0, nil
	}

	total := to - from + 1
	return p.client.GetBlocksRange(from, to), total, nil
}
