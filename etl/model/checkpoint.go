// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package model

import (
	"blockwatch.cc/packdb/pack"
	"blockwatch.cc/tzgo/tezos"
)

const (
	AccountCheckpointTableKey = "account_checkpoint"
	BakerCheckpointTableKey   = "baker_checkpoint"
)

// AccountCheckpoint is a pending work item: account AccountId must be
// re-snapshotted at BlockLevel. Multiple rows per account are allowed;
// AccountsProcessor collapses them to the latest (level, hash) per account
// before processing.
type AccountCheckpoint struct {
	RowId      uint64        `pack:"I,pk" json:"row_id"`
	AccountId  AccountID     `pack:"A"    json:"account_id"`
	Address    tezos.Address `pack:"a,snappy" json:"address"`
	BlockLevel int64         `pack:"h"    json:"block_level"`
	BlockHash  tezos.BlockHash `pack:"H,snappy" json:"block_hash"`
	Cycle      int64         `pack:"c"    json:"cycle"`
	// Synthetic rows are inserted by AccountsResetHandler rather than
	// discovered from a processed block; kept for observability only.
	Synthetic  bool          `pack:"s"    json:"synthetic"`
}

var _ pack.Item = (*AccountCheckpoint)(nil)

func (c AccountCheckpoint) ID() uint64       { return c.RowId }
func (c *AccountCheckpoint) SetID(id uint64) { c.RowId = id }

// BakerCheckpoint is the delegate-side analogue of AccountCheckpoint.
type BakerCheckpoint struct {
	RowId      uint64          `pack:"I,pk" json:"row_id"`
	BakerId    BakerID         `pack:"B"    json:"baker_id"`
	Address    tezos.Address   `pack:"a,snappy" json:"address"`
	BlockLevel int64           `pack:"h"    json:"block_level"`
	BlockHash  tezos.BlockHash `pack:"H,snappy" json:"block_hash"`
	Cycle      int64           `pack:"c"    json:"cycle"`
}

var _ pack.Item = (*BakerCheckpoint)(nil)

func (c BakerCheckpoint) ID() uint64       { return c.RowId }
func (c *BakerCheckpoint) SetID(id uint64) { c.RowId = id }

// CollapsedCheckpoint is the result of collapsing all pending rows for one
// account/baker down to the single latest (level, hash) entry that should be
// snapshotted, together with the set of source RowIds it replaces so the
// caller can delete exactly those rows on success.
type CollapsedCheckpoint struct {
	AccountId AccountID
	Address   tezos.Address
	Level     int64
	Hash      tezos.BlockHash
	SourceIds []uint64
}

// CollapseAccountCheckpoints keeps the latest (highest BlockLevel) row per
// AccountId and records every source RowId folded into it.
func CollapseAccountCheckpoints(rows []*AccountCheckpoint) []*CollapsedCheckpoint {
	byAccount := make(map[AccountID]*CollapsedCheckpoint, len(rows))
	for _, r := range rows {
		cur, ok := byAccount[r.AccountId]
		if !ok {
			byAccount[r.AccountId] = &CollapsedCheckpoint{
				AccountId: r.AccountId,
				Address:   r.Address,
				Level:     r.BlockLevel,
				Hash:      r.BlockHash,
				SourceIds: []uint64{r.RowId},
			}
			continue
		}
		cur.SourceIds = append(cur.SourceIds, r.RowId)
		if r.BlockLevel > cur.Level {
			cur.Level = r.BlockLevel
			cur.Hash = r.BlockHash
		}
	}
	out := make([]*CollapsedCheckpoint, 0, len(byAccount))
	for _, v := range byAccount {
		out = append(out, v)
	}
	return out
}

// CollapseBakerCheckpoints is the BakerCheckpoint analogue of
// CollapseAccountCheckpoints.
func CollapseBakerCheckpoints(rows []*BakerCheckpoint) []*CollapsedCheckpoint {
	byBaker := make(map[BakerID]*CollapsedCheckpoint, len(rows))
	for _, r := range rows {
		cur, ok := byBaker[r.BakerId]
		if !ok {
			byBaker[r.BakerId] = &CollapsedCheckpoint{
				AccountId: r.BakerId,
				Address:   r.Address,
				Level:     r.BlockLevel,
				Hash:      r.BlockHash,
				SourceIds: []uint64{r.RowId},
			}
			continue
		}
		cur.SourceIds = append(cur.SourceIds, r.RowId)
		if r.BlockLevel > cur.Level {
			cur.Level = r.BlockLevel
			cur.Hash = r.BlockHash
		}
	}
	out := make([]*CollapsedCheckpoint, 0, len(byBaker))
	for _, v := range byBaker {
		out = append(out, v)
	}
	return out
}
