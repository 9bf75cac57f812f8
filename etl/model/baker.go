// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package model

import (
	"blockwatch.cc/packdb/pack"
)

const BakerSnapshotTableKey = "baker_snapshot"

// BakerSnapshot mirrors AccountSnapshot for delegate-specific state such as
// staking balance, which the plain account snapshot does not carry.
type BakerSnapshot struct {
	RowId          uint64  `pack:"I,pk" json:"row_id"`
	BakerId        BakerID `pack:"B"    json:"baker_id"`
	BlockLevel     int64   `pack:"h"    json:"block_level"`
	StakingBalance int64   `pack:"s"    json:"staking_balance"`
	DelegatedBalance int64 `pack:"d"    json:"delegated_balance"`
	NumDelegators  int     `pack:"n"    json:"num_delegators"`
	Active         bool    `pack:"a"    json:"active"`
}

var _ pack.Item = (*BakerSnapshot)(nil)

func (s BakerSnapshot) ID() uint64       { return s.RowId }
func (s *BakerSnapshot) SetID(id uint64) { s.RowId = id }
