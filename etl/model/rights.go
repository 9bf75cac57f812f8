// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package model

import (
	"time"

	"blockwatch.cc/packdb/pack"
)

const RightsTableKey = "rights"

type RightsKind uint8

const (
	RightsKindBaking RightsKind = iota
	RightsKindEndorsing
)

func (k RightsKind) String() string {
	if k == RightsKindEndorsing {
		return "endorsing"
	}
	return "baking"
}

// Rights is a single future baking/endorsing eligibility row.
// EstimatedTime is zero for rows written by RightsProcessor.WriteFutureRights
// until RightsProcessor.UpdateRightsTimestamps backfills it once the
// corresponding block has been indexed; rows derived from an indexed block
// carry that block's timestamp from the start.
type Rights struct {
	RowId         uint64     `pack:"I,pk" json:"row_id"`
	Level         int64      `pack:"h"    json:"level"`
	Cycle         int64      `pack:"c"    json:"cycle"`
	DelegateId    BakerID    `pack:"D"    json:"delegate_id"`
	Slot          int        `pack:"s"    json:"slot"`
	Kind          RightsKind `pack:"k"    json:"kind"`
	EstimatedTime time.Time  `pack:"T"    json:"estimated_time"`
}

var _ pack.Item = (*Rights)(nil)

func (r Rights) ID() uint64       { return r.RowId }
func (r *Rights) SetID(id uint64) { r.RowId = id }
