// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package model

import (
	"time"

	"blockwatch.cc/packdb/pack"
)

const FeeStatTableKey = "fee_stat"

// OpKind is the coarse operation kind FeeAggregator buckets by.
type OpKind uint8

const (
	OpKindTransaction OpKind = iota
	OpKindOrigination
	OpKindDelegation
	OpKindReveal
)

// FeeStat is a periodic sliding-window fee aggregate: mean/high/low fee
// across the last N operations of a kind.
type FeeStat struct {
	RowId     uint64    `pack:"I,pk" json:"row_id"`
	Kind      OpKind    `pack:"k"    json:"kind"`
	Timestamp time.Time `pack:"T"    json:"time"`
	Mean      float64   `pack:"m"    json:"mean_fee"`
	High      int64     `pack:"H"    json:"high_fee"`
	Low       int64     `pack:"L"    json:"low_fee"`
	SampleSize int      `pack:"n"    json:"sample_size"`
}

var _ pack.Item = (*FeeStat)(nil)

func (f FeeStat) ID() uint64       { return f.RowId }
func (f *FeeStat) SetID(id uint64) { f.RowId = id }
