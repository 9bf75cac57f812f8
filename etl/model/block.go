// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package model

import (
	"sync"
	"time"

	"blockwatch.cc/packdb/pack"
	"blockwatch.cc/tzgo/tezos"

	"github.com/dennisklicker/Conseil/rpc"
)

const BlockTableKey = "block"

var blockPool *sync.Pool

func init() {
	blockPool = &sync.Pool{
		New: func() interface{} { return new(Block) },
	}
}

// Block is the persisted row for a single indexed level. Identity is Hash;
// Height is strictly increasing within a fork and immutable once committed.
type Block struct {
	RowId           uint64             `pack:"I,pk"             json:"row_id"`
	Hash            tezos.BlockHash    `pack:"H,snappy,bloom=3" json:"hash"`
	Height          int64              `pack:"h"                json:"height"`
	PredecessorHash tezos.BlockHash    `pack:"P,snappy"         json:"predecessor_hash"`
	Timestamp       time.Time          `pack:"T"                json:"time"`
	Protocol        tezos.ProtocolHash `pack:"p,snappy"         json:"protocol"`
	BakerId         AccountID          `pack:"B"                json:"baker_id"`
	MetadataBlob    []byte             `pack:"M,snappy"         json:"metadata_blob"`

	// transient, populated while building the row, never persisted
	TZ *rpc.Block `pack:"-" json:"-"`
}

var _ pack.Item = (*Block)(nil)

func (b Block) ID() uint64       { return b.RowId }
func (b *Block) SetID(id uint64) { b.RowId = id }
func (b Block) Time() time.Time  { return b.Timestamp }

func AllocBlock() *Block {
	return blockPool.Get().(*Block)
}

// NewBlock translates a raw RPC block into a row. parent is not read when
// building the row and may be nil (BlocksProcessor passes nil for the first
// block of every page). bakerId is the already
// dense-resolved AccountID for tz.Baker (resolution needs the indexer's
// account table, which this package doesn't hold a handle to), or zero if
// tz.Baker is unset.
func NewBlock(tz *rpc.Block, parent *Block, bakerId AccountID) (*Block, error) {
	b := AllocBlock()
	b.TZ = tz
	b.Hash = tz.Hash
	b.Height = tz.Level
	b.PredecessorHash = tz.PredecessorHash
	b.Timestamp = tz.Timestamp
	b.Protocol = tz.Protocol
	b.BakerId = bakerId
	b.MetadataBlob = tz.MetadataBlob
	return b, nil
}

func (b *Block) Free() {
	b.Reset()
	blockPool.Put(b)
}

func (b *Block) Reset() {
	b.RowId = 0
	b.Hash = tezos.BlockHash{}
	b.Height = 0
	b.PredecessorHash = tezos.BlockHash{}
	b.Timestamp = time.Time{}
	b.Protocol = tezos.ProtocolHash{}
	b.BakerId = 0
	b.MetadataBlob = nil
	b.TZ = nil
}

func (b Block) Clone() *Block {
	clone := b
	clone.TZ = nil
	return &clone
}
