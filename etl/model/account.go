// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package model

import (
	"blockwatch.cc/packdb/pack"
	"blockwatch.cc/tzgo/tezos"
)

const (
	AccountTableKey         = "account"
	AccountSnapshotTableKey = "account_snapshot"
)

// Account is the identity row assigned the first time an address is seen.
// RowId is the AccountID referenced by checkpoints, snapshots and ops.
type Account struct {
	RowId   uint64        `pack:"I,pk"     json:"row_id"`
	Address tezos.Address `pack:"a,snappy,bloom=3" json:"address"`
	IsBaker bool          `pack:"b"        json:"is_baker"`
}

var _ pack.Item = (*Account)(nil)

func (a Account) ID() uint64       { return a.RowId }
func (a *Account) SetID(id uint64) { a.RowId = id }

// AccountSnapshot is the balance/delegate/counter state of an account at a
// specific block level, keyed by (AccountId, BlockLevel).
type AccountSnapshot struct {
	RowId      uint64    `pack:"I,pk" json:"row_id"`
	AccountId  AccountID `pack:"A"    json:"account_id"`
	BlockLevel int64     `pack:"h"    json:"block_level"`
	Balance    int64     `pack:"B"    json:"balance"`
	DelegateId AccountID `pack:"D"    json:"delegate_id"`
	Counter    int64     `pack:"c"    json:"counter"`
}

var _ pack.Item = (*AccountSnapshot)(nil)

func (s AccountSnapshot) ID() uint64       { return s.RowId }
func (s *AccountSnapshot) SetID(id uint64) { s.RowId = id }
