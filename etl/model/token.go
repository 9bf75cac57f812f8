// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package model

import (
	"blockwatch.cc/packdb/pack"
	"blockwatch.cc/tzgo/tezos"
)

const (
	TokenTransferTableKey = "token_transfer"
	TokenBalanceTableKey  = "token_balance"
)

// TokenStandard distinguishes the registry entry that matched a log/call.
type TokenStandard uint8

const (
	TokenStandardUnknown TokenStandard = iota
	TokenStandardERC20
	TokenStandardFA12
	TokenStandardFA2
)

// TokenTransfer is derived from matching a log's topics (Ethereum-family) or
// entrypoint call (Tezos FA1.2/FA2) against the configured token registry.
type TokenTransfer struct {
	RowId       uint64        `pack:"I,pk" json:"row_id"`
	BlockLevel  int64         `pack:"h"    json:"block_level"`
	OpIndex     int           `pack:"o"    json:"op_index"`
	Contract    tezos.Address `pack:"C,snappy,bloom=3" json:"contract"`
	Standard    TokenStandard `pack:"S"    json:"standard"`
	FromId      AccountID     `pack:"F"    json:"from_id"`
	ToId        AccountID     `pack:"T"    json:"to_id"`
	Amount      int64         `pack:"A"    json:"amount"`
	TokenId     int64         `pack:"t"    json:"token_id"`
}

var _ pack.Item = (*TokenTransfer)(nil)

func (t TokenTransfer) ID() uint64       { return t.RowId }
func (t *TokenTransfer) SetID(id uint64) { t.RowId = id }

// TokenBalance is derived from a balanceOf probe matched against the token
// registry, keyed by (Contract, Owner, TokenId).
type TokenBalance struct {
	RowId      uint64        `pack:"I,pk" json:"row_id"`
	Contract   tezos.Address `pack:"C,snappy,bloom=3" json:"contract"`
	OwnerId    AccountID     `pack:"O"    json:"owner_id"`
	TokenId    int64         `pack:"t"    json:"token_id"`
	Balance    int64         `pack:"B"    json:"balance"`
	BlockLevel int64         `pack:"h"    json:"block_level"`
}

var _ pack.Item = (*TokenBalance)(nil)

func (b TokenBalance) ID() uint64       { return b.RowId }
func (b *TokenBalance) SetID(id uint64) { b.RowId = id }

// TokenContract is one entry of the configured token registry BlocksProcessor
// matches logs/calls against.
type TokenContract struct {
	Address       tezos.Address
	Standard      TokenStandard
	TransferTopic []byte // Keccak256("Transfer(address,address,uint256)") for ERC-20-family contracts
}
