// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package rpc

import (
	"time"

	"blockwatch.cc/tzgo/tezos"
)

// Block is the raw RPC shape returned by a node for one level. Builder code
// in etl/model translates this into the persisted model.Block row.
type Block struct {
	Hash            tezos.BlockHash `json:"hash"`
	Level           int64           `json:"level"`
	PredecessorHash tezos.BlockHash `json:"predecessor_hash"`
	Cycle           int64           `json:"cycle"`
	Timestamp       time.Time       `json:"timestamp"`
	Protocol        tezos.ProtocolHash `json:"protocol"`
	Baker           tezos.Address   `json:"baker"`
	MetadataBlob    []byte          `json:"metadata"`

	Transactions []Transaction `json:"transactions"`
	Receipts     []Receipt     `json:"receipts"`
	Logs         []Log         `json:"logs"`
	Endorsements []Endorsement `json:"endorsements"`
}

// Transaction is a single operation inside a block, already flattened across
// batches/internal calls for ease of checkpoint fan-out.
type Transaction struct {
	OpIndex    int           `json:"op_index"`
	Hash       tezos.OpHash  `json:"hash"`
	Source     tezos.Address `json:"source"`
	Destination tezos.Address `json:"destination"`
	Delegate   tezos.Address `json:"delegate,omitempty"`
	Fee        int64         `json:"fee"`
	Amount     int64         `json:"amount"`
	Counter    int64         `json:"counter"`
	Entrypoint string        `json:"entrypoint,omitempty"`
	Parameters []byte        `json:"parameters,omitempty"`
	Success    bool          `json:"success"`
}

// Receipt carries gas/storage accounting for a Transaction.
type Receipt struct {
	OpIndex      int    `json:"op_index"`
	GasUsed      int64  `json:"gas_used"`
	StoragePaid  int64  `json:"storage_paid"`
	Status       string `json:"status"`
	Errors       []byte `json:"errors,omitempty"`

	// ProbeResult is the decoded return value of a read-only balance probe
	// (ERC-20 balanceOf / FA1.2 getBalance / FA2 balance_of) against the
	// matching Transaction's OpIndex, already resolved by the node client;
	// zero for ordinary receipts.
	ProbeResult int64 `json:"probe_result,omitempty"`
}

// Log is an emitted event, shared shape for Ethereum-style logs and Tezos
// Michelson internal transaction events (etl.TokenRegistry matches against it).
type Log struct {
	OpIndex int      `json:"op_index"`
	Address tezos.Address `json:"address"`
	Topics  [][]byte `json:"topics"`
	Data    []byte   `json:"data"`
}

// Endorsement is a baking/endorsing attestation embedded in the block.
type Endorsement struct {
	Delegate tezos.Address `json:"delegate"`
	Slots    []int         `json:"slots"`
}

// AccountState is the per-level snapshot state the node reports for an
// account; it is translated into an etl/model.AccountSnapshot row.
type AccountState struct {
	Address  tezos.Address `json:"address"`
	Balance  int64         `json:"balance"`
	Delegate tezos.Address `json:"delegate,omitempty"`
	Counter  int64         `json:"counter"`
	IsBaker  bool          `json:"is_baker"`
}

// RightsKind distinguishes baking from endorsing rights rows.
type RightsKind string

const (
	RightsKindBaking    RightsKind = "baking"
	RightsKindEndorsing RightsKind = "endorsing"
)

// Rights is a single future baking/endorsing eligibility row.
type Rights struct {
	Level         int64      `json:"level"`
	Cycle         int64      `json:"cycle"`
	Delegate      tezos.Address `json:"delegate"`
	Slot          int        `json:"slot"`
	Kind          RightsKind `json:"kind"`
	EstimatedTime time.Time  `json:"estimated_time"`
}

// HeadInfo is the minimal shape needed by BlockFetchPlanner and the
// periodic future-rights fetch.
type HeadInfo struct {
	Hash  tezos.BlockHash
	Level int64
	Cycle int64
}
