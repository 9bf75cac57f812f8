// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

// Package model defines the persisted row shapes for the indexer: blocks,
// account/baker checkpoints and snapshots, rights, reset events and token
// transfer/balance rows. Every type implements blockwatch.cc/packdb/pack.Item
// so it can be stored in and queried from a pack.Table.
package model

// AccountID is the internal, dense row identifier assigned to an account the
// first time it is observed. Checkpoints, snapshots and ops all reference
// accounts by AccountID rather than by address to keep join keys small.
type AccountID uint64

func (a AccountID) Value() uint64 { return uint64(a) }

// BakerID aliases AccountID: every baker is also an account, tracked in its
// own checkpoint/snapshot tables because its reconciliation rules differ.
type BakerID = AccountID
