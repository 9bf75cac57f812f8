// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package etl

import (
	"sync"

	"blockwatch.cc/tzgo/tezos"

	"github.com/dennisklicker/Conseil/log"
	"github.com/dennisklicker/Conseil/rpc"
)

var tnsLog = log.NewLogger("tns")

// TNSResolver applies Tezos Names Service mappings observed in a block's
// contract calls. Absence of a configured TNS contract is logged exactly
// once and then treated as permanently disabled, a log-once-degrade-gracefully
// idiom for optional features.
type TNSResolver struct {
	Contract tezos.Address // zero value means "not configured"

	once     sync.Once
	disabled bool
}

func NewTNSResolver(contract tezos.Address) *TNSResolver {
	return &TNSResolver{Contract: contract}
}

// Apply scans a block's transactions for successful update_record/set_name
// calls to the configured TNS contract and returns their source addresses,
// keyed by the address string; the names themselves are not decoded.
func (t *TNSResolver) Apply(block *rpc.Block) map[string]tezos.Address {
	if !t.Contract.IsValid() {
		t.once.Do(func() {
			t.disabled = true
			tnsLog.Infof("no TNS contract configured, name resolution disabled")
		})
		return nil
	}
	out := make(map[string]tezos.Address)
	for _, tx := range block.Transactions {
		if !tx.Destination.Equal(t.Contract) || !tx.Success {
			continue
		}
		if tx.Entrypoint != "update_record" && tx.Entrypoint != "set_name" {
			continue
		}
		// Parameter decoding into a concrete name/address pair is a
		// Michelson-specific concern handled by the pretty-printer; here we
		// only record that a mapping
		// event occurred for this source so downstream reporting tools can
		// request the decoded parameters lazily.
		out[tx.Source.String()] = tx.Source
	}
	return out
}

// Enabled reports whether name resolution is active for this run.
func (t *TNSResolver) Enabled() bool {
	return t.Contract.IsValid()
}
