// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package etl

import (
	"bytes"
	"math/big"

	"blockwatch.cc/tzgo/tezos"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/dennisklicker/Conseil/etl/model"
	"github.com/dennisklicker/Conseil/rpc"
)

// transferTopicSignature is the Keccak256 hash of the canonical ERC-20-style
// event signature, matched against Log.Topics[0] the same way every EVM
// indexer in the corpus recognizes a Transfer event.
var transferTopicSignature = ethcrypto.Keccak256([]byte("Transfer(address,address,uint256)"))

// fa12TransferEntrypoint / fa2TransferEntrypoint are the well-known Tezos
// token-standard entrypoint names BlocksProcessor matches contract calls
// against when no log-topic signature is available.
const (
	fa12TransferEntrypoint = "transfer"
	fa2TransferEntrypoint  = "transfer"

	erc20BalanceOfEntrypoint = "balanceOf"
	fa12GetBalanceEntrypoint = "getBalance"
	fa2BalanceOfEntrypoint   = "balance_of"
)

// TokenRegistry resolves a log or contract call against the configured set
// of known token contracts.
type TokenRegistry struct {
	byAddress map[string]*model.TokenContract
}

func NewTokenRegistry(contracts []model.TokenContract) *TokenRegistry {
	r := &TokenRegistry{byAddress: make(map[string]*model.TokenContract, len(contracts))}
	for i := range contracts {
		c := contracts[i]
		if c.Standard == model.TokenStandardERC20 && c.TransferTopic == nil {
			c.TransferTopic = transferTopicSignature
		}
		r.byAddress[c.Address.String()] = &c
	}
	return r
}

func (r *TokenRegistry) lookup(addr tezos.Address) (*model.TokenContract, bool) {
	c, ok := r.byAddress[addr.String()]
	return c, ok
}

// addressFromWord extracts the low 20 bytes of a 32-byte ABI-encoded word as
// a tezos.Address, the same representation rpc.Log.Address already uses for
// Ethereum-family contract addresses elsewhere in this package: this indexer
// normalizes every chain's account identity through tezos.Address rather
// than branching the whole model layer on chain family.
func addressFromWord(word []byte) tezos.Address {
	if len(word) < 20 {
		return tezos.Address{}
	}
	return tezos.NewAddress(tezos.AddressTypeContract, word[len(word)-20:])
}

// MatchLog checks an Ethereum-family log against the registry, returning a
// TokenTransfer (contract, standard, amount) if topic0 matches the
// contract's configured Transfer signature, plus the from/to addresses
// decoded out of topics 1 and 2 (still unresolved to account ids — that
// requires the indexer's account table, which the registry doesn't hold).
func (r *TokenRegistry) MatchLog(level int64, opIndex int, l rpc.Log) (xfer *model.TokenTransfer, from, to tezos.Address, ok bool) {
	c, found := r.lookup(l.Address)
	if !found || c.Standard != model.TokenStandardERC20 {
		return nil, tezos.Address{}, tezos.Address{}, false
	}
	if len(l.Topics) < 3 || !bytes.Equal(l.Topics[0], c.TransferTopic) {
		return nil, tezos.Address{}, tezos.Address{}, false
	}
	amount := new(big.Int).SetBytes(l.Data).Int64()
	xfer = &model.TokenTransfer{
		BlockLevel: level,
		OpIndex:    opIndex,
		Contract:   l.Address,
		Standard:   model.TokenStandardERC20,
		Amount:     amount,
	}
	return xfer, addressFromWord(l.Topics[1]), addressFromWord(l.Topics[2]), true
}

// MatchCall checks a Tezos contract call against the registry for FA1.2/FA2
// transfer entrypoints. The caller (tx.Source) is always resolvable as the
// sender; the recipient and amount are arguments of the Michelson-encoded
// call parameters, and decoding those requires the Michelson parameter
// walker this indexer treats as an external collaborator (spec Non-goals),
// the same gap etl/tns.go documents for TNS record updates — so those two
// fields are left zero rather than guessed at.
func (r *TokenRegistry) MatchCall(level int64, opIndex int, tx rpc.Transaction) (xfer *model.TokenTransfer, from, to tezos.Address, ok bool) {
	c, found := r.lookup(tx.Destination)
	if !found {
		return nil, tezos.Address{}, tezos.Address{}, false
	}
	switch c.Standard {
	case model.TokenStandardFA12:
		if tx.Entrypoint != fa12TransferEntrypoint {
			return nil, tezos.Address{}, tezos.Address{}, false
		}
	case model.TokenStandardFA2:
		if tx.Entrypoint != fa2TransferEntrypoint {
			return nil, tezos.Address{}, tezos.Address{}, false
		}
	default:
		return nil, tezos.Address{}, tezos.Address{}, false
	}
	xfer = &model.TokenTransfer{
		BlockLevel: level,
		OpIndex:    opIndex,
		Contract:   tx.Destination,
		Standard:   c.Standard,
	}
	return xfer, tx.Source, tezos.Address{}, true
}

// MatchBalanceProbe checks a Tezos or Ethereum-family contract call against
// the registry for a recognized read-only balance probe entrypoint, pairing
// it with the node-decoded ProbeResult the matching receipt carries. The
// probed owner is the call's own source address (the common "check my own
// balance" case); probes made on behalf of a third party would need the
// same Michelson-argument decoding MatchCall punts on for FA1.2/FA2, and are
// out of scope for the same reason.
func (r *TokenRegistry) MatchBalanceProbe(level int64, tx rpc.Transaction, receipt *rpc.Receipt) (bal *model.TokenBalance, owner tezos.Address, ok bool) {
	if receipt == nil {
		return nil, tezos.Address{}, false
	}
	c, found := r.lookup(tx.Destination)
	if !found {
		return nil, tezos.Address{}, false
	}
	switch c.Standard {
	case model.TokenStandardERC20:
		if tx.Entrypoint != erc20BalanceOfEntrypoint {
			return nil, tezos.Address{}, false
		}
	case model.TokenStandardFA12:
		if tx.Entrypoint != fa12GetBalanceEntrypoint {
			return nil, tezos.Address{}, false
		}
	case model.TokenStandardFA2:
		if tx.Entrypoint != fa2BalanceOfEntrypoint {
			return nil, tezos.Address{}, false
		}
	default:
		return nil, tezos.Address{}, false
	}
	bal = &model.TokenBalance{
		Contract:   tx.Destination,
		Balance:    receipt.ProbeResult,
		BlockLevel: level,
	}
	return bal, tx.Source, true
}
