// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

// Package metadata merges the physical table schema with a configured
// override tree into the discovery/query-facing vocabulary: platforms,
// networks, entities and attributes, each carrying a cascaded visibility
// flag and a presentation-only data type.
package metadata

import (
	"github.com/dennisklicker/Conseil/etl/model"
)

// DataType is the presentation-facing, PascalCase type label attributes are
// serialized with.
type DataType string

const (
	DataTypeInt            DataType = "Int"
	DataTypeString         DataType = "String"
	DataTypeHash           DataType = "Hash"
	DataTypeDecimal        DataType = "Decimal"
	DataTypeBoolean        DataType = "Boolean"
	DataTypeDateTime       DataType = "DateTime"
	DataTypeAccountAddress DataType = "AccountAddress"
)

// AttributePhysical binds a discovery-facing attribute name to the packdb
// field tag backing it, plus the type the query engine validates operands
// against regardless of any presentation override.
type AttributePhysical struct {
	Name        string
	Column      string
	DataType    DataType
	KeyType     string
	Cardinality *int // nil: no declared bound; value lookups fall back to maxCachedValues' default cap
}

// EntityPhysical is one queryable table.
type EntityPhysical struct {
	Name       string
	TableKey   string
	Attributes []AttributePhysical
}

// NetworkPhysical groups the entities available on one chain network. The
// entity set is identical across networks of the same platform; only the
// underlying table contents differ, since each indexer instance runs
// against a single network.
type NetworkPhysical struct {
	Name     string
	Entities []EntityPhysical
}

type PlatformPhysical struct {
	Name     string
	Networks []NetworkPhysical
}

// PhysicalSchema is the full, statically-known table layout the override
// tree is projected onto.
type PhysicalSchema struct {
	Platforms []PlatformPhysical
}

func cardinality(n int) *int { return &n }

// tezosEntities describes the queryable tables for one Tezos network.
func tezosEntities() []EntityPhysical {
	return []EntityPhysical{
		{
			Name:     "block",
			TableKey: model.BlockTableKey,
			Attributes: []AttributePhysical{
				{Name: "hash", Column: "H", DataType: DataTypeHash, KeyType: "primary"},
				{Name: "height", Column: "h", DataType: DataTypeInt, KeyType: "index"},
				{Name: "predecessor_hash", Column: "P", DataType: DataTypeHash},
				{Name: "timestamp", Column: "T", DataType: DataTypeDateTime},
				{Name: "protocol", Column: "p", DataType: DataTypeHash},
				{Name: "baker_id", Column: "B", DataType: DataTypeInt},
			},
		},
		{
			Name:     "account",
			TableKey: model.AccountSnapshotTableKey,
			Attributes: []AttributePhysical{
				{Name: "account_id", Column: "A", DataType: DataTypeInt, KeyType: "index"},
				{Name: "block_level", Column: "h", DataType: DataTypeInt},
				{Name: "balance", Column: "B", DataType: DataTypeDecimal},
				{Name: "delegate_id", Column: "D", DataType: DataTypeInt},
				{Name: "counter", Column: "c", DataType: DataTypeInt},
			},
		},
		{
			Name:     "baker",
			TableKey: model.BakerSnapshotTableKey,
			Attributes: []AttributePhysical{
				{Name: "baker_id", Column: "B", DataType: DataTypeInt, KeyType: "index"},
				{Name: "block_level", Column: "h", DataType: DataTypeInt},
				{Name: "staking_balance", Column: "s", DataType: DataTypeDecimal},
				{Name: "delegated_balance", Column: "d", DataType: DataTypeDecimal},
				{Name: "num_delegators", Column: "n", DataType: DataTypeInt, Cardinality: cardinality(5000)},
				{Name: "active", Column: "a", DataType: DataTypeBoolean, Cardinality: cardinality(2)},
			},
		},
		{
			Name:     "rights",
			TableKey: model.RightsTableKey,
			Attributes: []AttributePhysical{
				{Name: "level", Column: "h", DataType: DataTypeInt},
				{Name: "cycle", Column: "c", DataType: DataTypeInt},
				{Name: "delegate_id", Column: "D", DataType: DataTypeInt},
				{Name: "slot", Column: "s", DataType: DataTypeInt},
				{Name: "kind", Column: "k", DataType: DataTypeString, Cardinality: cardinality(2)},
				{Name: "estimated_time", Column: "T", DataType: DataTypeDateTime},
			},
		},
		{
			Name:     "token_transfer",
			TableKey: model.TokenTransferTableKey,
			Attributes: []AttributePhysical{
				{Name: "block_level", Column: "h", DataType: DataTypeInt},
				{Name: "op_index", Column: "o", DataType: DataTypeInt},
				{Name: "contract", Column: "C", DataType: DataTypeAccountAddress},
				{Name: "standard", Column: "S", DataType: DataTypeString, Cardinality: cardinality(4)},
				{Name: "from_id", Column: "F", DataType: DataTypeInt},
				{Name: "to_id", Column: "T", DataType: DataTypeInt},
				{Name: "amount", Column: "A", DataType: DataTypeDecimal},
				{Name: "token_id", Column: "t", DataType: DataTypeInt},
			},
		},
		{
			Name:     "token_balance",
			TableKey: model.TokenBalanceTableKey,
			Attributes: []AttributePhysical{
				{Name: "contract", Column: "C", DataType: DataTypeAccountAddress},
				{Name: "owner_id", Column: "O", DataType: DataTypeInt},
				{Name: "token_id", Column: "t", DataType: DataTypeInt},
				{Name: "balance", Column: "B", DataType: DataTypeDecimal},
				{Name: "block_level", Column: "h", DataType: DataTypeInt},
			},
		},
		{
			Name:     "fee_stat",
			TableKey: model.FeeStatTableKey,
			Attributes: []AttributePhysical{
				{Name: "kind", Column: "k", DataType: DataTypeString, Cardinality: cardinality(8)},
				{Name: "timestamp", Column: "T", DataType: DataTypeDateTime},
				{Name: "mean", Column: "m", DataType: DataTypeDecimal},
				{Name: "high", Column: "H", DataType: DataTypeDecimal},
				{Name: "low", Column: "L", DataType: DataTypeDecimal},
				{Name: "sample_size", Column: "n", DataType: DataTypeInt},
			},
		},
	}
}

// DefaultPhysicalSchema builds the single "tezos" platform's schema across
// networks, one per configured network name (e.g. "mainnet", "ghostnet").
// Every network shares the same entity/attribute layout; only the indexed
// rows differ per deployment.
func DefaultPhysicalSchema(networks []string) PhysicalSchema {
	nets := make([]NetworkPhysical, 0, len(networks))
	for _, n := range networks {
		nets = append(nets, NetworkPhysical{Name: n, Entities: tezosEntities()})
	}
	return PhysicalSchema{
		Platforms: []PlatformPhysical{
			{Name: "tezos", Networks: nets},
		},
	}
}
