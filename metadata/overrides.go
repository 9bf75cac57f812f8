// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package metadata

import "time"

// CacheConfig marks an attribute's value set as safe to materialize for
// fast prefix lookup and controls how long a materialization stays fresh.
type CacheConfig struct {
	CardinalitySafe bool
	TTL             time.Duration
}

// AttributeOverride is the configuration-layer description of one
// attribute. Every field is optional; Some wins over the physical default,
// None falls through.
type AttributeOverride struct {
	DisplayName        *string
	Visible            *bool
	Description        *string
	Placeholder        *string
	Scale              *int
	DataType           *string
	DataFormat         *string
	ValueMap           map[string]string
	Reference          *string
	DisplayPriority    *int
	DisplayOrder       *int
	CurrencySymbol     *string
	CurrencySymbolCode *int
	CacheConfig        *CacheConfig
}

type EntityOverride struct {
	DisplayName *string
	Visible     *bool
	Description *string
	Attributes  map[string]AttributeOverride
}

type NetworkOverride struct {
	DisplayName *string
	Visible     *bool
	Description *string
	Entities    map[string]EntityOverride
}

type PlatformOverride struct {
	DisplayName *string
	Visible     *bool
	Description *string
	Networks    map[string]NetworkOverride
}

// OverrideTree is the whole configured override layer, keyed by platform
// name at the root. It is read-only after construction: the merge
// algorithm never mutates it.
type OverrideTree struct {
	Platforms map[string]PlatformOverride
}
