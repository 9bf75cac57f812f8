// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package metadata

import "time"

// Platform, Network, Entity and Attribute are the discovery-facing,
// already-merged and already-visibility-filtered views returned by
// MetadataService. They carry no optional fields: every value has already
// been resolved against its override or physical default.
type Platform struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
}

type Network struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
}

type Entity struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Count       int    `json:"count"`
	Description string `json:"description,omitempty"`
}

type Attribute struct {
	Name               string            `json:"name"`
	DisplayName        string            `json:"displayName"`
	DataType           string            `json:"dataType"`
	KeyType            string            `json:"keyType,omitempty"`
	Cardinality        *int              `json:"cardinality,omitempty"`
	Entity             string            `json:"entity"`
	Description        string            `json:"description,omitempty"`
	Placeholder        string            `json:"placeholder,omitempty"`
	Scale              int               `json:"scale,omitempty"`
	DataFormat         string            `json:"dataFormat,omitempty"`
	ValueMap           map[string]string `json:"valueMap,omitempty"`
	Reference          string            `json:"reference,omitempty"`
	DisplayPriority    int               `json:"displayPriority,omitempty"`
	DisplayOrder       int               `json:"displayOrder,omitempty"`
	CurrencySymbol     string            `json:"currencySymbol,omitempty"`
	CurrencySymbolCode int               `json:"currencySymbolCode,omitempty"`

	column       string // packdb field tag, never serialized
	physicalType DataType
	cacheConfig  *CacheConfig
}

// PhysicalType returns the attribute's physical data type, which the query
// engine validates predicate operands against regardless of any
// presentation override on the serialized DataType field.
func (a Attribute) PhysicalType() DataType { return a.physicalType }

// Column returns the packdb field tag this attribute is bound to, used by
// the query engine to build whitelisted predicates; never exposed over the
// wire.
func (a Attribute) Column() string { return a.column }

// CacheSafe reports whether a background refresher should materialize this
// attribute's distinct value set.
func (a Attribute) CacheSafe() bool {
	return a.cacheConfig != nil && a.cacheConfig.CardinalitySafe
}

func (a Attribute) cacheTTL() (time.Duration, bool) {
	if a.cacheConfig == nil {
		return 0, false
	}
	return a.cacheConfig.TTL, true
}
