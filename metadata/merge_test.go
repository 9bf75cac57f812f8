// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Block", titleCase("block"))
	assert.Equal(t, "Token Transfer", titleCase("token_transfer"))
	assert.Equal(t, "", titleCase(""))
}

func TestVisibleRootDefaultsToInvisible(t *testing.T) {
	assert.False(t, visible(true, nil, true))
	truth := true
	assert.True(t, visible(true, &truth, true))
}

func TestVisibleChildInheritsParent(t *testing.T) {
	// parent invisible always wins, regardless of the child's own flag
	truth := true
	assert.False(t, visible(false, &truth, false))

	// parent visible, no explicit override: defaults to visible
	assert.True(t, visible(true, nil, false))

	// parent visible, explicit false: hidden
	falsy := false
	assert.False(t, visible(true, &falsy, false))
}

func TestMergePlatformDisplayNameDefault(t *testing.T) {
	p, vis := mergePlatform(PlatformPhysical{Name: "tezos"}, nil)
	assert.Equal(t, "tezos", p.Name)
	assert.Equal(t, "Tezos", p.DisplayName)
	assert.False(t, vis) // no override, root defaults invisible

	truth := true
	p2, vis2 := mergePlatform(PlatformPhysical{Name: "tezos"}, &PlatformOverride{Visible: &truth})
	assert.Equal(t, "Tezos", p2.DisplayName)
	assert.True(t, vis2)
}

func TestMergeAttributeOverrideWinsOverPhysical(t *testing.T) {
	phys := AttributePhysical{Name: "fee", Column: "f", DataType: DataTypeInt}
	dataType := "Decimal"
	scale := 6
	symbol := "ꜩ"
	code := 42793
	ov := &AttributeOverride{
		DataType:           &dataType,
		Scale:              &scale,
		CurrencySymbol:     &symbol,
		CurrencySymbolCode: &code,
	}

	a, vis := mergeAttribute("op", phys, ov, true)
	require.True(t, vis)
	assert.Equal(t, "Decimal", a.DataType)
	assert.Equal(t, DataTypeInt, a.PhysicalType(), "physical type must never change")
	assert.Equal(t, 6, a.Scale)
	assert.Equal(t, symbol, a.CurrencySymbol)
	assert.Equal(t, code, a.CurrencySymbolCode)
	assert.Equal(t, "f", a.Column())
}

func TestMergeAttributeHiddenWhenParentHidden(t *testing.T) {
	phys := AttributePhysical{Name: "fee", Column: "f", DataType: DataTypeInt}
	truth := true
	_, vis := mergeAttribute("op", phys, &AttributeOverride{Visible: &truth}, false)
	assert.False(t, vis, "an attribute can never be visible if its entity is hidden")
}
