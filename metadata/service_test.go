// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schemaWithOneEntity() PhysicalSchema {
	return PhysicalSchema{
		Platforms: []PlatformPhysical{
			{
				Name: "tezos",
				Networks: []NetworkPhysical{
					{
						Name: "mainnet",
						Entities: []EntityPhysical{
							{
								Name: "entity",
								Attributes: []AttributePhysical{
									{Name: "attr", Column: "a", DataType: DataTypeString},
								},
							},
						},
					},
				},
			},
		},
	}
}

func boolPtr(b bool) *bool { return &b }

// TestListPlatformsVisible covers scenario 1: GET /v2/metadata/platforms
// with {tezos: {visible: true}} returns [{name:"tezos", ...}].
func TestListPlatformsVisible(t *testing.T) {
	svc := NewMetadataService(schemaWithOneEntity(), OverrideTree{
		Platforms: map[string]PlatformOverride{"tezos": {Visible: boolPtr(true)}},
	}, nil)

	out := svc.ListPlatforms()
	require.Len(t, out, 1)
	assert.Equal(t, "tezos", out[0].Name)
	assert.Equal(t, "Tezos", out[0].DisplayName)
}

// TestListPlatformsHidden covers scenario 2: {tezos: {visible: false}} -> [].
func TestListPlatformsHidden(t *testing.T) {
	svc := NewMetadataService(schemaWithOneEntity(), OverrideTree{
		Platforms: map[string]PlatformOverride{"tezos": {Visible: boolPtr(false)}},
	}, nil)
	assert.Empty(t, svc.ListPlatforms())
}

// TestListPlatformsNoOverrideDefaultsHidden exercises the "root platform
// defaults to invisible unless explicitly enabled" invariant.
func TestListPlatformsNoOverrideDefaultsHidden(t *testing.T) {
	svc := NewMetadataService(schemaWithOneEntity(), OverrideTree{}, nil)
	assert.Empty(t, svc.ListPlatforms())
}

// TestListAttributesHiddenEntity covers scenario 3: entity disabled while
// platform and network are enabled -> PathError (404-equivalent).
func TestListAttributesHiddenEntity(t *testing.T) {
	svc := NewMetadataService(schemaWithOneEntity(), OverrideTree{
		Platforms: map[string]PlatformOverride{
			"tezos": {
				Visible: boolPtr(true),
				Networks: map[string]NetworkOverride{
					"mainnet": {
						Visible: boolPtr(true),
						Entities: map[string]EntityOverride{
							"entity": {Visible: boolPtr(false)},
						},
					},
				},
			},
		},
	}, nil)

	_, err := svc.ListAttributes("tezos", "mainnet", "entity")
	require.Error(t, err)
	var pe *PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "hidden", pe.Reason)
}

func TestListAttributesUnknownPlatform(t *testing.T) {
	svc := NewMetadataService(schemaWithOneEntity(), OverrideTree{}, nil)
	_, err := svc.ListAttributes("unknown", "mainnet", "entity")
	require.Error(t, err)
	var pe *PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "unknown", pe.Reason)
}

// TestListAttributesVisible checks that an attribute enabled at every level
// (platform, network, entity, attribute) is listed by name.
func TestListAttributesVisible(t *testing.T) {
	svc := NewMetadataService(schemaWithOneEntity(), OverrideTree{
		Platforms: map[string]PlatformOverride{
			"tezos": {
				Visible: boolPtr(true),
				Networks: map[string]NetworkOverride{
					"mainnet": {
						Visible: boolPtr(true),
						Entities: map[string]EntityOverride{
							"entity": {
								Visible: boolPtr(true),
								Attributes: map[string]AttributeOverride{
									"attr": {Visible: boolPtr(true)},
								},
							},
						},
					},
				},
			},
		},
	}, nil)

	attrs, err := svc.ListAttributes("tezos", "mainnet", "entity")
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, "attr", attrs[0].Name)
}
