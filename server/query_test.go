// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dennisklicker/Conseil/metadata"
)

func TestValidateOperandRejectsNonNumericForIntAttribute(t *testing.T) {
	attrs, err := buildFixtureAttributes()
	require.NoError(t, err)

	err = validateOperand(attrs["height"], FilterEq, "not-a-number")
	assert.Error(t, err)
}

func TestValidateOperandAcceptsNumericForIntAttribute(t *testing.T) {
	attrs, err := buildFixtureAttributes()
	require.NoError(t, err)

	assert.NoError(t, validateOperand(attrs["height"], FilterEq, float64(42)))
}

func TestValidateOperandPresentationDataTypeNeverRelaxesCheck(t *testing.T) {
	attrs, err := buildFixtureAttributes()
	require.NoError(t, err)

	// height_presented_as_hash's physical type is Int even though its
	// presentation override rewrites DataType to Hash; the numeric check
	// must still apply.
	err = validateOperand(attrs["height_presented_as_hash"], FilterEq, "zzz")
	assert.Error(t, err)
}

func TestValidateOperandInRequiresArray(t *testing.T) {
	attrs, err := buildFixtureAttributes()
	require.NoError(t, err)

	assert.Error(t, validateOperand(attrs["height"], FilterIn, 5))
	assert.NoError(t, validateOperand(attrs["height"], FilterIn, []interface{}{1.0, 2.0}))
}

func TestBuildConditionUnsupportedOperator(t *testing.T) {
	_, err := buildCondition("h", FilterOp("bogus"), 1)
	assert.Error(t, err)
}

func TestBuildConditionEq(t *testing.T) {
	cond, err := buildCondition("h", FilterEq, 5)
	require.NoError(t, err)
	assert.NotNil(t, cond)
}

// buildFixtureAttributes constructs metadata.Attribute values through the
// same merge path ListAttributes uses, so column()/physicalType() are
// populated exactly as the live query path would see them.
func buildFixtureAttributes() (map[string]metadata.Attribute, error) {
	schema := metadata.PhysicalSchema{
		Platforms: []metadata.PlatformPhysical{{
			Name: "tezos",
			Networks: []metadata.NetworkPhysical{{
				Name: "mainnet",
				Entities: []metadata.EntityPhysical{{
					Name: "block",
					Attributes: []metadata.AttributePhysical{
						{Name: "height", Column: "h", DataType: metadata.DataTypeInt},
						{Name: "height_presented_as_hash", Column: "h2", DataType: metadata.DataTypeInt},
					},
				}},
			}},
		}},
	}
	hashType := "Hash"
	truth := true
	overrides := metadata.OverrideTree{
		Platforms: map[string]metadata.PlatformOverride{
			"tezos": {
				Visible: &truth,
				Networks: map[string]metadata.NetworkOverride{
					"mainnet": {
						Visible: &truth,
						Entities: map[string]metadata.EntityOverride{
							"block": {
								Visible: &truth,
								Attributes: map[string]metadata.AttributeOverride{
									"height":                    {Visible: &truth},
									"height_presented_as_hash": {Visible: &truth, DataType: &hashType},
								},
							},
						},
					},
				},
			},
		},
	}

	svc := metadata.NewMetadataService(schema, overrides, nil)
	attrs, err := svc.ListAttributes("tezos", "mainnet", "block")
	if err != nil {
		return nil, err
	}
	out := make(map[string]metadata.Attribute, len(attrs))
	for _, a := range attrs {
		out[a.Name] = a
	}
	return out, nil
}
