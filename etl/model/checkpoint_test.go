// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollapseAccountCheckpoints(t *testing.T) {
	rows := []*AccountCheckpoint{
		{RowId: 1, AccountId: 10, BlockLevel: 100},
		{RowId: 2, AccountId: 10, BlockLevel: 105},
		{RowId: 3, AccountId: 10, BlockLevel: 102},
		{RowId: 4, AccountId: 20, BlockLevel: 50},
	}

	collapsed := CollapseAccountCheckpoints(rows)
	require.Len(t, collapsed, 2)

	byAccount := make(map[AccountID]*CollapsedCheckpoint, len(collapsed))
	for _, c := range collapsed {
		byAccount[c.AccountId] = c
	}

	acc10 := byAccount[10]
	require.NotNil(t, acc10)
	assert.EqualValues(t, 105, acc10.Level)
	assert.ElementsMatch(t, []uint64{1, 2, 3}, acc10.SourceIds)

	acc20 := byAccount[20]
	require.NotNil(t, acc20)
	assert.EqualValues(t, 50, acc20.Level)
	assert.Equal(t, []uint64{4}, acc20.SourceIds)
}

func TestCollapseAccountCheckpointsEmpty(t *testing.T) {
	assert.Empty(t, CollapseAccountCheckpoints(nil))
}

func TestCollapseBakerCheckpoints(t *testing.T) {
	rows := []*BakerCheckpoint{
		{RowId: 1, BakerId: 7, BlockLevel: 10},
		{RowId: 2, BakerId: 7, BlockLevel: 30},
	}
	collapsed := CollapseBakerCheckpoints(rows)
	require.Len(t, collapsed, 1)
	assert.EqualValues(t, 30, collapsed[0].Level)
	assert.ElementsMatch(t, []uint64{1, 2}, collapsed[0].SourceIds)
}
