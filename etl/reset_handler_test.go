// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package etl

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dennisklicker/Conseil/etl/model"
)

func TestUnprocessedResetRequestLevels(t *testing.T) {
	h := NewAccountsResetHandler(nil)
	events := []model.ResetEvent{
		{Protocol: "PtA", ActivationLevel: 100, Kind: "baking"},
		{Protocol: "PtB", ActivationLevel: 200, Kind: "baking"},
	}

	due := h.UnprocessedResetRequestLevels(events, 150)
	assert.Len(t, due, 1)
	assert.Equal(t, "PtA", due[0].Protocol)
}

func TestUnprocessedResetRequestLevelsSkipsAlreadyApplied(t *testing.T) {
	h := NewAccountsResetHandler(nil)
	events := []model.ResetEvent{
		{Protocol: "PtA", ActivationLevel: 100, Kind: "baking"},
	}
	h.applied[events[0].Key()] = true

	due := h.UnprocessedResetRequestLevels(events, 150)
	assert.Empty(t, due)
}

func TestUnprocessedResetRequestLevelsNoneReady(t *testing.T) {
	h := NewAccountsResetHandler(nil)
	events := []model.ResetEvent{
		{Protocol: "PtA", ActivationLevel: 300, Kind: "baking"},
	}
	due := h.UnprocessedResetRequestLevels(events, 150)
	assert.Empty(t, due)
}
