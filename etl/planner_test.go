// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package etl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"blockwatch.cc/tzgo/tezos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dennisklicker/Conseil/rpc"
)

func headServer(t *testing.T, level int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(rpc.Block{Level: level})
	}))
}

func newPlannerClient(t *testing.T, srv *httptest.Server) *rpc.Client {
	t.Helper()
	return rpc.New(rpc.Config{
		BaseURL: srv.URL,
		Batch:   rpc.BatchConfig{PageSize: 50, NodeRequestsConcurrency: 4},
		Calls:   rpc.CallConfig{RetryCount: 1},
	})
}

// TestPlanNewestWithKnownDbLevel checks ModeNewest covers exactly
// (dbLevel, head] when a level has already been persisted.
func TestPlanNewestWithKnownDbLevel(t *testing.T) {
	srv := headServer(t, 103)
	defer srv.Close()
	client := newPlannerClient(t, srv)
	defer client.Close()

	p := NewBlockFetchPlanner(client, 0)
	_, total, err := p.Plan(context.Background(), Mode{Kind: ModeNewest}, 100, true)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
}

// TestPlanNewestBootstrapsFromWindowWhenDbLevelUnknown checks that with no
// persisted level, ModeNewest starts BootstrapWindow levels behind head
// rather than from genesis.
func TestPlanNewestBootstrapsFromWindowWhenDbLevelUnknown(t *testing.T) {
	srv := headServer(t, 1000)
	defer srv.Close()
	client := newPlannerClient(t, srv)
	defer client.Close()

	p := NewBlockFetchPlanner(client, 10)
	_, total, err := p.Plan(context.Background(), Mode{Kind: ModeNewest}, 0, false)
	require.NoError(t, err)
	assert.EqualValues(t, 11, total) // [990, 1000] inclusive
}

// TestPlanNewestAlreadyCaughtUpReturnsZeroTotal checks that when dbLevel
// already equals head, nothing is planned.
func TestPlanNewestAlreadyCaughtUpReturnsZeroTotal(t *testing.T) {
	srv := headServer(t, 100)
	defer srv.Close()
	client := newPlannerClient(t, srv)
	defer client.Close()

	p := NewBlockFetchPlanner(client, 0)
	_, total, err := p.Plan(context.Background(), Mode{Kind: ModeNewest}, 100, true)
	require.NoError(t, err)
	assert.Zero(t, total)
}

// TestPlanEverythingCoversFromGenesis checks ModeEverything always starts
// at level 0 regardless of the persisted level.
func TestPlanEverythingCoversFromGenesis(t *testing.T) {
	srv := headServer(t, 50)
	defer srv.Close()
	client := newPlannerClient(t, srv)
	defer client.Close()

	p := NewBlockFetchPlanner(client, 0)
	_, total, err := p.Plan(context.Background(), Mode{Kind: ModeEverything}, 40, true)
	require.NoError(t, err)
	assert.EqualValues(t, 51, total)
}

// TestPlanCustomCoversLastNLevels checks ModeCustom(n) covers exactly the
// last n levels up to head, independent of the persisted level.
func TestPlanCustomCoversLastNLevels(t *testing.T) {
	srv := headServer(t, 200)
	defer srv.Close()
	client := newPlannerClient(t, srv)
	defer client.Close()

	p := NewBlockFetchPlanner(client, 0)
	_, total, err := p.Plan(context.Background(), Mode{Kind: ModeCustom, N: 20}, 0, false)
	require.NoError(t, err)
	assert.EqualValues(t, 20, total) // (180, 200] = [181, 200], 20 levels
}

// TestPlanCustomDivergingAnchorPrefersLiveHead checks that a stale
// configured HeadHash does not halt planning: the planner logs the
// divergence and proceeds from the node's live head.
func TestPlanCustomDivergingAnchorPrefersLiveHead(t *testing.T) {
	srv := headServer(t, 200)
	defer srv.Close()
	client := newPlannerClient(t, srv)
	defer client.Close()

	staleHash, err := tezos.ParseBlockHash("BL8euiYxS53dMBCqApVJeCB3B2mWQ4NwcEpwVfM9xKZLVL1gUZ1")
	require.NoError(t, err)
	p := NewBlockFetchPlanner(client, 0)
	_, total, err := p.Plan(context.Background(), Mode{Kind: ModeCustom, N: 5, HeadHash: staleHash}, 0, false)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
}
