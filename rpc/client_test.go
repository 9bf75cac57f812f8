// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return New(Config{
		BaseURL: baseURL,
		Batch:   BatchConfig{PageSize: 10, NodeRequestsConcurrency: 4, AccountsSize: 100},
		Calls:   CallConfig{Deadline: time.Second, RetryCount: 3},
	})
}

// TestGetBlockHeadDecodesResponse checks the happy path translates the raw
// Block payload into the minimal HeadInfo shape.
func TestGetBlockHeadDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Block{Level: 42, Cycle: 7})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	defer c.Close()

	head, err := c.GetBlockHead(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 42, head.Level)
	assert.EqualValues(t, 7, head.Cycle)
}

// TestCallRetriesOn5xxThenSucceeds checks the exponential-backoff retry
// policy recovers from transient 5xx responses within the retry budget.
func TestCallRetriesOn5xxThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(Block{Level: 1})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	defer c.Close()

	head, err := c.GetBlockHead(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, head.Level)
	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

// TestCallFailsWithNetworkErrorWhenBudgetExhausted checks that a node stuck
// returning 5xx surfaces a *NetworkError once the retry budget runs out,
// rather than hanging or returning a generic error.
func TestCallFailsWithNetworkErrorWhenBudgetExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	defer c.Close()

	_, err := c.GetBlockHead(context.Background())
	require.Error(t, err)
	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
}

// TestCallFailsWithDecodeErrorOnMalformedPayload checks a malformed body is
// reported as a DecodeError (and not retried, since it can never succeed).
func TestCallFailsWithDecodeErrorOnMalformedPayload(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	defer c.Close()

	_, err := c.GetBlockHead(context.Background())
	require.Error(t, err)
	var decErr *DecodeError
	assert.ErrorAs(t, err, &decErr)
	assert.EqualValues(t, 1, atomic.LoadInt32(&attempts), "decode errors must not be retried")
}

// TestGetBlocksRangePagesInAscendingOrder checks PageSeq splits a range into
// PageSize-bounded pages, each internally gap-free and ascending.
func TestGetBlocksRangePagesInAscendingOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		level, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
		require.NoError(t, err)
		_ = json.NewEncoder(w).Encode(Block{Level: level})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	c.cfg.Batch.PageSize = 3
	defer c.Close()

	seq := c.GetBlocksRange(0, 7)

	var allLevels []int64
	for {
		page, ok, err := seq.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		for _, b := range page.Blocks {
			allLevels = append(allLevels, b.Level)
		}
	}
	require.Len(t, allLevels, 8)
	for i, lvl := range allLevels {
		assert.EqualValues(t, i, lvl)
	}
}
