// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

// Package rpc implements the batched, retrying JSON-RPC client used to pull
// blocks, account state and baking/endorsing rights off a Tezos- or
// Ethereum-family node.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"blockwatch.cc/tzgo/tezos"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dennisklicker/Conseil/log"
)

var plog = log.NewLogger("rpc")

// BatchConfig mirrors the `batch.*` configuration keys.
type BatchConfig struct {
	PageSize                int           // batch.pageSize
	NodeRequestsConcurrency int           // batch.nodeRequestsConcurrency
	AccountsSize            int           // batch.accountsSize
}

// CallConfig mirrors `callsConf`: per-call deadline and retry budget.
type CallConfig struct {
	Deadline   time.Duration
	RetryCount int
	RateLimit  rate.Limit // requests/sec ceiling, 0 disables limiting
}

type Config struct {
	BaseURL string
	Batch   BatchConfig
	Calls   CallConfig
}

// Client is the process-wide NodeClient. One instance is shared across the
// indexer; it owns the underlying HTTP connection pool. Fan-out concurrency
// in fetchRange is bounded by the errgroup limit
// (cfg.Batch.NodeRequestsConcurrency).
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	sem     chan struct{}
}

func New(cfg Config) *Client {
	if cfg.Batch.PageSize <= 0 {
		cfg.Batch.PageSize = 50
	}
	if cfg.Batch.NodeRequestsConcurrency <= 0 {
		cfg.Batch.NodeRequestsConcurrency = 8
	}
	if cfg.Calls.RetryCount <= 0 {
		cfg.Calls.RetryCount = 5
	}
	if cfg.Calls.Deadline <= 0 {
		cfg.Calls.Deadline = 10 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.Calls.RateLimit > 0 {
		limiter = rate.NewLimiter(cfg.Calls.RateLimit, cfg.Batch.NodeRequestsConcurrency)
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Calls.Deadline,
		},
		limiter: limiter,
		sem:     make(chan struct{}, cfg.Batch.NodeRequestsConcurrency),
	}
}

// Close releases the underlying HTTP transport's idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// call performs a single HTTP GET against path, decoding the JSON body into
// out, retrying transient failures with exponential backoff up to
// cfg.Calls.RetryCount times after the first attempt (RetryCount+1 attempts
// in all).
func (c *Client) call(ctx context.Context, method, path string, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &NetworkError{Method: method, Cause: err}
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // bounded by WithMaxRetries below, not wall time
	policy := backoff.WithMaxRetries(bo, uint64(c.cfg.Calls.RetryCount))

	var lastErr error
	op := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Calls.Deadline)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.cfg.BaseURL+path, nil)
		if err != nil {
			lastErr = &NetworkError{Method: method, Cause: err}
			return lastErr
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = &NetworkError{Method: method, Cause: err}
			return lastErr
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			lastErr = &NetworkError{Method: method, Cause: fmt.Errorf("status %d", resp.StatusCode)}
			return lastErr
		}
		if resp.StatusCode >= 400 {
			// client errors are not transient; stop retrying but still
			// classify as a network-layer failure since the node rejected us
			lastErr = &NetworkError{Method: method, Cause: fmt.Errorf("status %d", resp.StatusCode)}
			return backoff.Permanent(lastErr)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			lastErr = &NetworkError{Method: method, Cause: err}
			return lastErr
		}
		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				lastErr = &DecodeError{Method: method, Cause: err}
				return backoff.Permanent(lastErr)
			}
		}
		lastErr = nil
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		if !isRetryable(lastErr) {
			return lastErr
		}
		return &NetworkError{Method: method, Cause: lastErr}
	}
	return nil
}

// GetBlockHead returns the node's current chain head.
func (c *Client) GetBlockHead(ctx context.Context) (*HeadInfo, error) {
	var b Block
	if err := c.call(ctx, "GetBlockHead", "/chains/main/blocks/head", &b); err != nil {
		return nil, err
	}
	return &HeadInfo{Hash: b.Hash, Level: b.Level, Cycle: b.Cycle}, nil
}

// GetBlock fetches a single block by hash or level.
func (c *Client) GetBlock(ctx context.Context, hashOrLevel string) (*Block, error) {
	var b Block
	path := fmt.Sprintf("/chains/main/blocks/%s", hashOrLevel)
	if err := c.call(ctx, "GetBlock", path, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBlocksRange returns a lazy finite sequence of pages covering
// [from, to] inclusive, each page holding at most cfg.Batch.PageSize blocks
// in ascending level order. Gaps cannot occur within a page; reordering
// across pages is the planner's responsibility, not this client's.
func (c *Client) GetBlocksRange(from, to int64) *PageSeq {
	return &PageSeq{c: c, from: from, to: to, cursor: from}
}

// fetchRange fans the individual block fetches for [from, to] out across
// cfg.Batch.NodeRequestsConcurrency workers and returns them sorted
// ascending by level.
func (c *Client) fetchRange(ctx context.Context, from, to int64) ([]*Block, error) {
	n := int(to-from) + 1
	blocks := make([]*Block, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Batch.NodeRequestsConcurrency)
	for i := 0; i < n; i++ {
		i := i
		level := from + int64(i)
		g.Go(func() error {
			b, err := c.GetBlock(gctx, fmt.Sprintf("%d", level))
			if err != nil {
				return err
			}
			blocks[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Level < blocks[j].Level })
	return blocks, nil
}

// GetAccountsAt fetches account state for ids at level, chunked internally
// to at most cfg.Batch.AccountsSize addresses per RPC call.
func (c *Client) GetAccountsAt(ctx context.Context, level int64, ids []tezos.Address) ([]*AccountState, error) {
	chunkSize := c.cfg.Batch.AccountsSize
	if chunkSize <= 0 {
		chunkSize = 100
	}
	out := make([]*AccountState, 0, len(ids))
	for start := 0; start < len(ids); start += chunkSize {
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		var states []*AccountState
		addrList := make([]string, len(chunk))
		for i, a := range chunk {
			addrList[i] = a.String()
		}
		path := fmt.Sprintf("/chains/main/blocks/%d/context/accounts?ids=%s", level, joinComma(addrList))
		if err := c.call(ctx, "GetAccountsAt", path, &states); err != nil {
			return nil, err
		}
		out = append(out, states...)
	}
	return out, nil
}

// GetBakingRights fetches the baking-rights table for cycle.
func (c *Client) GetBakingRights(ctx context.Context, cycle int64) ([]*Rights, error) {
	var rights []*Rights
	path := fmt.Sprintf("/chains/main/blocks/head/helpers/baking_rights?cycle=%d", cycle)
	if err := c.call(ctx, "GetBakingRights", path, &rights); err != nil {
		return nil, err
	}
	for _, r := range rights {
		r.Kind = RightsKindBaking
		r.Cycle = cycle
	}
	return rights, nil
}

// GetEndorsingRights fetches the endorsing-rights table for cycle.
func (c *Client) GetEndorsingRights(ctx context.Context, cycle int64) ([]*Rights, error) {
	var rights []*Rights
	path := fmt.Sprintf("/chains/main/blocks/head/helpers/endorsing_rights?cycle=%d", cycle)
	if err := c.call(ctx, "GetEndorsingRights", path, &rights); err != nil {
		return nil, err
	}
	for _, r := range rights {
		r.Kind = RightsKindEndorsing
		r.Cycle = cycle
	}
	return rights, nil
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
