// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package rpc

import "context"

// BlockPage is one page of blocks delivered in ascending level order.
type BlockPage struct {
	FromLevel int64
	ToLevel   int64
	Blocks    []*Block
}

// PageSeq is a lazy finite sequence of BlockPages. Callers drive it with
// Next until ok is false; an error aborts the sequence without advancing
// the cursor so a retry can resume at the same page.
type PageSeq struct {
	c      *Client
	from   int64
	to     int64
	cursor int64
}

// Next fetches the next page, or (nil, false, nil) once the range is
// exhausted.
func (p *PageSeq) Next(ctx context.Context) (*BlockPage, bool, error) {
	if p.cursor > p.to {
		return nil, false, nil
	}
	end := p.cursor + int64(p.c.cfg.Batch.PageSize) - 1
	if end > p.to {
		end = p.to
	}
	blocks, err := p.c.fetchRange(ctx, p.cursor, end)
	if err != nil {
		return nil, false, err
	}
	page := &BlockPage{FromLevel: p.cursor, ToLevel: end, Blocks: blocks}
	p.cursor = end + 1
	return page, true, nil
}

// Remaining reports how many levels are left to fetch, for progress
// reporting alongside BlockFetchPlanner's total.
func (p *PageSeq) Remaining() int64 {
	if p.cursor > p.to {
		return 0
	}
	return p.to - p.cursor + 1
}
