// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package index

import (
	"context"

	"blockwatch.cc/packdb/pack"
	"blockwatch.cc/packdb/store"
)

type txCtxKey struct{}

// WithTx opens a single writable store.Tx, runs fn with a context carrying
// it, and commits on success or rolls back on any error/panic. Every write
// BlocksProcessor performs for a page goes through exactly one WithTx call,
// so a page's writes are never partially committed.
func (idx *Indexer) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := idx.db.Begin(true)
	if err != nil {
		return err
	}
	txCtx := context.WithValue(ctx, txCtxKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(txCtx)
	return err
}

func txFromContext(ctx context.Context) (store.Tx, bool) {
	tx, ok := ctx.Value(txCtxKey{}).(store.Tx)
	return tx, ok
}

// Insert writes items into the named table, scoped to the active
// transaction in ctx if WithTx started one.
func (idx *Indexer) Insert(ctx context.Context, tableKey string, items []pack.Item) error {
	t, err := idx.Table(tableKey)
	if err != nil {
		return err
	}
	if tx, ok := txFromContext(ctx); ok {
		return t.InsertTx(tx, items)
	}
	return t.Insert(ctx, items)
}

// Update writes already-identified items back into the named table.
func (idx *Indexer) Update(ctx context.Context, tableKey string, items []pack.Item) error {
	t, err := idx.Table(tableKey)
	if err != nil {
		return err
	}
	if tx, ok := txFromContext(ctx); ok {
		return t.UpdateTx(tx, items)
	}
	return t.Update(ctx, items)
}

// DeleteIds removes rows by RowId from the named table.
func (idx *Indexer) DeleteIds(ctx context.Context, tableKey string, ids []uint64) error {
	t, err := idx.Table(tableKey)
	if err != nil {
		return err
	}
	if tx, ok := txFromContext(ctx); ok {
		return t.DeleteIdsTx(tx, ids)
	}
	_, err = t.DeleteIds(ctx, ids)
	return err
}
