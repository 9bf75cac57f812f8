// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

// Package index owns the pack.Table handles backing every persisted entity
// and the read-side lookup/query helpers used by both the write-side
// processors and the query API.
package index

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"blockwatch.cc/packdb/pack"
	"blockwatch.cc/packdb/store"
	"blockwatch.cc/tzgo/tezos"

	"github.com/dennisklicker/Conseil/etl/model"
	"github.com/dennisklicker/Conseil/log"
)

var ilog = log.NewLogger("index")

// ErrNoAccountEntry signals "address not yet seen" so callers can
// distinguish "not found" from a real storage error.
var ErrNoAccountEntry = errors.New("index: no account entry")

// ErrNoBlockEntry signals a hash/height with no corresponding row.
var ErrNoBlockEntry = errors.New("index: no block entry")

// tableKeys lists every pack.Table this indexer owns; Init opens or creates
// each one against the shared store.DB.
var tableKeys = []string{
	model.BlockTableKey,
	model.AccountTableKey,
	model.AccountSnapshotTableKey,
	model.BakerSnapshotTableKey,
	model.AccountCheckpointTableKey,
	model.BakerCheckpointTableKey,
	model.RightsTableKey,
	model.TokenTransferTableKey,
	model.TokenBalanceTableKey,
	model.FeeStatTableKey,
}

// Indexer owns the process-wide database pool and every pack.Table handle;
// it is a singleton created at indexer boot and destroyed during
// termination.
type Indexer struct {
	db     store.DB
	tables map[string]*pack.Table

	mu           sync.RWMutex
	accountCache map[string]*model.Account // address.String() -> account, dense id resolution
	nextAccount  uint64
}

func NewIndexer(db store.DB) *Indexer {
	return &Indexer{
		db:           db,
		tables:       make(map[string]*pack.Table, len(tableKeys)),
		accountCache: make(map[string]*model.Account),
	}
}

// Init opens (creating as needed) every table this indexer owns.
func (idx *Indexer) Init(ctx context.Context) error {
	for _, key := range tableKeys {
		t, err := idx.db.Table(key)
		if err != nil {
			if !store.IsError(err, store.ErrNoTable) {
				return fmt.Errorf("opening table %s: %w", key, err)
			}
			t, err = idx.db.CreateTable(key)
			if err != nil {
				return fmt.Errorf("creating table %s: %w", key, err)
			}
		}
		idx.tables[key] = t
	}
	ilog.Infof("indexer tables ready (%d tables)", len(idx.tables))
	return nil
}

// Close releases every table handle and the underlying database pool.
func (idx *Indexer) Close() error {
	for _, t := range idx.tables {
		if err := t.Close(); err != nil {
			ilog.Warnf("closing table: %v", err)
		}
	}
	return idx.db.Close()
}

// Table returns the pack.Table for key, the same lookup the query engine
// uses to build dynamic queries.
func (idx *Indexer) Table(key string) (*pack.Table, error) {
	t, ok := idx.tables[key]
	if !ok {
		return nil, fmt.Errorf("index: unknown table %q", key)
	}
	return t, nil
}

// Tip returns the highest committed block's height, or 0 if the store is
// empty (the "L_db unknown" case BlockFetchPlanner bootstraps from).
func (idx *Indexer) Tip(ctx context.Context) (int64, error) {
	t, err := idx.Table(model.BlockTableKey)
	if err != nil {
		return 0, err
	}
	var best int64 = -1
	q := pack.NewQuery("tip").WithTable(t).WithOrder(pack.OrderDesc).WithLimit(1)
	res, err := t.Query(ctx, q)
	if err != nil {
		return 0, err
	}
	defer res.Close()
	err = res.Walk(func(r pack.Row) error {
		var b model.Block
		if err := r.Decode(&b); err != nil {
			return err
		}
		best = b.Height
		return nil
	})
	if err != nil {
		return 0, err
	}
	if best < 0 {
		return 0, nil
	}
	return best, nil
}

// Count returns the number of rows currently in the named table, used by
// the discovery API to report entity row counts.
func (idx *Indexer) Count(ctx context.Context, tableKey string) (int, error) {
	t, err := idx.Table(tableKey)
	if err != nil {
		return 0, err
	}
	q := pack.NewQuery("count").WithTable(t)
	res, err := t.Query(ctx, q)
	if err != nil {
		return 0, err
	}
	defer res.Close()
	return res.Rows(), nil
}

// rowTypes maps every table this indexer owns to the concrete row type
// DistinctColumnValues decodes into to reach an arbitrary tagged field by
// name.
var rowTypes = map[string]reflect.Type{
	model.BlockTableKey:             reflect.TypeOf(model.Block{}),
	model.AccountTableKey:           reflect.TypeOf(model.Account{}),
	model.AccountSnapshotTableKey:   reflect.TypeOf(model.AccountSnapshot{}),
	model.BakerSnapshotTableKey:     reflect.TypeOf(model.BakerSnapshot{}),
	model.AccountCheckpointTableKey: reflect.TypeOf(model.AccountCheckpoint{}),
	model.BakerCheckpointTableKey:   reflect.TypeOf(model.BakerCheckpoint{}),
	model.RightsTableKey:            reflect.TypeOf(model.Rights{}),
	model.TokenTransferTableKey:     reflect.TypeOf(model.TokenTransfer{}),
	model.TokenBalanceTableKey:      reflect.TypeOf(model.TokenBalance{}),
	model.FeeStatTableKey:           reflect.TypeOf(model.FeeStat{}),
}

// columnFieldIndex finds the struct field whose `pack:"X,..."` tag's first
// segment equals column.
func columnFieldIndex(t reflect.Type, column string) (int, bool) {
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("pack")
		if tag == "" {
			continue
		}
		if name := strings.Split(tag, ",")[0]; name == column {
			return i, true
		}
	}
	return 0, false
}

// DecodeRow decodes row into tableKey's registered row type and returns the
// requested columns keyed by caller-chosen name, the same reflection path
// DistinctColumnValues uses to reach an arbitrary tagged field without a
// generic packdb field accessor.
func (idx *Indexer) DecodeRow(tableKey string, r pack.Row, columns map[string]string) (map[string]interface{}, error) {
	rt, ok := rowTypes[tableKey]
	if !ok {
		return nil, fmt.Errorf("index: no row type registered for table %q", tableKey)
	}
	rowPtr := reflect.New(rt)
	if err := r.Decode(rowPtr.Interface()); err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(columns))
	for name, column := range columns {
		fieldIdx, ok := columnFieldIndex(rt, column)
		if !ok {
			return nil, fmt.Errorf("index: table %q has no column %q", tableKey, column)
		}
		out[name] = rowPtr.Elem().Field(fieldIdx).Interface()
	}
	return out, nil
}

// DistinctColumnValues scans column across tableKey and returns up to limit
// distinct string-formatted values matching prefix, used both by the
// attribute-value cache refresher and its uncached fallback path.
func (idx *Indexer) DistinctColumnValues(ctx context.Context, tableKey, column, prefix string, limit int) ([]string, error) {
	t, err := idx.Table(tableKey)
	if err != nil {
		return nil, err
	}
	rt, ok := rowTypes[tableKey]
	if !ok {
		return nil, fmt.Errorf("index: no row type registered for table %q", tableKey)
	}
	fieldIdx, ok := columnFieldIndex(rt, column)
	if !ok {
		return nil, fmt.Errorf("index: table %q has no column %q", tableKey, column)
	}

	q := pack.NewQuery("distinct-values").WithTable(t).WithFields(column)
	res, err := t.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	seen := make(map[string]bool)
	var out []string
	err = res.Walk(func(r pack.Row) error {
		if limit > 0 && len(out) >= limit {
			return nil
		}
		rowPtr := reflect.New(rt)
		if err := r.Decode(rowPtr.Interface()); err != nil {
			return err
		}
		s := fmt.Sprintf("%v", rowPtr.Elem().Field(fieldIdx).Interface())
		if prefix != "" && !strings.HasPrefix(s, prefix) {
			return nil
		}
		if seen[s] {
			return nil
		}
		seen[s] = true
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LookupBlockHash returns the persisted hash at height.
func (idx *Indexer) LookupBlockHash(ctx context.Context, height int64) (tezos.BlockHash, error) {
	t, err := idx.Table(model.BlockTableKey)
	if err != nil {
		return tezos.BlockHash{}, err
	}
	q := pack.NewQuery("lookup-block-hash").WithTable(t).AndEqual("h", height).WithLimit(1)
	res, err := t.Query(ctx, q)
	if err != nil {
		return tezos.BlockHash{}, err
	}
	defer res.Close()
	var found *model.Block
	err = res.Walk(func(r pack.Row) error {
		var b model.Block
		if err := r.Decode(&b); err != nil {
			return err
		}
		found = &b
		return nil
	})
	if err != nil {
		return tezos.BlockHash{}, err
	}
	if found == nil {
		return tezos.BlockHash{}, ErrNoBlockEntry
	}
	return found.Hash, nil
}

// LookupBlockTimestamp returns the persisted timestamp at height, used by
// RightsProcessor.UpdateRightsTimestamps to backfill estimated rights times.
func (idx *Indexer) LookupBlockTimestamp(ctx context.Context, height int64) (time.Time, error) {
	t, err := idx.Table(model.BlockTableKey)
	if err != nil {
		return time.Time{}, err
	}
	q := pack.NewQuery("lookup-block-time").WithTable(t).AndEqual("h", height).WithLimit(1)
	res, err := t.Query(ctx, q)
	if err != nil {
		return time.Time{}, err
	}
	defer res.Close()
	var found *model.Block
	err = res.Walk(func(r pack.Row) error {
		var b model.Block
		if err := r.Decode(&b); err != nil {
			return err
		}
		found = &b
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	if found == nil {
		return time.Time{}, ErrNoBlockEntry
	}
	return found.Timestamp, nil
}

// LookupOrCreateAccount resolves addr to its dense AccountID, assigning a
// fresh one the first time the address is seen. The in-memory cache is only
// ever mutated by the write-side processors that hold this call serialized
// behind the bounded-parallelism=1 page pipeline.
func (idx *Indexer) LookupOrCreateAccount(ctx context.Context, addr tezos.Address) (*model.Account, error) {
	idx.mu.RLock()
	if acc, ok := idx.accountCache[addr.String()]; ok {
		idx.mu.RUnlock()
		return acc, nil
	}
	idx.mu.RUnlock()

	t, err := idx.Table(model.AccountTableKey)
	if err != nil {
		return nil, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if acc, ok := idx.accountCache[addr.String()]; ok {
		return acc, nil
	}

	q := pack.NewQuery("lookup-account").WithTable(t).AndEqual("a", addr.Bytes()).WithLimit(1)
	res, err := t.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	var found *model.Account
	err = res.Walk(func(r pack.Row) error {
		var a model.Account
		if err := r.Decode(&a); err != nil {
			return err
		}
		found = &a
		return nil
	})
	res.Close()
	if err != nil {
		return nil, err
	}
	if found != nil {
		idx.accountCache[addr.String()] = found
		return found, nil
	}

	acc := &model.Account{Address: addr}
	if err := idx.Insert(ctx, model.AccountTableKey, []pack.Item{acc}); err != nil {
		return nil, err
	}
	idx.accountCache[addr.String()] = acc
	return acc, nil
}

// LookupAccount resolves addr without creating one; returns
// ErrNoAccountEntry if it has never been seen.
func (idx *Indexer) LookupAccount(ctx context.Context, addr tezos.Address) (*model.Account, error) {
	idx.mu.RLock()
	if acc, ok := idx.accountCache[addr.String()]; ok {
		idx.mu.RUnlock()
		return acc, nil
	}
	idx.mu.RUnlock()

	t, err := idx.Table(model.AccountTableKey)
	if err != nil {
		return nil, err
	}
	q := pack.NewQuery("lookup-account-ro").WithTable(t).AndEqual("a", addr.Bytes()).WithLimit(1)
	res, err := t.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer res.Close()
	var found *model.Account
	err = res.Walk(func(r pack.Row) error {
		var a model.Account
		if err := r.Decode(&a); err != nil {
			return err
		}
		found = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNoAccountEntry
	}
	return found, nil
}

// AllAccountAddresses lists every known account address, used by
// AccountsResetHandler to enqueue a full refresh.
func (idx *Indexer) AllAccountAddresses(ctx context.Context) ([]*model.Account, error) {
	t, err := idx.Table(model.AccountTableKey)
	if err != nil {
		return nil, err
	}
	q := pack.NewQuery("all-accounts").WithTable(t)
	res, err := t.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer res.Close()
	out := make([]*model.Account, 0, res.Rows())
	err = res.Walk(func(r pack.Row) error {
		a := &model.Account{}
		if err := r.Decode(a); err != nil {
			return err
		}
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
