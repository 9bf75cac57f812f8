// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"blockwatch.cc/packdb/pack"

	"github.com/dennisklicker/Conseil/metadata"
)

// FilterOp is the predicate operator vocabulary the query body accepts.
// Every operator maps to a whitelisted pack.Condition constructor; no
// operator is ever passed through as a raw string comparison.
type FilterOp string

const (
	FilterEq    FilterOp = "eq"
	FilterNe    FilterOp = "ne"
	FilterLt    FilterOp = "lt"
	FilterGt    FilterOp = "gt"
	FilterIn    FilterOp = "in"
	FilterNotIn FilterOp = "notin"
)

// rowWalker is the subset of packdb's query result this package relies on,
// named locally so streamJSON/streamCSV don't have to pin down packdb's
// concrete result type.
type rowWalker interface {
	Walk(func(pack.Row) error) error
}

type Filter struct {
	Attribute string      `json:"attribute"`
	Op        FilterOp    `json:"op"`
	Value     interface{} `json:"value"`
}

// DataQuery is the POST /v2/data/{p}/{n}/{e} request body: a set of
// predicates over attribute names, a direction and a row limit that is
// always clamped to the server's configured ceiling.
type DataQuery struct {
	Filters []Filter `json:"filters"`
	Desc    bool     `json:"desc"`
	Limit   int      `json:"limit"`
}

// queryData handles POST /v2/data/{platform}/{network}/{entity}: resolve
// every referenced attribute through MetadataService, reject hidden or
// unknown attributes, validate operand types against the physical column
// and execute a parameterized, identifier-whitelisted pack.Query.
func queryData(ctx *Context) (interface{}, int) {
	platform := ctx.Params.ByName("platform")
	network := ctx.Params.ByName("network")
	entity := ctx.Params.ByName("entity")

	var q DataQuery
	if err := json.NewDecoder(ctx.Request.Body).Decode(&q); err != nil {
		panic(EBadRequest(EC_PARAM_INVALID, "malformed query body", err))
	}

	attrs, err := ctx.Metadata.ListAttributes(platform, network, entity)
	if err != nil {
		panic(notFoundFromPathError(err))
	}
	byName := make(map[string]metadata.Attribute, len(attrs))
	columns := make(map[string]string, len(attrs))
	fieldNames := make([]string, 0, len(attrs))
	for _, a := range attrs {
		byName[a.Name] = a
		columns[a.Name] = a.Column()
		fieldNames = append(fieldNames, a.Column())
	}

	tableKey, err := ctx.Metadata.EntityTableKey(platform, network, entity)
	if err != nil {
		panic(notFoundFromPathError(err))
	}
	table, err := ctx.Indexer.Table(tableKey)
	if err != nil {
		panic(EInternal(EC_DATABASE, "serverResource failed", err))
	}

	limit := q.Limit
	if limit <= 0 || limit > ctx.MaxRowLimit {
		limit = ctx.MaxRowLimit
	}

	order := pack.OrderAsc
	if q.Desc {
		order = pack.OrderDesc
	}
	pq := pack.NewQuery(ctx.RequestID).
		WithTable(table).
		WithFields(fieldNames...).
		WithOrder(order).
		WithLimit(limit)

	for _, f := range q.Filters {
		attr, ok := byName[f.Attribute]
		if !ok {
			panic(EBadRequest(EC_PARAM_INVALID, fmt.Sprintf("unknown attribute %q", f.Attribute), nil))
		}
		if err := validateOperand(attr, f.Op, f.Value); err != nil {
			panic(EBadRequest(EC_PARAM_INVALID, err.Error(), nil))
		}
		cond, err := buildCondition(attr.Column(), f.Op, f.Value)
		if err != nil {
			panic(EBadRequest(EC_PARAM_INVALID, err.Error(), nil))
		}
		pq = pq.AndCondition(cond)
	}

	timeout := ctx.QueryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	queryCtx, cancel := context.WithTimeout(ctx.Context, timeout)
	defer cancel()

	res, err := table.Query(queryCtx, pq)
	if err != nil {
		panic(EInternal(EC_DATABASE, "serverResource failed", err))
	}
	defer res.Close()

	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.Name
	}

	format := ctx.Request.URL.Query().Get("format")
	if format == "csv" {
		streamCSV(ctx, tableKey, columns, names, res)
	} else {
		streamJSON(ctx, tableKey, columns, res)
	}
	return nil, -1
}

// streamJSON writes rows as a JSON array directly to the response, closing
// the bracket and reporting the row count as an X-Row-Count trailer even if
// the scan fails partway through, the same cursor/count/error-as-trailer
// contract the teacher's StreamTrailer implements.
func streamJSON(ctx *Context, tableKey string, columns map[string]string, res rowWalker) {
	w := ctx.ResponseWriter
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Trailer", "X-Row-Count")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	_, _ = io.WriteString(w, "[")
	count := 0
	needComma := false
	err := res.Walk(func(r pack.Row) error {
		row, err := ctx.Indexer.DecodeRow(tableKey, r, columns)
		if err != nil {
			return err
		}
		if needComma {
			_, _ = io.WriteString(w, ",")
		}
		needComma = true
		count++
		return enc.Encode(row)
	})
	_, _ = io.WriteString(w, "]")
	if err != nil {
		slog.Errorf("streaming query rows: %v", err)
	}
	w.Header().Set("X-Row-Count", strconv.Itoa(count))
}

// streamCSV writes rows as CSV directly to the response. packdb's own
// encoding/csv encoder reflects over packdb struct tags, but query results
// here are dynamic attribute-name-keyed maps with no backing struct, so this
// uses the standard library encoder instead, header row first.
func streamCSV(ctx *Context, tableKey string, columns map[string]string, names []string, res rowWalker) {
	w := ctx.ResponseWriter
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Trailer", "X-Row-Count")
	w.WriteHeader(http.StatusOK)

	enc := csv.NewWriter(w)
	_ = enc.Write(names)
	count := 0
	err := res.Walk(func(r pack.Row) error {
		row, err := ctx.Indexer.DecodeRow(tableKey, r, columns)
		if err != nil {
			return err
		}
		rec := make([]string, len(names))
		for i, n := range names {
			rec[i] = fmt.Sprintf("%v", row[n])
		}
		count++
		return enc.Write(rec)
	})
	enc.Flush()
	if err == nil {
		err = enc.Error()
	}
	if err != nil {
		slog.Errorf("streaming query rows: %v", err)
	}
	w.Header().Set("X-Row-Count", strconv.Itoa(count))
}

const defaultQueryTimeout = 30 * time.Second

// validateOperand rejects operands that can't match the attribute's
// physical data type; an override's presentation dataType never relaxes
// this check, since it exists purely for client rendering.
func validateOperand(attr metadata.Attribute, op FilterOp, value interface{}) error {
	switch op {
	case FilterIn, FilterNotIn:
		if _, ok := value.([]interface{}); !ok {
			return fmt.Errorf("operator %q requires an array value for attribute %q", op, attr.Name)
		}
	default:
		if value == nil {
			return fmt.Errorf("operator %q requires a value for attribute %q", op, attr.Name)
		}
	}
	switch attr.PhysicalType() {
	case metadata.DataTypeInt, metadata.DataTypeDecimal:
		return validateNumericOperand(attr, value)
	}
	return nil
}

func validateNumericOperand(attr metadata.Attribute, value interface{}) error {
	check := func(v interface{}) error {
		switch v.(type) {
		case float64, int, int64:
			return nil
		default:
			return fmt.Errorf("attribute %q expects a numeric value, got %T", attr.Name, v)
		}
	}
	if arr, ok := value.([]interface{}); ok {
		for _, v := range arr {
			if err := check(v); err != nil {
				return err
			}
		}
		return nil
	}
	return check(value)
}

// buildCondition maps a whitelisted operator to its pack.Condition
// constructor; attribute names never reach this point as raw identifiers,
// only the resolved, packdb-tagged column.
func buildCondition(column string, op FilterOp, value interface{}) (pack.Condition, error) {
	switch op {
	case FilterEq:
		return pack.Equal(column, value), nil
	case FilterNe:
		return pack.NotEqual(column, value), nil
	case FilterLt:
		return pack.Lt(column, value), nil
	case FilterGt:
		return pack.Gt(column, value), nil
	case FilterIn:
		return pack.In(column, value), nil
	case FilterNotIn:
		return pack.NotIn(column, value), nil
	default:
		return nil, fmt.Errorf("unsupported operator %q", op)
	}
}
