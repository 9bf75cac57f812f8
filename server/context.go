// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/dennisklicker/Conseil/etl/index"
	"github.com/dennisklicker/Conseil/metadata"
)

// Context carries everything one request's handler chain needs; it is
// constructed once per request and passed by pointer down the chain, the
// same shape the route handlers panic-and-recover protocol is built
// around.
type Context struct {
	context.Context
	RequestID string
	Indexer   *index.Indexer
	Metadata  *metadata.MetadataService
	Request   *http.Request
	Params    httprouter.Params

	// ResponseWriter is only meant for handlers that stream their own body
	// (returning status -1 to tell Engine the response is already written)
	// and report a final row count as an HTTP trailer.
	ResponseWriter http.ResponseWriter

	MaxRowLimit  int
	QueryTimeout time.Duration
}
