// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package server

import (
	"time"

	"github.com/dennisklicker/Conseil/etl/index"
	"github.com/dennisklicker/Conseil/metadata"
)

// HttpConfig mirrors the `server.*` configuration keys: worker-pool sizing,
// timeouts and CORS behavior for the discovery/query HTTP surface.
type HttpConfig struct {
	Addr            string
	Port            int
	MaxWorkers      int
	MaxQueue        int
	ReadTimeout     time.Duration
	HeaderTimeout   time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	MaxRowLimit   int
	QueryTimeout  time.Duration

	CorsEnable       bool
	CorsOrigin       string
	CorsAllowHeaders string
	CorsMethods      string
	CorsMaxAge       string

	// ApiKey is the value the apiKey header must equal; empty disables the
	// check (e.g. for local development), since authentication internals
	// are an external collaborator this layer only enforces the header
	// contract against.
	ApiKey string
}

// Config is the full dependency set server.New wires into an Engine.
type Config struct {
	Indexer  *index.Indexer
	Metadata *metadata.MetadataService
	Http     HttpConfig
}
