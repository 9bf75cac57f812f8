// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/dennisklicker/Conseil/log"
)

var slog = log.NewLogger("server")

// Handler is a discovery/query route: it returns a JSON-able value and an
// HTTP status, or panics with *Error (or anything else, treated as
// EInternal) to signal failure. A single top-level recover renders errors;
// successful results are rendered by the engine, except when a handler
// streams its own body and returns status -1 (POST /v2/data).
type Handler func(ctx *Context) (interface{}, int)

type route struct {
	method  string
	path    string
	handler Handler
}

// Engine is the worker-pool HTTP server fronting the discovery and query
// routes: a bounded job queue feeds MaxWorkers goroutines so a burst of
// slow queries can't spawn unbounded goroutines.
type Engine struct {
	cfg     Config
	router  *httprouter.Router
	http    *http.Server
	jobs    chan func()
	wg      sync.WaitGroup
	closeWg sync.WaitGroup
}

func New(cfg *Config) (*Engine, error) {
	if cfg.Http.MaxWorkers <= 0 {
		cfg.Http.MaxWorkers = 16
	}
	if cfg.Http.MaxQueue <= 0 {
		cfg.Http.MaxQueue = 128
	}
	if cfg.Http.MaxRowLimit <= 0 {
		cfg.Http.MaxRowLimit = 10000
	}
	if cfg.Http.QueryTimeout <= 0 {
		cfg.Http.QueryTimeout = 30 * time.Second
	}

	e := &Engine{
		cfg:    *cfg,
		router: httprouter.New(),
		jobs:   make(chan func(), cfg.Http.MaxQueue),
	}
	e.registerRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Http.Addr, cfg.Http.Port)
	e.http = &http.Server{
		Addr:         addr,
		Handler:      e.router,
		ReadTimeout:  cfg.Http.ReadTimeout,
		WriteTimeout: cfg.Http.WriteTimeout,
	}
	return e, nil
}

func (e *Engine) registerRoutes() {
	e.register("GET", "/v2/metadata/platforms", discoveryPlatforms)
	e.register("GET", "/v2/metadata/:platform/networks", discoveryNetworks)
	e.register("GET", "/v2/metadata/:platform/:network/entities", discoveryEntities)
	// ":segment" covers both the literal "attributes" listing and a single
	// attribute's values: httprouter forbids a static child ("attributes")
	// and a wildcard child (":attribute") on the same node, so both are
	// routed through one wildcard segment and disambiguated in the handler.
	e.register("GET", "/v2/metadata/:platform/:network/:entity/:segment", discoveryAttributesOrValues)
	e.register("POST", "/v2/data/:platform/:network/:entity", queryData)
}

func (e *Engine) register(method, path string, h Handler) {
	e.router.Handle(method, path, e.wrap(h))
}

// wrap applies the apiKey check, builds the request Context, dispatches the
// handler onto the worker pool and recovers any panic into a rendered
// *Error response, the single top-level exception interceptor the error
// taxonomy requires.
func (e *Engine) wrap(h Handler) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		e.setCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if e.cfg.Http.ApiKey != "" && r.Header.Get("apiKey") != e.cfg.Http.ApiKey {
			writeError(w, EAuth(EC_ACCESS_DENIED, "missing or invalid API key", nil))
			return
		}

		done := make(chan struct{})
		e.wg.Add(1)
		job := func() {
			defer e.wg.Done()
			defer close(done)
			defer func() {
				if p := recover(); p != nil {
					writeError(w, asError(p))
				}
			}()
			ctx := &Context{
				Context:        r.Context(),
				RequestID:      strconv.FormatInt(time.Now().UnixNano(), 36),
				Indexer:        e.cfg.Indexer,
				Metadata:       e.cfg.Metadata,
				Request:        r,
				Params:         params,
				ResponseWriter: w,
				MaxRowLimit:    e.cfg.Http.MaxRowLimit,
				QueryTimeout:   e.cfg.Http.QueryTimeout,
			}
			body, status := h(ctx)
			// status -1 means the handler streamed its own body and trailer
			// directly (POST /v2/data's csv/json streaming path).
			if status >= 0 {
				writeJSON(w, status, body)
			}
		}

		select {
		case e.jobs <- job:
		default:
			e.wg.Done()
			writeError(w, EInternal(EC_SERVER, "server busy", nil))
			return
		}
		<-done
	}
}

func (e *Engine) setCORS(w http.ResponseWriter) {
	if !e.cfg.Http.CorsEnable {
		return
	}
	origin := e.cfg.Http.CorsOrigin
	if origin == "" {
		origin = "*"
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	if e.cfg.Http.CorsMethods != "" {
		w.Header().Set("Access-Control-Allow-Methods", e.cfg.Http.CorsMethods)
	}
	if e.cfg.Http.CorsAllowHeaders != "" {
		w.Header().Set("Access-Control-Allow-Headers", e.cfg.Http.CorsAllowHeaders)
	}
	if e.cfg.Http.CorsMaxAge != "" {
		w.Header().Set("Access-Control-Max-Age", e.cfg.Http.CorsMaxAge)
	}
}

// Start launches the worker pool and begins serving HTTP.
func (e *Engine) Start() {
	for i := 0; i < e.cfg.Http.MaxWorkers; i++ {
		e.closeWg.Add(1)
		go func() {
			defer e.closeWg.Done()
			for job := range e.jobs {
				job()
			}
		}()
	}
	go func() {
		slog.Infof("listening on %s", e.http.Addr)
		if err := e.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Errorf("http server stopped: %v", err)
		}
	}()
}

// Stop drains in-flight requests, closes the worker pool, and shuts the
// listener down within ShutdownTimeout.
func (e *Engine) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Http.ShutdownTimeout)
	defer cancel()
	_ = e.http.Shutdown(ctx)
	e.wg.Wait()
	close(e.jobs)
	e.closeWg.Wait()
}

func asError(p interface{}) *Error {
	switch v := p.(type) {
	case *Error:
		return v
	case error:
		return EInternal(EC_SERVER, "serverResource failed", v)
	default:
		return EInternal(EC_SERVER, "serverResource failed", fmt.Errorf("%v", v))
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Errorf("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, e *Error) {
	writeJSON(w, e.Status, errorBody{Message: e.Message})
}
