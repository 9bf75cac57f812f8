// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"blockwatch.cc/packdb/store"
	"blockwatch.cc/tzgo/tezos"
	"github.com/echa/config"

	"github.com/dennisklicker/Conseil/etl"
	"github.com/dennisklicker/Conseil/etl/index"
	"github.com/dennisklicker/Conseil/etl/model"
	"github.com/dennisklicker/Conseil/metadata"
	"github.com/dennisklicker/Conseil/rpc"
	"github.com/dennisklicker/Conseil/server"
)

const stateDBName = "tzindex.db"

// runIndexerAndServer wires NodeClient -> Indexer -> {Blocks,Accounts,
// Bakers,Rights}Processor -> IndexerLoop unless norpc disables ingestion,
// and, unless server.noapi is set, the MetadataService-backed
// discovery/query HTTP surface, then blocks until a termination signal or
// the loop's return triggers terminationSequence.
func runIndexerAndServer(network string, norpc bool) error {
	engine := config.GetString("db.engine")
	pathname := config.GetString("db.path")
	mainlog.Infof("starting tzindex for network %q using %s database at %s", network, engine, pathname)

	if err := os.MkdirAll(pathname, 0700); err != nil {
		return fmt.Errorf("creating db path: %w", err)
	}

	db, err := openStore(engine, filepath.Join(pathname, stateDBName))
	if err != nil {
		return err
	}

	indexer := index.NewIndexer(db)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := indexer.Init(ctx); err != nil {
		return fmt.Errorf("initializing indexer tables: %w", err)
	}

	var loop *etl.IndexerLoop
	var client *rpc.Client
	if !norpc {
		client = rpc.New(rpc.Config{
			BaseURL: config.GetString("rpc.url"),
			Batch: rpc.BatchConfig{
				PageSize:                config.GetInt("batch.pageSize"),
				NodeRequestsConcurrency: config.GetInt("batch.nodeRequestsConcurrency"),
				AccountsSize:            config.GetInt("batch.accountsSize"),
			},
			Calls: rpc.CallConfig{
				Deadline:   config.GetDuration("callsConf.deadline"),
				RetryCount: config.GetInt("callsConf.retryCount"),
			},
		})

		loop = buildIndexerLoop(indexer, client, network)
	}

	var srv *server.Engine
	if !config.GetBool("server.noapi") {
		srv, err = server.New(&server.Config{
			Indexer:  indexer,
			Metadata: metadata.NewMetadataService(metadata.DefaultPhysicalSchema([]string{network}), metadata.OverrideTree{}, indexer),
			Http: server.HttpConfig{
				Addr:            config.GetString("server.addr"),
				Port:            config.GetInt("server.port"),
				MaxWorkers:      config.GetInt("server.workers"),
				MaxQueue:        config.GetInt("server.queue"),
				ReadTimeout:     config.GetDuration("server.read_timeout"),
				WriteTimeout:    config.GetDuration("server.write_timeout"),
				ShutdownTimeout: config.GetDuration("server.shutdown_timeout"),
				MaxRowLimit:     config.GetInt("server.max_row_limit"),
				QueryTimeout:    config.GetDuration("server.query_timeout"),
				CorsEnable:      config.GetBool("server.cors_enable"),
				CorsOrigin:      config.GetString("server.cors_origin"),
				ApiKey:          config.GetString("server.api_key"),
			},
		})
		if err != nil {
			return fmt.Errorf("starting discovery server: %w", err)
		}
		srv.Start()
	}

	var loopErrCh chan error
	if loop != nil {
		loopErrCh = make(chan error, 1)
		go func() { loopErrCh <- loop.Run(ctx) }()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var runErr error
	select {
	case s := <-sig:
		mainlog.Infof("received signal %v, shutting down", s)
		cancel()
		if loopErrCh != nil {
			<-loopErrCh
		}
	case err := <-loopErrCh:
		runErr = err
	}
	signal.Stop(sig)

	terminationSequence(indexer, client, srv)
	return runErr
}

// buildIndexerLoop constructs every ETL component and the IndexerLoop that
// drives them, reading its timing/threshold knobs off already-resolved
// config values exactly as LoopConfig documents.
func buildIndexerLoop(indexer *index.Indexer, client *rpc.Client, network string) *etl.IndexerLoop {
	mainlog.Infof("indexer loop targets network %q", network)
	planner := etl.NewBlockFetchPlanner(client, config.GetInt64("crawler.bootstrap_window"))

	registry := etl.NewTokenRegistry(loadTokenContracts())

	var tnsContract tezos.Address
	if raw := config.GetString("tns.contract"); raw != "" {
		if addr, err := tezos.ParseAddress(raw); err == nil {
			tnsContract = addr
		} else {
			mainlog.Warnf("invalid tns.contract %q, name resolution disabled: %v", raw, err)
		}
	}
	tns := etl.NewTNSResolver(tnsContract)

	fees := etl.NewFeeAggregator(indexer, config.GetInt("fees.numberOfFeesAveraged"))
	blocks := etl.NewBlocksProcessor(indexer, registry, tns, fees)
	accounts := etl.NewAccountsProcessor(indexer, client)
	bakers := etl.NewBakersProcessor(indexer, client)
	rights := etl.NewRightsProcessor(indexer, client)
	resets := etl.NewAccountsResetHandler(indexer)

	mode := parseMode(config.GetString("crawler.mode"), config.GetInt64("crawler.custom_n"))

	cfg := etl.LoopConfig{
		Mode:                         mode,
		IgnoreProcessFailures:        ignoreProcessFailuresFromEnv(),
		BootupConnectionCheckTimeout: config.GetDuration("crawler.bootup_connection_check_timeout"),
		BootupRetryInterval:          config.GetDuration("crawler.bootup_retry_interval"),
		SleepInterval:                config.GetDuration("crawler.sleep_interval"),
		FeeUpdateInterval:            config.GetInt64("fees.feeUpdateInterval"),
		LookaheadCycles:              config.GetInt64("blockRightsFetching.lookaheadCycles"),
		AccountsBatchSize:            config.GetInt("batch.accountsSize"),
		BakersBatchSize:              config.GetInt("batch.accountsSize"),
		ResetEvents:                  loadResetEvents(),
	}

	return etl.NewIndexerLoop(cfg, client, indexer, planner, blocks, accounts, bakers, rights, resets, fees)
}

func parseMode(kind string, n int64) etl.Mode {
	switch kind {
	case "everything":
		return etl.Mode{Kind: etl.ModeEverything}
	case "custom":
		return etl.Mode{Kind: etl.ModeCustom, N: n}
	default:
		return etl.Mode{Kind: etl.ModeNewest}
	}
}

// loadTokenContracts and loadResetEvents return nil: no token contracts or
// reset events are read from configuration, so the token registry starts
// empty and no reset events are applied.
func loadTokenContracts() []model.TokenContract {
	return nil
}

func loadResetEvents() []model.ResetEvent {
	return nil
}

func openStore(engine, path string) (store.DB, error) {
	db, err := store.Open(engine, path, nil)
	if err != nil {
		if !store.IsError(err, store.ErrDbDoesNotExist) {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		db, err = store.Create(engine, path, nil)
		if err != nil {
			return nil, fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return db, nil
}

// terminationSequence stops the discovery server, terminates the node HTTP
// client and closes the DB pool, in that order.
func terminationSequence(indexer *index.Indexer, client *rpc.Client, srv *server.Engine) {
	if srv != nil {
		srv.Stop()
	}
	if client != nil {
		client.Close()
	}
	if err := indexer.Close(); err != nil {
		mainlog.Warnf("closing indexer: %v", err)
	}
}
