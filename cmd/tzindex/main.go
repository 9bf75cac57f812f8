// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

// Command tzindex runs the Tezos ingestion pipeline and the discovery/query
// HTTP surface against a single configured network.
package main

import (
	"os"
	"strings"

	"github.com/echa/config"

	"github.com/dennisklicker/Conseil/log"
)

var mainlog = log.NewLogger("main")

// ConfigError is fatal at startup: a missing or invalid CLI argument or
// configuration value.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return "config: " + e.Message }

// ignoreProcessFailuresFromEnv reads LORRE_FAILURE_IGNORE, matching spec's
// env-var-driven failure policy toggle.
func ignoreProcessFailuresFromEnv() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("LORRE_FAILURE_IGNORE")))
	switch v {
	case "true", "yes":
		return true
	default:
		return false
	}
}

func main() {
	if err := run(); err != nil {
		if _, ok := err.(*ConfigError); ok {
			mainlog.Errorf("%v", err)
			os.Exit(2)
		}
		mainlog.Errorf("%v", err)
		os.Exit(1)
	}
}

func run() error {
	args := os.Args[1:]
	if len(args) < 1 {
		return &ConfigError{Message: "missing required network argument, e.g. `tzindex mainnet`"}
	}
	network := args[0]
	if network == "" {
		return &ConfigError{Message: "network argument must not be empty"}
	}

	return runIndexerAndServer(network, config.GetBool("indexer.norpc"))
}
