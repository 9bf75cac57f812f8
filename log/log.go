// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

// Package log centralizes per-component loggers on top of echa/log so every
// package in this module can tag its output (etl, rpc, server, metadata, ...)
// without wiring a logger through every constructor.
package log

import (
	logpkg "github.com/echa/log"
)

// Logger is re-exported so callers never need to import echa/log directly.
type Logger = logpkg.Logger

// Log is the process-wide default logger, used by packages that have not
// registered their own tag.
var Log Logger = logpkg.Log

// NewLogger returns a tagged logger for component, inheriting the process
// default's level and output until explicitly overridden.
func NewLogger(component string) Logger {
	return logpkg.NewLogger(component)
}

// Disable silences the named component's logger.
func Disable(component string) {
	logpkg.Disable(component)
}
