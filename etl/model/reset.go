// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package model

import "strconv"

// ResetEvent declares that all accounts must be re-fetched at
// ActivationLevel. Reset events are sourced from
// configuration, not persisted as their own pack.Table row — the indexer
// only persists the synthetic checkpoints they produce — but they carry a
// RowId-free identity (Protocol, ActivationLevel, Kind) so the handler can
// track which ones it has already applied without a database round trip.
type ResetEvent struct {
	Protocol        string
	ActivationLevel int64
	Kind            string
}

// Key returns a stable identity for de-duplicating/tracking applied events.
func (e ResetEvent) Key() string {
	return e.Protocol + "/" + strconv.FormatInt(e.ActivationLevel, 10) + "/" + e.Kind
}
