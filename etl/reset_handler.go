// Copyright (c) 2020-2024 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package etl

import (
	"context"

	"blockwatch.cc/packdb/pack"

	"github.com/dennisklicker/Conseil/etl/index"
	"github.com/dennisklicker/Conseil/etl/model"
	"github.com/dennisklicker/Conseil/log"
)

var rhlog = log.NewLogger("reset")

// AccountsResetHandler applies protocol-upgrade-driven wholesale account
// refresh events.
type AccountsResetHandler struct {
	indexer *index.Indexer
	applied map[string]bool
}

func NewAccountsResetHandler(indexer *index.Indexer) *AccountsResetHandler {
	return &AccountsResetHandler{indexer: indexer, applied: make(map[string]bool)}
}

// UnprocessedResetRequestLevels returns the events whose ActivationLevel has
// already been reached (<= dbLevel) but have not yet been applied.
func (h *AccountsResetHandler) UnprocessedResetRequestLevels(events []model.ResetEvent, dbLevel int64) []model.ResetEvent {
	var out []model.ResetEvent
	for _, e := range events {
		if e.ActivationLevel <= dbLevel && !h.applied[e.Key()] {
			out = append(out, e)
		}
	}
	return out
}

// ApplyUnhandledAccountsResets enqueues a full account refresh for every
// ready event by writing synthetic AccountCheckpoint rows for every known
// account at ActivationLevel. Events that fail to apply this cycle are
// returned as UnhandledResetEvents and retried next iteration with the
// same set.
func (h *AccountsResetHandler) ApplyUnhandledAccountsResets(ctx context.Context, events []model.ResetEvent) ([]model.ResetEvent, error) {
	var unhandled []model.ResetEvent
	if len(events) == 0 {
		return unhandled, nil
	}

	accounts, err := h.indexer.AllAccountAddresses(ctx)
	if err != nil {
		rhlog.Errorf("listing accounts for reset: %v", err)
		return events, err
	}

	for _, e := range events {
		rows := make([]pack.Item, 0, len(accounts))
		for _, acc := range accounts {
			rows = append(rows, &model.AccountCheckpoint{
				AccountId:  model.AccountID(acc.RowId),
				Address:    acc.Address,
				BlockLevel: e.ActivationLevel,
				Synthetic:  true,
			})
		}
		if err := h.indexer.Insert(ctx, model.AccountCheckpointTableKey, rows); err != nil {
			rhlog.Errorf("applying reset event %s: %v", e.Key(), err)
			unhandled = append(unhandled, e)
			continue
		}
		h.applied[e.Key()] = true
		rhlog.Infof("applied reset event %s at level %d for %d accounts", e.Key(), e.ActivationLevel, len(accounts))
	}
	return unhandled, nil
}
