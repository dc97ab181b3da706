package wac

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cryptofolio/position-engine/internal/model"
)

// SortChronological orders transactions by (date, createdAt) ascending,
// with the id as a final tie-break so replays are fully deterministic.
// This is the only ordering under which an incremental fold and a full
// recalculation agree.
func SortChronological(txs []model.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].Date != txs[j].Date {
			return txs[i].Date < txs[j].Date
		}
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.Before(txs[j].CreatedAt)
		}
		return txs[i].ID < txs[j].ID
	})
}

// Recalculate rebuilds a position from scratch by replaying every
// transaction for its (user, asset) pair. It supersedes whatever the
// incremental fold produced: transaction ids are resynchronized to exactly
// the set replayed, and main_thesis is re-derived from the earliest
// memo-bearing transaction. The operation is idempotent and safe to re-run
// after a partial failure.
//
// An empty transaction list is not an error: it yields the canonical
// zeroed, closed position (the document is reset, never deleted, while
// anything may still reference it).
//
// prior carries the identity of an existing position document; pass nil
// when none exists yet.
func Recalculate(prior *model.Position, userID, asset string, txs []model.Transaction, pol Policy) (*model.Position, error) {
	if len(txs) == 0 {
		return emptyPosition(prior, userID, asset), nil
	}

	ordered := append([]model.Transaction(nil), txs...)
	SortChronological(ordered)

	var pos *model.Position
	for i := range ordered {
		next, err := Apply(pos, &ordered[i], pol)
		if err != nil {
			return nil, err
		}
		pos = next
	}

	ids := make([]string, len(ordered))
	for i := range ordered {
		ids[i] = ordered[i].ID
	}
	pos.TransactionIDs = ids

	if prior != nil {
		pos.ID = prior.ID
		pos.Chain = prior.Chain
		if !prior.CreatedAt.IsZero() {
			pos.CreatedAt = prior.CreatedAt
		}
	}

	return pos, nil
}

func emptyPosition(prior *model.Position, userID, asset string) *model.Position {
	pos := &model.Position{
		ID:             PositionID(userID, asset),
		SchemaVersion:  model.SchemaVersion,
		UserID:         userID,
		Asset:          asset,
		Status:         model.StatusClosed,
		CurrentSize:    decimal.Zero,
		TotalBuyAmount: decimal.Zero,
		TotalCost:      decimal.Zero,
		AvgEntryPrice:  decimal.Zero,
		RealizedPnLAbs: decimal.Zero,
		RealizedPnLPct: decimal.Zero,
		TransactionIDs: []string{},
	}
	if prior != nil {
		pos.ID = prior.ID
		pos.Chain = prior.Chain
		pos.CreatedAt = prior.CreatedAt
	}
	return pos
}
