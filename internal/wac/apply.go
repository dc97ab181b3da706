// Package wac implements weighted-average-cost position accounting: folding
// an append-only stream of buy/sell transactions into a derived Position.
//
// The fold is order-dependent — the average entry price depends on the
// sequence of buys and sells, not on totals — so callers must present
// transactions in chronological order and serialize concurrent updates
// for the same (user, asset) pair.
//
// All monetary values use shopspring/decimal — never float64 for money.
package wac

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cryptofolio/position-engine/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Policy names the accounting edge-case decisions instead of leaving them
// implicit in the arithmetic.
type Policy struct {
	// AllowNegativeHoldings keeps the historical behavior where a sell
	// larger than recorded holdings drives current_size negative. Such
	// balances are liabilities, not errors: they typically mean external
	// holdings were never imported into the ledger. When false, an
	// oversized sell is rejected with a ConsistencyError.
	AllowNegativeHoldings bool
}

// DefaultPolicy matches the historical behavior.
var DefaultPolicy = Policy{AllowNegativeHoldings: true}

// PositionID derives the stable document id for a (user, asset) pair.
// A closed position that receives a new buy reopens under the same id;
// re-entries never mint a new position identity.
func PositionID(userID, asset string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(userID+":"+asset)).String()
}

// Apply folds one transaction into a position and returns the updated copy.
// A nil position means this is the first transaction seen for the
// (user, asset) pair and a fresh one is initialized.
//
// Sells realize P&L against the pre-update average entry price and leave
// that average unchanged; only buys move it. On a sell, the transaction is
// annotated in place with its close fields (closeDate, closePrice, pnl_abs,
// pnl_pct) so the caller can persist them alongside the position.
//
// The input position is not mutated.
func Apply(pos *model.Position, tx *model.Transaction, pol Policy) (*model.Position, error) {
	if !tx.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Reason: "must be strictly positive"}
	}
	if tx.Type != model.TypeBuy && tx.Type != model.TypeSell {
		return nil, &ValidationError{Field: "type", Reason: "must be buy or sell"}
	}

	var next model.Position
	if pos == nil {
		next = model.Position{
			ID:            PositionID(tx.UserID, tx.Asset),
			SchemaVersion: model.SchemaVersion,
			UserID:        tx.UserID,
			Asset:         tx.Asset,
			Chain:         tx.Chain,
			Status:        model.StatusOpen,
			CreatedAt:     tx.Timestamp,
		}
	} else {
		next = *pos
		next.TransactionIDs = append([]string(nil), pos.TransactionIDs...)
	}

	avgBefore := next.AvgEntryPrice
	price := tx.PriceOrZero() // nil price degrades to a zero-cost contribution

	switch tx.Type {
	case model.TypeBuy:
		next.TotalCost = next.TotalCost.Add(tx.Amount.Mul(price))
		next.CurrentSize = next.CurrentSize.Add(tx.Amount)
		next.TotalBuyAmount = next.TotalBuyAmount.Add(tx.Amount)
		if next.CurrentSize.IsPositive() {
			next.AvgEntryPrice = next.TotalCost.Div(next.CurrentSize)
		} else {
			next.AvgEntryPrice = decimal.Zero
		}

	case model.TypeSell:
		costRemoved := tx.Amount.Mul(avgBefore)
		next.TotalCost = next.TotalCost.Sub(costRemoved)
		next.CurrentSize = next.CurrentSize.Sub(tx.Amount)
		next.RealizedPnLAbs = next.RealizedPnLAbs.Add(tx.Amount.Mul(price.Sub(avgBefore)))
		// AvgEntryPrice deliberately unchanged: weighted-average cost,
		// not FIFO/LIFO.
		next.RealizedPnLPct = realizedPct(next.RealizedPnLAbs, avgBefore, next.TotalBuyAmount)
		stampSell(tx, avgBefore, price)
	}

	if !pol.AllowNegativeHoldings && next.CurrentSize.IsNegative() && !IsApproximatelyZero(next.CurrentSize) {
		return nil, &ConsistencyError{
			UserID:    tx.UserID,
			Asset:     tx.Asset,
			Invariant: "sell exceeds recorded holdings",
		}
	}
	// An open long with a negative cost basis cannot arise from correct
	// WAC arithmetic; it indicates drift between the position document
	// and the ledger.
	if next.CurrentSize.GreaterThan(Epsilon) && next.TotalCost.IsNegative() && !IsApproximatelyZero(next.TotalCost) {
		return nil, &ConsistencyError{
			UserID:    tx.UserID,
			Asset:     tx.Asset,
			Invariant: "negative cost basis on open position",
		}
	}

	if IsApproximatelyZero(next.CurrentSize) {
		next.CurrentSize = decimal.Zero
		next.TotalCost = decimal.Zero
		next.AvgEntryPrice = decimal.Zero
		next.Status = model.StatusClosed
		closedAt := tx.Timestamp
		next.ClosedAt = &closedAt
		if tx.ExitMemo != "" {
			next.MainExitReason = tx.ExitMemo
		}
	} else {
		next.Status = model.StatusOpen
		next.ClosedAt = nil
	}

	if next.MainThesis == "" && tx.Memo != "" {
		next.MainThesis = tx.Memo
	}

	tx.PositionID = next.ID
	tx.EntryIndex = len(next.TransactionIDs)
	next.TransactionIDs = append(next.TransactionIDs, tx.ID)
	next.UpdatedAt = tx.Timestamp

	return &next, nil
}

// realizedPct expresses cumulative realized P&L as a percentage of the
// capital deployed, approximated as the pre-sale average entry price times
// the lifetime bought quantity. Computed before the close clamp zeroes the
// average so a fully exited position keeps a meaningful percentage.
func realizedPct(realizedAbs, avgBefore, totalBuyAmount decimal.Decimal) decimal.Decimal {
	denom := avgBefore.Mul(totalBuyAmount)
	if !denom.IsPositive() {
		return decimal.Zero
	}
	return realizedAbs.Div(denom).Mul(hundred)
}

// stampSell writes the realized-P&L fields other systems read off the
// transaction document.
func stampSell(tx *model.Transaction, avgBefore, price decimal.Decimal) {
	pnlAbs := tx.Amount.Mul(price.Sub(avgBefore))
	tx.CloseDate = tx.Date
	closePrice := price
	tx.ClosePrice = &closePrice
	tx.PnLAbs = &pnlAbs
	pnl := pnlAbs
	tx.PnL = &pnl
	if avgBefore.IsPositive() {
		pct := price.Sub(avgBefore).Div(avgBefore).Mul(hundred)
		tx.PnLPct = &pct
	} else {
		zero := decimal.Zero
		tx.PnLPct = &zero
	}
}
