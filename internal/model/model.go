// Package model defines the core domain types shared across the position engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types.
const (
	TypeBuy  = "buy"
	TypeSell = "sell"
)

// Status values shared by transactions and positions.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// SchemaVersion is stamped on every document written by this engine.
const SchemaVersion = 2

// Transaction is one buy or sell event in the append-only ledger.
// Once stored it is never mutated in place; an edit is a new write that
// triggers a full position recalculation.
//
// Price is a pointer: upstream import sources occasionally deliver
// transactions without a unit price, and those must aggregate as a
// zero-cost contribution instead of failing.
type Transaction struct {
	ID            string           `json:"id" db:"id"`
	SchemaVersion int              `json:"schemaVersion" db:"schema_version"`
	UserID        string           `json:"userId" db:"user_id"`
	Asset         string           `json:"asset" db:"asset"`
	Group         string           `json:"group,omitempty" db:"asset_group"` // display grouping key, e.g. WBTC → BTC
	Chain         string           `json:"chain,omitempty" db:"chain"`
	Type          string           `json:"type" db:"type"` // "buy" or "sell"
	Amount        decimal.Decimal  `json:"amount" db:"amount"`
	Price         *decimal.Decimal `json:"price" db:"price"`
	Status        string           `json:"status" db:"status"` // informational only
	Date          string           `json:"date" db:"date"`     // logical day, YYYY-MM-DD
	Timestamp     time.Time        `json:"timestamp" db:"timestamp"`
	CreatedAt     time.Time        `json:"createdAt" db:"created_at"` // tie-breaker when Date collides
	PositionID    string           `json:"positionId,omitempty" db:"position_id"`
	EntryIndex    int              `json:"entryIndex" db:"entry_index"`
	Memo          string           `json:"memo,omitempty" db:"memo"`
	ExitMemo      string           `json:"exitMemo,omitempty" db:"exit_memo"`
	Tags          []string         `json:"tags,omitempty" db:"tags"`
	ExitTags      []string         `json:"exitTags,omitempty" db:"exit_tags"`

	// Sell-side fields, stamped when the transaction realizes P&L.
	CloseDate  string           `json:"closeDate,omitempty" db:"close_date"`
	ClosePrice *decimal.Decimal `json:"closePrice,omitempty" db:"close_price"`
	PnL        *decimal.Decimal `json:"pnl,omitempty" db:"pnl"`
	PnLAbs     *decimal.Decimal `json:"pnl_abs,omitempty" db:"pnl_abs"`
	PnLPct     *decimal.Decimal `json:"pnl_pct,omitempty" db:"pnl_pct"`
}

// PriceOrZero returns the transaction's unit price, or zero when the
// upstream source delivered none.
func (t *Transaction) PriceOrZero() decimal.Decimal {
	if t.Price == nil {
		return decimal.Zero
	}
	return *t.Price
}

// GroupKey returns the display grouping key: the explicit group when set,
// otherwise the underlying asset symbol.
func (t *Transaction) GroupKey() string {
	if t.Group != "" {
		return t.Group
	}
	return t.Asset
}

// Position is the derived summary of all transactions for one (user, asset)
// pair. It is owned and exclusively written by the aggregation/recalculation
// path; everything else only reads it.
type Position struct {
	ID             string          `json:"id" db:"id"`
	SchemaVersion  int             `json:"schemaVersion" db:"schema_version"`
	UserID         string          `json:"userId" db:"user_id"`
	Asset          string          `json:"asset" db:"asset"`
	Chain          string          `json:"chain,omitempty" db:"chain"`
	Status         string          `json:"status" db:"status"` // "open" or "closed"
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
	ClosedAt       *time.Time      `json:"closedAt,omitempty" db:"closed_at"`
	CurrentSize    decimal.Decimal `json:"current_size" db:"current_size"`
	TotalBuyAmount decimal.Decimal `json:"total_buy_amount" db:"total_buy_amount"` // lifetime bought quantity, monotonic
	TotalCost      decimal.Decimal `json:"total_cost" db:"total_cost"`             // open cost basis, reduced on sells
	AvgEntryPrice  decimal.Decimal `json:"avg_entry_price" db:"avg_entry_price"`
	RealizedPnLAbs decimal.Decimal `json:"realized_pnl_abs" db:"realized_pnl_abs"`
	RealizedPnLPct decimal.Decimal `json:"realized_pnl_pct" db:"realized_pnl_pct"`
	TransactionIDs []string        `json:"transactionIds" db:"transaction_ids"`
	MainThesis     string          `json:"main_thesis,omitempty" db:"main_thesis"`
	MainExitReason string          `json:"main_exit_reason,omitempty" db:"main_exit_reason"`
}

// Quote is a live market data point supplied by an external price feed.
type Quote struct {
	Price     decimal.Decimal `json:"price"`
	Change24h decimal.Decimal `json:"change24h"`
}

// AssetSummary is a display-ready roll-up of one asset group across a
// user's full ledger. Computed on demand, never persisted.
type AssetSummary struct {
	Symbol        string          `json:"symbol"` // grouping key
	Assets        []string        `json:"assets"` // underlying symbols merged into this group
	Holdings      decimal.Decimal `json:"holdings"` // may be negative (liability, not error)
	TotalCost     decimal.Decimal `json:"total_cost"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	Price         decimal.Decimal `json:"price"`
	Change24h     decimal.Decimal `json:"change24h"`
	CurrentValue  decimal.Decimal `json:"current_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	PnLPercent    decimal.Decimal `json:"pnl_percent"`
}
