// Package portfolio builds display-ready cross-asset summaries from the raw
// transaction ledger and a live price feed. It is pure and stateless: it
// never writes to storage and is safe to call concurrently from any number
// of readers.
package portfolio

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cryptofolio/position-engine/internal/model"
	"github.com/cryptofolio/position-engine/internal/wac"
)

var hundred = decimal.NewFromInt(100)

// PriceLookup resolves a live quote for an asset symbol. ok=false means the
// feed has no quote; the summary then carries a zero price rather than
// failing the whole roll-up.
type PriceLookup func(symbol string) (model.Quote, bool)

// Aggregate groups transactions by their display key (explicit group when
// set, otherwise the asset symbol — a group may merge wrapped or bridged
// variants of the same asset), folds each group chronologically with the
// same weighted-average-cost rule the persisted positions use, and attaches
// live prices.
//
// Groups whose absolute holdings fall below the dust threshold are dropped.
// Negative holdings are preserved, not clamped: the caller decides whether
// to render them as liabilities.
func Aggregate(txs []model.Transaction, lookup PriceLookup) []model.AssetSummary {
	groups := make(map[string][]model.Transaction)
	for _, tx := range txs {
		key := tx.GroupKey()
		groups[key] = append(groups[key], tx)
	}

	summaries := make([]model.AssetSummary, 0, len(groups))
	for key, group := range groups {
		ordered := append([]model.Transaction(nil), group...)
		wac.SortChronological(ordered)

		holdings, totalCost, avg := fold(ordered)
		if wac.IsDust(holdings) {
			continue
		}

		summary := model.AssetSummary{
			Symbol:        key,
			Assets:        underlyingAssets(ordered),
			Holdings:      holdings,
			TotalCost:     totalCost,
			AvgEntryPrice: avg,
		}

		if lookup != nil {
			if quote, ok := lookup(key); ok {
				summary.Price = quote.Price
				summary.Change24h = quote.Change24h
			}
		}

		summary.CurrentValue = holdings.Mul(summary.Price)
		summary.UnrealizedPnL = summary.CurrentValue.Sub(totalCost)
		if totalCost.IsPositive() {
			summary.PnLPercent = summary.UnrealizedPnL.Div(totalCost).Mul(hundred)
		}

		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Symbol < summaries[j].Symbol
	})
	return summaries
}

// fold runs the weighted-average-cost update rule tracking only holdings and
// open cost basis; realized P&L already lives on the persisted positions.
func fold(ordered []model.Transaction) (holdings, totalCost, avg decimal.Decimal) {
	for i := range ordered {
		tx := &ordered[i]
		switch tx.Type {
		case model.TypeBuy:
			totalCost = totalCost.Add(tx.Amount.Mul(tx.PriceOrZero()))
			holdings = holdings.Add(tx.Amount)
			if holdings.IsPositive() {
				avg = totalCost.Div(holdings)
			} else {
				avg = decimal.Zero
			}
		case model.TypeSell:
			totalCost = totalCost.Sub(tx.Amount.Mul(avg))
			holdings = holdings.Sub(tx.Amount)
		}

		if wac.IsApproximatelyZero(holdings) {
			holdings = decimal.Zero
			totalCost = decimal.Zero
			avg = decimal.Zero
		}
	}
	return holdings, totalCost, avg
}

// underlyingAssets lists the distinct symbols merged into a group, sorted.
func underlyingAssets(txs []model.Transaction) []string {
	seen := make(map[string]bool)
	var assets []string
	for _, tx := range txs {
		if !seen[tx.Asset] {
			seen[tx.Asset] = true
			assets = append(assets, tx.Asset)
		}
	}
	sort.Strings(assets)
	return assets
}
