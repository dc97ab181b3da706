package portfolio_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptofolio/position-engine/internal/model"
	"github.com/cryptofolio/position-engine/internal/portfolio"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func tx(asset, group, typ string, amount, price float64, date string) model.Transaction {
	p := decimal.NewFromFloat(price)
	return model.Transaction{
		ID:        asset + "-" + typ + "-" + date,
		UserID:    "user1",
		Asset:     asset,
		Group:     group,
		Type:      typ,
		Amount:    decimal.NewFromFloat(amount),
		Price:     &p,
		Date:      date,
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func staticPrices(quotes map[string]model.Quote) portfolio.PriceLookup {
	return func(symbol string) (model.Quote, bool) {
		q, ok := quotes[symbol]
		return q, ok
	}
}

func TestAggregate_SingleAsset(t *testing.T) {
	txs := []model.Transaction{
		tx("BTC", "", model.TypeBuy, 1, 10000, "2024-03-01"),
		tx("BTC", "", model.TypeBuy, 1, 20000, "2024-03-02"),
		tx("BTC", "", model.TypeSell, 1, 25000, "2024-03-03"),
	}

	summaries := portfolio.Aggregate(txs, staticPrices(map[string]model.Quote{
		"BTC": {Price: d(30000), Change24h: d(2.5)},
	}))

	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	s := summaries[0]
	if s.Symbol != "BTC" {
		t.Errorf("symbol = %s", s.Symbol)
	}
	if !s.Holdings.Equal(d(1)) {
		t.Errorf("holdings = %s, want 1", s.Holdings)
	}
	// Same WAC semantics as the persisted position: cost basis 15000 after
	// the sell, not FIFO's 20000.
	if !s.TotalCost.Equal(d(15000)) {
		t.Errorf("total_cost = %s, want 15000", s.TotalCost)
	}
	if !s.CurrentValue.Equal(d(30000)) {
		t.Errorf("current_value = %s", s.CurrentValue)
	}
	if !s.UnrealizedPnL.Equal(d(15000)) {
		t.Errorf("unrealized_pnl = %s", s.UnrealizedPnL)
	}
	if !s.PnLPercent.Equal(d(100)) {
		t.Errorf("pnl_percent = %s, want 100", s.PnLPercent)
	}
	if !s.Change24h.Equal(d(2.5)) {
		t.Errorf("change24h = %s", s.Change24h)
	}
}

func TestAggregate_GroupMergesWrappedVariants(t *testing.T) {
	txs := []model.Transaction{
		tx("BTC", "", model.TypeBuy, 1, 10000, "2024-03-01"),
		tx("WBTC", "BTC", model.TypeBuy, 2, 11000, "2024-03-02"),
	}

	summaries := portfolio.Aggregate(txs, staticPrices(map[string]model.Quote{
		"BTC": {Price: d(12000)},
	}))

	if len(summaries) != 1 {
		t.Fatalf("expected merged group, got %d summaries", len(summaries))
	}
	s := summaries[0]
	if s.Symbol != "BTC" {
		t.Errorf("symbol = %s", s.Symbol)
	}
	if !s.Holdings.Equal(d(3)) {
		t.Errorf("holdings = %s, want 3", s.Holdings)
	}
	if len(s.Assets) != 2 || s.Assets[0] != "BTC" || s.Assets[1] != "WBTC" {
		t.Errorf("assets = %v", s.Assets)
	}
}

func TestAggregate_MissingPriceDefaultsToZero(t *testing.T) {
	txs := []model.Transaction{
		tx("OBSCURE", "", model.TypeBuy, 10, 5, "2024-03-01"),
	}

	summaries := portfolio.Aggregate(txs, staticPrices(nil))

	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	s := summaries[0]
	if !s.Price.IsZero() || !s.CurrentValue.IsZero() {
		t.Errorf("price = %s, current_value = %s, want zero", s.Price, s.CurrentValue)
	}
	if !s.UnrealizedPnL.Equal(d(-50)) {
		t.Errorf("unrealized_pnl = %s, want -50", s.UnrealizedPnL)
	}
}

func TestAggregate_DustFiltered(t *testing.T) {
	txs := []model.Transaction{
		tx("ETH", "", model.TypeBuy, 1, 2000, "2024-03-01"),
		tx("ETH", "", model.TypeSell, 1, 2500, "2024-03-02"),
		tx("SOL", "", model.TypeBuy, 5, 100, "2024-03-01"),
	}

	summaries := portfolio.Aggregate(txs, staticPrices(nil))

	if len(summaries) != 1 || summaries[0].Symbol != "SOL" {
		t.Fatalf("expected only SOL to survive the dust filter, got %+v", summaries)
	}
}

func TestAggregate_NegativeHoldingsPreserved(t *testing.T) {
	txs := []model.Transaction{
		tx("DOGE", "", model.TypeBuy, 100, 0.1, "2024-03-01"),
		tx("DOGE", "", model.TypeSell, 300, 0.2, "2024-03-02"),
	}

	summaries := portfolio.Aggregate(txs, staticPrices(nil))

	if len(summaries) != 1 {
		t.Fatalf("negative holdings must not be filtered, got %d summaries", len(summaries))
	}
	if !summaries[0].Holdings.Equal(d(-200)) {
		t.Errorf("holdings = %s, want -200", summaries[0].Holdings)
	}
}

func TestAggregate_ZeroCostGuardsPercent(t *testing.T) {
	txs := []model.Transaction{
		{
			ID:        "free-1",
			UserID:    "user1",
			Asset:     "AIR",
			Type:      model.TypeBuy,
			Amount:    d(100),
			Price:     nil, // airdrop, no price recorded
			Date:      "2024-03-01",
			CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	summaries := portfolio.Aggregate(txs, staticPrices(map[string]model.Quote{
		"AIR": {Price: d(1)},
	}))

	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	if !summaries[0].PnLPercent.IsZero() {
		t.Errorf("pnl_percent = %s, want 0 for zero cost basis", summaries[0].PnLPercent)
	}
	if !summaries[0].UnrealizedPnL.Equal(d(100)) {
		t.Errorf("unrealized_pnl = %s", summaries[0].UnrealizedPnL)
	}
}

func TestAggregate_SortedBySymbol(t *testing.T) {
	txs := []model.Transaction{
		tx("SOL", "", model.TypeBuy, 1, 100, "2024-03-01"),
		tx("BTC", "", model.TypeBuy, 1, 10000, "2024-03-01"),
		tx("ETH", "", model.TypeBuy, 1, 2000, "2024-03-01"),
	}

	summaries := portfolio.Aggregate(txs, staticPrices(nil))

	if len(summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(summaries))
	}
	for i, want := range []string{"BTC", "ETH", "SOL"} {
		if summaries[i].Symbol != want {
			t.Errorf("summaries[%d] = %s, want %s", i, summaries[i].Symbol, want)
		}
	}
}
