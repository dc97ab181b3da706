// Package prices supplies live market quotes to the portfolio roll-up.
// The engine only consumes quotes; producing them (exchange polling,
// websocket feeds) belongs to a separate ingestion process.
package prices

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/cryptofolio/position-engine/internal/model"
)

// Source resolves a live quote for an asset symbol. ok=false means no
// quote is available; consumers degrade to a zero price.
type Source interface {
	Quote(ctx context.Context, symbol string) (model.Quote, bool)
}

// StaticSource serves quotes from a fixed map. Used for testing and for
// running without a market data feed.
type StaticSource map[string]model.Quote

func (s StaticSource) Quote(_ context.Context, symbol string) (model.Quote, bool) {
	q, ok := s[symbol]
	return q, ok
}

// ZeroSource never has a quote; every summary prices at zero.
type ZeroSource struct{}

func (ZeroSource) Quote(context.Context, string) (model.Quote, bool) {
	return model.Quote{Price: decimal.Zero, Change24h: decimal.Zero}, false
}
