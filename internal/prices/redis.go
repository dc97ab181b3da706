package prices

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/cryptofolio/position-engine/internal/model"
)

// RedisSource reads quotes written by the market data ingester as hashes:
//
//	HSET quote:BTC price 67000.5 change24h -1.2
//
// A missing or malformed hash yields ok=false; the roll-up then shows a
// zero price instead of failing.
type RedisSource struct {
	rdb *redis.Client
}

// NewRedisSource creates a quote source backed by a Redis client.
func NewRedisSource(rdb *redis.Client) *RedisSource {
	return &RedisSource{rdb: rdb}
}

func (s *RedisSource) Quote(ctx context.Context, symbol string) (model.Quote, bool) {
	fields, err := s.rdb.HGetAll(ctx, quoteKey(symbol)).Result()
	if err != nil || len(fields) == 0 {
		return model.Quote{}, false
	}

	price, err := decimal.NewFromString(fields["price"])
	if err != nil {
		return model.Quote{}, false
	}

	change := decimal.Zero
	if raw, ok := fields["change24h"]; ok {
		if parsed, err := decimal.NewFromString(raw); err == nil {
			change = parsed
		}
	}

	return model.Quote{Price: price, Change24h: change}, true
}

func quoteKey(symbol string) string {
	return fmt.Sprintf("quote:%s", symbol)
}
