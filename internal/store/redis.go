package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cryptofolio/position-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for position documents. Ledger writes invalidate the cached
// position for the affected (user, asset) pair; reads check Redis first
// then fall back to the primary.
//
// The transaction ledger itself is never cached: recalculation must always
// replay the authoritative record.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Ledger writes (write to primary, invalidate position cache) ---

func (s *CachedStore) InsertTransaction(ctx context.Context, tx *model.Transaction) error {
	if err := s.primary.InsertTransaction(ctx, tx); err != nil {
		return err
	}
	s.rdb.Del(ctx, positionKey(tx.UserID, tx.Asset))
	return nil
}

func (s *CachedStore) UpdateTransaction(ctx context.Context, tx *model.Transaction) error {
	if err := s.primary.UpdateTransaction(ctx, tx); err != nil {
		return err
	}
	s.rdb.Del(ctx, positionKey(tx.UserID, tx.Asset))
	return nil
}

func (s *CachedStore) DeleteTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	tx, err := s.primary.DeleteTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	s.rdb.Del(ctx, positionKey(tx.UserID, tx.Asset))
	return tx, nil
}

// --- Position cache ---

func (s *CachedStore) GetPosition(ctx context.Context, userID, asset string) (*model.Position, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, positionKey(userID, asset)).Bytes()
	if err == nil {
		var pos model.Position
		if json.Unmarshal(data, &pos) == nil {
			return &pos, nil
		}
	}

	// Cache miss: read from primary.
	pos, err := s.primary.GetPosition(ctx, userID, asset)
	if err != nil {
		return nil, err
	}

	s.cachePosition(ctx, pos)
	return pos, nil
}

func (s *CachedStore) UpsertPosition(ctx context.Context, pos *model.Position) error {
	if err := s.primary.UpsertPosition(ctx, pos); err != nil {
		return err
	}
	s.cachePosition(ctx, pos)
	return nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	return s.primary.GetTransaction(ctx, id)
}

func (s *CachedStore) ListTransactionsByUserAsset(ctx context.Context, userID, asset string) ([]model.Transaction, error) {
	return s.primary.ListTransactionsByUserAsset(ctx, userID, asset)
}

func (s *CachedStore) ListTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	return s.primary.ListTransactionsByUser(ctx, userID)
}

// --- Cache helpers ---

func (s *CachedStore) cachePosition(ctx context.Context, pos *model.Position) {
	if data, err := json.Marshal(pos); err == nil {
		s.rdb.Set(ctx, positionKey(pos.UserID, pos.Asset), data, s.ttl)
	}
}

func positionKey(userID, asset string) string {
	return fmt.Sprintf("position:%s:%s", userID, asset)
}
