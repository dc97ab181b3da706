package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/cryptofolio/position-engine/internal/model"
	"github.com/cryptofolio/position-engine/internal/wac"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	txs       map[string]*model.Transaction
	order     []string // insertion order of transaction ids
	positions map[string]*model.Position // keyed by userID|asset
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		txs:       make(map[string]*model.Transaction),
		positions: make(map[string]*model.Position),
	}
}

func posKey(userID, asset string) string {
	return userID + "|" + asset
}

func (s *MemoryStore) InsertTransaction(_ context.Context, tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.txs[tx.ID]; exists {
		return fmt.Errorf("transaction %s already exists", tx.ID)
	}

	// Store a copy to avoid external mutation.
	copy := *tx
	s.txs[tx.ID] = &copy
	s.order = append(s.order, tx.ID)
	return nil
}

func (s *MemoryStore) GetTransaction(_ context.Context, id string) (*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.txs[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	copy := *tx
	return &copy, nil
}

func (s *MemoryStore) UpdateTransaction(_ context.Context, tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.txs[tx.ID]; !ok {
		return fmt.Errorf("transaction %s: %w", tx.ID, ErrNotFound)
	}
	copy := *tx
	s.txs[tx.ID] = &copy
	return nil
}

func (s *MemoryStore) DeleteTransaction(_ context.Context, id string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	delete(s.txs, id)
	for i, txID := range s.order {
		if txID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	copy := *tx
	return &copy, nil
}

func (s *MemoryStore) ListTransactionsByUserAsset(_ context.Context, userID, asset string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Transaction
	for _, id := range s.order {
		tx := s.txs[id]
		if tx.UserID == userID && tx.Asset == asset {
			result = append(result, *tx)
		}
	}
	wac.SortChronological(result)
	return result, nil
}

func (s *MemoryStore) ListTransactionsByUser(_ context.Context, userID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Transaction
	for _, id := range s.order {
		tx := s.txs[id]
		if tx.UserID == userID {
			result = append(result, *tx)
		}
	}
	wac.SortChronological(result)
	return result, nil
}

func (s *MemoryStore) GetPosition(_ context.Context, userID, asset string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.positions[posKey(userID, asset)]
	if !ok {
		return nil, fmt.Errorf("position %s/%s: %w", userID, asset, ErrNotFound)
	}
	copy := *pos
	copy.TransactionIDs = append([]string(nil), pos.TransactionIDs...)
	return &copy, nil
}

func (s *MemoryStore) UpsertPosition(_ context.Context, pos *model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *pos
	copy.TransactionIDs = append([]string(nil), pos.TransactionIDs...)
	s.positions[posKey(pos.UserID, pos.Asset)] = &copy
	return nil
}
