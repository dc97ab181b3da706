// Package position provides the HTTP handlers and orchestration for
// appending ledger transactions, maintaining derived positions, and
// serving portfolio summaries.
//
// All monetary values use shopspring/decimal — never float64 for money.
package position

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cryptofolio/position-engine/internal/asset"
	"github.com/cryptofolio/position-engine/internal/keylock"
	"github.com/cryptofolio/position-engine/internal/metrics"
	"github.com/cryptofolio/position-engine/internal/model"
	"github.com/cryptofolio/position-engine/internal/portfolio"
	"github.com/cryptofolio/position-engine/internal/prices"
	"github.com/cryptofolio/position-engine/internal/store"
	"github.com/cryptofolio/position-engine/internal/wac"
)

// ErrReopenDisabled is returned when a buy targets a closed position and
// the deployment is configured to keep closed cycles sealed.
var ErrReopenDisabled = errors.New("position: closed position cannot be reopened")

// Config carries the accounting policy decisions for a deployment.
type Config struct {
	// Policy controls the negative-holdings behavior of the fold.
	Policy wac.Policy

	// ReopenClosedPositions keeps the historical behavior where a buy
	// after a full exit reopens the same position document. When false,
	// such a buy is rejected so each open/close cycle stays sealed.
	ReopenClosedPositions bool
}

// DefaultConfig matches the historical behavior.
var DefaultConfig = Config{
	Policy:                wac.DefaultPolicy,
	ReopenClosedPositions: true,
}

// Service owns the write path for position documents. Appends and
// recalculations for the same (user, asset) pair are serialized through a
// per-key lock: the fold is order-dependent, so they must never interleave.
type Service struct {
	store  store.Store
	quotes prices.Source
	locks  *keylock.KeyLock
	cfg    Config
	wsHub  *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new position service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, quotes prices.Source, cfg Config, hub *WSHub) *Service {
	return &Service{
		store:  st,
		quotes: quotes,
		locks:  keylock.New(),
		cfg:    cfg,
		wsHub:  hub,
	}
}

// --- Request/Response types ---

// TransactionRequest is the JSON body for POST /transactions and
// PUT /transactions/{txID}.
type TransactionRequest struct {
	UserID   string           `json:"userId"`
	Asset    string           `json:"asset"`
	Group    string           `json:"group,omitempty"`
	Chain    string           `json:"chain,omitempty"`
	Type     string           `json:"type"`
	Amount   decimal.Decimal  `json:"amount"`
	Price    *decimal.Decimal `json:"price"`
	Date     string           `json:"date,omitempty"` // YYYY-MM-DD; defaults to today
	Memo     string           `json:"memo,omitempty"`
	ExitMemo string           `json:"exitMemo,omitempty"`
	Tags     []string         `json:"tags,omitempty"`
	ExitTags []string         `json:"exitTags,omitempty"`
}

// TransactionResponse pairs the stored transaction with the position it
// produced.
type TransactionResponse struct {
	Transaction *model.Transaction `json:"transaction"`
	Position    *model.Position    `json:"position"`
}

// --- Core operations ---

// AppendTransaction validates and appends one transaction to the ledger
// and folds it into the (user, asset) position. The updated position is
// persisted as a single write before the method returns.
func (s *Service) AppendTransaction(ctx context.Context, tx *model.Transaction) (*model.Position, error) {
	symbol, err := asset.Normalize(tx.Asset)
	if err != nil {
		return nil, err
	}
	tx.Asset = symbol
	if tx.Group == "" {
		if group := asset.GroupFor(symbol); group != symbol {
			tx.Group = group
		}
	}

	now := time.Now().UTC()
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	tx.SchemaVersion = model.SchemaVersion
	if tx.Timestamp.IsZero() {
		tx.Timestamp = now
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	if tx.Date == "" {
		tx.Date = tx.Timestamp.Format("2006-01-02")
	}
	if tx.Status == "" {
		tx.Status = model.StatusOpen
	}

	key := lockKey(tx.UserID, tx.Asset)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	existing, err := s.loadPosition(ctx, tx.UserID, tx.Asset)
	if err != nil {
		return nil, err
	}

	if existing != nil && existing.Status == model.StatusClosed &&
		tx.Type == model.TypeBuy && !s.cfg.ReopenClosedPositions {
		return nil, ErrReopenDisabled
	}

	updated, err := wac.Apply(existing, tx, s.cfg.Policy)
	if err != nil {
		return nil, err
	}

	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		return nil, err
	}
	if err := s.store.UpsertPosition(ctx, updated); err != nil {
		return nil, err
	}

	metrics.TransactionsTotal.WithLabelValues(tx.Type).Inc()
	s.broadcastPosition("position_updated", updated)
	return updated, nil
}

// Recalculate rebuilds the (user, asset) position by replaying its full
// transaction history. This is the repair path after edits, deletes, or
// detected drift; it supersedes whatever the incremental fold produced.
func (s *Service) Recalculate(ctx context.Context, userID, symbol string) (*model.Position, error) {
	key := lockKey(userID, symbol)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	return s.recalculateLocked(ctx, userID, symbol)
}

// recalculateLocked assumes the (user, asset) lock is held.
func (s *Service) recalculateLocked(ctx context.Context, userID, symbol string) (*model.Position, error) {
	prior, err := s.loadPosition(ctx, userID, symbol)
	if err != nil {
		return nil, err
	}

	txs, err := s.store.ListTransactionsByUserAsset(ctx, userID, symbol)
	if err != nil {
		return nil, err
	}

	rebuilt, err := wac.Recalculate(prior, userID, symbol, txs, s.cfg.Policy)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpsertPosition(ctx, rebuilt); err != nil {
		return nil, err
	}

	metrics.RecalculationsTotal.Inc()
	slog.Info("position recalculated",
		"user", userID,
		"asset", symbol,
		"transactions", len(rebuilt.TransactionIDs),
		"current_size", rebuilt.CurrentSize.String(),
		"status", rebuilt.Status,
	)
	s.broadcastPosition("position_recalculated", rebuilt)
	return rebuilt, nil
}

// EditTransaction replaces a stored transaction and repairs every position
// it touched. If the edit moved the transaction to a different asset, both
// the old and new (user, asset) pairs are recalculated.
func (s *Service) EditTransaction(ctx context.Context, id string, req *TransactionRequest) (*model.Position, error) {
	orig, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	symbol, err := asset.Normalize(req.Asset)
	if err != nil {
		return nil, err
	}

	updated := *orig
	updated.Asset = symbol
	updated.Group = req.Group
	updated.Chain = req.Chain
	updated.Type = req.Type
	updated.Amount = req.Amount
	updated.Price = req.Price
	updated.Memo = req.Memo
	updated.ExitMemo = req.ExitMemo
	updated.Tags = req.Tags
	updated.ExitTags = req.ExitTags
	if req.Date != "" {
		updated.Date = req.Date
	}
	// Stale sell stamps are rewritten by the replay below.
	updated.CloseDate = ""
	updated.ClosePrice = nil
	updated.PnL = nil
	updated.PnLAbs = nil
	updated.PnLPct = nil

	if !updated.Amount.IsPositive() {
		return nil, &wac.ValidationError{Field: "amount", Reason: "must be strictly positive"}
	}
	if updated.Type != model.TypeBuy && updated.Type != model.TypeSell {
		return nil, &wac.ValidationError{Field: "type", Reason: "must be buy or sell"}
	}

	if err := s.store.UpdateTransaction(ctx, &updated); err != nil {
		return nil, err
	}

	if orig.Asset != updated.Asset {
		if _, err := s.Recalculate(ctx, orig.UserID, orig.Asset); err != nil {
			return nil, err
		}
	}
	return s.Recalculate(ctx, updated.UserID, updated.Asset)
}

// RemoveTransaction deletes a ledger record and recalculates the position
// it contributed to.
func (s *Service) RemoveTransaction(ctx context.Context, id string) (*model.Position, error) {
	deleted, err := s.store.DeleteTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Recalculate(ctx, deleted.UserID, deleted.Asset)
}

// OpenPosition returns the position for a (user, asset) pair if it exists
// and is currently open, or nil.
func (s *Service) OpenPosition(ctx context.Context, userID, symbol string) (*model.Position, error) {
	pos, err := s.loadPosition(ctx, userID, symbol)
	if err != nil {
		return nil, err
	}
	if pos == nil || pos.Status != model.StatusOpen {
		return nil, nil
	}
	return pos, nil
}

// Portfolio rolls up a user's full ledger into display-ready summaries
// priced off the live quote source. Pure read: nothing is persisted.
func (s *Service) Portfolio(ctx context.Context, userID string) ([]model.AssetSummary, error) {
	txs, err := s.store.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	lookup := func(symbol string) (model.Quote, bool) {
		if s.quotes == nil {
			return model.Quote{}, false
		}
		return s.quotes.Quote(ctx, symbol)
	}
	return portfolio.Aggregate(txs, lookup), nil
}

// loadPosition translates the store's not-found into a nil position.
func (s *Service) loadPosition(ctx context.Context, userID, symbol string) (*model.Position, error) {
	pos, err := s.store.GetPosition(ctx, userID, symbol)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return pos, nil
}

func (s *Service) broadcastPosition(event string, pos *model.Position) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.Broadcast(WSMessage{
		Type:           event,
		UserID:         pos.UserID,
		Asset:          pos.Asset,
		Status:         pos.Status,
		CurrentSize:    pos.CurrentSize.String(),
		AvgEntryPrice:  pos.AvgEntryPrice.String(),
		RealizedPnLAbs: pos.RealizedPnLAbs.String(),
	})
}

func lockKey(userID, symbol string) string {
	return userID + ":" + symbol
}
