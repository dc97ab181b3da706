// Package store defines the persistence interface for the position engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache for position documents), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/cryptofolio/position-engine/internal/model"
)

// ErrNotFound is returned when a requested document does not exist.
// Storage failures are returned as-is; callers distinguish the two with
// errors.Is.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. The transaction ledger is
// append-only apart from explicit edits and deletes, both of which oblige
// the caller to recalculate the affected position.
type Store interface {
	// --- Transaction ledger ---

	// InsertTransaction appends a ledger record.
	InsertTransaction(ctx context.Context, tx *model.Transaction) error

	// GetTransaction retrieves one transaction by id.
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)

	// UpdateTransaction replaces a stored transaction wholesale.
	UpdateTransaction(ctx context.Context, tx *model.Transaction) error

	// DeleteTransaction removes a transaction and returns the deleted
	// record so the caller knows which (user, asset) pair to repair.
	DeleteTransaction(ctx context.Context, id string) (*model.Transaction, error)

	// ListTransactionsByUserAsset returns the full ledger for one
	// (user, asset) pair, in chronological order.
	ListTransactionsByUserAsset(ctx context.Context, userID, asset string) ([]model.Transaction, error)

	// ListTransactionsByUser returns a user's full ledger across assets.
	ListTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error)

	// --- Derived positions ---

	// GetPosition retrieves the position document for a (user, asset) pair.
	GetPosition(ctx context.Context, userID, asset string) (*model.Position, error)

	// UpsertPosition writes a position document as a single atomic write
	// keyed by (user, asset).
	UpsertPosition(ctx context.Context, pos *model.Position) error
}
