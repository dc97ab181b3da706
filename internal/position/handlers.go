package position

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cryptofolio/position-engine/internal/asset"
	"github.com/cryptofolio/position-engine/internal/metrics"
	"github.com/cryptofolio/position-engine/internal/model"
	"github.com/cryptofolio/position-engine/internal/store"
	"github.com/cryptofolio/position-engine/internal/wac"
)

// --- HTTP Handlers ---

// HandleCreateTransaction handles POST /api/v1/transactions.
// Appends to the ledger and returns the stored transaction with the
// updated position.
func (s *Service) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.UserID == "" {
		writeError(w, "userId is required", http.StatusBadRequest)
		return
	}
	if req.Type != model.TypeBuy && req.Type != model.TypeSell {
		metrics.ValidationRejections.Inc()
		writeError(w, "type must be buy or sell", http.StatusBadRequest)
		return
	}

	tx := &model.Transaction{
		UserID:   req.UserID,
		Asset:    req.Asset,
		Group:    req.Group,
		Chain:    req.Chain,
		Type:     req.Type,
		Amount:   req.Amount,
		Price:    req.Price,
		Date:     req.Date,
		Memo:     req.Memo,
		ExitMemo: req.ExitMemo,
		Tags:     req.Tags,
		ExitTags: req.ExitTags,
	}

	start := time.Now()
	pos, err := s.AppendTransaction(r.Context(), tx)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	metrics.ApplyLatency.WithLabelValues(tx.Type).Observe(time.Since(start).Seconds())

	slog.Info("transaction appended",
		"tx_id", tx.ID,
		"user", tx.UserID,
		"asset", tx.Asset,
		"type", tx.Type,
		"amount", tx.Amount.String(),
		"current_size", pos.CurrentSize.String(),
		"status", pos.Status,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(TransactionResponse{Transaction: tx, Position: pos})
}

// HandleGetTransaction handles GET /api/v1/transactions/{txID}.
func (s *Service) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txID")

	tx, err := s.store.GetTransaction(r.Context(), txID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tx)
}

// HandleEditTransaction handles PUT /api/v1/transactions/{txID}.
// The edit is a new write; the affected positions are rebuilt from the
// full ledger before the response is returned.
func (s *Service) HandleEditTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txID")

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	pos, err := s.EditTransaction(r.Context(), txID, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	slog.Info("transaction edited", "tx_id", txID, "asset", pos.Asset)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pos)
}

// HandleDeleteTransaction handles DELETE /api/v1/transactions/{txID}.
func (s *Service) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txID")

	pos, err := s.RemoveTransaction(r.Context(), txID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	slog.Info("transaction deleted", "tx_id", txID, "asset", pos.Asset)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pos)
}

// HandleListTransactions handles GET /api/v1/users/{userID}/transactions.
func (s *Service) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	txs, err := s.store.ListTransactionsByUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txs)
}

// HandleGetPosition handles GET /api/v1/positions/{userID}/{asset}.
// Returns 404 when no open position exists for the pair.
func (s *Service) HandleGetPosition(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	symbol, err := asset.Normalize(chi.URLParam(r, "asset"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	pos, err := s.OpenPosition(r.Context(), userID, symbol)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if pos == nil {
		writeError(w, "no open position", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pos)
}

// HandleRecalculate handles POST /api/v1/positions/{userID}/{asset}/recalculate.
// The manual repair path: always safe, always idempotent.
func (s *Service) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	symbol, err := asset.Normalize(chi.URLParam(r, "asset"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	pos, err := s.Recalculate(r.Context(), userID, symbol)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pos)
}

// HandlePortfolio handles GET /api/v1/portfolio/{userID}.
func (s *Service) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	summaries, err := s.Portfolio(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if summaries == nil {
		summaries = []model.AssetSummary{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaries)
}

// --- Error mapping ---

// writeServiceError maps engine errors onto HTTP statuses: validation →
// 400, consistency/reopen conflicts → 409, missing documents → 404,
// anything else (storage failures included) → 500 unmodified.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *wac.ValidationError
	var cerr *wac.ConsistencyError

	switch {
	case errors.As(err, &verr), errors.Is(err, asset.ErrInvalidSymbol):
		metrics.ValidationRejections.Inc()
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &cerr):
		metrics.ConsistencyErrors.Inc()
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrReopenDisabled):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	default:
		writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
