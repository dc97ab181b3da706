package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cryptofolio/position-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const txColumns = `id, schema_version, user_id, asset, asset_group, chain, type,
	amount::TEXT, price::TEXT, status, date, timestamp, created_at,
	position_id, entry_index, memo, exit_memo, tags, exit_tags,
	close_date, close_price::TEXT, pnl::TEXT, pnl_abs::TEXT, pnl_pct::TEXT`

func (s *PostgresStore) InsertTransaction(ctx context.Context, tx *model.Transaction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transactions
		 (id, schema_version, user_id, asset, asset_group, chain, type,
		  amount, price, status, date, timestamp, created_at,
		  position_id, entry_index, memo, exit_memo, tags, exit_tags,
		  close_date, close_price, pnl, pnl_abs, pnl_pct)
		 VALUES ($1, $2, $3, $4, $5, $6, $7,
		         $8::NUMERIC, $9::NUMERIC, $10, $11, $12, $13,
		         $14, $15, $16, $17, $18, $19,
		         $20, $21::NUMERIC, $22::NUMERIC, $23::NUMERIC, $24::NUMERIC)`,
		tx.ID, tx.SchemaVersion, tx.UserID, tx.Asset, tx.Group, tx.Chain, tx.Type,
		tx.Amount.String(), decimalPtrString(tx.Price), tx.Status, tx.Date, tx.Timestamp, tx.CreatedAt,
		tx.PositionID, tx.EntryIndex, tx.Memo, tx.ExitMemo, tx.Tags, tx.ExitTags,
		tx.CloseDate, decimalPtrString(tx.ClosePrice), decimalPtrString(tx.PnL),
		decimalPtrString(tx.PnLAbs), decimalPtrString(tx.PnLPct),
	)
	return err
}

func (s *PostgresStore) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = $1`, id)

	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

func (s *PostgresStore) UpdateTransaction(ctx context.Context, tx *model.Transaction) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE transactions SET
		   asset = $2, asset_group = $3, chain = $4, type = $5,
		   amount = $6::NUMERIC, price = $7::NUMERIC, status = $8,
		   date = $9, timestamp = $10,
		   position_id = $11, entry_index = $12, memo = $13, exit_memo = $14,
		   tags = $15, exit_tags = $16,
		   close_date = $17, close_price = $18::NUMERIC,
		   pnl = $19::NUMERIC, pnl_abs = $20::NUMERIC, pnl_pct = $21::NUMERIC
		 WHERE id = $1`,
		tx.ID, tx.Asset, tx.Group, tx.Chain, tx.Type,
		tx.Amount.String(), decimalPtrString(tx.Price), tx.Status,
		tx.Date, tx.Timestamp,
		tx.PositionID, tx.EntryIndex, tx.Memo, tx.ExitMemo,
		tx.Tags, tx.ExitTags,
		tx.CloseDate, decimalPtrString(tx.ClosePrice),
		decimalPtrString(tx.PnL), decimalPtrString(tx.PnLAbs), decimalPtrString(tx.PnLPct),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", tx.ID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	row := s.pool.QueryRow(ctx,
		`DELETE FROM transactions WHERE id = $1 RETURNING `+txColumns, id)

	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return tx, nil
}

func (s *PostgresStore) ListTransactionsByUserAsset(ctx context.Context, userID, asset string) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+txColumns+`
		 FROM transactions
		 WHERE user_id = $1 AND asset = $2
		 ORDER BY date, created_at, id`, userID, asset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (s *PostgresStore) ListTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+txColumns+`
		 FROM transactions
		 WHERE user_id = $1
		 ORDER BY date, created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (s *PostgresStore) GetPosition(ctx context.Context, userID, asset string) (*model.Position, error) {
	var p model.Position
	var size, buyAmt, cost, avg, pnlAbs, pnlPct string

	err := s.pool.QueryRow(ctx,
		`SELECT id, schema_version, user_id, asset, chain, status,
		        created_at, updated_at, closed_at,
		        current_size::TEXT, total_buy_amount::TEXT, total_cost::TEXT,
		        avg_entry_price::TEXT, realized_pnl_abs::TEXT, realized_pnl_pct::TEXT,
		        transaction_ids, main_thesis, main_exit_reason
		 FROM positions WHERE user_id = $1 AND asset = $2`, userID, asset).
		Scan(&p.ID, &p.SchemaVersion, &p.UserID, &p.Asset, &p.Chain, &p.Status,
			&p.CreatedAt, &p.UpdatedAt, &p.ClosedAt,
			&size, &buyAmt, &cost, &avg, &pnlAbs, &pnlPct,
			&p.TransactionIDs, &p.MainThesis, &p.MainExitReason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("position %s/%s: %w", userID, asset, ErrNotFound)
		}
		return nil, fmt.Errorf("get position %s/%s: %w", userID, asset, err)
	}

	p.CurrentSize, _ = decimal.NewFromString(size)
	p.TotalBuyAmount, _ = decimal.NewFromString(buyAmt)
	p.TotalCost, _ = decimal.NewFromString(cost)
	p.AvgEntryPrice, _ = decimal.NewFromString(avg)
	p.RealizedPnLAbs, _ = decimal.NewFromString(pnlAbs)
	p.RealizedPnLPct, _ = decimal.NewFromString(pnlPct)

	return &p, nil
}

func (s *PostgresStore) UpsertPosition(ctx context.Context, pos *model.Position) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO positions
		 (id, schema_version, user_id, asset, chain, status,
		  created_at, updated_at, closed_at,
		  current_size, total_buy_amount, total_cost,
		  avg_entry_price, realized_pnl_abs, realized_pnl_pct,
		  transaction_ids, main_thesis, main_exit_reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9,
		         $10::NUMERIC, $11::NUMERIC, $12::NUMERIC,
		         $13::NUMERIC, $14::NUMERIC, $15::NUMERIC,
		         $16, $17, $18)
		 ON CONFLICT (user_id, asset) DO UPDATE SET
		   schema_version = EXCLUDED.schema_version,
		   chain = EXCLUDED.chain,
		   status = EXCLUDED.status,
		   updated_at = EXCLUDED.updated_at,
		   closed_at = EXCLUDED.closed_at,
		   current_size = EXCLUDED.current_size,
		   total_buy_amount = EXCLUDED.total_buy_amount,
		   total_cost = EXCLUDED.total_cost,
		   avg_entry_price = EXCLUDED.avg_entry_price,
		   realized_pnl_abs = EXCLUDED.realized_pnl_abs,
		   realized_pnl_pct = EXCLUDED.realized_pnl_pct,
		   transaction_ids = EXCLUDED.transaction_ids,
		   main_thesis = EXCLUDED.main_thesis,
		   main_exit_reason = EXCLUDED.main_exit_reason`,
		pos.ID, pos.SchemaVersion, pos.UserID, pos.Asset, pos.Chain, pos.Status,
		pos.CreatedAt, pos.UpdatedAt, pos.ClosedAt,
		pos.CurrentSize.String(), pos.TotalBuyAmount.String(), pos.TotalCost.String(),
		pos.AvgEntryPrice.String(), pos.RealizedPnLAbs.String(), pos.RealizedPnLPct.String(),
		pos.TransactionIDs, pos.MainThesis, pos.MainExitReason,
	)
	return err
}

// --- Scan helpers ---

type pgxRow interface {
	Scan(dest ...interface{}) error
}

type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanTransaction(row pgxRow) (*model.Transaction, error) {
	var tx model.Transaction
	var amount string
	var price, closePrice, pnl, pnlAbs, pnlPct *string

	if err := row.Scan(&tx.ID, &tx.SchemaVersion, &tx.UserID, &tx.Asset, &tx.Group, &tx.Chain, &tx.Type,
		&amount, &price, &tx.Status, &tx.Date, &tx.Timestamp, &tx.CreatedAt,
		&tx.PositionID, &tx.EntryIndex, &tx.Memo, &tx.ExitMemo, &tx.Tags, &tx.ExitTags,
		&tx.CloseDate, &closePrice, &pnl, &pnlAbs, &pnlPct); err != nil {
		return nil, err
	}

	tx.Amount, _ = decimal.NewFromString(amount)
	tx.Price = parseDecimalPtr(price)
	tx.ClosePrice = parseDecimalPtr(closePrice)
	tx.PnL = parseDecimalPtr(pnl)
	tx.PnLAbs = parseDecimalPtr(pnlAbs)
	tx.PnLPct = parseDecimalPtr(pnlPct)

	return &tx, nil
}

func scanTransactions(rows pgxRows) ([]model.Transaction, error) {
	var txs []model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

func decimalPtrString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parseDecimalPtr(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil
	}
	return &d
}
