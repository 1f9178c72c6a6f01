package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shandysiswandi/gosettle/internal/pkg/pkgerror"
	"github.com/shandysiswandi/gosettle/internal/transaction/entity"
	"github.com/shandysiswandi/gosettle/internal/transaction/usecase"
)

// pq error code for unique_violation.
const uniqueViolation = "23505"

// Postgres persists transactions in the transactions table (see migrations).
// The UNIQUE constraint on transaction_id is the permanent safety net behind
// the idempotency gate.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const insertQuery = `
	INSERT INTO transactions (transaction_id, source_account, destination_account, amount, currency, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id`

const selectQuery = `
	SELECT id, transaction_id, source_account, destination_account, amount, currency, status, created_at, processed_at
	FROM transactions
	WHERE transaction_id = $1`

// CreateIfAbsent inserts the row, converting a unique_violation raised by a
// racing writer into the already-exists outcome with the winner's row.
func (s *Postgres) CreateIfAbsent(ctx context.Context, tx entity.Transaction) (entity.Transaction, bool, error) {
	err := s.db.QueryRowContext(ctx, insertQuery,
		tx.TransactionID,
		tx.SourceAccount,
		tx.DestinationAccount,
		tx.Amount,
		tx.Currency,
		tx.Status.String(),
		tx.CreatedAt,
	).Scan(&tx.ID)

	if err == nil {
		return tx, true, nil
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return entity.Transaction{}, false, fmt.Errorf("insert transaction: %w", err)
	}

	existing, err := s.Find(ctx, tx.TransactionID)
	if err != nil {
		return entity.Transaction{}, false, fmt.Errorf("fetch existing transaction: %w", err)
	}

	return existing, false, nil
}

// Find returns the current row, or pkgerror.ErrNotFound.
func (s *Postgres) Find(ctx context.Context, transactionID string) (entity.Transaction, error) {
	return scanTransaction(s.db.QueryRowContext(ctx, selectQuery, transactionID))
}

// MarkProcessed opens a short transaction, re-reads the row FOR UPDATE, and
// commits the terminal transition only if the row is still PROCESSING. The
// row lock is held across this re-check and update alone, never across the
// settlement wait.
func (s *Postgres) MarkProcessed(ctx context.Context, transactionID string, processedAt time.Time) (usecase.MarkResult, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return usecase.MarkNotFound, fmt.Errorf("begin commit tx: %w", err)
	}
	defer dbTx.Rollback() //nolint:errcheck // no-op after commit

	row := dbTx.QueryRowContext(ctx, selectQuery+" FOR UPDATE", transactionID)
	current, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pkgerror.ErrNotFound) {
			return usecase.MarkNotFound, nil
		}
		return usecase.MarkNotFound, err
	}

	if current.Processed() {
		return usecase.MarkAlreadyProcessed, nil
	}

	const update = `UPDATE transactions SET status = $1, processed_at = $2 WHERE transaction_id = $3`
	if _, err := dbTx.ExecContext(ctx, update, entity.StatusProcessed.String(), processedAt, transactionID); err != nil {
		return usecase.MarkNotFound, fmt.Errorf("update transaction: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return usecase.MarkNotFound, fmt.Errorf("commit transaction: %w", err)
	}

	return usecase.MarkUpdated, nil
}

func scanTransaction(row *sql.Row) (entity.Transaction, error) {
	var tx entity.Transaction
	var status string
	var processedAt sql.NullTime

	err := row.Scan(
		&tx.ID,
		&tx.TransactionID,
		&tx.SourceAccount,
		&tx.DestinationAccount,
		&tx.Amount,
		&tx.Currency,
		&status,
		&tx.CreatedAt,
		&processedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Transaction{}, pkgerror.ErrNotFound
	}
	if err != nil {
		return entity.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}

	tx.Status, err = entity.ParseStatus(status)
	if err != nil {
		return entity.Transaction{}, err
	}

	if processedAt.Valid {
		at := processedAt.Time
		tx.ProcessedAt = &at
	}

	return tx, nil
}

var _ usecase.Store = (*Postgres)(nil)
