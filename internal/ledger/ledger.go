// Package ledger owns the per-account credit balance and the durable
// records that hang off it: usage history and purchase transactions.
// The balance is mutated only through the conditional operations here,
// never through a separate read-then-write.
package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"creativemind-api/internal/shared"

	"go.uber.org/zap"
)

type Store struct {
	WDB *sql.DB
	RDB *sql.DB
	Log *zap.SugaredLogger
}

func NewStore(wdb, rdb *sql.DB, log *zap.SugaredLogger) *Store {
	return &Store{WDB: wdb, RDB: rdb, Log: log}
}

// GetBalance reads the current balance off the read replica.
func (s *Store) GetBalance(ctx context.Context, userID uint64) (int64, error) {
	var balance int64
	err := s.RDB.QueryRowContext(ctx, "SELECT credit_balance FROM user WHERE id = ?", userID).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, shared.ErrNotFound
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// AtomicDecrementTx spends amount credits in a single conditional update.
// The balance check and the write are one statement, so concurrent callers
// can never drive the balance negative. Returns the new balance.
func (s *Store) AtomicDecrementTx(ctx context.Context, tx *sql.Tx, userID uint64, amount int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE user
		SET credit_balance = credit_balance - ?, api_calls = api_calls + 1
		WHERE id = ? AND credit_balance >= ?
	`, amount, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to decrement balance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		// Condition not met: either the account is unknown or the balance
		// is short. Distinguish so the caller gets the right kind.
		var balance int64
		err := tx.QueryRowContext(ctx, "SELECT credit_balance FROM user WHERE id = ?", userID).Scan(&balance)
		if err == sql.ErrNoRows {
			return 0, shared.ErrNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("failed to check balance: %w", err)
		}
		return balance, shared.ErrInsufficientCredits
	}

	var newBalance int64
	if err := tx.QueryRowContext(ctx, "SELECT credit_balance FROM user WHERE id = ?", userID).Scan(&newBalance); err != nil {
		return 0, fmt.Errorf("failed to read new balance: %w", err)
	}
	return newBalance, nil
}

// CreditAccountTx unconditionally adds credits. Used only by the
// payment-verification flow.
func (s *Store) CreditAccountTx(ctx context.Context, tx *sql.Tx, userID uint64, amount int64) error {
	res, err := tx.ExecContext(ctx, "UPDATE user SET credit_balance = credit_balance + ? WHERE id = ?", amount, userID)
	if err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ExecuteTransaction executes one transaction with one or multiple database executions.
func ExecuteTransaction(ctx context.Context, writeDB *sql.DB, fns []func(*sql.Tx) error) error {
	tx, err := writeDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, fn := range fns {
		if err := fn(tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
