package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"creativemind-api/internal/shared"

	"github.com/google/uuid"
)

// Transaction is one purchase record. It is created pending at checkout
// time and flips to paid exactly once when the gateway confirms payment.
type Transaction struct {
	ID        string
	UserID    uint64
	Plan      string
	Credits   int64
	Amount    int64
	Paid      bool
	CreatedAt time.Time
}

var ErrAlreadyProcessed = &shared.RequestError{
	Kind:       shared.KindInvalidInput,
	StatusCode: 400,
	Err:        errors.New("payment already processed"),
}

// CreateTransaction inserts a pending purchase and returns it. The id doubles
// as the gateway order receipt.
func (s *Store) CreateTransaction(ctx context.Context, userID uint64, plan shared.Plan) (*Transaction, error) {
	t := &Transaction{
		ID:      uuid.NewString(),
		UserID:  userID,
		Plan:    plan.Name,
		Credits: plan.Credits,
		Amount:  plan.Amount,
	}
	_, err := s.WDB.ExecContext(ctx, `
		INSERT INTO transaction (id, user_id, plan, credits, amount, paid)
		VALUES (?, ?, ?, ?, ?, 0)
	`, t.ID, t.UserID, t.Plan, t.Credits, t.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return t, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	var t Transaction
	err := s.RDB.QueryRowContext(ctx, `
		SELECT id, user_id, plan, credits, amount, paid, created_at
		FROM transaction
		WHERE id = ?
	`, id).Scan(&t.ID, &t.UserID, &t.Plan, &t.Credits, &t.Amount, &t.Paid, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &t, nil
}

// MarkPaidTx flips paid false->true in one conditional update. A second
// attempt finds zero matching rows and fails, so a transaction's credits can
// never be applied twice.
func (s *Store) MarkPaidTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, "UPDATE transaction SET paid = 1 WHERE id = ? AND paid = 0", id)
	if err != nil {
		return fmt.Errorf("failed to mark transaction paid: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAlreadyProcessed
	}
	return nil
}
