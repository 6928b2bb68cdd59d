package ledger

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"creativemind-api/internal/shared"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, db, zap.NewNop().Sugar()), mock, db
}

func TestGetBalance(t *testing.T) {
	s, mock, _ := newTestStore(t)

	t.Run("existing user", func(t *testing.T) {
		mock.ExpectQuery("SELECT credit_balance FROM user WHERE id =").
			WithArgs(uint64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"credit_balance"}).AddRow(12))

		balance, err := s.GetBalance(context.Background(), 7)
		assert.NoError(t, err)
		assert.Equal(t, int64(12), balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user", func(t *testing.T) {
		mock.ExpectQuery("SELECT credit_balance FROM user WHERE id =").
			WithArgs(uint64(404)).
			WillReturnError(sql.ErrNoRows)

		_, err := s.GetBalance(context.Background(), 404)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAtomicDecrementTx(t *testing.T) {
	t.Run("spend succeeds and returns new balance", func(t *testing.T) {
		s, mock, db := newTestStore(t)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE user SET credit_balance = credit_balance - ").
			WithArgs(int64(1), uint64(7), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT credit_balance FROM user WHERE id =").
			WithArgs(uint64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"credit_balance"}).AddRow(4))
		mock.ExpectCommit()

		tx, err := db.Begin()
		require.NoError(t, err)
		newBalance, err := s.AtomicDecrementTx(context.Background(), tx, 7, 1)
		assert.NoError(t, err)
		assert.Equal(t, int64(4), newBalance)
		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance leaves row untouched", func(t *testing.T) {
		s, mock, db := newTestStore(t)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE user SET credit_balance = credit_balance - ").
			WithArgs(int64(1), uint64(7), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT credit_balance FROM user WHERE id =").
			WithArgs(uint64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"credit_balance"}).AddRow(0))
		mock.ExpectRollback()

		tx, err := db.Begin()
		require.NoError(t, err)
		_, err = s.AtomicDecrementTx(context.Background(), tx, 7, 1)
		assert.Equal(t, shared.ErrInsufficientCredits, err)
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown account", func(t *testing.T) {
		s, mock, db := newTestStore(t)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE user SET credit_balance = credit_balance - ").
			WithArgs(int64(1), uint64(404), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT credit_balance FROM user WHERE id =").
			WithArgs(uint64(404)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		tx, err := db.Begin()
		require.NoError(t, err)
		_, err = s.AtomicDecrementTx(context.Background(), tx, 404, 1)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCreditAccountTx(t *testing.T) {
	s, mock, db := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE user SET credit_balance = credit_balance \\+ ").
		WithArgs(int64(25), uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	assert.NoError(t, s.CreditAccountTx(context.Background(), tx, 7, 25))
	assert.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPaidTx(t *testing.T) {
	t.Run("first confirmation flips the flag", func(t *testing.T) {
		s, mock, db := newTestStore(t)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE transaction SET paid = 1 WHERE id = ").
			WithArgs("txn-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := db.Begin()
		require.NoError(t, err)
		assert.NoError(t, s.MarkPaidTx(context.Background(), tx, "txn-1"))
		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second confirmation is rejected", func(t *testing.T) {
		s, mock, db := newTestStore(t)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE transaction SET paid = 1 WHERE id = ").
			WithArgs("txn-1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		tx, err := db.Begin()
		require.NoError(t, err)
		assert.Equal(t, ErrAlreadyProcessed, s.MarkPaidTx(context.Background(), tx, "txn-1"))
		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestExecuteTransaction(t *testing.T) {
	t.Run("failing step rolls everything back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		boom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE user").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		err = ExecuteTransaction(context.Background(), db, []func(*sql.Tx) error{
			func(tx *sql.Tx) error {
				_, err := tx.Exec("UPDATE user SET api_calls = api_calls")
				return err
			},
			func(tx *sql.Tx) error {
				return boom
			},
		})
		assert.Equal(t, boom, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAppendUsageTx(t *testing.T) {
	t.Run("image usage bumps the image counter", func(t *testing.T) {
		s, mock, db := newTestStore(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO usage_history").
			WithArgs(uint64(7), "image", "a red fox", shared.TaskCost).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE user SET images_generated").
			WithArgs(uint64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := db.Begin()
		require.NoError(t, err)
		assert.NoError(t, s.AppendUsageTx(context.Background(), tx, 7, UsageImage, "a red fox"))
		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("voice usage does not touch the counter", func(t *testing.T) {
		s, mock, db := newTestStore(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO usage_history").
			WithArgs(uint64(7), "voice", "hello", shared.TaskCost).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		tx, err := db.Begin()
		require.NoError(t, err)
		assert.NoError(t, s.AppendUsageTx(context.Background(), tx, 7, UsageVoice, "hello"))
		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCreditHistory(t *testing.T) {
	s, mock, _ := newTestStore(t)

	earlier := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT plan, credits, paid, created_at FROM transaction").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"plan", "credits", "paid", "created_at"}).
			AddRow("Basic", 25, true, earlier))
	mock.ExpectQuery("SELECT kind, description, credits, created_at FROM usage_history").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"kind", "description", "credits", "created_at"}).
			AddRow("image", "a red fox", 1, later).
			AddRow("bg_removal", "", 1, earlier.Add(time.Hour)))

	entries, err := s.CreditHistory(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "Image Generation", entries[0].Type)
	assert.Equal(t, int64(-1), entries[0].Amount)
	assert.Equal(t, "Background Removal", entries[1].Type)
	assert.Equal(t, "Background Removal", entries[1].Description)
	assert.Equal(t, "Credit Purchase", entries[2].Type)
	assert.Equal(t, "Basic Plan Purchase", entries[2].Description)
	assert.Equal(t, "completed", entries[2].Status)
	assert.Equal(t, int64(25), entries[2].Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
