package users

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"creativemind-api/internal/shared"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewService(db, db, "test-secret", zap.NewNop().Sugar()), mock
}

func validRegister() RegisterRequest {
	return RegisterRequest{
		Name:     "Ada Lovelace",
		Email:    "ada@example.com",
		Username: "ada_l",
		Password: "correct-horse",
	}
}

func TestRegister(t *testing.T) {
	t.Run("creates account with signup grant and usable token", func(t *testing.T) {
		s, mock := newTestService(t)

		mock.ExpectQuery("SELECT COUNT").
			WithArgs("ada@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("SELECT COUNT").
			WithArgs("ada_l").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec("INSERT INTO user").
			WithArgs("Ada Lovelace", "ada@example.com", "ada_l", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(7, 1))

		token, user, err := s.Register(context.Background(), validRegister())
		require.NoError(t, err)
		assert.Equal(t, uint64(7), user.UserID)
		assert.Equal(t, "ada_l", user.Username)

		id, err := s.VerifyToken(token)
		require.NoError(t, err)
		assert.Equal(t, uint64(7), id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email", func(t *testing.T) {
		s, mock := newTestService(t)

		mock.ExpectQuery("SELECT COUNT").
			WithArgs("ada@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		_, _, err := s.Register(context.Background(), validRegister())
		assert.Equal(t, "email already registered", shared.Classify(err).Message())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate username", func(t *testing.T) {
		s, mock := newTestService(t)

		mock.ExpectQuery("SELECT COUNT").
			WithArgs("ada@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("SELECT COUNT").
			WithArgs("ada_l").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		_, _, err := s.Register(context.Background(), validRegister())
		assert.Equal(t, "username already taken", shared.Classify(err).Message())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("validation messages", func(t *testing.T) {
		s, _ := newTestService(t)

		cases := []struct {
			mutate  func(*RegisterRequest)
			message string
		}{
			{func(r *RegisterRequest) { r.Email = "not-an-email" }, "please enter a valid email"},
			{func(r *RegisterRequest) { r.Password = "short" }, "please enter a strong password"},
			{func(r *RegisterRequest) { r.Username = "bad name!" }, "username can only contain letters, numbers and underscores"},
			{func(r *RegisterRequest) { r.Username = "ab" }, "username must be between 3 and 30 characters"},
			{func(r *RegisterRequest) { r.Name = "" }, "missing details"},
		}
		for _, tc := range cases {
			req := validRegister()
			tc.mutate(&req)
			_, _, err := s.Register(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, tc.message, shared.Classify(err).Message())
		}
	})
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		s, mock := newTestService(t)

		mock.ExpectQuery("SELECT id, password_hash FROM user WHERE email =").
			WithArgs("ada@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).AddRow(7, string(hash)))

		token, err := s.Login(context.Background(), "ada@example.com", "correct-horse")
		require.NoError(t, err)

		id, err := s.VerifyToken(token)
		require.NoError(t, err)
		assert.Equal(t, uint64(7), id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong password", func(t *testing.T) {
		s, mock := newTestService(t)

		mock.ExpectQuery("SELECT id, password_hash FROM user WHERE email =").
			WithArgs("ada@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).AddRow(7, string(hash)))

		_, err := s.Login(context.Background(), "ada@example.com", "wrong")
		rerr := shared.Classify(err)
		assert.Equal(t, shared.KindUnauthenticated, rerr.Kind)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown email gets the same error as wrong password", func(t *testing.T) {
		s, mock := newTestService(t)

		mock.ExpectQuery("SELECT id, password_hash FROM user WHERE email =").
			WithArgs("nobody@example.com").
			WillReturnError(sql.ErrNoRows)

		_, err := s.Login(context.Background(), "nobody@example.com", "whatever")
		rerr := shared.Classify(err)
		assert.Equal(t, shared.KindUnauthenticated, rerr.Kind)
		assert.Equal(t, "invalid credentials", rerr.Message())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing fields", func(t *testing.T) {
		s, _ := newTestService(t)
		_, err := s.Login(context.Background(), "", "")
		assert.Equal(t, shared.KindInvalidInput, shared.Classify(err).Kind)
	})
}

func TestVerifyToken(t *testing.T) {
	s, _ := newTestService(t)

	t.Run("garbage token", func(t *testing.T) {
		_, err := s.VerifyToken("not-a-jwt")
		assert.Equal(t, shared.ErrInvalidToken, err)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		other, _ := newTestService(t)
		other.JWTSecret = []byte("other-secret")
		token, err := other.IssueToken(7)
		require.NoError(t, err)

		_, err = s.VerifyToken(token)
		assert.Equal(t, shared.ErrInvalidToken, err)
	})
}

func TestGetProfile(t *testing.T) {
	s, mock := newTestService(t)

	joined := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT name, email, username, bio, profile_image, credit_balance, images_generated, api_calls, created_at FROM user").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "email", "username", "bio", "profile_image", "credit_balance", "images_generated", "api_calls", "created_at"}).
			AddRow("Ada Lovelace", "ada@example.com", "ada_l", "mathematician", nil, 5, 2, 9, joined))

	p, err := s.GetProfile(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", p.FullName)
	assert.Equal(t, "January 15, 2026", p.JoinDate)
	assert.Equal(t, int64(5), p.CreditBalance)
	assert.Equal(t, int64(2), p.ImagesGenerated)
	assert.Empty(t, p.ProfileImage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		s, mock := newTestService(t)

		mock.ExpectQuery("SELECT password_hash FROM user WHERE id =").
			WithArgs(uint64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"password_hash"}).AddRow(string(hash)))
		mock.ExpectExec("UPDATE user SET password_hash =").
			WithArgs(sqlmock.AnyArg(), uint64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, s.UpdatePassword(context.Background(), 7, "correct-horse", "even-better-horse"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong current password", func(t *testing.T) {
		s, mock := newTestService(t)

		mock.ExpectQuery("SELECT password_hash FROM user WHERE id =").
			WithArgs(uint64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"password_hash"}).AddRow(string(hash)))

		err := s.UpdatePassword(context.Background(), 7, "wrong", "even-better-horse")
		assert.Equal(t, "current password is incorrect", shared.Classify(err).Message())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("short new password", func(t *testing.T) {
		s, _ := newTestService(t)
		err := s.UpdatePassword(context.Background(), 7, "correct-horse", "short")
		assert.Equal(t, shared.KindInvalidInput, shared.Classify(err).Kind)
	})
}
