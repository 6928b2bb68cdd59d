// Package users handles identity (register, login, bearer tokens) and
// profile management.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"creativemind-api/internal/shared"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

type Service struct {
	WDB       *sql.DB
	RDB       *sql.DB
	JWTSecret []byte
	Validate  *validator.Validate
	Log       *zap.SugaredLogger
}

func NewService(wdb, rdb *sql.DB, jwtSecret string, log *zap.SugaredLogger) *Service {
	v := validator.New()
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})
	return &Service{WDB: wdb, RDB: rdb, JWTSecret: []byte(jwtSecret), Validate: v, Log: log}
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=30,username"`
	Password string `json:"password" validate:"required,min=8"`
}

var (
	errEmailTaken    = shared.InvalidInput("email already registered")
	errUsernameTaken = shared.InvalidInput("username already taken")
	errBadLogin      = &shared.RequestError{Kind: shared.KindUnauthenticated, StatusCode: 401, Err: errors.New("invalid credentials")}
)

// Register creates an account with the signup credit grant and returns a
// bearer token for it.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (string, *shared.UserMetadata, error) {
	if err := s.Validate.Struct(req); err != nil {
		return "", nil, shared.InvalidInput(validationMessage(err))
	}

	var exists int
	err := s.RDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM user WHERE email = ?", req.Email).Scan(&exists)
	if err != nil {
		return "", nil, fmt.Errorf("failed checking email: %w", err)
	}
	if exists > 0 {
		return "", nil, errEmailTaken
	}
	err = s.RDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM user WHERE username = ?", req.Username).Scan(&exists)
	if err != nil {
		return "", nil, fmt.Errorf("failed checking username: %w", err)
	}
	if exists > 0 {
		return "", nil, errUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("failed hashing password: %w", err)
	}

	res, err := s.WDB.ExecContext(ctx, `
		INSERT INTO user (name, email, username, password_hash, credit_balance)
		VALUES (?, ?, ?, ?, 5)
	`, req.Name, req.Email, req.Username, string(hash))
	if err != nil {
		return "", nil, fmt.Errorf("failed creating user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", nil, fmt.Errorf("failed reading new user id: %w", err)
	}

	token, err := s.IssueToken(uint64(id))
	if err != nil {
		return "", nil, err
	}
	return token, &shared.UserMetadata{UserID: uint64(id), Email: req.Email, Name: req.Name, Username: req.Username}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", shared.InvalidInput("email and password are required")
	}

	var id uint64
	var hash string
	err := s.RDB.QueryRowContext(ctx, "SELECT id, password_hash FROM user WHERE email = ?", email).Scan(&id, &hash)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", errBadLogin
		}
		return "", fmt.Errorf("failed loading user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", errBadLogin
	}

	return s.IssueToken(id)
}

func (s *Service) IssueToken(userID uint64) (string, error) {
	claims := jwt.MapClaims{
		"id":  userID,
		"iat": time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.JWTSecret)
	if err != nil {
		return "", fmt.Errorf("failed signing token: %w", err)
	}
	return token, nil
}

// VerifyToken validates a bearer credential and yields the account id.
func (s *Service) VerifyToken(token string) (uint64, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.JWTSecret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, shared.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, shared.ErrInvalidToken
	}
	id, ok := claims["id"].(float64)
	if !ok || id <= 0 {
		return 0, shared.ErrInvalidToken
	}
	return uint64(id), nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Email":
		return "please enter a valid email"
	case "Password":
		return "please enter a strong password"
	case "Username":
		if fe.Tag() == "username" {
			return "username can only contain letters, numbers and underscores"
		}
		return "username must be between 3 and 30 characters"
	default:
		return "missing details"
	}
}
