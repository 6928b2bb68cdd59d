// Package payments drives the purchase flow against an external payment
// gateway: create a payable order for a plan, then apply the credits
// exactly once when the gateway confirms the order as paid.
package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"creativemind-api/internal/ledger"
	"creativemind-api/internal/metrics"
	"creativemind-api/internal/shared"

	"go.uber.org/zap"
)

// Order is the gateway's view of one payable checkout.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Gateway is the external payment collaborator: order creation and later
// status reporting. The HTTP implementation lives in gateway.go.
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error)
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
}

type Service struct {
	WDB      *sql.DB
	Ledger   *ledger.Store
	Gateway  Gateway
	Currency string
	Log      *zap.SugaredLogger
}

func NewService(wdb *sql.DB, lg *ledger.Store, gw Gateway, currency string, log *zap.SugaredLogger) *Service {
	if currency == "" {
		currency = "USD"
	}
	return &Service{WDB: wdb, Ledger: lg, Gateway: gw, Currency: currency, Log: log}
}

var errPlanNotFound = shared.InvalidInput("plan not found")

var errPaymentFailed = &shared.RequestError{
	Kind:       shared.KindInvalidInput,
	StatusCode: 400,
	Err:        errors.New("payment failed"),
}

// CreateCheckout records a pending transaction and opens a gateway order
// for it. The transaction id doubles as the order receipt so verification
// can find its way back.
func (s *Service) CreateCheckout(ctx context.Context, userID uint64, planID string) (*Order, error) {
	plan, ok := shared.Plans[planID]
	if !ok {
		return nil, errPlanNotFound
	}

	txn, err := s.Ledger.CreateTransaction(ctx, userID, plan)
	if err != nil {
		return nil, err
	}

	// Gateways take minor currency units.
	order, err := s.Gateway.CreateOrder(ctx, plan.Amount*100, s.Currency, txn.ID)
	if err != nil {
		s.Log.Errorw("Failed to create gateway order", "error", err, "transaction_id", txn.ID)
		return nil, shared.Classify(err)
	}

	s.Log.Infow("Checkout created", "user_id", userID, "plan", plan.Name, "order_id", order.ID)
	return order, nil
}

// VerifyPayment fetches the order, and iff the gateway reports it paid,
// marks the owning transaction paid and credits the balance in one
// database transaction. The paid flip is conditional, so repeated or
// concurrent verifications apply the credits at most once.
func (s *Service) VerifyPayment(ctx context.Context, userID uint64, orderID string) (int64, error) {
	order, err := s.Gateway.FetchOrder(ctx, orderID)
	if err != nil {
		s.Log.Errorw("Failed to fetch gateway order", "error", err, "order_id", orderID)
		return 0, shared.Classify(err)
	}
	if order.Status != "paid" {
		return 0, errPaymentFailed
	}

	txn, err := s.Ledger.GetTransaction(ctx, order.Receipt)
	if err != nil {
		return 0, err
	}
	if txn.UserID != userID {
		return 0, shared.ErrUnauthorized
	}
	if txn.Paid {
		return 0, ledger.ErrAlreadyProcessed
	}

	err = ledger.ExecuteTransaction(ctx, s.WDB, []func(*sql.Tx) error{
		func(tx *sql.Tx) error {
			return s.Ledger.MarkPaidTx(ctx, tx, txn.ID)
		},
		func(tx *sql.Tx) error {
			return s.Ledger.CreditAccountTx(ctx, tx, txn.UserID, txn.Credits)
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to apply payment: %w", err)
	}

	metrics.CreditsPurchased.WithLabelValues(txn.Plan).Add(float64(txn.Credits))
	s.Log.Infow("Credits added", "user_id", userID, "plan", txn.Plan, "credits", txn.Credits)
	return txn.Credits, nil
}
