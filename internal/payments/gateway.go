package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"creativemind-api/internal/shared"

	"go.uber.org/zap"
)

// HTTPGateway talks to the payment provider's order API over HTTPS with
// basic auth, the usual shape for hosted checkout providers.
type HTTPGateway struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	client    *http.Client
	log       *zap.SugaredLogger
}

func NewHTTPGateway(baseURL, keyID, keySecret string, log *zap.SugaredLogger) *HTTPGateway {
	return &HTTPGateway{
		BaseURL:   baseURL,
		KeyID:     keyID,
		KeySecret: keySecret,
		client:    &http.Client{Timeout: 30 * time.Second},
		log:       log,
	}
}

type createOrderBody struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

func (g *HTTPGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error) {
	body, err := json.Marshal(createOrderBody{Amount: amount, Currency: currency, Receipt: receipt})
	if err != nil {
		return nil, fmt.Errorf("failed building order body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/orders", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed building order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.KeyID, g.KeySecret)

	return g.do(req)
}

func (g *HTTPGateway) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"/orders/"+orderID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed building order fetch: %w", err)
	}
	req.SetBasicAuth(g.KeyID, g.KeySecret)

	return g.do(req)
}

func (g *HTTPGateway) do(req *http.Request) (*Order, error) {
	res, err := g.client.Do(req)
	if err != nil {
		return nil, shared.NewUpstreamError(shared.UpstreamGenericError, "payment gateway request failed", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return nil, shared.NewUpstreamError(shared.UpstreamGenericError, "payment gateway responded with non-200", fmt.Errorf("status %d", res.StatusCode))
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, shared.NewUpstreamError(shared.UpstreamGenericError, "failed reading gateway response", err)
	}

	var order Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, shared.NewUpstreamError(shared.UpstreamInvalidResponse, "gateway returned malformed JSON", err)
	}
	if order.ID == "" {
		return nil, shared.NewUpstreamError(shared.UpstreamInvalidResponse, "gateway response missing order id", nil)
	}
	return &order, nil
}
