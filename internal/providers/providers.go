// Package providers contains one adapter per external generative
// capability. Each adapter owns the wire contract with its service and
// maps every failure into the stable upstream error codes; raw provider
// error shapes never travel past this package.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"creativemind-api/internal/shared"
)

type Capability string

const (
	CapabilityImageGeneration   Capability = "image_generation"
	CapabilityTextToSpeech      Capability = "text_to_speech"
	CapabilityBackgroundRemoval Capability = "background_removal"
	CapabilityChatCompletion    Capability = "chat_completion"
)

// Request carries the validated input for one invocation. Only the fields
// relevant to the adapter's capability are set.
type Request struct {
	Prompt    string
	Text      string
	Image     []byte
	ImageMIME string
	Messages  []shared.ChatMessage
}

// RawResult is the fixed internal result shape every adapter decodes into.
// Exactly one field group is populated, matching the capability.
type RawResult struct {
	ImageURL              string
	AudioDataURL          string
	ProcessedImageDataURL string
	AssistantMessage      *shared.ChatMessage
}

// Adapter is the boundary between the gateway and one external service.
// Invoke is blocking, single attempt, bounded by the adapter's timeout
// budget. Retries are the retry executor's job, not the adapter's.
type Adapter interface {
	Capability() Capability
	Invoke(ctx context.Context, req *Request) (*RawResult, error)
}

// Config is the wiring for one adapter: where the service lives and how
// long one attempt may take.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

func newHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Dial: (&net.Dialer{
			Timeout: 2 * time.Second,
		}).Dial,
		TLSHandshakeTimeout: 2 * time.Second,
		DisableKeepAlives:   false,
	}
	return &http.Client{Transport: tr, Timeout: timeout}
}

// wrapTransportError maps a failed round trip into the taxonomy. Timeouts
// (client deadline, context deadline) become the retryable timeout code;
// everything else is generic.
func wrapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return shared.NewUpstreamError(shared.UpstreamTimeout, "provider request timed out", err)
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return shared.NewUpstreamError(shared.UpstreamTimeout, "provider request timed out", err)
	}
	return shared.NewUpstreamError(shared.UpstreamGenericError, "provider request failed", err)
}

// wrapStatusError maps a non-200 provider status into the taxonomy.
func wrapStatusError(status int) error {
	switch {
	case status == http.StatusGatewayTimeout:
		return shared.NewUpstreamError(shared.UpstreamTimeout, "provider gateway timeout", fmt.Errorf("status %d", status))
	case status == http.StatusTooManyRequests || status == http.StatusPaymentRequired:
		return shared.NewUpstreamError(shared.UpstreamRateLimited, "provider rate limited", fmt.Errorf("status %d", status))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return shared.NewUpstreamError(shared.UpstreamAuthError, "provider rejected credentials", fmt.Errorf("status %d", status))
	default:
		return shared.NewUpstreamError(shared.UpstreamGenericError, "provider responded with non-200", fmt.Errorf("status %d", status))
	}
}
