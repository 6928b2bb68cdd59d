package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"creativemind-api/internal/shared"

	"go.uber.org/zap"
)

const chatModel = "deepseek/deepseek-r1:free"

// ChatAdapter talks to the chat completion service: ordered message list
// in, one assistant message out.
type ChatAdapter struct {
	cfg    Config
	client *http.Client
	log    *zap.SugaredLogger
}

func NewChatAdapter(cfg Config, log *zap.SugaredLogger) *ChatAdapter {
	if cfg.Timeout == 0 {
		cfg.Timeout = shared.ChatCompletionTimeout
	}
	return &ChatAdapter{cfg: cfg, client: newHTTPClient(cfg.Timeout), log: log}
}

func (a *ChatAdapter) Capability() Capability {
	return CapabilityChatCompletion
}

type chatRequestBody struct {
	Model    string               `json:"model"`
	Messages []shared.ChatMessage `json:"messages"`
}

type chatResponseBody struct {
	Choices []struct {
		Message shared.ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *ChatAdapter) Invoke(ctx context.Context, req *Request) (*RawResult, error) {
	body, err := json.Marshal(chatRequestBody{
		Model:    chatModel,
		Messages: req.Messages,
	})
	if err != nil {
		return nil, shared.NewUpstreamError(shared.UpstreamGenericError, "failed building request body", err)
	}

	r, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL, bytes.NewBuffer(body))
	if err != nil {
		return nil, shared.NewUpstreamError(shared.UpstreamGenericError, "failed building request", err)
	}
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	res, err := a.client.Do(r)
	if err != nil {
		return nil, wrapTransportError(err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode != http.StatusOK {
		return nil, wrapStatusError(res.StatusCode)
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, shared.NewUpstreamError(shared.UpstreamGenericError, "failed reading provider response", err)
	}

	var decoded chatResponseBody
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, shared.NewUpstreamError(shared.UpstreamInvalidResponse, "provider returned malformed JSON", err)
	}
	if decoded.Error != nil {
		return nil, shared.NewUpstreamError(shared.UpstreamGenericError, "provider reported an error", errors.New(decoded.Error.Message))
	}
	if len(decoded.Choices) == 0 || decoded.Choices[0].Message.Content == "" {
		return nil, shared.NewUpstreamError(shared.UpstreamInvalidResponse, "provider response missing assistant message", errors.New("empty choices"))
	}

	msg := decoded.Choices[0].Message
	if msg.Role == "" {
		msg.Role = "assistant"
	}
	return &RawResult{AssistantMessage: &msg}, nil
}
