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

const imageModel = "black-forest-labs/FLUX.1-dev"

// ImageAdapter talks to the image synthesis service: prompt in, hosted
// image URL out.
type ImageAdapter struct {
	cfg    Config
	client *http.Client
	log    *zap.SugaredLogger
}

func NewImageAdapter(cfg Config, log *zap.SugaredLogger) *ImageAdapter {
	if cfg.Timeout == 0 {
		cfg.Timeout = shared.ImageGenerationTimeout
	}
	return &ImageAdapter{cfg: cfg, client: newHTTPClient(cfg.Timeout), log: log}
}

func (a *ImageAdapter) Capability() Capability {
	return CapabilityImageGeneration
}

type imageRequestBody struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Steps  int    `json:"steps"`
	N      int    `json:"n"`
}

type imageResponseBody struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

func (a *ImageAdapter) Invoke(ctx context.Context, req *Request) (*RawResult, error) {
	body, err := json.Marshal(imageRequestBody{
		Model:  imageModel,
		Prompt: req.Prompt,
		Steps:  10,
		N:      1,
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

	var decoded imageResponseBody
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, shared.NewUpstreamError(shared.UpstreamInvalidResponse, "provider returned malformed JSON", err)
	}
	if len(decoded.Data) == 0 || decoded.Data[0].URL == "" {
		return nil, shared.NewUpstreamError(shared.UpstreamInvalidResponse, "provider response missing image url", errors.New("empty data"))
	}

	return &RawResult{ImageURL: decoded.Data[0].URL}, nil
}
