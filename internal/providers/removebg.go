package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"creativemind-api/internal/shared"

	"go.uber.org/zap"
)

// RemoveBGAdapter talks to the background removal service: image bytes in,
// processed image bytes out. Input and output are staged through scoped
// temp files that are released on every exit path.
type RemoveBGAdapter struct {
	cfg        Config
	stagingDir string
	client     *http.Client
	log        *zap.SugaredLogger
}

func NewRemoveBGAdapter(cfg Config, stagingDir string, log *zap.SugaredLogger) *RemoveBGAdapter {
	if cfg.Timeout == 0 {
		cfg.Timeout = shared.BackgroundRemovalTimeout
	}
	return &RemoveBGAdapter{cfg: cfg, stagingDir: stagingDir, client: newHTTPClient(cfg.Timeout), log: log}
}

func (a *RemoveBGAdapter) Capability() Capability {
	return CapabilityBackgroundRemoval
}

type removeBGRequestBody struct {
	ImageFileB64 string `json:"image_file_b64"`
	Size         string `json:"size"`
	Format       string `json:"format"`
}

func (a *RemoveBGAdapter) Invoke(ctx context.Context, req *Request) (*RawResult, error) {
	staged, err := Stage(a.stagingDir, "upload-*", req.Image, a.log)
	if err != nil {
		return nil, shared.NewUpstreamError(shared.UpstreamGenericError, "failed staging upload", err)
	}
	defer staged.Release()

	input, err := staged.Read()
	if err != nil {
		return nil, shared.NewUpstreamError(shared.UpstreamGenericError, "failed reading staged upload", err)
	}

	body, err := json.Marshal(removeBGRequestBody{
		ImageFileB64: base64.StdEncoding.EncodeToString(input),
		Size:         "auto",
		Format:       "auto",
	})
	if err != nil {
		return nil, shared.NewUpstreamError(shared.UpstreamGenericError, "failed building request body", err)
	}

	r, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL, bytes.NewBuffer(body))
	if err != nil {
		return nil, shared.NewUpstreamError(shared.UpstreamGenericError, "failed building request", err)
	}
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("X-Api-Key", a.cfg.APIKey)

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

	processed, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, shared.NewUpstreamError(shared.UpstreamGenericError, "failed reading provider response", err)
	}
	if len(processed) == 0 {
		return nil, shared.NewUpstreamError(shared.UpstreamInvalidResponse, "provider returned empty image", errors.New("zero bytes"))
	}

	// Second staging write for the processed result, read back before
	// release so nothing outlives this invocation.
	out, err := Stage(a.stagingDir, "processed-*.png", processed, a.log)
	if err != nil {
		return nil, shared.NewUpstreamError(shared.UpstreamGenericError, "failed staging result", err)
	}
	defer out.Release()

	result, err := out.Read()
	if err != nil {
		return nil, shared.NewUpstreamError(shared.UpstreamGenericError, "failed reading staged result", err)
	}

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(result)
	return &RawResult{ProcessedImageDataURL: dataURL}, nil
}
