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

// SpeechAdapter talks to the speech synthesis service. The provider hands
// back a reference to the generated audio; Invoke dereferences it with a
// second blocking fetch and re-encodes the bytes into an embeddable data
// URL, under the same failure taxonomy as the first call.
type SpeechAdapter struct {
	cfg    Config
	client *http.Client
	log    *zap.SugaredLogger
}

func NewSpeechAdapter(cfg Config, log *zap.SugaredLogger) *SpeechAdapter {
	if cfg.Timeout == 0 {
		cfg.Timeout = shared.SpeechSynthesisTimeout
	}
	return &SpeechAdapter{cfg: cfg, client: newHTTPClient(cfg.Timeout), log: log}
}

func (a *SpeechAdapter) Capability() Capability {
	return CapabilityTextToSpeech
}

type speechResponseBody struct {
	Audio struct {
		URL string `json:"url"`
	} `json:"audio"`
}

func (a *SpeechAdapter) Invoke(ctx context.Context, req *Request) (*RawResult, error) {
	body, err := json.Marshal(map[string]string{"text": req.Text})
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

	var decoded speechResponseBody
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, shared.NewUpstreamError(shared.UpstreamInvalidResponse, "provider returned malformed JSON", err)
	}
	if decoded.Audio.URL == "" {
		return nil, shared.NewUpstreamError(shared.UpstreamInvalidResponse, "provider response missing audio url", errors.New("empty audio reference"))
	}

	audio, err := a.fetchAudio(ctx, decoded.Audio.URL)
	if err != nil {
		return nil, err
	}

	dataURL := "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(audio)
	return &RawResult{AudioDataURL: dataURL}, nil
}

func (a *SpeechAdapter) fetchAudio(ctx context.Context, audioURL string) ([]byte, error) {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, shared.NewUpstreamError(shared.UpstreamGenericError, "failed building audio fetch", err)
	}

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

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, shared.NewUpstreamError(shared.UpstreamGenericError, "failed reading audio data", err)
	}
	if len(audio) == 0 {
		return nil, shared.NewUpstreamError(shared.UpstreamInvalidResponse, "provider returned empty audio", errors.New("zero bytes"))
	}
	return audio, nil
}
