// Package whisper transcribes chunks through a faster-whisper HTTP
// sidecar. Chunks are sent as inline WAV multipart uploads, so no
// staging is involved.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/kbukum/scribe/audio"
	"github.com/kbukum/scribe/errors"
	"github.com/kbukum/scribe/transcription"
)

// ProviderName is the registered id for this backend.
const ProviderName = "whisper"

const (
	defaultURL     = "http://localhost:8387"
	defaultModel   = "base"
	defaultTimeout = 120 * time.Second
)

// Config holds the sidecar connection settings.
type Config struct {
	URL      string        `mapstructure:"url"`
	Model    string        `mapstructure:"model"`
	Language string        `mapstructure:"language"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = defaultURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Client implements transcription.Transcriber against the sidecar.
type Client struct {
	cfg    Config
	client *http.Client
}

// New creates a whisper client.
func New(cfg Config) *Client {
	cfg.ApplyDefaults()
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider id.
func (c *Client) Name() string { return ProviderName }

// RequiresStaging reports false: chunks travel inline.
func (c *Client) RequiresStaging() bool { return false }

// IsAvailable checks whether the sidecar is reachable.
func (c *Client) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Transcribe sends one chunk as a WAV upload and returns its text with
// chunk-relative timestamps.
func (c *Client) Transcribe(ctx context.Context, req transcription.ChunkRequest) (*transcription.ChunkResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio", fmt.Sprintf("chunk-%04d.wav", req.Index))
	if err != nil {
		return nil, errors.Internal("create multipart form", err)
	}
	if err := audio.WriteWAV(part, req.Format, req.Data); err != nil {
		return nil, errors.Internal("encode chunk", err)
	}

	model := c.cfg.Model
	if req.Model != "" {
		model = req.Model
	}
	lang := c.cfg.Language
	if req.Language != "" {
		lang = req.Language
	}
	_ = writer.WriteField("model", model)
	if lang != "" {
		_ = writer.WriteField("language", lang)
	}
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/transcribe", &body)
	if err != nil {
		return nil, errors.Internal("create request", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Transient(ProviderName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var result whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Transient(ProviderName, fmt.Errorf("decode response: %w", err))
	}
	return result.toChunkResponse(), nil
}

// statusError maps sidecar HTTP status codes onto the error taxonomy
// the resilience policy switches on.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	reason := fmt.Sprintf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.AuthFailed(ProviderName)
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.RateLimited(ProviderName)
	case resp.StatusCode >= 500:
		return errors.Transient(ProviderName, fmt.Errorf("%s", reason))
	default:
		return errors.Permanent(ProviderName, reason)
	}
}

type whisperResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
}

type whisperSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (r *whisperResponse) toChunkResponse() *transcription.ChunkResponse {
	out := &transcription.ChunkResponse{Text: r.Text}
	for _, seg := range r.Segments {
		out.Timestamps = append(out.Timestamps, transcription.Timestamp{
			Start: time.Duration(seg.Start * float64(time.Second)),
			End:   time.Duration(seg.End * float64(time.Second)),
			Token: seg.Text,
		})
	}
	return out
}

var _ transcription.Transcriber = (*Client)(nil)
