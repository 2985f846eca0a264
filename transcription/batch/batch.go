// Package batch transcribes chunks through an asynchronous submit and
// poll API. The provider only accepts a fetchable audio URL, so every
// chunk goes through the staging store first.
package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/scribe/errors"
	"github.com/kbukum/scribe/transcription"
)

// ProviderName is the registered id for this backend.
const ProviderName = "batch"

const (
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 2 * time.Second
	defaultPollTimeout  = 10 * time.Minute
)

// Config holds the batch API connection settings.
type Config struct {
	// URL is the API base URL.
	URL string `mapstructure:"url" validate:"required"`
	// APIKey authenticates submit and poll calls.
	APIKey string `mapstructure:"api_key"`
	// Model is the recognition model requested on submit.
	Model string `mapstructure:"model"`
	// PollInterval is the delay between status polls.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// PollTimeout bounds how long one chunk may stay queued or running.
	// Exceeding it is a retryable timeout.
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	// Timeout bounds each individual HTTP call.
	Timeout time.Duration `mapstructure:"timeout"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = defaultPollTimeout
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Client implements transcription.Transcriber against the batch API.
type Client struct {
	cfg    Config
	client *http.Client
}

// New creates a batch client.
func New(cfg Config) *Client {
	cfg.ApplyDefaults()
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider id.
func (c *Client) Name() string { return ProviderName }

// RequiresStaging reports true: the API fetches audio by URL.
func (c *Client) RequiresStaging() bool { return true }

// Transcribe submits the staged chunk URL and polls until the task
// reaches a terminal status.
func (c *Client) Transcribe(ctx context.Context, req transcription.ChunkRequest) (*transcription.ChunkResponse, error) {
	if req.StagedURL == "" {
		return nil, errors.Permanent(ProviderName, "no staged audio reference")
	}

	taskID, err := c.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.poll(ctx, taskID)
}

type submitRequest struct {
	AudioURL string `json:"audio_url"`
	Model    string `json:"model,omitempty"`
	Language string `json:"language,omitempty"`
}

type submitResponse struct {
	TaskID string `json:"task_id"`
}

func (c *Client) submit(ctx context.Context, req transcription.ChunkRequest) (string, error) {
	model := c.cfg.Model
	if req.Model != "" {
		model = req.Model
	}
	payload, err := json.Marshal(submitRequest{
		AudioURL: req.StagedURL,
		Model:    model,
		Language: req.Language,
	})
	if err != nil {
		return "", errors.Internal("encode submit request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/submit", bytes.NewReader(payload))
	if err != nil {
		return "", errors.Internal("create submit request", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.Transient(ProviderName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", statusError(resp)
	}

	var sub submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return "", errors.Transient(ProviderName, fmt.Errorf("decode submit response: %w", err))
	}
	if sub.TaskID == "" {
		return "", errors.Transient(ProviderName, fmt.Errorf("submit returned no task id"))
	}
	return sub.TaskID, nil
}

type taskResponse struct {
	Status   string        `json:"status"`
	Text     string        `json:"text,omitempty"`
	Segments []taskSegment `json:"segments,omitempty"`
	Error    string        `json:"error,omitempty"`
}

type taskSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func (c *Client) poll(ctx context.Context, taskID string) (*transcription.ChunkResponse, error) {
	deadline := time.Now().Add(c.cfg.PollTimeout)
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		task, err := c.fetchTask(ctx, taskID)
		if err != nil {
			return nil, err
		}

		switch task.Status {
		case "done", "completed", "success":
			return task.toChunkResponse(), nil
		case "failed", "error":
			return nil, errors.Permanent(ProviderName, fmt.Sprintf("task %s failed: %s", taskID, task.Error))
		}

		if time.Now().After(deadline) {
			return nil, errors.Timeout(fmt.Sprintf("%s: task %s", ProviderName, taskID))
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) fetchTask(ctx context.Context, taskID string) (*taskResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"/tasks/"+taskID, nil)
	if err != nil {
		return nil, errors.Internal("create poll request", err)
	}
	c.setHeaders(httpReq)

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

	var task taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, errors.Transient(ProviderName, fmt.Errorf("decode task response: %w", err))
	}
	return &task, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

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

func (t *taskResponse) toChunkResponse() *transcription.ChunkResponse {
	out := &transcription.ChunkResponse{Text: t.Text}
	for _, seg := range t.Segments {
		out.Timestamps = append(out.Timestamps, transcription.Timestamp{
			Start: time.Duration(seg.Start * float64(time.Second)),
			End:   time.Duration(seg.End * float64(time.Second)),
			Token: seg.Text,
		})
	}
	return out
}

var _ transcription.Transcriber = (*Client)(nil)
