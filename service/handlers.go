package service

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/scribe/audio"
	"github.com/kbukum/scribe/errors"
	"github.com/kbukum/scribe/sse"
	"github.com/kbukum/scribe/transcription"
)

// SubmitRequest is the POST /jobs payload. Durations are expressed in
// seconds to keep the API client-friendly.
type SubmitRequest struct {
	Source       string   `json:"source" binding:"required"`
	Provider     string   `json:"provider" binding:"required"`
	Fallbacks    []string `json:"fallbacks,omitempty"`
	Output       string   `json:"output,omitempty"`
	OutputFormat string   `json:"output_format,omitempty"`
	Language     string   `json:"language,omitempty"`
	Model        string   `json:"model,omitempty"`

	MaxChunkSeconds   float64 `json:"max_chunk_seconds,omitempty"`
	MaxChunkBytes     int     `json:"max_chunk_bytes,omitempty"`
	SilenceGapSeconds float64 `json:"silence_gap_seconds,omitempty"`
	Concurrency       int     `json:"concurrency,omitempty"`
	UnitTimeoutSecs   float64 `json:"unit_timeout_seconds,omitempty"`
}

func (r SubmitRequest) toJob() transcription.Job {
	return transcription.Job{
		Provider:     r.Provider,
		Fallbacks:    r.Fallbacks,
		Output:       r.Output,
		OutputFormat: r.OutputFormat,
		Language:     r.Language,
		Model:        r.Model,
		Segmenter: audio.SegmenterConfig{
			MaxChunkDuration: secs(r.MaxChunkSeconds),
			MaxChunkBytes:    r.MaxChunkBytes,
			SilenceGap:       secs(r.SilenceGapSeconds),
		},
		Concurrency: r.Concurrency,
		UnitTimeout: secs(r.UnitTimeoutSecs),
	}
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Handlers wires the job API onto a gin engine.
type Handlers struct {
	manager   *Manager
	hub       *sse.Hub
	providers *transcription.Registry
}

// NewHandlers creates the API handlers.
func NewHandlers(manager *Manager, hub *sse.Hub, providers *transcription.Registry) *Handlers {
	return &Handlers{manager: manager, hub: hub, providers: providers}
}

// Register mounts all routes.
func (h *Handlers) Register(r gin.IRouter) {
	r.POST("/jobs", h.submit)
	r.GET("/jobs", h.list)
	r.GET("/jobs/:id", h.get)
	r.DELETE("/jobs/:id", h.cancel)
	r.GET("/jobs/:id/events", h.events)
	r.GET("/providers", h.listProviders)
}

func (h *Handlers) submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidConfig(err.Error()))
		return
	}

	id, err := h.manager.Submit(req.toJob(), req.Source)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func (h *Handlers) list(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.manager.List()})
}

func (h *Handlers) get(c *gin.Context) {
	status, err := h.manager.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handlers) cancel(c *gin.Context) {
	if err := h.manager.Cancel(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) events(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.manager.Get(id); err != nil {
		respondError(c, err)
		return
	}
	client := sse.NewClient(uuid.NewString(), "job:"+id)
	sse.ServeSSE(h.hub, c.Writer, c.Request, client)
}

func (h *Handlers) listProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.providers.Names()})
}

// respondError maps the error taxonomy onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch errors.CodeOf(err) {
	case errors.ErrCodeJobUnknown:
		status = http.StatusNotFound
	case errors.ErrCodeConfigInvalid, errors.ErrCodeProviderUnknown, errors.ErrCodeSourceUnreadable:
		status = http.StatusBadRequest
	case errors.ErrCodeRateLimited:
		status = http.StatusTooManyRequests
	}

	body := gin.H{"code": string(errors.CodeOf(err)), "message": err.Error()}
	c.JSON(status, gin.H{"error": body})
}
