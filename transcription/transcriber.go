package transcription

import (
	"context"
	"time"

	"github.com/kbukum/scribe/audio"
)

// ChunkRequest carries one chunk to a transcriber backend.
type ChunkRequest struct {
	// Index is the chunk's position in the job.
	Index int
	// Data is the raw PCM payload. Nil when the chunk was staged.
	Data []byte
	// StagedURL is a fetchable reference for backends that declared
	// RequiresStaging. Empty when Data is inline.
	StagedURL string
	// Format describes the PCM in Data.
	Format audio.Format
	// Start and End locate the chunk on the source timeline, so backends
	// returning timestamps can report them as absolute offsets.
	Start time.Duration
	End   time.Duration
	// Language and Model are optional provider hints.
	Language string
	Model    string
}

// ChunkResponse is a backend's answer for one chunk.
type ChunkResponse struct {
	// Text is the recognized text.
	Text string
	// Timestamps are optional token-level timings, relative to the chunk
	// start. The orchestrator shifts them to absolute source offsets.
	Timestamps []Timestamp
}

// Transcriber turns one audio chunk into text. Backends report failures
// through the coded error taxonomy so the resilience policy can decide
// between retry, fallback and abort.
type Transcriber interface {
	// Name returns the provider id used for registration and manifests.
	Name() string
	// RequiresStaging reports whether the backend needs a fetchable URL
	// instead of inline bytes.
	RequiresStaging() bool
	// Transcribe processes one chunk.
	Transcribe(ctx context.Context, req ChunkRequest) (*ChunkResponse, error)
}
