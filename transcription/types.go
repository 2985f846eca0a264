package transcription

import (
	"time"

	"github.com/kbukum/scribe/audio"
)

// ChunkStatus is the terminal status of one chunk.
type ChunkStatus string

const (
	// StatusOK means the requested provider produced the segment.
	StatusOK ChunkStatus = "ok"
	// StatusDegraded means a fallback provider produced the segment.
	StatusDegraded ChunkStatus = "degraded"
	// StatusFailed means every provider in the chain exhausted its retries.
	StatusFailed ChunkStatus = "failed"
	// StatusCancelled means the job was cancelled before the chunk ran.
	StatusCancelled ChunkStatus = "cancelled"
)

// Job describes one transcription request. Immutable once submitted.
type Job struct {
	// ID identifies the job in logs and progress events.
	ID string `mapstructure:"id"`
	// Provider is the requested transcriber id.
	Provider string `mapstructure:"provider" validate:"required"`
	// Fallbacks are tried in order after the provider's retries exhaust.
	Fallbacks []string `mapstructure:"fallbacks"`
	// Output is the transcript path. The manifest is always written next
	// to it with ManifestSuffix appended. Empty skips file output.
	Output string `mapstructure:"output"`
	// OutputFormat selects the transcript rendering: text, srt or vtt.
	OutputFormat string `mapstructure:"output_format" validate:"omitempty,oneof=text srt vtt"`
	// Language and Model are passed through to the provider.
	Language string `mapstructure:"language"`
	Model    string `mapstructure:"model"`
	// Segmenter bounds chunk size and tunes silence detection.
	Segmenter audio.SegmenterConfig `mapstructure:"segmenter"`
	// Concurrency bounds how many chunks are in flight at once.
	Concurrency int `mapstructure:"concurrency" validate:"omitempty,min=1"`
	// UnitTimeout is the deadline for one stage+transcribe attempt.
	UnitTimeout time.Duration `mapstructure:"unit_timeout"`
}

// Timestamp is one recognized token with its position on the source
// timeline.
type Timestamp struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Token string        `json:"token"`
}

// TranscriptSegment is the terminal answer for one chunk.
type TranscriptSegment struct {
	// Index is the chunk's position; final ordering is always by index.
	Index int `json:"index"`
	// Start and End are the chunk's offsets on the source timeline.
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	// Text is empty for failed and cancelled chunks.
	Text string `json:"text"`
	// Timestamps are optional token-level timings, absolute on the
	// source timeline.
	Timestamps []Timestamp `json:"timestamps,omitempty"`
	// Provider is the id that actually produced the text. It differs
	// from the requested provider when a fallback fired.
	Provider string `json:"provider,omitempty"`
	// Status is ok, degraded, failed or cancelled.
	Status ChunkStatus `json:"status"`
	// Cached is true when the segment came from the transcript cache
	// instead of a provider call.
	Cached bool `json:"cached,omitempty"`
	// Error holds the failure reason for failed and cancelled chunks.
	Error string `json:"error,omitempty"`
	// BytesOriginal and BytesStaged track chunk size before and after
	// staging. BytesStaged is zero when the provider took inline bytes.
	BytesOriginal int64 `json:"bytes_original"`
	BytesStaged   int64 `json:"bytes_staged,omitempty"`
	// Attempts is the total provider calls made for this chunk.
	Attempts int `json:"attempts,omitempty"`
}

// ChunkManifest is one chunk's row in the manifest.
type ChunkManifest struct {
	Index    int           `json:"index"`
	Start    time.Duration `json:"start"`
	End      time.Duration `json:"end"`
	Provider string        `json:"provider,omitempty"`
	Status   ChunkStatus   `json:"status"`
	Cached   bool          `json:"cached,omitempty"`
	Error    string        `json:"error,omitempty"`

	BytesOriginal int64 `json:"bytes_original"`
	BytesStaged   int64 `json:"bytes_staged,omitempty"`
	// Compression is staged bytes over original bytes; zero when the
	// chunk was never staged.
	Compression float64 `json:"compression,omitempty"`
}

// Manifest is the structured record of a job's outcome. It is emitted
// alongside the transcript on every completed run, degraded and failed
// runs included.
type Manifest struct {
	JobID string `json:"job_id,omitempty"`
	// Provider is the requested provider id.
	Provider string `json:"provider"`
	// State is the job's terminal state.
	State State `json:"state"`
	// SourceDuration is the total play time of the source.
	SourceDuration time.Duration `json:"source_duration"`
	ChunkCount     int           `json:"chunk_count"`
	// TextLength is the length of the assembled transcript in bytes.
	TextLength int `json:"text_length"`
	// Compression is the job-average staged/original ratio across chunks
	// that were staged.
	Compression float64         `json:"compression,omitempty"`
	Chunks      []ChunkManifest `json:"chunks"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TranscriptionResult is the job's final output: the assembled text and
// its manifest, materialized only when every chunk has a terminal
// status.
type TranscriptionResult struct {
	Text     string              `json:"text"`
	Segments []TranscriptSegment `json:"segments"`
	Manifest Manifest            `json:"manifest"`
}

// ProgressEvent reports one chunk reaching a terminal status. Partial
// job state is only observable through these events; the manifest is
// never emitted mid-job.
type ProgressEvent struct {
	JobID      string      `json:"job_id"`
	ChunkIndex int         `json:"chunk_index"`
	Status     ChunkStatus `json:"status"`
	Provider   string      `json:"provider,omitempty"`
}

// ProgressFunc observes per-chunk progress. Called from worker
// goroutines; implementations must be safe for concurrent use.
type ProgressFunc func(ProgressEvent)
