package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/scribe/audio"
	"github.com/kbukum/scribe/errors"
	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/sse"
	"github.com/kbukum/scribe/transcription"
)

// JobStatus is the externally visible state of one submitted job.
type JobStatus struct {
	ID          string              `json:"id"`
	State       transcription.State `json:"state"`
	Provider    string              `json:"provider"`
	SubmittedAt time.Time           `json:"submitted_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	Error       string              `json:"error,omitempty"`

	// Result is set once the job reaches a terminal state. Cancelled
	// jobs keep their partial result.
	Result *transcription.TranscriptionResult `json:"result,omitempty"`
}

type jobEntry struct {
	mu     sync.Mutex
	status JobStatus
	cancel context.CancelCauseFunc
	done   chan struct{}
}

func (e *jobEntry) snapshot() JobStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Manager owns running jobs: it assigns handles, executes each job on
// its own goroutine through the orchestrator, and fans progress out to
// the SSE hub.
type Manager struct {
	orch *transcription.Orchestrator
	hub  *sse.Hub
	log  *logger.Logger

	mu   sync.RWMutex
	jobs map[string]*jobEntry
}

// NewManager creates a job manager. hub may be nil when no streaming
// consumers exist.
func NewManager(orch *transcription.Orchestrator, hub *sse.Hub, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		orch: orch,
		hub:  hub,
		log:  log.WithComponent("jobs"),
		jobs: make(map[string]*jobEntry),
	}
}

// Submit starts a job over the given WAV source and returns its handle.
// The source is opened synchronously so an unreadable path fails the
// submission itself; everything after that runs in the background.
func (m *Manager) Submit(job transcription.Job, source string) (string, error) {
	dec, err := audio.OpenWAV(source)
	if err != nil {
		return "", errors.SourceUnreadable(source, err)
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	ctx, cancel := context.WithCancelCause(context.Background())
	entry := &jobEntry{
		status: JobStatus{
			ID:          job.ID,
			State:       transcription.StateSegmenting,
			Provider:    job.Provider,
			SubmittedAt: time.Now().UTC(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	if _, exists := m.jobs[job.ID]; exists {
		m.mu.Unlock()
		cancel(nil)
		dec.Close()
		return "", errors.InvalidConfig("job id already in use: " + job.ID)
	}
	m.jobs[job.ID] = entry
	m.mu.Unlock()

	go m.run(ctx, entry, job, dec)
	return job.ID, nil
}

func (m *Manager) run(ctx context.Context, entry *jobEntry, job transcription.Job, dec audio.Decoder) {
	defer close(entry.done)
	defer dec.Close()

	topic := "job:" + job.ID
	progress := func(ev transcription.ProgressEvent) {
		if m.hub != nil {
			m.hub.Publish(topic, sse.Event{Type: sse.EventChunk, Data: ev})
		}
	}

	result, err := m.orch.Run(ctx, job, dec, progress)

	now := time.Now().UTC()
	entry.mu.Lock()
	entry.status.CompletedAt = &now
	entry.status.Result = result
	if err != nil {
		entry.status.State = transcription.StateFailed
		entry.status.Error = err.Error()
	} else {
		entry.status.State = transcription.StateDone
	}
	status := entry.status
	entry.mu.Unlock()

	if m.hub != nil {
		m.hub.Publish(topic, sse.Event{Type: sse.EventJob, Data: status})
	}
}

// Get returns a job's current status.
func (m *Manager) Get(id string) (JobStatus, error) {
	m.mu.RLock()
	entry, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return JobStatus{}, errors.UnknownJob(id)
	}
	return entry.snapshot(), nil
}

// List returns the status of every known job.
func (m *Manager) List() []JobStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]JobStatus, 0, len(m.jobs))
	for _, entry := range m.jobs {
		out = append(out, entry.snapshot())
	}
	return out
}

// Cancel stops a running job. Chunks already collected keep their
// results; the job reports a Failed terminal state.
func (m *Manager) Cancel(id string) error {
	m.mu.RLock()
	entry, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return errors.UnknownJob(id)
	}
	entry.cancel(errors.Cancelled("cancelled by request"))
	return nil
}

// Await blocks until the job reaches a terminal state or ctx ends.
func (m *Manager) Await(ctx context.Context, id string) (JobStatus, error) {
	m.mu.RLock()
	entry, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return JobStatus{}, errors.UnknownJob(id)
	}

	select {
	case <-ctx.Done():
		return JobStatus{}, ctx.Err()
	case <-entry.done:
		return entry.snapshot(), nil
	}
}
