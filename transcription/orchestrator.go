package transcription

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kbukum/scribe/audio"
	"github.com/kbukum/scribe/errors"
	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/observability"
	"github.com/kbukum/scribe/resilience"
	"github.com/kbukum/scribe/staging"
	"github.com/kbukum/scribe/validation"
)

// State is one phase of a job's lifecycle.
type State string

const (
	StateSegmenting  State = "segmenting"
	StateDispatching State = "dispatching"
	StateCollecting  State = "collecting"
	StateAssembling  State = "assembling"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// OrchestratorConfig tunes job execution.
type OrchestratorConfig struct {
	// Concurrency is the default worker-pool degree for jobs that do not
	// set their own.
	Concurrency int `mapstructure:"concurrency"`
	// UnitTimeout is the default deadline for one stage+transcribe
	// attempt. Exceeding it is a retryable timeout.
	UnitTimeout time.Duration `mapstructure:"unit_timeout"`
	// Separator joins segment texts in the assembled transcript.
	Separator string `mapstructure:"separator"`
	// RateLimit is the per-job request budget. A zero Requests value
	// disables rate limiting (use WithLimiter for a process-wide bucket).
	RateLimit resilience.RateLimiterConfig `mapstructure:"rate_limit"`
	// Retry is the per-provider retry budget.
	Retry resilience.RetryConfig `mapstructure:"retry"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *OrchestratorConfig) ApplyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.UnitTimeout <= 0 {
		c.UnitTimeout = 2 * time.Minute
	}
}

// Orchestrator drives one job through segmentation, dispatch, collection
// and assembly. It owns the chunk sequence and result set for the job's
// lifetime; nothing is shared across jobs except an optional
// process-wide rate limiter.
type Orchestrator struct {
	cfg      OrchestratorConfig
	registry *Registry
	stage    func(jobID string) *staging.Store
	cache    *Cache
	metrics  *observability.Metrics
	limiter  *resilience.RateLimiter
	log      *logger.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStaging supplies one staging store for providers that require a
// fetchable URL. Suitable when jobs run one at a time; concurrent jobs
// should use WithStagingFactory so each job cleans up only its own
// objects.
func WithStaging(s *staging.Store) Option {
	return func(o *Orchestrator) {
		o.stage = func(string) *staging.Store { return s }
	}
}

// WithStagingFactory builds a fresh staging store per job, typically
// keyed under a per-job prefix.
func WithStagingFactory(f func(jobID string) *staging.Store) Option {
	return func(o *Orchestrator) { o.stage = f }
}

// WithCache supplies a chunk transcript cache consulted before dispatch.
func WithCache(c *Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithMetrics supplies pipeline instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLimiter shares one rate limiter across every job this
// orchestrator runs, instead of a fresh per-job bucket.
func WithLimiter(l *resilience.RateLimiter) Option {
	return func(o *Orchestrator) { o.limiter = l }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// NewOrchestrator creates an orchestrator over the given registry.
func NewOrchestrator(registry *Registry, cfg OrchestratorConfig, opts ...Option) *Orchestrator {
	cfg.ApplyDefaults()
	o := &Orchestrator{
		cfg:      cfg,
		registry: registry,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.WithComponent("orchestrator")
	return o
}

// Run executes one job against the given decoded source and returns its
// result. Individual chunk failures never fail the job; the returned
// error is reserved for job-level problems (bad config, unknown
// provider, unreadable source, cancellation). On cancellation the
// partial result is still returned alongside the error, with
// undispatched chunks marked cancelled.
func (o *Orchestrator) Run(ctx context.Context, job Job, src audio.Decoder, progress ProgressFunc) (*TranscriptionResult, error) {
	started := time.Now()
	log := o.log.WithFields(logger.Fields(logger.FieldJobID, job.ID, logger.FieldProvider, job.Provider))

	if err := validation.Validate(job); err != nil {
		return nil, err
	}
	chain, err := o.registry.ResolveChain(job.Provider, job.Fallbacks...)
	if err != nil {
		log.WithError(err).Error("provider resolution failed")
		return nil, err
	}

	log.Info("job started", logger.Fields(logger.FieldStatus, StateSegmenting))
	chunks, err := o.segment(job, src)
	if err != nil {
		log.WithError(err).Error("segmentation failed")
		o.recordJob(ctx, StateFailed, started)
		return nil, err
	}

	builder := ManifestBuilder{Separator: o.cfg.Separator}
	if len(chunks) == 0 {
		result := builder.Build(job.ID, job.Provider, StateDone, src.Duration(), nil)
		if err := o.persist(job, result); err != nil {
			return nil, err
		}
		o.recordJob(ctx, StateDone, started)
		log.Info("job completed with empty source")
		return &result, nil
	}

	var stage *staging.Store
	if o.stage != nil {
		stage = o.stage(job.ID)
	}

	log.Info("dispatching chunks", logger.Fields(logger.FieldStatus, StateDispatching, "chunks", len(chunks)))
	segments, cancelled := o.dispatch(ctx, job, chunks, chain, stage, progress)

	state := StateDone
	if cancelled {
		state = StateFailed
	}

	log.Info("assembling result", logger.Fields(logger.FieldStatus, StateAssembling))
	result := builder.Build(job.ID, job.Provider, state, src.Duration(), segments)

	if stage != nil {
		// Best effort; leftovers expire via TTL. The job context may
		// already be cancelled, so cleanup gets its own.
		if err := stage.Cleanup(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("staging cleanup incomplete")
		}
	}
	if o.cache != nil {
		if err := o.cache.Save(); err != nil {
			log.WithError(err).Warn("transcript cache not saved")
		}
	}

	if err := o.persist(job, result); err != nil {
		o.recordJob(ctx, StateFailed, started)
		return &result, err
	}

	o.recordJob(ctx, state, started)
	if cancelled {
		log.Warn("job cancelled", logger.Fields(logger.FieldDuration, time.Since(started)))
		return &result, errors.Cancelled(fmt.Sprintf("job %s cancelled: %v", job.ID, context.Cause(ctx)))
	}
	log.Info("job completed", logger.Fields(logger.FieldDuration, time.Since(started), "chunks", len(chunks)))
	return &result, nil
}

// segment materializes the full chunk sequence for the job.
func (o *Orchestrator) segment(job Job, src audio.Decoder) ([]*audio.Chunk, error) {
	seg, err := audio.NewSegmenter(src, job.Segmenter)
	if err != nil {
		return nil, errors.InvalidConfig(err.Error())
	}

	var chunks []*audio.Chunk
	for {
		chunk, err := seg.Next()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return nil, errors.SourceUnreadable(job.ID, err)
		}
		chunks = append(chunks, chunk)
	}
}

// dispatch runs every chunk through the resilience policy with bounded
// concurrency and collects one terminal segment per chunk. It returns
// the segments and whether the job was cancelled before all chunks were
// dispatched or finished.
func (o *Orchestrator) dispatch(ctx context.Context, job Job, chunks []*audio.Chunk, chain []Transcriber, stage *staging.Store, progress ProgressFunc) ([]TranscriptSegment, bool) {
	concurrency := job.Concurrency
	if concurrency <= 0 {
		concurrency = o.cfg.Concurrency
	}
	pool := resilience.NewBulkhead(concurrency)

	limiter := o.limiter
	if limiter == nil && o.cfg.RateLimit.Requests > 0 {
		limiter = resilience.NewRateLimiter(o.cfg.RateLimit)
	}

	segments := make([]TranscriptSegment, len(chunks))
	var wg sync.WaitGroup
	cancelled := false

	for i, chunk := range chunks {
		if err := pool.Acquire(ctx); err != nil {
			// Cancellation: everything not yet dispatched is terminal
			// with status cancelled, results already collected stay.
			for j := i; j < len(chunks); j++ {
				segments[j] = o.cancelledSegment(ctx, job, chunks[j], progress)
			}
			cancelled = true
			break
		}

		wg.Add(1)
		go func(idx int, c *audio.Chunk) {
			defer wg.Done()
			defer pool.Release()
			segments[idx] = o.processChunk(ctx, job, c, chain, stage, limiter, progress)
		}(i, chunk)
	}

	wg.Wait()
	if ctx.Err() != nil {
		cancelled = true
	}
	return segments, cancelled
}

// processChunk runs one chunk's unit of work (stage if required, then
// transcribe) through the fallback chain and returns its terminal
// segment. Never returns an error: chunk-level failures become failed
// segments.
func (o *Orchestrator) processChunk(ctx context.Context, job Job, chunk *audio.Chunk, chain []Transcriber, stage *staging.Store, limiter *resilience.RateLimiter, progress ProgressFunc) TranscriptSegment {
	seg := TranscriptSegment{
		Index:         chunk.Index,
		Start:         chunk.Start,
		End:           chunk.End,
		BytesOriginal: int64(len(chunk.Data)),
	}

	cacheKey := Key(chunk.Data, job.Provider, job.Model, job.Language)
	if o.cache != nil {
		if entry, ok := o.cache.Get(cacheKey); ok {
			seg.Text = entry.Text
			seg.Timestamps = shiftTimestamps(entry.Timestamps, chunk.Start)
			seg.Provider = entry.Provider
			seg.Status = StatusOK
			seg.Cached = true
			o.finishChunk(ctx, job, seg, progress)
			return seg
		}
	}

	var stagedBytes int64
	attempts := 0

	targets := make([]resilience.Target[*ChunkResponse], len(chain))
	for i, t := range chain {
		t := t
		targets[i] = resilience.Target[*ChunkResponse]{
			Name: t.Name(),
			Call: func(ctx context.Context) (*ChunkResponse, error) {
				return o.transcribeUnit(ctx, job, chunk, t, stage, &stagedBytes)
			},
		}
	}

	policy := resilience.Policy{
		Limiter: limiter,
		Retry:   o.cfg.Retry,
		Observer: func(a resilience.Attempt) {
			attempts++
			outcome := "ok"
			if a.Err != nil {
				outcome = string(errors.CodeOf(a.Err))
			}
			if o.metrics != nil {
				o.metrics.RecordAttempt(ctx, a.Target, outcome, a.Latency)
			}
			o.log.Debug("attempt finished", logger.Fields(
				logger.FieldJobID, job.ID,
				logger.FieldChunk, chunk.Index,
				logger.FieldProvider, a.Target,
				"attempt", a.Number,
				"outcome", outcome,
				logger.FieldDuration, a.Latency,
			))
		},
	}

	res, err := resilience.Execute(ctx, policy, targets)
	seg.Attempts = attempts
	seg.BytesStaged = stagedBytes

	switch {
	case err == nil:
		seg.Text = res.Value.Text
		seg.Timestamps = shiftTimestamps(res.Value.Timestamps, chunk.Start)
		seg.Provider = res.Target
		if res.Index == 0 {
			seg.Status = StatusOK
		} else {
			seg.Status = StatusDegraded
		}
		if o.cache != nil && seg.Status == StatusOK {
			o.cache.Put(cacheKey, CacheEntry{
				Provider:   seg.Provider,
				Text:       res.Value.Text,
				Timestamps: res.Value.Timestamps,
			})
		}
	case ctx.Err() != nil:
		seg.Status = StatusCancelled
		seg.Error = "job cancelled"
	default:
		seg.Status = StatusFailed
		seg.Error = err.Error()
	}

	o.finishChunk(ctx, job, seg, progress)
	return seg
}

// transcribeUnit is one attempt of the stage+transcribe unit of work,
// bounded by the unit deadline. Staging failures and deadline overruns
// surface as retryable errors charged against the current provider.
func (o *Orchestrator) transcribeUnit(ctx context.Context, job Job, chunk *audio.Chunk, t Transcriber, stage *staging.Store, stagedBytes *int64) (*ChunkResponse, error) {
	timeout := job.UnitTimeout
	if timeout <= 0 {
		timeout = o.cfg.UnitTimeout
	}
	uctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := ChunkRequest{
		Index:    chunk.Index,
		Format:   chunk.Format,
		Start:    chunk.Start,
		End:      chunk.End,
		Language: job.Language,
		Model:    job.Model,
	}

	if t.RequiresStaging() {
		if stage == nil {
			return nil, errors.InvalidConfig("provider requires staging but no staging store is configured: " + t.Name())
		}
		var buf bytes.Buffer
		if err := audio.WriteWAV(&buf, req.Format, chunk.Data); err != nil {
			return nil, errors.Internal("encode chunk for staging", err)
		}
		obj, err := stage.Put(uctx, buf.Bytes())
		if err != nil {
			return nil, o.unitErr(ctx, uctx, t.Name(), chunk.Index, err)
		}
		url, err := stage.URL(uctx, obj)
		if err != nil {
			return nil, o.unitErr(ctx, uctx, t.Name(), chunk.Index, err)
		}
		*stagedBytes = obj.Size
		req.StagedURL = url
	} else {
		req.Data = chunk.Data
	}

	resp, err := t.Transcribe(uctx, req)
	if err != nil {
		return nil, o.unitErr(ctx, uctx, t.Name(), chunk.Index, err)
	}
	return resp, nil
}

// unitErr maps a unit-deadline overrun to a retryable timeout. Parent
// context errors pass through untouched so cancellation is never
// retried.
func (o *Orchestrator) unitErr(parent, unit context.Context, provider string, index int, err error) error {
	if unit.Err() == context.DeadlineExceeded && parent.Err() == nil {
		return errors.Timeout(fmt.Sprintf("%s: chunk %d", provider, index)).WithCause(err)
	}
	return err
}

func (o *Orchestrator) cancelledSegment(ctx context.Context, job Job, chunk *audio.Chunk, progress ProgressFunc) TranscriptSegment {
	seg := TranscriptSegment{
		Index:         chunk.Index,
		Start:         chunk.Start,
		End:           chunk.End,
		BytesOriginal: int64(len(chunk.Data)),
		Status:        StatusCancelled,
		Error:         "job cancelled before dispatch",
	}
	o.finishChunk(ctx, job, seg, progress)
	return seg
}

// finishChunk reports a chunk reaching its terminal status.
func (o *Orchestrator) finishChunk(ctx context.Context, job Job, seg TranscriptSegment, progress ProgressFunc) {
	if o.metrics != nil {
		o.metrics.RecordChunk(ctx, seg.Provider, string(seg.Status))
	}
	if progress != nil {
		progress(ProgressEvent{
			JobID:      job.ID,
			ChunkIndex: seg.Index,
			Status:     seg.Status,
			Provider:   seg.Provider,
		})
	}
}

func (o *Orchestrator) persist(job Job, result TranscriptionResult) error {
	if job.Output == "" {
		return nil
	}
	return WriteResult(job.Output, job.OutputFormat, result)
}

func (o *Orchestrator) recordJob(ctx context.Context, state State, started time.Time) {
	if o.metrics != nil {
		o.metrics.RecordJob(ctx, string(state), time.Since(started))
	}
}

// shiftTimestamps rebases chunk-relative timings onto the source
// timeline.
func shiftTimestamps(ts []Timestamp, offset time.Duration) []Timestamp {
	if len(ts) == 0 {
		return nil
	}
	out := make([]Timestamp, len(ts))
	for i, t := range ts {
		out[i] = Timestamp{Start: t.Start + offset, End: t.End + offset, Token: t.Token}
	}
	return out
}
