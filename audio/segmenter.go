package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
)

// analysisFrame is the granularity of silence detection.
const analysisFrame = 20 * time.Millisecond

// SegmenterConfig bounds chunk size and tunes silence detection.
type SegmenterConfig struct {
	// MaxChunkDuration is the hard time ceiling per chunk.
	MaxChunkDuration time.Duration `mapstructure:"max_chunk_duration"`
	// MaxChunkBytes is the hard byte ceiling per chunk. Zero means the
	// duration ceiling alone applies.
	MaxChunkBytes int `mapstructure:"max_chunk_bytes"`
	// SilenceGap is the minimum silence run that qualifies as a cut
	// point. Cutting inside a shorter pause risks splitting mid-word.
	SilenceGap time.Duration `mapstructure:"silence_gap"`
	// SilenceThreshold is the RMS amplitude ratio (0..1) below which a
	// frame counts as silent.
	SilenceThreshold float64 `mapstructure:"silence_threshold"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *SegmenterConfig) ApplyDefaults() {
	if c.MaxChunkDuration <= 0 {
		c.MaxChunkDuration = 60 * time.Second
	}
	if c.SilenceGap <= 0 {
		c.SilenceGap = time.Second
	}
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = 0.01
	}
}

// Chunk is one ordered, time-bounded slice of the source.
type Chunk struct {
	// Index is the 0-based position that defines final ordering.
	Index int
	// Start and End are offsets in the source timeline. A chunk's End
	// equals the next chunk's Start: no gaps, no overlaps.
	Start time.Duration
	End   time.Duration
	// Data is the raw PCM payload, in Format.
	Data []byte
	// Format describes the PCM in Data.
	Format Format
}

// Duration returns the chunk's play time.
func (c *Chunk) Duration() time.Duration { return c.End - c.Start }

// Segmenter produces a lazy, restartable sequence of chunks covering
// the whole source. Cuts prefer the silence boundary closest below the
// ceiling; silence-free audio is force-cut at the ceiling so chunking
// terminates regardless of content.
type Segmenter struct {
	dec     Decoder
	cfg     SegmenterConfig
	ceiling time.Duration

	cursor time.Duration
	index  int
}

// NewSegmenter creates a segmenter over the given decoder.
func NewSegmenter(dec Decoder, cfg SegmenterConfig) (*Segmenter, error) {
	cfg.ApplyDefaults()
	if err := dec.Format().Validate(); err != nil {
		return nil, err
	}

	ceiling := cfg.MaxChunkDuration
	if cfg.MaxChunkBytes > 0 {
		byteCeiling := dec.Format().DurationOf(cfg.MaxChunkBytes)
		if byteCeiling < ceiling {
			ceiling = byteCeiling
		}
	}
	if ceiling < analysisFrame {
		return nil, fmt.Errorf("audio: chunk ceiling %v is below one analysis frame", ceiling)
	}

	return &Segmenter{dec: dec, cfg: cfg, ceiling: ceiling}, nil
}

// Next returns the next chunk, or io.EOF after the source is covered.
// A zero-length source yields io.EOF immediately.
func (s *Segmenter) Next() (*Chunk, error) {
	total := s.dec.Duration()
	if s.cursor >= total {
		return nil, io.EOF
	}

	cut := total
	if s.cursor+s.ceiling < total {
		window, err := s.dec.ReadRange(s.cursor, s.cursor+s.ceiling)
		if err != nil {
			return nil, err
		}
		cut = s.cursor + s.findCut(window)
	}

	data, err := s.dec.ReadRange(s.cursor, cut)
	if err != nil {
		return nil, err
	}

	chunk := &Chunk{
		Index:  s.index,
		Start:  s.cursor,
		End:    cut,
		Data:   data,
		Format: s.dec.Format(),
	}
	s.cursor = cut
	s.index++
	return chunk, nil
}

// Reset restarts the sequence from the beginning of the source.
func (s *Segmenter) Reset() {
	s.cursor = 0
	s.index = 0
}

// findCut scans window for silence runs of at least SilenceGap and
// returns the cut offset relative to the window start: the midpoint of
// the qualifying run closest to the window end, or the full window
// length when no silence qualifies (hard cut at the ceiling).
func (s *Segmenter) findCut(window []byte) time.Duration {
	format := s.dec.Format()
	frameBytes := format.BytesFor(analysisFrame)
	if frameBytes == 0 {
		return format.DurationOf(len(window))
	}

	frames := len(window) / frameBytes
	cut := time.Duration(0)

	runStart := -1
	for i := 0; i <= frames; i++ {
		silent := false
		if i < frames {
			silent = rms(window[i*frameBytes:(i+1)*frameBytes]) < s.cfg.SilenceThreshold
		}

		switch {
		case silent && runStart < 0:
			runStart = i
		case !silent && runStart >= 0:
			runLen := time.Duration(i-runStart) * analysisFrame
			if runLen >= s.cfg.SilenceGap {
				mid := time.Duration(runStart)*analysisFrame + runLen/2
				if mid > cut {
					cut = mid
				}
			}
			runStart = -1
		}
	}

	if cut == 0 {
		return format.DurationOf(len(window))
	}
	// Align to a whole frame so chunk boundaries stay sample-accurate.
	return format.DurationOf(format.BytesFor(cut))
}

// rms computes the root-mean-square amplitude of 16-bit PCM samples,
// normalized to 0..1.
func rms(samples []byte) float64 {
	n := len(samples) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(samples[2*i:])))
		sum += v * v
	}
	return math.Sqrt(sum/float64(n)) / 32768.0
}
