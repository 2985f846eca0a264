// Package audio provides PCM decoding and silence-aligned segmentation
// of long audio sources into bounded chunks.
package audio

import (
	"fmt"
	"time"
)

// Format describes uncompressed PCM audio.
type Format struct {
	// SampleRate in Hz. 16 kHz is the usual rate for speech recognition.
	SampleRate int
	// Channels is the channel count; mono is expected by most ASR engines.
	Channels int
	// BitsPerSample is the sample bit depth, typically 16.
	BitsPerSample int
}

// DefaultFormat is 16 kHz mono 16-bit PCM, the common ASR input format.
var DefaultFormat = Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16}

// FrameSize returns the byte size of one sample frame across all channels.
func (f Format) FrameSize() int {
	return f.Channels * f.BitsPerSample / 8
}

// BytesPerSecond returns the PCM data rate.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.FrameSize()
}

// BytesFor returns the byte length of d, rounded down to a whole frame.
func (f Format) BytesFor(d time.Duration) int {
	n := int(float64(f.BytesPerSecond()) * d.Seconds())
	return n - n%f.FrameSize()
}

// DurationOf returns the play time of n bytes of PCM.
func (f Format) DurationOf(n int) time.Duration {
	return time.Duration(float64(n) / float64(f.BytesPerSecond()) * float64(time.Second))
}

// Validate checks the format is usable for segmentation.
func (f Format) Validate() error {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return fmt.Errorf("audio: invalid format %+v", f)
	}
	if f.BitsPerSample != 16 {
		return fmt.Errorf("audio: only 16-bit PCM is supported (got %d bits)", f.BitsPerSample)
	}
	return nil
}

// Decoder exposes random access into a decoded PCM source, so the
// segmenter can cut at arbitrary offsets without holding the whole
// source in memory.
type Decoder interface {
	// Format returns the PCM format of the source.
	Format() Format
	// Duration returns the total play time of the source.
	Duration() time.Duration
	// ReadRange returns the PCM bytes covering [start, end) of the
	// source timeline. end is clamped to the source duration.
	ReadRange(start, end time.Duration) ([]byte, error)
	// Close releases the underlying source.
	Close() error
}

// Buffer is an in-memory Decoder over raw PCM bytes.
type Buffer struct {
	format Format
	data   []byte
}

// NewBuffer creates an in-memory decoder. The data length is truncated
// to a whole number of frames.
func NewBuffer(format Format, data []byte) (*Buffer, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	n := len(data) - len(data)%format.FrameSize()
	return &Buffer{format: format, data: data[:n]}, nil
}

// Format returns the PCM format.
func (b *Buffer) Format() Format { return b.format }

// Duration returns the total play time of the buffer.
func (b *Buffer) Duration() time.Duration {
	return b.format.DurationOf(len(b.data))
}

// ReadRange returns the bytes covering [start, end).
func (b *Buffer) ReadRange(start, end time.Duration) ([]byte, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("audio: invalid range [%v, %v)", start, end)
	}
	from := b.format.BytesFor(start)
	to := b.format.BytesFor(end)
	if from > len(b.data) {
		from = len(b.data)
	}
	if to > len(b.data) {
		to = len(b.data)
	}
	return b.data[from:to], nil
}

// Close is a no-op for in-memory buffers.
func (b *Buffer) Close() error { return nil }

// compile-time check
var _ Decoder = (*Buffer)(nil)
