package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"
)

// WAVFile is a Decoder over a PCM WAV file on disk. Reads go through
// ReadAt on the data chunk, so long sources are never fully loaded.
type WAVFile struct {
	f          *os.File
	format     Format
	dataOffset int64
	dataSize   int64
}

// OpenWAV opens a WAV file and locates its PCM data chunk.
// Only uncompressed 16-bit PCM is supported.
func OpenWAV(path string) (*WAVFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open wav: %w", err)
	}

	w := &WAVFile{f: f}
	if err := w.parseHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *WAVFile) parseHeader() error {
	var riff [12]byte
	if _, err := io.ReadFull(w.f, riff[:]); err != nil {
		return fmt.Errorf("audio: read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return fmt.Errorf("audio: not a wav file")
	}

	offset := int64(12)
	var haveFmt bool
	for {
		var hdr [8]byte
		if _, err := w.f.ReadAt(hdr[:], offset); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("audio: read chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))

		switch id {
		case "fmt ":
			var body [16]byte
			if _, err := w.f.ReadAt(body[:], offset+8); err != nil {
				return fmt.Errorf("audio: read fmt chunk: %w", err)
			}
			audioFormat := binary.LittleEndian.Uint16(body[0:2])
			if audioFormat != 1 {
				return fmt.Errorf("audio: unsupported wav encoding %d (want PCM)", audioFormat)
			}
			w.format = Format{
				Channels:      int(binary.LittleEndian.Uint16(body[2:4])),
				SampleRate:    int(binary.LittleEndian.Uint32(body[4:8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(body[14:16])),
			}
			haveFmt = true
		case "data":
			w.dataOffset = offset + 8
			w.dataSize = size
		}

		// Chunks are word-aligned.
		offset += 8 + size + size%2
		if haveFmt && w.dataSize > 0 {
			break
		}
	}

	if !haveFmt || w.dataSize == 0 {
		return fmt.Errorf("audio: wav missing fmt or data chunk")
	}
	return w.format.Validate()
}

// Format returns the PCM format of the file.
func (w *WAVFile) Format() Format { return w.format }

// Duration returns the total play time of the file.
func (w *WAVFile) Duration() time.Duration {
	return w.format.DurationOf(int(w.dataSize))
}

// ReadRange returns the PCM bytes covering [start, end) of the timeline.
func (w *WAVFile) ReadRange(start, end time.Duration) ([]byte, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("audio: invalid range [%v, %v)", start, end)
	}
	from := int64(w.format.BytesFor(start))
	to := int64(w.format.BytesFor(end))
	if from > w.dataSize {
		from = w.dataSize
	}
	if to > w.dataSize {
		to = w.dataSize
	}
	if to == from {
		return nil, nil
	}

	buf := make([]byte, to-from)
	n, err := w.f.ReadAt(buf, w.dataOffset+from)
	if n == len(buf) {
		return buf, nil
	}
	// The header may declare more data than the file holds; a short read
	// must not pass off zero-filled samples as audio.
	if err == io.EOF || err == nil {
		return nil, fmt.Errorf("audio: wav data truncated: %d of %d declared bytes present",
			from+int64(n), w.dataSize)
	}
	return nil, fmt.Errorf("audio: read range: %w", err)
}

// Close closes the underlying file.
func (w *WAVFile) Close() error { return w.f.Close() }

// WriteWAV writes PCM data as a WAV file. Used to hand chunks to
// providers that expect a self-describing container.
func WriteWAV(wr io.Writer, format Format, data []byte) error {
	dataLen := uint32(len(data))

	var hdr [44]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], 36+dataLen)
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(format.Channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(format.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(format.BytesPerSecond()))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(format.FrameSize()))
	binary.LittleEndian.PutUint16(hdr[34:36], uint16(format.BitsPerSample))
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], dataLen)

	if _, err := wr.Write(hdr[:]); err != nil {
		return fmt.Errorf("audio: write wav header: %w", err)
	}
	if _, err := wr.Write(data); err != nil {
		return fmt.Errorf("audio: write wav data: %w", err)
	}
	return nil
}

// compile-time check
var _ Decoder = (*WAVFile)(nil)
