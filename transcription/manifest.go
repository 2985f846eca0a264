package transcription

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// ManifestSuffix is appended to the transcript path to name the sibling
// metadata file.
const ManifestSuffix = ".manifest.json"

// ManifestBuilder assembles ordered segments into the final result. It
// is a pure function of its input: segments are copied, never mutated,
// and identical segment data yields identical text and statistics.
type ManifestBuilder struct {
	// Separator joins segment texts in index order. Defaults to "\n".
	Separator string
}

// Build materializes the transcription result from terminal segments.
// Ordering is always by chunk index, regardless of the order segments
// arrive in.
func (b ManifestBuilder) Build(jobID, provider string, state State, sourceDuration time.Duration, segments []TranscriptSegment) TranscriptionResult {
	sep := b.Separator
	if sep == "" {
		sep = "\n"
	}

	ordered := make([]TranscriptSegment, len(segments))
	copy(ordered, segments)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	var texts []string
	chunks := make([]ChunkManifest, len(ordered))
	var ratioSum float64
	var staged int

	for i, seg := range ordered {
		if seg.Text != "" {
			texts = append(texts, seg.Text)
		}

		cm := ChunkManifest{
			Index:         seg.Index,
			Start:         seg.Start,
			End:           seg.End,
			Provider:      seg.Provider,
			Status:        seg.Status,
			Cached:        seg.Cached,
			Error:         seg.Error,
			BytesOriginal: seg.BytesOriginal,
			BytesStaged:   seg.BytesStaged,
		}
		if seg.BytesStaged > 0 && seg.BytesOriginal > 0 {
			cm.Compression = float64(seg.BytesStaged) / float64(seg.BytesOriginal)
			ratioSum += cm.Compression
			staged++
		}
		chunks[i] = cm
	}

	text := strings.Join(texts, sep)

	manifest := Manifest{
		JobID:          jobID,
		Provider:       provider,
		State:          state,
		SourceDuration: sourceDuration,
		ChunkCount:     len(ordered),
		TextLength:     len(text),
		Chunks:         chunks,
		CreatedAt:      time.Now().UTC(),
	}
	if staged > 0 {
		manifest.Compression = ratioSum / float64(staged)
	}

	return TranscriptionResult{Text: text, Segments: ordered, Manifest: manifest}
}

// WriteResult persists the transcript and its manifest. The manifest is
// written even when the transcript rendering or write fails, so a
// degraded or failed run always leaves its metadata behind.
func WriteResult(path, format string, result TranscriptionResult) error {
	rendered, renderErr := Render(format, result)
	var writeErr error
	if renderErr == nil {
		writeErr = os.WriteFile(path, []byte(rendered), 0o644)
	}

	data, err := json.MarshalIndent(result.Manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("transcription: encode manifest: %w", err)
	}
	if err := os.WriteFile(path+ManifestSuffix, data, 0o644); err != nil {
		return fmt.Errorf("transcription: write manifest: %w", err)
	}

	if renderErr != nil {
		return renderErr
	}
	if writeErr != nil {
		return fmt.Errorf("transcription: write transcript: %w", writeErr)
	}
	return nil
}

// Render produces the transcript in the requested output format.
func Render(format string, result TranscriptionResult) (string, error) {
	switch format {
	case "", "text":
		return result.Text, nil
	case "srt":
		return renderSRT(result.Segments), nil
	case "vtt":
		return renderVTT(result.Segments), nil
	default:
		return "", fmt.Errorf("transcription: unknown output format %q", format)
	}
}

// renderSRT emits one cue per transcribed chunk, using the chunk's
// absolute offsets on the source timeline.
func renderSRT(segments []TranscriptSegment) string {
	var sb strings.Builder
	cue := 1
	for _, seg := range segments {
		if seg.Text == "" {
			continue
		}
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n",
			cue, srtTime(seg.Start), srtTime(seg.End), seg.Text)
		cue++
	}
	return sb.String()
}

func renderVTT(segments []TranscriptSegment) string {
	var sb strings.Builder
	sb.WriteString("WEBVTT\n\n")
	for _, seg := range segments {
		if seg.Text == "" {
			continue
		}
		fmt.Fprintf(&sb, "%s --> %s\n%s\n\n",
			vttTime(seg.Start), vttTime(seg.End), seg.Text)
	}
	return sb.String()
}

func srtTime(d time.Duration) string {
	return clockTime(d, ",")
}

func vttTime(d time.Duration) string {
	return clockTime(d, ".")
}

func clockTime(d time.Duration, msSep string) string {
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	ms := (d % time.Second) / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", h, m, s, msSep, ms)
}
