package transcription

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleSegments() []TranscriptSegment {
	// Deliberately out of index order, as chunks complete under
	// concurrency.
	return []TranscriptSegment{
		{Index: 2, Start: 120 * time.Second, End: 150 * time.Second, Text: "third",
			Provider: "whisper", Status: StatusOK, BytesOriginal: 1000},
		{Index: 0, Start: 0, End: 58 * time.Second, Text: "first",
			Provider: "whisper", Status: StatusOK, BytesOriginal: 1000, BytesStaged: 250},
		{Index: 1, Start: 58 * time.Second, End: 120 * time.Second, Text: "second",
			Provider: "backup", Status: StatusDegraded, BytesOriginal: 1000, BytesStaged: 750},
	}
}

func TestBuild_OrdersByIndex(t *testing.T) {
	b := ManifestBuilder{}
	result := b.Build("job-1", "whisper", StateDone, 150*time.Second, sampleSegments())

	if result.Text != "first\nsecond\nthird" {
		t.Errorf("text = %q", result.Text)
	}
	for i, seg := range result.Segments {
		if seg.Index != i {
			t.Errorf("segment %d has index %d", i, seg.Index)
		}
	}
	for i, c := range result.Manifest.Chunks {
		if c.Index != i {
			t.Errorf("manifest row %d has index %d", i, c.Index)
		}
	}
}

func TestBuild_CustomSeparator(t *testing.T) {
	b := ManifestBuilder{Separator: " "}
	result := b.Build("job-1", "whisper", StateDone, 150*time.Second, sampleSegments())
	if result.Text != "first second third" {
		t.Errorf("text = %q", result.Text)
	}
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	segments := sampleSegments()
	ManifestBuilder{}.Build("job-1", "whisper", StateDone, 150*time.Second, segments)
	if segments[0].Index != 2 {
		t.Error("input slice was reordered")
	}
}

func TestBuild_CompressionStats(t *testing.T) {
	b := ManifestBuilder{}
	result := b.Build("job-1", "whisper", StateDone, 150*time.Second, sampleSegments())
	m := result.Manifest

	// Chunk 0 staged at 0.25, chunk 1 at 0.75, chunk 2 never staged.
	if got := m.Chunks[0].Compression; math.Abs(got-0.25) > 1e-9 {
		t.Errorf("chunk 0 compression = %f, want 0.25", got)
	}
	if m.Chunks[2].Compression != 0 {
		t.Errorf("unstaged chunk has compression %f", m.Chunks[2].Compression)
	}
	if math.Abs(m.Compression-0.5) > 1e-9 {
		t.Errorf("job compression = %f, want 0.5 (average over staged chunks)", m.Compression)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	b := ManifestBuilder{}
	a := b.Build("job-1", "whisper", StateDone, 150*time.Second, sampleSegments())
	c := b.Build("job-1", "whisper", StateDone, 150*time.Second, sampleSegments())

	if a.Text != c.Text {
		t.Error("text differs between identical builds")
	}
	aj, _ := json.Marshal(a.Manifest.Chunks)
	cj, _ := json.Marshal(c.Manifest.Chunks)
	if string(aj) != string(cj) {
		t.Error("chunk table differs between identical builds")
	}
}

func TestBuild_AggregateFields(t *testing.T) {
	b := ManifestBuilder{}
	result := b.Build("job-1", "whisper", StateDone, 150*time.Second, sampleSegments())
	m := result.Manifest

	if m.ChunkCount != 3 {
		t.Errorf("chunk count = %d, want 3", m.ChunkCount)
	}
	if m.SourceDuration != 150*time.Second {
		t.Errorf("source duration = %v", m.SourceDuration)
	}
	if m.TextLength != len(result.Text) {
		t.Errorf("text length = %d, want %d", m.TextLength, len(result.Text))
	}
	if m.Provider != "whisper" || m.JobID != "job-1" {
		t.Errorf("identity fields wrong: %+v", m)
	}
}

func TestRenderSRT(t *testing.T) {
	segments := []TranscriptSegment{
		{Index: 0, Start: 0, End: 58 * time.Second, Text: "first", Status: StatusOK},
		{Index: 1, Start: 58 * time.Second, End: 61 * time.Second, Status: StatusFailed},
		{Index: 2, Start: 61 * time.Second, End: 90 * time.Second, Text: "third", Status: StatusOK},
	}
	out, err := Render("srt", TranscriptionResult{Segments: segments})
	if err != nil {
		t.Fatal(err)
	}

	want := "1\n00:00:00,000 --> 00:00:58,000\nfirst\n\n" +
		"2\n00:01:01,000 --> 00:01:30,000\nthird\n\n"
	if out != want {
		t.Errorf("srt output:\n%q\nwant:\n%q", out, want)
	}
}

func TestRenderVTT(t *testing.T) {
	segments := []TranscriptSegment{
		{Index: 0, Start: 1500 * time.Millisecond, End: 4 * time.Second, Text: "hello", Status: StatusOK},
	}
	out, err := Render("vtt", TranscriptionResult{Segments: segments})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "WEBVTT\n\n") {
		t.Error("missing WEBVTT header")
	}
	if !strings.Contains(out, "00:00:01.500 --> 00:00:04.000\nhello") {
		t.Errorf("vtt output:\n%q", out)
	}
}

func TestRender_UnknownFormat(t *testing.T) {
	if _, err := Render("docx", TranscriptionResult{}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteResult_EmitsManifestSibling(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	b := ManifestBuilder{}
	result := b.Build("job-1", "whisper", StateDone, 150*time.Second, sampleSegments())

	if err := WriteResult(path, "text", result); err != nil {
		t.Fatalf("WriteResult: %v", err)
	}

	text, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("transcript missing: %v", err)
	}
	if string(text) != result.Text {
		t.Errorf("transcript = %q", string(text))
	}

	raw, err := os.ReadFile(path + ManifestSuffix)
	if err != nil {
		t.Fatalf("manifest sibling missing: %v", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("manifest not valid JSON: %v", err)
	}
	if m.ChunkCount != 3 {
		t.Errorf("manifest chunk count = %d, want 3", m.ChunkCount)
	}
}

func TestWriteResult_ManifestWrittenOnRenderFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	result := ManifestBuilder{}.Build("job-1", "whisper", StateDone, time.Second, nil)
	if err := WriteResult(path, "docx", result); err == nil {
		t.Fatal("expected render error")
	}

	if _, err := os.Stat(path + ManifestSuffix); err != nil {
		t.Errorf("manifest must be written even when the transcript is not: %v", err)
	}
}
