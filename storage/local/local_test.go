package local

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

func TestStorage_UploadDownloadRoundtrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	data := []byte("pcm audio bytes")
	if err := s.Upload(ctx, "chunks/abc123", bytes.NewReader(data)); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	rc, err := s.Download(ctx, "chunks/abc123")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("downloaded %q, want %q", got, data)
	}
}

func TestStorage_ExistsAndDelete(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := s.Upload(ctx, "chunks/x", strings.NewReader("data")); err != nil {
		t.Fatal(err)
	}

	ok, err := s.Exists(ctx, "chunks/x")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v; want true, nil", ok, err)
	}

	if err := s.Delete(ctx, "chunks/x"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ok, _ = s.Exists(ctx, "chunks/x")
	if ok {
		t.Error("object should be gone after delete")
	}

	// Deleting a missing object is not an error.
	if err := s.Delete(ctx, "chunks/x"); err != nil {
		t.Errorf("Delete of missing object: %v", err)
	}
}

func TestStorage_ListByPrefix(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for _, p := range []string{"jobs/a/chunk-0", "jobs/a/chunk-1", "jobs/b/chunk-0"} {
		if err := s.Upload(ctx, p, strings.NewReader("x")); err != nil {
			t.Fatal(err)
		}
	}

	files, err := s.List(ctx, "jobs/a/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2: %+v", len(files), files)
	}
	if files[0].Path > files[1].Path {
		t.Error("expected sorted output")
	}
}

func TestStorage_URLIsFileScheme(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	u, err := s.URL(context.Background(), "chunks/abc")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(u, "file://") {
		t.Errorf("URL = %q, want file:// scheme", u)
	}
}
