package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newTestAPI(t *testing.T) (*gin.Engine, *Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m, hub, reg := newTestManager(t, &fakeTranscriber{name: "fake"})

	engine := gin.New()
	NewHandlers(m, hub, reg).Register(engine)
	return engine, m
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestSubmitEndpoint(t *testing.T) {
	engine, m := newTestAPI(t)

	w := doJSON(t, engine, http.MethodPost, "/jobs", SubmitRequest{
		Source:          writeSource(t, 4*time.Second),
		Provider:        "fake",
		MaxChunkSeconds: 2,
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID == "" {
		t.Fatal("no job id returned")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := m.Await(ctx, resp.ID); err != nil {
		t.Fatal(err)
	}

	status := doJSON(t, engine, http.MethodGet, "/jobs/"+resp.ID, nil)
	if status.Code != http.StatusOK {
		t.Fatalf("status endpoint = %d", status.Code)
	}
	var js JobStatus
	if err := json.Unmarshal(status.Body.Bytes(), &js); err != nil {
		t.Fatal(err)
	}
	if js.State != "done" {
		t.Errorf("state = %s, want done", js.State)
	}
}

func TestSubmitEndpoint_BadRequests(t *testing.T) {
	engine, _ := newTestAPI(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing provider", SubmitRequest{Source: "/tmp/a.wav"}},
		{"missing source", SubmitRequest{Provider: "fake"}},
		{"unreadable source", SubmitRequest{Source: "/nonexistent/a.wav", Provider: "fake"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, engine, http.MethodPost, "/jobs", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", w.Code, w.Body.String())
			}
		})
	}
}

func TestGetUnknownJobIs404(t *testing.T) {
	engine, _ := newTestAPI(t)
	w := doJSON(t, engine, http.MethodGet, "/jobs/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestCancelEndpoint(t *testing.T) {
	engine, m := newTestAPI(t)

	w := doJSON(t, engine, http.MethodPost, "/jobs", SubmitRequest{
		Source:          writeSource(t, 4*time.Second),
		Provider:        "fake",
		MaxChunkSeconds: 2,
	})
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	if del := doJSON(t, engine, http.MethodDelete, "/jobs/"+resp.ID, nil); del.Code != http.StatusNoContent {
		t.Errorf("cancel status = %d, want 204", del.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := m.Await(ctx, resp.ID); err != nil {
		t.Fatal(err)
	}
}

func TestProvidersEndpoint(t *testing.T) {
	engine, _ := newTestAPI(t)

	w := doJSON(t, engine, http.MethodGet, "/providers", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Providers []string `json:"providers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Providers) != 1 || resp.Providers[0] != "fake" {
		t.Errorf("providers = %v", resp.Providers)
	}
}

func TestListEndpoint(t *testing.T) {
	engine, m := newTestAPI(t)

	for i := 0; i < 2; i++ {
		w := doJSON(t, engine, http.MethodPost, "/jobs", SubmitRequest{
			Source:   writeSource(t, time.Second),
			Provider: "fake",
		})
		if w.Code != http.StatusAccepted {
			t.Fatalf("submit %d: %d", i, w.Code)
		}
	}

	for _, js := range m.List() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := m.Await(ctx, js.ID); err != nil {
			cancel()
			t.Fatal(err)
		}
		cancel()
	}

	w := doJSON(t, engine, http.MethodGet, "/jobs", nil)
	var resp struct {
		Jobs []JobStatus `json:"jobs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Jobs) != 2 {
		t.Errorf("jobs = %d, want 2", len(resp.Jobs))
	}
}
