package oracle

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	derrors "github.com/dygy/drumorb/internal/errors"
	"github.com/dygy/drumorb/internal/hits"
)

func newTestClient(url string) *Client {
	return NewClient(url, "test-key", "drum-transients-v1", 5*time.Second)
}

func TestAnalyzeSuccess(t *testing.T) {
	audio := []byte("fake-audio-bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/analyze" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("auth header = %q", auth)
		}

		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "drum-transients-v1" || req.MimeType != "audio/wav" {
			t.Errorf("request = %+v", req)
		}
		decoded, err := base64.StdEncoding.DecodeString(req.AudioBase64)
		if err != nil || string(decoded) != string(audio) {
			t.Errorf("audio payload mismatch: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"time":1.0,"type":"kick","velocity":0.5},{"time":2.0,"type":"snare","velocity":0.9}]`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Analyze(context.Background(), audio, "audio/wav")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got) != 2 || got[0].Type != hits.Kick || got[1].Velocity != 0.9 {
		t.Errorf("hits = %v", got)
	}
}

func TestAnalyzeWrappedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hits":[{"time":0.25,"type":"hihat","velocity":0.3}]}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Analyze(context.Background(), []byte("x"), "audio/mpeg")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got) != 1 || got[0].Type != hits.HiHat {
		t.Errorf("hits = %v", got)
	}
}

func TestAnalyzeDropsUnknownTypes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"time":0.5,"type":"kick","velocity":0.5},{"time":1.0,"type":"tom","velocity":0.5}]`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Analyze(context.Background(), []byte("x"), "audio/wav")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got) != 1 || got[0].Type != hits.Kick {
		t.Errorf("hits = %v, want only the kick", got)
	}
}

func TestAnalyzeAuthFailureIsConfigError(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad key", status)
		}))

		_, err := newTestClient(srv.URL).Analyze(context.Background(), []byte("x"), "audio/wav")
		if !errors.Is(err, derrors.ErrModelConfig) {
			t.Errorf("status %d: err = %v, want ErrModelConfig", status, err)
		}
		srv.Close()
	}
}

func TestAnalyzeServerErrorIsAnalysisError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Analyze(context.Background(), []byte("x"), "audio/wav")

	var ae *derrors.AnalysisError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *AnalysisError", err)
	}
	if ae.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", ae.Status)
	}
	if errors.Is(err, derrors.ErrModelConfig) {
		t.Error("server error must not look like a config error")
	}
}

func TestAnalyzeBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Analyze(context.Background(), []byte("x"), "audio/wav")
	var ae *derrors.AnalysisError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *AnalysisError", err)
	}
	if ae.Stage != "decode" {
		t.Errorf("Stage = %q, want decode", ae.Stage)
	}
}

func TestAnalyzeCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(srv.URL).Analyze(ctx, []byte("x"), "audio/wav")
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if !c.Available(context.Background()) {
		t.Error("Available = false for healthy server")
	}

	srv.Close()
	if c.Available(context.Background()) {
		t.Error("Available = true for closed server")
	}
}
