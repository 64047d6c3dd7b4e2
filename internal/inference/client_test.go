package inference

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/razor-assistant/ears/internal/audio"
	"github.com/razor-assistant/ears/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: url, Keyword: "razor"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	c.retry = fastRetry()
	return c
}

func TestTranscribe(t *testing.T) {
	wav := []byte("RIFF fake wav payload")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/transcribe" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		got, _ := io.ReadAll(f)
		if string(got) != string(wav) {
			t.Errorf("uploaded %d bytes, want %d", len(got), len(wav))
		}
		json.NewEncoder(w).Encode(Transcript{Text: "turn off the lights", Confidence: 0.93})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	tr, err := c.Transcribe(context.Background(), wav)
	if err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}
	if tr.Text != "turn off the lights" {
		t.Errorf("Text = %q, want %q", tr.Text, "turn off the lights")
	}
	if tr.Confidence != 0.93 {
		t.Errorf("Confidence = %v, want 0.93", tr.Confidence)
	}
}

func TestTranscribeLanguageField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		if lang := r.FormValue("language"); lang != "en" {
			t.Errorf("language = %q, want en", lang)
		}
		json.NewEncoder(w).Encode(Transcript{Text: "ok"})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Language: "en"})
	if err != nil {
		t.Fatal(err)
	}
	c.retry = fastRetry()
	if _, err := c.Transcribe(context.Background(), []byte("x")); err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}
}

func TestTranscribeRetriesTransientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(Transcript{Text: "finally"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	tr, err := c.Transcribe(context.Background(), []byte("x"))
	if err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}
	if tr.Text != "finally" {
		t.Errorf("Text = %q, want finally", tr.Text)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestTranscribeDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "unsupported codec", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Transcribe(context.Background(), []byte("x"))
	if err == nil {
		t.Fatal("Transcribe() = nil error, want failure")
	}
	var se *resilience.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Errorf("error = %v, want 400 StatusError", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestTranscribeBreakerFailsFast(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	// FastConfig opens after 3 failures.
	for i := 0; i < 3; i++ {
		c.Transcribe(context.Background(), []byte("x"))
	}
	before := calls

	_, err := c.Transcribe(context.Background(), []byte("x"))
	if !errors.Is(err, resilience.ErrOpen) {
		t.Errorf("error = %v, want ErrOpen", err)
	}
	if calls != before {
		t.Errorf("server saw %d extra calls through an open breaker", calls-before)
	}
}

func TestScore(t *testing.T) {
	frame := make(audio.Frame, audio.DefaultFrameSamples)
	frame[0] = -1
	frame[1] = 256

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/keyword/score" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if kw := r.URL.Query().Get("keyword"); kw != "razor" {
			t.Errorf("keyword = %q, want razor", kw)
		}
		body, _ := io.ReadAll(r.Body)
		if len(body) != audio.DefaultFrameSamples*audio.BytesPerSample {
			t.Errorf("body = %d bytes, want %d", len(body), audio.DefaultFrameSamples*audio.BytesPerSample)
		}
		// -1 little-endian
		if body[0] != 0xFF || body[1] != 0xFF {
			t.Errorf("sample 0 = % X, want FF FF", body[:2])
		}
		json.NewEncoder(w).Encode(map[string]float32{"score": 0.88})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	score, err := c.Score(frame)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if score != 0.88 {
		t.Errorf("score = %v, want 0.88", score)
	}
}

func TestScoreServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.Score(make(audio.Frame, 4)); err == nil {
		t.Error("Score() = nil error, want failure")
	}
}

func TestHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if !c.Healthy(context.Background()) {
		t.Error("Healthy() = false, want true")
	}

	srv.Close()
	if c.Healthy(context.Background()) {
		t.Error("Healthy() = true after server shutdown")
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil || !strings.Contains(err.Error(), "base URL") {
		t.Errorf("New(empty) error = %v, want base URL error", err)
	}
}
