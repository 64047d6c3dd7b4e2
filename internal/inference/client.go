// Package inference talks to the speech inference service over HTTP.
// It covers the two calls the listener needs: scoring individual frames
// against the wake keyword and transcribing finished utterances.
package inference

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/razor-assistant/ears/internal/audio"
	"github.com/razor-assistant/ears/internal/metrics"
	"github.com/razor-assistant/ears/internal/resilience"
	"github.com/razor-assistant/ears/internal/trace"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultScoreTimeout = 100 * time.Millisecond // must keep up with 32ms frames
)

// Config holds inference service settings.
type Config struct {
	BaseURL      string
	Keyword      string
	Timeout      time.Duration
	ScoreTimeout time.Duration
	Language     string
}

// Transcript is the result of transcribing one utterance.
type Transcript struct {
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
	Language   string  `json:"language,omitempty"`
}

// Client wraps HTTP access to the inference service with retry and a
// circuit breaker on the transcription path. Frame scoring is never
// retried: a stale score is worthless by the time the retry lands.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
}

// New creates a client for the inference service at cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("inference base URL cannot be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ScoreTimeout <= 0 {
		cfg.ScoreTimeout = DefaultScoreTimeout
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breaker: resilience.New(resilience.FastConfig()),
		retry:   resilience.InferenceRetryConfig(),
	}, nil
}

// Transcribe sends a WAV-encoded utterance and returns its transcript.
func (c *Client) Transcribe(ctx context.Context, wav []byte) (*Transcript, error) {
	start := time.Now()

	var tr *Transcript
	err := resilience.Retry(ctx, c.retry, func() error {
		var err error
		tr, err = resilience.ExecuteWithResult(c.breaker, func() (*Transcript, error) {
			return c.doTranscribe(ctx, wav)
		})
		return err
	})

	elapsed := time.Since(start)
	metrics.TranscriptionDuration.Observe(elapsed.Seconds())
	if err != nil {
		metrics.TranscriptionRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	metrics.TranscriptionRequests.WithLabelValues("ok").Inc()
	slog.Debug("utterance transcribed", "bytes", len(wav), "elapsed", elapsed, "text_len", len(tr.Text))
	return tr, nil
}

func (c *Client) doTranscribe(ctx context.Context, wav []byte) (*Transcript, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fw, err := w.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	if c.cfg.Language != "" {
		if err := w.WriteField("language", c.cfg.Language); err != nil {
			return nil, fmt.Errorf("write field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/transcribe", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if tc, ok := trace.FromContext(ctx); ok {
		for k, v := range tc.ToMap() {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var tr Transcript
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &tr, nil
}

// Score rates one PCM frame against the configured wake keyword,
// returning a confidence in [0, 1]. It satisfies wake.Engine.
func (c *Client) Score(frame audio.Frame) (float32, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ScoreTimeout)
	defer cancel()

	pcm := make([]byte, len(frame)*audio.BytesPerSample)
	for i, s := range frame {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	scoreURL := c.cfg.BaseURL + "/v1/keyword/score?keyword=" + url.QueryEscape(c.cfg.Keyword)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, scoreURL, bytes.NewReader(pcm))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, &resilience.StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var out struct {
		Score float32 `json:"score"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("parse response: %w", err)
	}
	return out.Score, nil
}

// Healthy reports whether the inference service answers its health probe.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}
