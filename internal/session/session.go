// Package session implements discrete push-to-talk recording
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/razor-assistant/ears/internal/metrics"
)

// Session contract errors.
var (
	ErrBlocked  = errors.New("recording refused: playback holds the feedback guard")
	ErrActive   = errors.New("recording session already active")
	ErrInactive = errors.New("no recording session active")
)

// Defaults for the push-to-talk path.
const (
	DefaultMaxDuration = 60 * time.Second
	DefaultStopTimeout = 2 * time.Second
	DefaultMinBytes    = 16000 // ~0.5s of 16kHz mono 16-bit plus header
)

// Recorder is the external recording mechanism. Stop must respect the
// context deadline; the manager force-abandons a recorder that hangs.
type Recorder interface {
	Start(ctx context.Context, path string) error
	Stop(ctx context.Context) error
	Cancel()
}

// Blocker reports whether the feedback guard is held. Satisfied by
// listener.Guard.
type Blocker interface {
	Blocked() bool
}

// Config tunes the session manager.
type Config struct {
	Dir         string
	MaxDuration time.Duration
	StopTimeout time.Duration
	MinBytes    int64
}

func (c Config) withDefaults() Config {
	if c.Dir == "" {
		c.Dir = os.TempDir()
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.MinBytes <= 0 {
		c.MinBytes = DefaultMinBytes
	}
	return c
}

// Handle identifies one discrete recording.
type Handle struct {
	Path      string
	StartedAt time.Time
}

// Manager runs at most one push-to-talk recording at a time, honoring the
// feedback guard shared with the continuous pipeline.
type Manager struct {
	rec   Recorder
	guard Blocker
	cfg   Config

	mu       sync.Mutex
	active   *Handle
	maxTimer *time.Timer
}

// NewManager creates a session manager.
func NewManager(rec Recorder, guard Blocker, cfg Config) *Manager {
	return &Manager{rec: rec, guard: guard, cfg: cfg.withDefaults()}
}

// Start begins a recording. Refused while the guard is blocked or while
// another session is active.
func (m *Manager) Start(ctx context.Context) (*Handle, error) {
	if m.guard != nil && m.guard.Blocked() {
		metrics.SessionsRejected.WithLabelValues("blocked").Inc()
		slog.Info("recording refused, playback in progress")
		return nil, ErrBlocked
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		metrics.SessionsRejected.WithLabelValues("active").Inc()
		return nil, ErrActive
	}

	h := &Handle{
		Path:      filepath.Join(m.cfg.Dir, fmt.Sprintf("ptt_%d.wav", time.Now().UnixNano())),
		StartedAt: time.Now(),
	}
	if err := m.rec.Start(ctx, h.Path); err != nil {
		return nil, fmt.Errorf("recorder start: %w", err)
	}

	m.active = h
	// Runaway sessions are force-stopped
	m.maxTimer = time.AfterFunc(m.cfg.MaxDuration, func() {
		slog.Warn("recording hit max duration, forcing stop")
		_, _ = m.Stop(context.Background())
	})

	metrics.SessionsStarted.Inc()
	slog.Info("recording started", "path", h.Path)
	return h, nil
}

// Stop finalizes the recording and validates the artifact. An effectively
// empty capture yields an empty path with no error. Always resolves within
// the stop timeout even if the recorder hangs.
func (m *Manager) Stop(ctx context.Context) (string, error) {
	m.mu.Lock()
	h := m.active
	m.active = nil
	if m.maxTimer != nil {
		m.maxTimer.Stop()
		m.maxTimer = nil
	}
	m.mu.Unlock()

	if h == nil {
		return "", ErrInactive
	}

	stopCtx, cancel := context.WithTimeout(ctx, m.cfg.StopTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.rec.Stop(stopCtx) }()

	select {
	case err := <-done:
		if err != nil {
			slog.Warn("recorder stop error", "error", err)
		}
	case <-stopCtx.Done():
		slog.Warn("recorder stop timed out, abandoning", "path", h.Path)
		m.rec.Cancel()
	}

	info, err := os.Stat(h.Path)
	if err != nil || info.Size() < m.cfg.MinBytes {
		if err == nil {
			_ = os.Remove(h.Path)
		}
		slog.Info("recording below minimum size, discarded", "path", h.Path)
		return "", nil
	}

	slog.Info("recording stopped", "path", h.Path, "bytes", info.Size())
	return h.Path, nil
}

// Cancel destroys the session without validation.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	h := m.active
	m.active = nil
	if m.maxTimer != nil {
		m.maxTimer.Stop()
		m.maxTimer = nil
	}
	m.mu.Unlock()

	if h == nil {
		return ErrInactive
	}

	m.rec.Cancel()
	_ = os.Remove(h.Path)
	slog.Info("recording cancelled", "path", h.Path)
	return nil
}

// Active reports whether a session is in progress.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}
