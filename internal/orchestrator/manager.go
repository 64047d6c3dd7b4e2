// Package orchestrator wires the capture pipeline together: microphone,
// utterance segmentation, transcription, and the playback feedback guard.
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	audiocap "github.com/razor-assistant/ears/internal/audio"
	"github.com/razor-assistant/ears/internal/config"
	"github.com/razor-assistant/ears/internal/inference"
	"github.com/razor-assistant/ears/internal/listener"
	"github.com/razor-assistant/ears/internal/metrics"
	"github.com/razor-assistant/ears/internal/orchestrator/transcript"
	"github.com/razor-assistant/ears/internal/session"
	"github.com/razor-assistant/ears/internal/trace"
	"github.com/razor-assistant/ears/internal/wake"
)

// TranscriptEvent re-exported for the API layer.
type TranscriptEvent = transcript.Event

// Event is a pipeline state change pushed to subscribers.
type Event struct {
	Type    string  `json:"type"` // "wake", "barge_in", "guard_blocked", "guard_released"
	Keyword string  `json:"keyword,omitempty"`
	Score   float32 `json:"score,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

// Transcriber converts finished WAV utterances to text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (*inference.Transcript, error)
}

// AudioSource is a restartable stream of PCM chunks. Satisfied by
// audio.Capturer; faked in tests.
type AudioSource interface {
	Start(ctx context.Context) error
	Output() <-chan audiocap.Chunk
	Done() <-chan error
	Stop()
}

// Manager coordinates all pipeline components.
type Manager struct {
	cfg       *config.Config
	stt       Transcriber
	guard     *listener.Guard
	listener  *listener.Listener
	sessions  *session.Manager
	newSource func() (AudioSource, error)

	transcripts *transcript.Store
	events      chan Event

	mu      sync.Mutex
	stopCh  chan struct{}
	stopped bool
	wg      sync.WaitGroup
}

// New creates a manager. spotter may be wake.Disabled{} to run without a
// keyword engine.
func New(cfg *config.Config, stt Transcriber, spotter wake.Spotter) *Manager {
	m := &Manager{
		cfg:         cfg,
		stt:         stt,
		guard:       listener.NewGuard(cfg.Listener.SettleDelay()),
		transcripts: transcript.NewStore(TranscriptHistory, TranscriptBuffer),
		events:      make(chan Event, EventBuffer),
		stopCh:      make(chan struct{}),
	}

	m.listener = listener.New(spotter, m.guard, listener.Config{
		SampleRate:         cfg.Audio.SampleRate,
		FrameSamples:       cfg.Audio.FrameSamples,
		SilenceThreshold:   cfg.Listener.SilenceThreshold,
		SilenceDuration:    cfg.Listener.SilenceDuration(),
		MaxUtterance:       cfg.Listener.MaxUtterance(),
		WakeGuard:          cfg.Listener.WakeGuard(),
		InterruptThreshold: cfg.Listener.InterruptThreshold,
		InterruptDebounce:  cfg.Listener.InterruptDebounce,
		MinUtterance:       cfg.Listener.MinUtterance(),
	}, m.handleUtterance, listener.Hooks{
		OnWake: func(evt wake.Event) {
			m.emit(Event{Type: "wake", Keyword: evt.Keyword, Score: evt.Confidence})
		},
		OnBargeIn: func() {
			m.emit(Event{Type: "barge_in"})
		},
	})

	m.newSource = func() (AudioSource, error) {
		return audiocap.NewCapturer(cfg.Audio.SampleRate, cfg.Audio.FrameSamples, cfg.Audio.ExcludedDevices)
	}

	m.sessions = session.NewManager(
		session.NewWAVRecorder(cfg.Audio.SampleRate, cfg.Audio.FrameSamples, cfg.Audio.ExcludedDevices),
		m.guard,
		session.Config{Dir: cfg.Session.Dir, MinBytes: cfg.Session.MinBytes},
	)

	return m
}

// Start launches the supervised capture loop.
func (m *Manager) Start(ctx context.Context) error {
	m.wg.Add(1)
	go m.superviseCapture(ctx)
	return nil
}

// superviseCapture keeps a capture source alive: a dead stream restarts
// immediately, a source that will not start backs off exponentially. The
// listener is reset on every restart so a half-captured utterance from a
// dead device never leaks into the next one.
func (m *Manager) superviseCapture(ctx context.Context) {
	defer m.wg.Done()

	log := trace.Logger(ctx)
	delay := RestartBaseDelay

	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		default:
		}

		if attempt > 0 {
			metrics.CaptureRestarts.Inc()
			m.listener.Reset()
		}

		src, err := m.newSource()
		if err == nil {
			if err = src.Start(ctx); err != nil {
				src.Stop()
			}
		}
		if err != nil {
			log.Error("audio capture start failed", "error", err, "retry_in", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			}
			delay = min(delay*2, RestartMaxDelay)
			continue
		}

		log.Info("audio capture running")
		delay = RestartBaseDelay
		err = m.pump(ctx, src)
		src.Stop()
		switch {
		case m.stopping(ctx):
			return
		case err != nil:
			log.Error("audio stream died, restarting", "error", err)
		default:
			// Clean stream end without a shutdown request: give the
			// device a beat before reopening it.
			log.Warn("audio stream ended, restarting", "retry_in", RestartBaseDelay)
			select {
			case <-time.After(RestartBaseDelay):
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			}
		}
	}
}

func (m *Manager) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-m.stopCh:
		return true
	default:
		return false
	}
}

// pump feeds chunks into the listener until the source dies or we stop.
func (m *Manager) pump(ctx context.Context, src AudioSource) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.stopCh:
			return nil
		case err := <-src.Done():
			return err
		case chunk := <-src.Output():
			m.listener.ProcessChunk(ctx, chunk.Data)
		}
	}
}

// handleUtterance transcribes one finished utterance and publishes it.
func (m *Manager) handleUtterance(ctx context.Context, wav []byte, duration time.Duration) {
	ctx, span := trace.StartSpan(ctx, "handle_utterance")
	defer span.End()
	span.SetAttr("bytes", len(wav))
	span.SetAttr("duration", duration.String())

	log := trace.Logger(ctx)
	tr, err := m.stt.Transcribe(ctx, wav)
	if err != nil {
		span.SetAttr("error", err.Error())
		log.Error("transcription error", "error", err)
		return
	}

	text := strings.TrimSpace(tr.Text)
	if text == "" {
		return
	}

	log.Info("transcribed", "text", text, "confidence", tr.Confidence)
	m.transcripts.Add(text, "wake", tr.Confidence)
	m.transcripts.Emit(TranscriptEvent{Text: text, Confidence: tr.Confidence, Source: "wake"})
}

func (m *Manager) emit(evt Event) {
	select {
	case m.events <- evt:
	default:
	}
}

// Events returns the channel for pipeline events.
func (m *Manager) Events() <-chan Event { return m.events }

// TranscriptEvents returns the channel for transcript events.
func (m *Manager) TranscriptEvents() <-chan TranscriptEvent {
	return m.transcripts.Events()
}

// GetRecentTranscript returns transcripts from the last N seconds.
func (m *Manager) GetRecentTranscript(seconds int) string {
	return m.transcripts.GetRecent(seconds)
}

// Block raises the feedback guard for the duration of assistant playback.
func (m *Manager) Block(reason string) {
	m.guard.Block(reason)
	metrics.GuardBlocked.Set(1)
	m.emit(Event{Type: "guard_blocked", Reason: reason})
}

// Unblock schedules the guard release after the settle delay.
func (m *Manager) Unblock() {
	m.guard.Unblock()
	metrics.GuardBlocked.Set(0)
	m.emit(Event{Type: "guard_released"})
}

// GuardBlocked reports the guard state.
func (m *Manager) GuardBlocked() bool { return m.guard.Blocked() }

// Mode returns the listener mode as a string.
func (m *Manager) Mode() string { return m.listener.Mode().String() }

// WakeEnabled reports whether a keyword engine is configured.
func (m *Manager) WakeEnabled() bool { return m.listener.WakeEnabled() }

// Sessions exposes the push-to-talk manager.
func (m *Manager) Sessions() *session.Manager { return m.sessions }

// Stop shuts the pipeline down and waits for the supervisor to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.stopped {
		m.stopped = true
		close(m.stopCh)
	}
	m.mu.Unlock()
	m.wg.Wait()
	m.listener.Reset()
}
