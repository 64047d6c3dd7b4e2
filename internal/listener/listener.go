package listener

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/razor-assistant/ears/internal/audio"
	"github.com/razor-assistant/ears/internal/metrics"
	"github.com/razor-assistant/ears/internal/wake"
)

// Mode is the listener's current behavior. Exactly one mode is active; mode
// transitions are the only place buffering behavior changes.
type Mode int32

const (
	// ModeWaitWake scans frames for the wake word
	ModeWaitWake Mode = iota
	// ModeWakeGuard discards the wake word's own echo
	ModeWakeGuard
	// ModeCapture buffers an utterance until end-of-speech
	ModeCapture
	// ModeInterrupt watches for barge-in while playback holds the guard
	ModeInterrupt
)

func (m Mode) String() string {
	switch m {
	case ModeWaitWake:
		return "waiting_for_wake"
	case ModeWakeGuard:
		return "post_wake_guard"
	case ModeCapture:
		return "capturing"
	case ModeInterrupt:
		return "interrupt_monitoring"
	default:
		return "unknown"
	}
}

// Config tunes the capture state machine. Zero values fall back to the
// package defaults.
type Config struct {
	SampleRate         int
	FrameSamples       int
	SilenceThreshold   float64
	SilenceDuration    time.Duration
	MaxUtterance       time.Duration
	WakeGuard          time.Duration
	InterruptThreshold float64
	InterruptDebounce  int
	MinUtterance       time.Duration
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = audio.DefaultSampleRate
	}
	if c.FrameSamples <= 0 {
		c.FrameSamples = audio.DefaultFrameSamples
	}
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = audio.DefaultSilenceThreshold
	}
	if c.SilenceDuration <= 0 {
		c.SilenceDuration = DefaultSilenceDuration
	}
	if c.MaxUtterance <= 0 {
		c.MaxUtterance = DefaultMaxUtterance
	}
	if c.WakeGuard <= 0 {
		c.WakeGuard = DefaultWakeGuard
	}
	if c.InterruptThreshold <= 0 {
		c.InterruptThreshold = audio.DefaultInterruptThreshold
	}
	if c.InterruptDebounce <= 0 {
		c.InterruptDebounce = DefaultInterruptDebounce
	}
	if c.MinUtterance <= 0 {
		c.MinUtterance = DefaultMinUtterance
	}
	return c
}

// UtteranceHandler receives a completed, WAV-encoded utterance.
type UtteranceHandler func(ctx context.Context, wav []byte, duration time.Duration)

// Hooks are optional event callbacks for logging/UI and the playback
// collaborator. They run on the processing goroutine and must not block.
type Hooks struct {
	OnWake    func(wake.Event)
	OnBargeIn func()
}

// Listener turns the incoming byte stream into bounded utterances. All state
// except the mode is owned by the single goroutine calling ProcessChunk;
// frames are handled strictly in order.
type Listener struct {
	cfg         Config
	spotter     wake.Spotter
	guard       *Guard
	asm         *audio.Assembler
	interrupt   *InterruptMonitor
	onUtterance UtteranceHandler
	hooks       Hooks
	now         func() time.Time

	mode atomic.Int32

	buffer        []audio.Frame
	captureStart  time.Time
	guardStart    time.Time
	silenceStart  time.Time // zero while speech is running
	silenceFrames int       // frames appended since silenceStart
}

// New creates a listener in ModeWaitWake.
func New(spotter wake.Spotter, guard *Guard, cfg Config, onUtterance UtteranceHandler, hooks Hooks) *Listener {
	l := &Listener{
		cfg:         cfg.withDefaults(),
		spotter:     spotter,
		guard:       guard,
		onUtterance: onUtterance,
		hooks:       hooks,
		now:         time.Now,
	}
	l.asm = audio.NewAssembler(l.cfg.FrameSamples)
	l.interrupt = NewInterruptMonitor(l.cfg.InterruptThreshold, l.cfg.InterruptDebounce)
	l.mode.Store(int32(ModeWaitWake))
	return l
}

// Mode returns the current mode. Safe from any goroutine.
func (l *Listener) Mode() Mode { return Mode(l.mode.Load()) }

func (l *Listener) setMode(m Mode) { l.mode.Store(int32(m)) }

// ProcessChunk feeds one raw PCM byte delivery through the pipeline.
// Must be called from a single goroutine.
func (l *Listener) ProcessChunk(ctx context.Context, data []byte) {
	for _, frame := range l.asm.Push(data) {
		l.processFrame(ctx, frame)
	}
}

func (l *Listener) processFrame(ctx context.Context, frame audio.Frame) {
	metrics.FramesProcessed.Inc()
	now := l.now()

	// Guard mutations land here, at the frame boundary, never mid-frame.
	blocked := l.guard.Blocked()
	mode := l.Mode()
	if blocked && mode != ModeInterrupt {
		l.cancelCapture(mode)
		l.interrupt.Reset()
		l.setMode(ModeInterrupt)
		mode = ModeInterrupt
	} else if !blocked && mode == ModeInterrupt {
		// Playback finished without a barge-in
		l.interrupt.Reset()
		l.setMode(ModeWaitWake)
		mode = ModeWaitWake
	}

	switch mode {
	case ModeWaitWake:
		if evt := l.spotter.Process(frame); evt != nil {
			metrics.WakeEvents.Inc()
			slog.Info("wake word detected", "keyword", evt.Keyword, "confidence", evt.Confidence)
			if l.hooks.OnWake != nil {
				l.hooks.OnWake(*evt)
			}
			l.guardStart = now
			l.setMode(ModeWakeGuard)
		}

	case ModeWakeGuard:
		// Frames here are the echo of the wake word: not buffered, not
		// VAD-checked.
		if now.Sub(l.guardStart) >= l.cfg.WakeGuard {
			l.beginCapture(now)
			l.captureFrame(ctx, frame, now)
		}

	case ModeCapture:
		l.captureFrame(ctx, frame, now)

	case ModeInterrupt:
		seed, fired := l.interrupt.Observe(frame)
		if fired {
			metrics.BargeInEvents.Inc()
			slog.Info("barge-in detected", "seed_frames", len(seed))
			l.guard.ForceRelease()
			if l.hooks.OnBargeIn != nil {
				l.hooks.OnBargeIn()
			}
			// The triggering speech seeds the new utterance; no wake word
			// was spoken, so the post-wake guard is skipped.
			l.beginCapture(now)
			l.buffer = append(l.buffer, seed...)
			l.setMode(ModeCapture)
		}
	}
}

func (l *Listener) beginCapture(now time.Time) {
	l.buffer = l.buffer[:0]
	l.captureStart = now
	l.silenceStart = time.Time{}
	l.silenceFrames = 0
	l.setMode(ModeCapture)
}

func (l *Listener) captureFrame(ctx context.Context, frame audio.Frame, now time.Time) {
	l.buffer = append(l.buffer, frame)

	if audio.IsSilence(frame, l.cfg.SilenceThreshold) {
		if l.silenceStart.IsZero() {
			l.silenceStart = now
		}
		l.silenceFrames++
		if now.Sub(l.silenceStart) >= l.cfg.SilenceDuration {
			l.endUtterance(ctx)
			return
		}
	} else {
		l.silenceStart = time.Time{}
		l.silenceFrames = 0
	}

	if now.Sub(l.captureStart) >= l.cfg.MaxUtterance {
		slog.Warn("utterance hit max duration, forcing end")
		l.endUtterance(ctx)
	}
}

// endUtterance trims the trailing silence run, rejects too-short audio, and
// otherwise emits the WAV-encoded buffer.
func (l *Listener) endUtterance(ctx context.Context) {
	frames := l.buffer
	if l.silenceFrames > 0 && l.silenceFrames <= len(frames) {
		frames = frames[:len(frames)-l.silenceFrames]
	}

	defer func() {
		l.buffer = l.buffer[:0]
		l.silenceStart = time.Time{}
		l.silenceFrames = 0
		l.setMode(ModeWaitWake)
	}()

	duration := l.framesDuration(len(frames))
	if duration < l.cfg.MinUtterance {
		metrics.UtterancesDiscarded.WithLabelValues("too_short").Inc()
		slog.Debug("discarding short utterance", "duration", duration)
		return
	}

	pcm := audio.EncodeFrames(frames)
	wav, err := audio.EncodeWAV(pcm, l.cfg.SampleRate, 1, 16)
	if err != nil {
		metrics.UtterancesDiscarded.WithLabelValues("encode").Inc()
		slog.Error("failed to encode utterance", "error", err)
		return
	}

	metrics.UtterancesEmitted.Inc()
	metrics.UtteranceDuration.Observe(duration.Seconds())
	slog.Info("utterance captured", "duration", duration, "bytes", len(wav))
	l.onUtterance(ctx, wav, duration)
}

// cancelCapture discards any in-flight buffer: once playback blocks us, the
// buffered audio is known to be speaker output, not user speech.
func (l *Listener) cancelCapture(mode Mode) {
	if mode == ModeCapture && len(l.buffer) > 0 {
		metrics.UtterancesDiscarded.WithLabelValues("blocked").Inc()
		slog.Debug("capture cancelled by playback block", "frames", len(l.buffer))
	}
	l.buffer = l.buffer[:0]
	l.silenceStart = time.Time{}
	l.silenceFrames = 0
}

// Reset restores the initial state. Used when the audio source restarts.
func (l *Listener) Reset() {
	l.asm.Reset()
	l.interrupt.Reset()
	l.buffer = l.buffer[:0]
	l.silenceStart = time.Time{}
	l.silenceFrames = 0
	l.setMode(ModeWaitWake)
}

// WakeEnabled reports whether a keyword engine is configured.
func (l *Listener) WakeEnabled() bool { return l.spotter.Enabled() }

func (l *Listener) framesDuration(n int) time.Duration {
	samples := n * l.cfg.FrameSamples
	return time.Duration(samples) * time.Second / time.Duration(l.cfg.SampleRate)
}
