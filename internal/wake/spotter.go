// Package wake provides keyword spotting over PCM frames
package wake

import (
	"log/slog"
	"time"

	"github.com/razor-assistant/ears/internal/audio"
)

// Event reports a detected wake word.
type Event struct {
	Keyword    string
	Confidence float32
	Timestamp  time.Time
}

// Spotter consumes one frame and optionally reports a wake event. A nil
// event means no wake. Implementations must never abort the pipeline.
type Spotter interface {
	Process(frame audio.Frame) *Event
	Enabled() bool
}

// Engine is the underlying keyword-spotting model. Score returns the
// confidence for the configured keyword on one frame; any error means the
// frame could not be classified.
type Engine interface {
	Score(frame audio.Frame) (float32, error)
}

// EngineSpotter wraps a keyword engine. Frames the engine rejects - by error
// or by panic on malformed input - are skipped and processing continues; the
// engine is never restarted over a single bad frame.
type EngineSpotter struct {
	engine    Engine
	keyword   string
	threshold float32
}

// NewEngineSpotter creates an engine-backed spotter firing when the engine's
// score for keyword meets threshold.
func NewEngineSpotter(engine Engine, keyword string, threshold float32) *EngineSpotter {
	return &EngineSpotter{engine: engine, keyword: keyword, threshold: threshold}
}

// Enabled reports that wake-word detection is active.
func (s *EngineSpotter) Enabled() bool { return true }

// Process scores one frame. Engine failures degrade to "no wake".
func (s *EngineSpotter) Process(frame audio.Frame) (evt *Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("keyword engine panicked on frame, skipping", "panic", r)
			evt = nil
		}
	}()

	score, err := s.engine.Score(frame)
	if err != nil {
		slog.Debug("keyword engine error, skipping frame", "error", err)
		return nil
	}
	if score < s.threshold {
		return nil
	}
	return &Event{Keyword: s.keyword, Confidence: score, Timestamp: time.Now()}
}

// Disabled is the monitor-only spotter used when no engine is configured.
// It never wakes; everything downstream of wake detection still runs.
type Disabled struct{}

// NewDisabled creates a spotter that always reports no wake.
func NewDisabled() Disabled { return Disabled{} }

// Enabled reports that wake-word detection is unavailable.
func (Disabled) Enabled() bool { return false }

// Process always returns no event.
func (Disabled) Process(audio.Frame) *Event { return nil }
