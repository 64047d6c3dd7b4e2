package wake

import (
	"errors"
	"testing"

	"github.com/razor-assistant/ears/internal/audio"
)

type fakeEngine struct {
	score    float32
	err      error
	doPanic  bool
	calls    int
}

func (f *fakeEngine) Score(_ audio.Frame) (float32, error) {
	f.calls++
	if f.doPanic {
		panic("malformed frame")
	}
	return f.score, f.err
}

func TestEngineSpotterDetects(t *testing.T) {
	eng := &fakeEngine{score: 0.9}
	s := NewEngineSpotter(eng, "razor", 0.5)

	evt := s.Process(make(audio.Frame, 512))
	if evt == nil {
		t.Fatal("expected wake event")
	}
	if evt.Keyword != "razor" {
		t.Errorf("keyword = %q, want %q", evt.Keyword, "razor")
	}
	if evt.Confidence != 0.9 {
		t.Errorf("confidence = %f, want 0.9", evt.Confidence)
	}
	if evt.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestEngineSpotterBelowThreshold(t *testing.T) {
	s := NewEngineSpotter(&fakeEngine{score: 0.3}, "razor", 0.5)
	if evt := s.Process(make(audio.Frame, 512)); evt != nil {
		t.Error("expected no event below threshold")
	}
}

func TestEngineSpotterSkipsOnError(t *testing.T) {
	eng := &fakeEngine{err: errors.New("bad frame")}
	s := NewEngineSpotter(eng, "razor", 0.5)

	if evt := s.Process(make(audio.Frame, 512)); evt != nil {
		t.Error("engine error should yield no event")
	}

	// Engine keeps being used on subsequent frames
	eng.err = nil
	eng.score = 0.8
	if evt := s.Process(make(audio.Frame, 512)); evt == nil {
		t.Error("spotter should recover on the next frame")
	}
	if eng.calls != 2 {
		t.Errorf("engine calls = %d, want 2", eng.calls)
	}
}

func TestEngineSpotterSkipsOnPanic(t *testing.T) {
	eng := &fakeEngine{doPanic: true}
	s := NewEngineSpotter(eng, "razor", 0.5)

	if evt := s.Process(make(audio.Frame, 512)); evt != nil {
		t.Error("engine panic should yield no event")
	}

	eng.doPanic = false
	eng.score = 1.0
	if evt := s.Process(make(audio.Frame, 512)); evt == nil {
		t.Error("spotter should keep working after a panic")
	}
}

func TestDisabledSpotter(t *testing.T) {
	s := NewDisabled()
	if s.Enabled() {
		t.Error("disabled spotter should report not enabled")
	}
	for i := 0; i < 100; i++ {
		if evt := s.Process(make(audio.Frame, 512)); evt != nil {
			t.Fatal("disabled spotter must never wake")
		}
	}
}
