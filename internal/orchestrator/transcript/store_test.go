package transcript

import (
	"strings"
	"testing"
	"time"
)

func TestStoreAdd(t *testing.T) {
	s := NewStore(30, 10)
	s.Add("turn on the lights", "wake", 0.91)

	entries := s.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Text != "turn on the lights" || entries[0].Source != "wake" || entries[0].Confidence != 0.91 {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestStoreMaxSize(t *testing.T) {
	s := NewStore(5, 10)
	for i := 0; i < 10; i++ {
		s.Add("msg", "wake", 1)
	}

	if len(s.Entries()) != 5 {
		t.Errorf("expected 5 entries, got %d", len(s.Entries()))
	}
}

func TestGetRecent(t *testing.T) {
	s := NewStore(30, 10)
	s.Add("recent words", "wake", 1)

	// Manually add an old entry
	s.mu.Lock()
	s.entries = append([]Entry{{
		Timestamp: time.Now().Add(-5 * time.Minute),
		Text:      "old words",
		Source:    "ptt",
	}}, s.entries...)
	s.mu.Unlock()

	recent := s.GetRecent(60)
	if strings.Contains(recent, "old words") {
		t.Error("should not contain old transcript")
	}
	if !strings.Contains(recent, "recent words") {
		t.Error("should contain recent transcript")
	}
}

func TestEmit(t *testing.T) {
	s := NewStore(30, 10)
	go s.Emit(Event{Text: "test", Source: "wake"})

	select {
	case e := <-s.Events():
		if e.Text != "test" {
			t.Errorf("expected 'test', got %q", e.Text)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event")
	}
}

func TestEmitNonBlocking(t *testing.T) {
	s := NewStore(30, 1) // Small buffer

	// Fill the buffer
	s.Emit(Event{Text: "1", Source: "wake"})

	// This should not block
	done := make(chan struct{})
	go func() {
		s.Emit(Event{Text: "2", Source: "wake"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Error("Emit blocked when channel was full")
	}
}
