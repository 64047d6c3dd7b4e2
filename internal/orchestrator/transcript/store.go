// Package transcript buffers recent utterance transcripts and fans them
// out to subscribers.
package transcript

import (
	"strings"
	"sync"
	"time"
)

// Event is one finished transcription pushed to subscribers.
type Event struct {
	Text       string
	Confidence float32
	Source     string // "wake", "barge_in", "ptt"
}

// Entry is a stored transcript.
type Entry struct {
	Timestamp  time.Time
	Text       string
	Confidence float32
	Source     string
}

// Store keeps a bounded in-memory history of transcripts plus a
// non-blocking event channel. The history lets the control API answer
// "what was just said" without a round trip to the dialogue engine.
type Store struct {
	mu       sync.RWMutex
	entries  []Entry
	maxSize  int
	eventsCh chan Event
}

// NewStore creates a store holding at most maxEntries transcripts.
func NewStore(maxEntries, eventBuffer int) *Store {
	return &Store{
		entries:  make([]Entry, 0, maxEntries),
		maxSize:  maxEntries,
		eventsCh: make(chan Event, eventBuffer),
	}
}

// Add stores a transcript entry, evicting the oldest past capacity.
func (s *Store) Add(text, source string, confidence float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, Entry{
		Timestamp:  time.Now(),
		Text:       text,
		Confidence: confidence,
		Source:     source,
	})
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}
}

// GetRecent returns the transcripts from the last N seconds, one per line.
func (s *Store) GetRecent(seconds int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-time.Duration(seconds) * time.Second)
	var parts []string
	for _, e := range s.entries {
		if !e.Timestamp.Before(cutoff) {
			parts = append(parts, e.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Events returns the channel for transcript events.
func (s *Store) Events() <-chan Event {
	return s.eventsCh
}

// Emit sends a transcript event, dropping it if no subscriber keeps up.
func (s *Store) Emit(event Event) {
	select {
	case s.eventsCh <- event:
	default:
	}
}

// Entries returns a copy of all stored entries.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Entry, len(s.entries))
	copy(result, s.entries)
	return result
}
