package listener

import "github.com/razor-assistant/ears/internal/audio"

// InterruptMonitor detects the user talking over the assistant. It runs only
// while the guard blocks normal capture, with a higher energy bar than plain
// VAD so speaker bleed picked up by the microphone does not trigger it.
//
// Consecutive above-threshold frames accumulate in a bounded window; the
// window doubles as the seed for the utterance that follows a trigger, so the
// speech that caused the barge-in is not lost.
type InterruptMonitor struct {
	threshold float64
	debounce  int
	window    []audio.Frame
	count     int
}

// NewInterruptMonitor creates a monitor firing after debounce consecutive
// frames above threshold.
func NewInterruptMonitor(threshold float64, debounce int) *InterruptMonitor {
	if debounce <= 0 {
		debounce = DefaultInterruptDebounce
	}
	return &InterruptMonitor{
		threshold: threshold,
		debounce:  debounce,
		window:    make([]audio.Frame, 0, debounce),
	}
}

// Observe classifies one frame. When the debounce floor is reached it
// returns the accumulated frames and true; the monitor is reset and ready
// for the next blocked period. Any below-threshold frame resets the count.
func (m *InterruptMonitor) Observe(frame audio.Frame) ([]audio.Frame, bool) {
	if audio.RMS(frame) < m.threshold {
		m.Reset()
		return nil, false
	}

	m.window = append(m.window, frame)
	m.count++
	if m.count < m.debounce {
		return nil, false
	}

	seed := m.window
	m.window = make([]audio.Frame, 0, m.debounce)
	m.count = 0
	return seed, true
}

// Count returns the current consecutive above-threshold frame count.
func (m *InterruptMonitor) Count() int { return m.count }

// Reset clears the window and count.
func (m *InterruptMonitor) Reset() {
	m.window = m.window[:0]
	m.count = 0
}
