// Package listener runs the utterance capture state machine
package listener

import "time"

// Capture timing defaults.
const (
	// Post-wake guard: the wake word's own echo is discarded for this long
	DefaultWakeGuard = 300 * time.Millisecond

	// Unbroken silence that ends an utterance
	DefaultSilenceDuration = 2500 * time.Millisecond

	// Safety cutoff for a single utterance
	DefaultMaxUtterance = 60 * time.Second

	// Utterances shorter than this are discarded
	DefaultMinUtterance = 500 * time.Millisecond

	// Consecutive loud frames required to fire a barge-in
	DefaultInterruptDebounce = 3

	// Wait after playback ends before capture resumes
	DefaultSettleDelay = 300 * time.Millisecond
)
