package orchestrator

import "time"

const (
	// Capture supervision
	RestartBaseDelay = 1 * time.Second
	RestartMaxDelay  = 30 * time.Second

	// Event fan-out
	EventBuffer       = 32
	TranscriptBuffer  = 100
	TranscriptHistory = 30
)
