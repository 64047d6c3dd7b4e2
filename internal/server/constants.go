// Package server provides the HTTP and WebSocket control surface
package server

import "time"

// Server configuration constants
const (
	// Per-connection inbound message rate limiting
	RateLimitMessages = 20
	RateLimitWindow   = time.Second

	// Default window for GET /api/transcript
	DefaultTranscriptSeconds = 120

	// Graceful shutdown deadline
	ShutdownTimeout = 5 * time.Second
)
