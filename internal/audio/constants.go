// Package audio handles microphone capture and PCM plumbing
package audio

// PCM format constants. The whole pipeline runs on 16-bit LE mono.
const (
	// Samples per frame - the atomic processing unit
	DefaultFrameSamples = 512

	// Canonical capture rate
	DefaultSampleRate = 16000

	// Bytes per 16-bit sample
	BytesPerSample = 2

	// Capture channel depth before chunks are dropped
	CaptureBufferSize = 100
)
