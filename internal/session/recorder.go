package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/razor-assistant/ears/internal/audio"
)

// WAVRecorder records the microphone to a WAV file. It opens its own
// portaudio stream, so it is only used while the continuous pipeline is
// down or as an explicit push-to-talk fallback.
type WAVRecorder struct {
	sampleRate   int
	frameSamples int
	excludedDevs []string

	mu       sync.Mutex
	capturer *audio.Capturer
	path     string
	stopCh   chan struct{}
	doneCh   chan struct{}
	pcm      []byte
}

// NewWAVRecorder creates a recorder at the given capture format.
func NewWAVRecorder(sampleRate, frameSamples int, excludedDevices []string) *WAVRecorder {
	return &WAVRecorder{
		sampleRate:   sampleRate,
		frameSamples: frameSamples,
		excludedDevs: excludedDevices,
	}
}

// Start opens the microphone and accumulates PCM until Stop or Cancel.
func (r *WAVRecorder) Start(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.capturer != nil {
		return errors.New("recorder already running")
	}

	cap, err := audio.NewCapturer(r.sampleRate, r.frameSamples, r.excludedDevs)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	if err := cap.Start(ctx); err != nil {
		cap.Stop()
		return fmt.Errorf("start capture: %w", err)
	}

	r.capturer = cap
	r.path = path
	r.pcm = r.pcm[:0]
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go r.accumulate(cap, r.stopCh, r.doneCh)
	return nil
}

func (r *WAVRecorder) accumulate(cap *audio.Capturer, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	for {
		select {
		case <-stopCh:
			return
		case chunk := <-cap.Output():
			r.mu.Lock()
			r.pcm = append(r.pcm, chunk.Data...)
			r.mu.Unlock()
		case err := <-cap.Done():
			if err != nil {
				// Stream died; keep what was captured
				return
			}
		}
	}
}

// Stop finalizes the WAV artifact at the path given to Start.
func (r *WAVRecorder) Stop(ctx context.Context) error {
	capturer, doneCh := r.teardown()
	if capturer == nil {
		return errors.New("recorder not running")
	}

	select {
	case <-doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.mu.Lock()
	pcm := r.pcm
	path := r.path
	r.pcm = nil
	r.mu.Unlock()

	wav, err := audio.EncodeWAV(pcm, r.sampleRate, 1, 16)
	if err != nil {
		return fmt.Errorf("encode recording: %w", err)
	}
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	return nil
}

// Cancel discards the recording without writing anything.
func (r *WAVRecorder) Cancel() {
	r.teardown()
	r.mu.Lock()
	r.pcm = nil
	r.mu.Unlock()
}

func (r *WAVRecorder) teardown() (*audio.Capturer, chan struct{}) {
	r.mu.Lock()
	capturer := r.capturer
	stopCh := r.stopCh
	doneCh := r.doneCh
	r.capturer = nil
	r.stopCh = nil
	r.doneCh = nil
	r.mu.Unlock()

	if capturer == nil {
		return nil, nil
	}
	close(stopCh)
	capturer.Stop()
	return capturer, doneCh
}
