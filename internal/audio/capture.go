package audio

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/razor-assistant/ears/internal/metrics"
)

// ErrNoInputDevice is returned when no usable microphone exists.
var ErrNoInputDevice = errors.New("no usable audio input device")

// Chunk is one delivery of raw little-endian 16-bit mono PCM. Size is
// whatever the device handed over; the frame assembler re-slices it.
type Chunk struct {
	Data      []byte
	DeviceID  string
	Timestamp int64
}

// Capturer reads the microphone and emits raw PCM byte chunks with
// backpressure. One device at a time; the supervisor restarts a dead stream.
type Capturer struct {
	outCh        chan Chunk
	doneCh       chan error
	sampleRate   int
	framesPerBuf int
	excludedDevs []string

	mu      sync.Mutex
	running bool
	stream  *portaudio.Stream
	cancel  context.CancelFunc
}

// NewCapturer initializes portaudio and creates a capturer.
func NewCapturer(sampleRate, frameSamples int, excludedDevices []string) (*Capturer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	if frameSamples <= 0 {
		frameSamples = DefaultFrameSamples
	}

	return &Capturer{
		outCh:        make(chan Chunk, CaptureBufferSize),
		doneCh:       make(chan error, 1),
		sampleRate:   sampleRate,
		framesPerBuf: frameSamples,
		excludedDevs: excludedDevices,
	}, nil
}

// Output returns the channel for receiving PCM chunks.
func (c *Capturer) Output() <-chan Chunk { return c.outCh }

// Done receives the stream error when capture ends, nil on a clean Stop.
func (c *Capturer) Done() <-chan error { return c.doneCh }

// Start opens the best available microphone and begins streaming.
func (c *Capturer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.mu.Unlock()

	dev, err := c.pickDevice()
	if err != nil {
		c.setStopped()
		return err
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(c.sampleRate),
		FramesPerBuffer: c.framesPerBuf,
	}

	buf := make([]int16, c.framesPerBuf)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		c.setStopped()
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		c.setStopped()
		return err
	}

	devCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.stream = stream
	c.cancel = cancel
	c.mu.Unlock()

	slog.Info("started audio capture", "device", dev.Name, "rate", c.sampleRate)

	go c.readLoop(devCtx, stream, buf, dev.Name)
	return nil
}

func (c *Capturer) readLoop(ctx context.Context, stream *portaudio.Stream, buf []int16, deviceID string) {
	for {
		select {
		case <-ctx.Done():
			c.finish(nil)
			return
		default:
		}

		if err := stream.Read(); err != nil {
			slog.Debug("audio read error", "device", deviceID, "error", err)
			c.finish(err)
			return
		}

		chunk := Chunk{
			Data:      int16ToBytes(buf),
			DeviceID:  deviceID,
			Timestamp: time.Now().UnixNano(),
		}

		select {
		case c.outCh <- chunk:
		default:
			metrics.ChunksDropped.Inc()
			slog.Debug("audio buffer full, dropping chunk", "device", deviceID)
		}
	}
}

func (c *Capturer) setStopped() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

func (c *Capturer) finish(err error) {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.running = false
	c.mu.Unlock()

	if stream != nil {
		_ = stream.Stop()
		_ = stream.Close()
	}

	select {
	case c.doneCh <- err:
	default:
	}
}

// pickDevice chooses the default input device, falling back to the first
// non-excluded device with input channels.
func (c *Capturer) pickDevice() (*portaudio.DeviceInfo, error) {
	if dev, err := portaudio.DefaultInputDevice(); err == nil && dev != nil &&
		dev.MaxInputChannels > 0 && !c.isExcluded(dev.Name) {
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 && !c.isExcluded(dev.Name) {
			return dev, nil
		}
	}
	return nil, ErrNoInputDevice
}

func (c *Capturer) isExcluded(name string) bool {
	for _, ex := range c.excludedDevs {
		if strings.Contains(strings.ToLower(name), strings.ToLower(ex)) {
			return true
		}
	}
	return false
}

// Stop ends capture and releases portaudio.
func (c *Capturer) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = portaudio.Terminate()
}

func int16ToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(uint16(s) >> 8)
	}
	return buf
}
