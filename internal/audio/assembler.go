package audio

import "encoding/binary"

// Frame is a fixed-length block of 16-bit mono samples.
type Frame []int16

// Assembler reassembles arbitrary-sized byte deliveries into fixed-length
// frames. Leftover bytes are carried between deliveries, so no byte is ever
// lost or forwarded twice: bytes emitted as frames plus bytes held as residual
// always equals bytes pushed.
type Assembler struct {
	frameSamples int
	residual     []byte
}

// NewAssembler creates an assembler producing frames of frameSamples samples.
func NewAssembler(frameSamples int) *Assembler {
	if frameSamples <= 0 {
		frameSamples = DefaultFrameSamples
	}
	return &Assembler{
		frameSamples: frameSamples,
		residual:     make([]byte, 0, frameSamples*BytesPerSample),
	}
}

// Push appends data and returns every complete frame now available. Input may
// be empty or any length; partial frame bytes stay in the residual.
func (a *Assembler) Push(data []byte) []Frame {
	if len(data) == 0 && len(a.residual) < a.frameBytes() {
		return nil
	}

	buf := a.residual
	buf = append(buf, data...)

	frameBytes := a.frameBytes()
	var frames []Frame
	for len(buf) >= frameBytes {
		frames = append(frames, decodeFrame(buf[:frameBytes]))
		buf = buf[frameBytes:]
	}

	// Residual is always < one frame after draining
	a.residual = append(a.residual[:0], buf...)
	return frames
}

// ResidualLen reports the bytes currently held back.
func (a *Assembler) ResidualLen() int { return len(a.residual) }

// Reset discards the residual.
func (a *Assembler) Reset() { a.residual = a.residual[:0] }

func (a *Assembler) frameBytes() int { return a.frameSamples * BytesPerSample }

// decodeFrame reads little-endian int16 samples; sample N comes from bytes
// [2N, 2N+1].
func decodeFrame(b []byte) Frame {
	frame := make(Frame, len(b)/BytesPerSample)
	for i := range frame {
		frame[i] = int16(binary.LittleEndian.Uint16(b[i*BytesPerSample:]))
	}
	return frame
}

// EncodeFrames flattens frames back to little-endian PCM bytes.
func EncodeFrames(frames []Frame) []byte {
	n := 0
	for _, f := range frames {
		n += len(f) * BytesPerSample
	}
	buf := make([]byte, n)
	off := 0
	for _, f := range frames {
		for _, s := range f {
			binary.LittleEndian.PutUint16(buf[off:], uint16(s))
			off += BytesPerSample
		}
	}
	return buf
}
