package audio

import "testing"

func TestInt16ToBytes(t *testing.T) {
	samples := []int16{0, 1, -1, 256, 32767, -32768}
	buf := int16ToBytes(samples)

	if len(buf) != len(samples)*2 {
		t.Fatalf("byte length = %d, want %d", len(buf), len(samples)*2)
	}

	want := []byte{
		0x00, 0x00,
		0x01, 0x00,
		0xFF, 0xFF,
		0x00, 0x01,
		0xFF, 0x7F,
		0x00, 0x80,
	}
	for i := range want {
		if buf[i] != want[i] {
			t.Errorf("byte %d = %#x, want %#x", i, buf[i], want[i])
		}
	}
}

func TestInt16ToBytesAssemblerAgreement(t *testing.T) {
	// Capture encoding and assembler decoding must agree on byte order
	samples := []int16{-12345, 7, 30000, -2}
	a := NewAssembler(len(samples))

	frames := a.Push(int16ToBytes(samples))
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
	for i, s := range samples {
		if frames[0][i] != s {
			t.Errorf("sample %d = %d, want %d", i, frames[0][i], s)
		}
	}
}

func TestIsExcluded(t *testing.T) {
	c := &Capturer{excludedDevs: []string{"iPhone", "teams"}}

	if !c.isExcluded("My iPhone Microphone") {
		t.Error("iPhone device should be excluded")
	}
	if !c.isExcluded("Microsoft Teams Audio") {
		t.Error("teams device should be excluded")
	}
	if c.isExcluded("Built-in Microphone") {
		t.Error("built-in device should not be excluded")
	}
}
