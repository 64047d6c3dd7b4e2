package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeWAVHeader(t *testing.T) {
	pcm := make([]byte, 32000) // 1s of 16kHz mono 16-bit
	data, err := EncodeWAV(pcm, 16000, 1, 16)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	if len(data) != 44+len(pcm) {
		t.Fatalf("total size = %d, want %d", len(data), 44+len(pcm))
	}
	if string(data[0:4]) != "RIFF" {
		t.Error("missing RIFF chunk id")
	}
	if got := binary.LittleEndian.Uint32(data[4:8]); got != uint32(36+len(pcm)) {
		t.Errorf("riff size = %d, want %d", got, 36+len(pcm))
	}
	if string(data[8:12]) != "WAVE" {
		t.Error("missing WAVE format")
	}
	if string(data[12:16]) != "fmt " {
		t.Error("missing fmt chunk")
	}
	if got := binary.LittleEndian.Uint32(data[16:20]); got != 16 {
		t.Errorf("fmt size = %d, want 16", got)
	}
	if got := binary.LittleEndian.Uint16(data[20:22]); got != 1 {
		t.Errorf("audio format = %d, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint32(data[28:32]); got != 32000 {
		t.Errorf("byte rate = %d, want 32000", got)
	}
	if got := binary.LittleEndian.Uint16(data[32:34]); got != 2 {
		t.Errorf("block align = %d, want 2", got)
	}
	if string(data[36:40]) != "data" {
		t.Error("missing data chunk")
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", got, len(pcm))
	}
}

func TestWAVRoundTrip(t *testing.T) {
	pcm := make([]byte, 1000)
	for i := range pcm {
		pcm[i] = byte(i * 7)
	}

	data, err := EncodeWAV(pcm, 16000, 1, 16)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	decoded, info, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if !bytes.Equal(decoded, pcm) {
		t.Error("decoded PCM differs from original")
	}
	if info.SampleRate != 16000 || info.Channels != 1 || info.BitsPerSample != 16 {
		t.Errorf("info = %+v", info)
	}
	if info.DataSize != len(pcm) {
		t.Errorf("data size = %d, want %d", info.DataSize, len(pcm))
	}
}

func TestWAVStereoRates(t *testing.T) {
	pcm := make([]byte, 4800)
	data, err := EncodeWAV(pcm, 48000, 2, 16)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	if got := binary.LittleEndian.Uint32(data[28:32]); got != 48000*2*16/8 {
		t.Errorf("byte rate = %d, want %d", got, 48000*2*16/8)
	}
	if got := binary.LittleEndian.Uint16(data[32:34]); got != 4 {
		t.Errorf("block align = %d, want 4", got)
	}
}

func TestEncodeWAVEmptyPayload(t *testing.T) {
	// Zero samples is still a valid container
	data, err := EncodeWAV(nil, 16000, 1, 16)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if len(data) != 44 {
		t.Errorf("size = %d, want 44", len(data))
	}
}

func TestEncodeWAVInvalidParams(t *testing.T) {
	if _, err := EncodeWAV(nil, 0, 1, 16); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if _, err := EncodeWAV(nil, 16000, 0, 16); err == nil {
		t.Error("expected error for zero channels")
	}
	if _, err := EncodeWAV(nil, 16000, 1, 12); err == nil {
		t.Error("expected error for non-byte-aligned bit depth")
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("short")); err == nil {
		t.Error("expected error for short data")
	}

	good, _ := EncodeWAV(make([]byte, 10), 16000, 1, 16)
	bad := append([]byte(nil), good...)
	copy(bad[0:4], "JUNK")
	if _, _, err := DecodeWAV(bad); err == nil {
		t.Error("expected error for bad chunk id")
	}
}

func TestWAVInfoDuration(t *testing.T) {
	info := WAVInfo{SampleRate: 16000, Channels: 1, BitsPerSample: 16, DataSize: 32000}
	if got := info.Duration(); got != 1.0 {
		t.Errorf("duration = %f, want 1.0", got)
	}
}
