package audio

import (
	"encoding/base64"
	"math"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	samples := []float64{0, 0.5, -0.5, 0.25, -0.999, 0.999, 1.0, -1.0}

	frame := EncodeFrame(samples)
	if frame.MimeType != "audio/pcm;rate=16000" {
		t.Fatalf("mime type = %q", frame.MimeType)
	}

	raw, err := DecodeFrame(frame.Data)
	if err != nil {
		t.Fatalf("DecodeFrame error: %v", err)
	}
	got := ReconstructPlayable(raw, 16000, 1)
	if got.FrameCount() != len(samples) {
		t.Fatalf("frame count = %d, want %d", got.FrameCount(), len(samples))
	}

	for i, want := range samples {
		if diff := math.Abs(got.Channels[0][i] - want); diff > 1.0/32768.0 {
			t.Errorf("sample %d: got %.6f, want %.6f (diff %.6f)", i, got.Channels[0][i], want, diff)
		}
	}
}

func TestEncodeFrameClampsOutOfRange(t *testing.T) {
	frame := EncodeFrame([]float64{2.0, -2.0})
	raw, err := DecodeFrame(frame.Data)
	if err != nil {
		t.Fatalf("DecodeFrame error: %v", err)
	}
	hi := int16(raw[0]) | int16(raw[1])<<8
	lo := int16(raw[2]) | int16(raw[3])<<8
	if hi != 32767 {
		t.Errorf("over-range sample = %d, want 32767", hi)
	}
	if lo != -32768 {
		t.Errorf("under-range sample = %d, want -32768", lo)
	}
}

func TestEncodePCMFrame(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	frame := EncodePCMFrame(pcm)
	if frame.Data != base64.StdEncoding.EncodeToString(pcm) {
		t.Fatalf("data = %q", frame.Data)
	}
}

func TestReconstructPlayableDeinterleavesStereo(t *testing.T) {
	// Two frames: (L=16384, R=-16384), (L=0, R=8192)
	raw := []byte{
		0x00, 0x40, 0x00, 0xC0,
		0x00, 0x00, 0x00, 0x20,
	}
	got := ReconstructPlayable(raw, 24000, 2)
	if got.FrameCount() != 2 {
		t.Fatalf("frame count = %d, want 2", got.FrameCount())
	}
	if math.Abs(got.Channels[0][0]-0.5) > 1e-9 || math.Abs(got.Channels[1][0]+0.5) > 1e-9 {
		t.Errorf("frame 0 = (%f, %f)", got.Channels[0][0], got.Channels[1][0])
	}
	if got.Channels[0][1] != 0 || math.Abs(got.Channels[1][1]-0.25) > 1e-9 {
		t.Errorf("frame 1 = (%f, %f)", got.Channels[0][1], got.Channels[1][1])
	}
}

func TestReconstructPlayableTruncatesRaggedTail(t *testing.T) {
	// 5 bytes mono: two whole samples plus a dangling byte.
	raw := []byte{0x00, 0x40, 0x00, 0x20, 0xFF}
	got := ReconstructPlayable(raw, 24000, 1)
	if got.FrameCount() != 2 {
		t.Fatalf("frame count = %d, want 2 (tail truncated)", got.FrameCount())
	}
}

func TestConfigMath(t *testing.T) {
	cfg := PlaybackConfig()
	if cfg.BytesPerSecond() != 48000 {
		t.Errorf("bytes/sec = %d, want 48000", cfg.BytesPerSecond())
	}
	if d := cfg.Duration(48000); d.Seconds() != 1.0 {
		t.Errorf("duration = %v, want 1s", d)
	}
	if n := cfg.BytesForDuration(500 * time.Millisecond); n != 24000 {
		t.Errorf("bytes for 500ms = %d, want 24000", n)
	}

	in := CaptureConfig()
	if in.SampleRate != 16000 || in.Channels != 1 {
		t.Errorf("capture config = %+v", in)
	}
}
