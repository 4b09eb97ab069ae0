package audio

import (
	"encoding/base64"
	"math"
)

// MimeTypeCapture tags outbound frames: raw PCM, 16 kHz, mono.
const MimeTypeCapture = "audio/pcm;rate=16000"

// Frame is one outbound audio chunk in wire form.
type Frame struct {
	// Data is base64-encoded signed 16-bit little-endian PCM.
	Data string `json:"data"`
	// MimeType is the fixed format identifier for the capture rate.
	MimeType string `json:"mimeType"`
}

// EncodeFrame converts floating-point samples in [-1, 1] to a wire frame.
// Out-of-range samples are clamped rather than wrapped, so a hot microphone
// produces clipping instead of garbage.
func EncodeFrame(samples []float64) Frame {
	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Round(s * 32768)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		n := int16(v)
		raw[i*2] = byte(n)
		raw[i*2+1] = byte(n >> 8)
	}
	return Frame{
		Data:     base64.StdEncoding.EncodeToString(raw),
		MimeType: MimeTypeCapture,
	}
}

// EncodePCMFrame wraps already-packed s16le bytes as a wire frame. The
// capture device delivers packed PCM directly, so this is the hot path;
// EncodeFrame covers float sources.
func EncodePCMFrame(pcm []byte) Frame {
	return Frame{
		Data:     base64.StdEncoding.EncodeToString(pcm),
		MimeType: MimeTypeCapture,
	}
}

// DecodeFrame unwraps a base64 payload to raw PCM bytes. It performs no
// resampling; the caller interprets the bytes at the advertised rate.
func DecodeFrame(data string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(data)
}

// Playable is decoded audio ready for scheduling: per-channel float
// samples in [-1, 1].
type Playable struct {
	Channels   [][]float64
	SampleRate int
}

// FrameCount returns the number of sample frames per channel.
func (p Playable) FrameCount() int {
	if len(p.Channels) == 0 {
		return 0
	}
	return len(p.Channels[0])
}

// ReconstructPlayable reinterprets raw bytes as interleaved s16le samples,
// de-interleaves per channel, and rescales to [-1, 1]. Trailing bytes that
// do not fill a whole frame are truncated; inbound segments are contiguous
// model output, so a ragged tail only ever means a cut-off frame.
func ReconstructPlayable(raw []byte, sampleRate, channels int) Playable {
	if channels <= 0 {
		channels = 1
	}
	frames := len(raw) / 2 / channels

	out := Playable{
		Channels:   make([][]float64, channels),
		SampleRate: sampleRate,
	}
	for ch := range out.Channels {
		out.Channels[ch] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * 2
			sample := int16(raw[off]) | int16(raw[off+1])<<8
			out.Channels[ch][i] = float64(sample) / 32768.0
		}
	}
	return out
}
