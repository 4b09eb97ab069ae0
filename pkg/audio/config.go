// Package audio holds the PCM plumbing shared by the live bridge: wire
// codec, capture and playback devices, and byte/duration math.
package audio

import (
	"time"
)

// Config specifies audio format parameters for one direction of the pipe.
type Config struct {
	// SampleRate in Hz. Capture runs at 16000, playback at 24000. The two
	// rates match the remote model's expected input and native synthesis
	// output; they are not interchangeable.
	SampleRate int `json:"sample_rate"`

	// Channels: 1 for mono, 2 for stereo.
	Channels int `json:"channels"`

	// BitsPerSample: 16 for the PCM wire format.
	BitsPerSample int `json:"bits_per_sample"`
}

// CaptureConfig returns the fixed microphone format (16 kHz mono s16le).
func CaptureConfig() Config {
	return Config{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
}

// PlaybackConfig returns the fixed speaker format (24 kHz mono s16le).
func PlaybackConfig() Config {
	return Config{SampleRate: 24000, Channels: 1, BitsPerSample: 16}
}

// BytesPerSecond returns the audio byte rate.
func (c Config) BytesPerSecond() int {
	return c.SampleRate * c.Channels * (c.BitsPerSample / 8)
}

// BytesPerFrame returns the byte width of one interleaved sample frame.
func (c Config) BytesPerFrame() int {
	return c.Channels * (c.BitsPerSample / 8)
}

// Duration returns the playback duration of the given byte count.
func (c Config) Duration(bytes int) time.Duration {
	bps := c.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(bytes) * time.Second / time.Duration(bps)
}

// BytesForDuration returns the byte count for the given duration.
func (c Config) BytesForDuration(d time.Duration) int {
	return int(int64(c.BytesPerSecond()) * int64(d) / int64(time.Second))
}
