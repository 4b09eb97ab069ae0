package audio

import (
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/voxform/voxform/pkg/core"
)

// BlockSamples is the fixed capture block size in samples. The device
// callback cadence drives the send side of the live session; nothing is
// buffered beyond the block being assembled.
const BlockSamples = 4096

// Capture owns the microphone device and delivers fixed-size PCM blocks in
// capture order on Blocks().
type Capture struct {
	allocCtx *malgo.AllocatedContext
	device   *malgo.Device

	mu      sync.Mutex
	pending []byte
	closed  bool

	blocks    chan []byte
	blockSize int
}

// OpenCapture acquires the default microphone at the given format. Open
// failures surface as PermissionDenied when the OS refused access, and
// DeviceUnavailable otherwise.
func OpenCapture(cfg Config) (*Capture, error) {
	allocCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, core.NewDeviceUnavailableError("audio context init failed: " + err.Error())
	}

	c := &Capture{
		allocCtx:  allocCtx,
		blocks:    make(chan []byte, 16),
		blockSize: BlockSamples * cfg.BytesPerFrame(),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			c.push(in)
		},
	}

	device, err := malgo.InitDevice(allocCtx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = allocCtx.Uninit()
		allocCtx.Free()
		return nil, captureOpenError(err)
	}
	c.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = allocCtx.Uninit()
		allocCtx.Free()
		return nil, captureOpenError(err)
	}
	return c, nil
}

func captureOpenError(err error) *core.Error {
	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "access denied") ||
		strings.Contains(strings.ToLower(msg), "permission") {
		return core.NewPermissionDeniedError("microphone access denied: " + msg)
	}
	return core.NewDeviceUnavailableError("microphone open failed: " + msg)
}

// push runs on the device callback thread: accumulate into whole blocks and
// hand each completed block to the channel. A full channel drops the block
// rather than stalling the callback.
func (c *Capture) push(in []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending = append(c.pending, in...)
	var ready [][]byte
	for len(c.pending) >= c.blockSize {
		block := make([]byte, c.blockSize)
		copy(block, c.pending[:c.blockSize])
		c.pending = c.pending[c.blockSize:]
		ready = append(ready, block)
	}
	c.mu.Unlock()

	for _, block := range ready {
		select {
		case c.blocks <- block:
		default:
			// Consumer fell behind; dropping keeps the callback realtime.
		}
	}
}

// Blocks yields captured PCM blocks in capture order. The channel is closed
// by Close.
func (c *Capture) Blocks() <-chan []byte {
	return c.blocks
}

// Close stops the device and releases the audio context. Idempotent.
func (c *Capture) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.pending = nil
	c.mu.Unlock()

	if c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
	}
	if c.allocCtx != nil {
		_ = c.allocCtx.Uninit()
		c.allocCtx.Free()
	}
	close(c.blocks)
	return nil
}
