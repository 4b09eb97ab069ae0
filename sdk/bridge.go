package voxform

import (
	"context"
	"log/slog"
	"sync"

	"github.com/voxform/voxform/pkg/audio"
	"github.com/voxform/voxform/pkg/core"
	"github.com/voxform/voxform/pkg/core/types"
)

// BridgeState is the lifecycle state of the realtime bridge.
type BridgeState string

const (
	StateIdle       BridgeState = "idle"
	StateConnecting BridgeState = "connecting"
	StateOpen       BridgeState = "open"
	StateClosing    BridgeState = "closing"
)

// CaptureSource delivers captured PCM blocks in capture order. audio.Capture
// is the production implementation; tests substitute a fake.
type CaptureSource interface {
	Blocks() <-chan []byte
	Close() error
}

// Bridge owns the realtime voice session: microphone capture, the duplex
// model connection, gapless playback scheduling, and tool-call
// reconciliation against the shared record.
//
// At most one session is active at a time. Start fails fast when a session
// is already connecting or open; Stop is idempotent and unconditional — it
// abandons in-flight playback and pending acknowledgments rather than
// waiting for them.
type Bridge struct {
	client     *Client
	record     *types.Record
	transcript *types.Transcript
	logger     *slog.Logger

	openCapture func(audio.Config) (CaptureSource, error)
	openSink    func(audio.Config) (audio.Sink, error)

	mu        sync.Mutex
	state     BridgeState
	gen       uint64
	session   *LiveSession
	capture   CaptureSource
	sink      audio.Sink
	scheduler *audio.Scheduler
	lastErr   error
}

// NewBridge creates an idle bridge over the shared record and transcript.
func NewBridge(client *Client, record *types.Record, transcript *types.Transcript) *Bridge {
	return &Bridge{
		client:     client,
		record:     record,
		transcript: transcript,
		logger:     client.logger,
		state:      StateIdle,
		openCapture: func(cfg audio.Config) (CaptureSource, error) {
			return audio.OpenCapture(cfg)
		},
		openSink: func(cfg audio.Config) (audio.Sink, error) {
			return audio.OpenSpeaker(cfg)
		},
	}
}

// State returns the bridge's current lifecycle state.
func (b *Bridge) State() BridgeState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Err returns the error that ended the most recent session, if any.
func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Scheduler exposes the active session's playback scheduler. Nil while
// idle.
func (b *Bridge) Scheduler() *audio.Scheduler {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scheduler
}

// Start acquires the microphone and speaker, opens the duplex connection
// for the given mode, and begins streaming. Fails fast if a session is
// already connecting or open.
func (b *Bridge) Start(ctx context.Context, cfg ModeConfig) error {
	b.mu.Lock()
	if b.state != StateIdle {
		b.mu.Unlock()
		return core.NewInvalidRequestError("live session already active")
	}
	b.state = StateConnecting
	b.gen++
	gen := b.gen
	b.lastErr = nil
	b.mu.Unlock()

	capture, err := b.openCapture(audio.CaptureConfig())
	if err != nil {
		b.failStart(gen, err)
		return err
	}

	sink, err := b.openSink(audio.PlaybackConfig())
	if err != nil {
		_ = capture.Close()
		b.failStart(gen, err)
		return err
	}

	session, err := b.client.Live.Connect(ctx, cfg)
	if err != nil {
		_ = capture.Close()
		_ = sink.Close()
		b.failStart(gen, err)
		return err
	}

	b.mu.Lock()
	if b.gen != gen || b.state != StateConnecting {
		// Stopped while connecting; release everything we just opened.
		b.mu.Unlock()
		_ = capture.Close()
		_ = session.Close()
		_ = sink.Close()
		return core.NewInvalidRequestError("live session was stopped while connecting")
	}
	scheduler := audio.NewScheduler(audio.PlaybackConfig(), sink)
	b.session = session
	b.capture = capture
	b.sink = sink
	b.scheduler = scheduler
	b.state = StateOpen
	b.mu.Unlock()

	go b.sendLoop(session, capture)
	go b.recvLoop(gen, cfg, scheduler, session)
	return nil
}

func (b *Bridge) failStart(gen uint64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen != gen {
		return
	}
	b.state = StateIdle
	b.lastErr = err
}

// sendLoop pushes capture blocks to the model in capture order. It exits
// when the capture source closes.
func (b *Bridge) sendLoop(session *LiveSession, capture CaptureSource) {
	for block := range capture.Blocks() {
		if err := session.SendAudioFrame(block); err != nil {
			b.logger.Debug("drop capture block", "error", err)
			return
		}
	}
}

// recvLoop is the single consumer of session events. Audio scheduling and
// tool-call application are independent side effects of the same loop;
// neither blocks the other beyond its own handling time.
//
// The loop holds its session's config and scheduler as arguments rather
// than reading bridge fields: Stop does not wait for the drain, so a
// buffered backlog may still be flowing here while a later Start rewrites
// the bridge. The generation check drops that backlog without side
// effects.
func (b *Bridge) recvLoop(gen uint64, cfg ModeConfig, scheduler *audio.Scheduler, session *LiveSession) {
	for event := range session.Events() {
		if b.sessionStale(gen) {
			continue
		}
		switch e := event.(type) {
		case AudioSegmentEvent:
			if _, err := scheduler.Schedule(e.PCM); err != nil {
				b.logger.Debug("schedule playback", "error", err)
				b.teardown(gen, core.NewApplicationError(err))
				return
			}
			b.client.metrics.segmentScheduled()
		case ToolCallEvent:
			b.applyToolCalls(gen, session, cfg, e)
		case InterruptedEvent:
			b.logger.Debug("model turn interrupted")
		case GoAwayEvent:
			b.logger.Debug("server go away", "time_left", e.TimeLeft)
		}
	}

	err := session.Err()
	if err != nil {
		b.logger.Debug("live session ended", "error", err)
	}
	b.teardown(gen, err)
}

// sessionStale reports whether the generation's session has been stopped
// or superseded.
func (b *Bridge) sessionStale(gen uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen != gen || b.state != StateOpen
}

// applyToolCalls applies every well-formed call in the batch to the record
// and acknowledges each call by id. A call for an unknown tool is skipped
// but still acknowledged so the model is never left waiting.
//
// Each apply re-checks the generation under the bridge lock: once Stop has
// taken the lock and left StateOpen, no further call can touch the record.
func (b *Bridge) applyToolCalls(gen uint64, session *LiveSession, cfg ModeConfig, event ToolCallEvent) {
	for _, call := range event.Calls {
		if call.Name == cfg.ToolName {
			b.mu.Lock()
			var changed []string
			if b.gen == gen && b.state == StateOpen {
				changed = b.record.Apply(types.FieldUpdate(call.StringArgs()))
			}
			b.mu.Unlock()
			if len(changed) > 0 {
				b.client.metrics.toolCallApplied()
			}
		}
		if err := session.AckToolCall(call); err != nil {
			b.logger.Debug("ack tool call", "id", call.ID, "error", err)
		}
	}
}

// Stop tears the session down. Idempotent; a Stop while idle is a no-op.
func (b *Bridge) Stop() {
	b.mu.Lock()
	gen := b.gen
	b.mu.Unlock()
	b.teardown(gen, nil)
}

// teardown closes the session's resources and returns the bridge to idle.
// Close errors are logged, never propagated. The generation guard makes a
// late teardown from a dead session's receive loop a no-op once a new
// session has started.
func (b *Bridge) teardown(gen uint64, cause error) {
	b.mu.Lock()
	if b.gen != gen || b.state == StateIdle || b.state == StateClosing {
		b.mu.Unlock()
		return
	}
	b.state = StateClosing
	session := b.session
	capture := b.capture
	sink := b.sink
	scheduler := b.scheduler
	b.session = nil
	b.capture = nil
	b.sink = nil
	b.scheduler = nil
	b.mu.Unlock()

	if capture != nil {
		if err := capture.Close(); err != nil {
			b.logger.Debug("close capture", "error", err)
		}
	}
	if session != nil {
		if err := session.Close(); err != nil {
			b.logger.Debug("close session", "error", err)
		}
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	if sink != nil {
		if err := sink.Close(); err != nil {
			b.logger.Debug("close sink", "error", err)
		}
	}

	b.mu.Lock()
	b.state = StateIdle
	if cause != nil {
		b.lastErr = cause
	}
	b.mu.Unlock()
}
