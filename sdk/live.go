package voxform

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxform/voxform/pkg/audio"
	"github.com/voxform/voxform/pkg/core"
	"github.com/voxform/voxform/pkg/live/protocol"
)

const (
	defaultLiveConnectTimeout = 15 * time.Second

	liveWSPath = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
)

// LiveService opens duplex streaming sessions against the model's
// bidirectional endpoint.
type LiveService struct {
	client *Client
}

// LiveEvent is a low-level event emitted by LiveSession.Events().
type LiveEvent interface {
	liveEventType() string
}

// AudioSegmentEvent carries one decoded inbound audio segment: s16le mono
// PCM at the model's synthesis rate.
type AudioSegmentEvent struct {
	PCM []byte
}

func (e AudioSegmentEvent) liveEventType() string { return "audio_segment" }

// ToolCallEvent carries one or more extraction calls from a single server
// event. All calls must be acknowledged.
type ToolCallEvent struct {
	Calls []protocol.FunctionCall
}

func (e ToolCallEvent) liveEventType() string { return "tool_call" }

// TurnCompleteEvent marks the end of a model turn.
type TurnCompleteEvent struct{}

func (e TurnCompleteEvent) liveEventType() string { return "turn_complete" }

// InterruptedEvent signals that the user barged in and the model abandoned
// its current turn.
type InterruptedEvent struct{}

func (e InterruptedEvent) liveEventType() string { return "interrupted" }

// GoAwayEvent warns that the server will close the connection soon.
type GoAwayEvent struct {
	TimeLeft string
}

func (e GoAwayEvent) liveEventType() string { return "go_away" }

// UnknownEvent preserves frames this client does not understand.
type UnknownEvent struct {
	Raw json.RawMessage
}

func (e UnknownEvent) liveEventType() string { return "unknown" }

// LiveSession is a low-level duplex websocket session. Inbound events are
// consumed from Events(); the channel closes when the connection ends, and
// Err() reports the terminal error if the close was not clean.
type LiveSession struct {
	conn *websocket.Conn

	events chan LiveEvent
	done   chan struct{}
	quit   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	errMu sync.Mutex
	err   error

	metrics *Metrics
}

// Events yields inbound session events in arrival order.
func (s *LiveSession) Events() <-chan LiveEvent {
	if s == nil {
		return nil
	}
	return s.events
}

// SendAudioFrame pushes one block of captured s16le PCM to the model.
func (s *LiveSession) SendAudioFrame(pcm []byte) error {
	if s == nil {
		return fmt.Errorf("session must not be nil")
	}
	frame := protocol.ClientRealtimeInput{
		RealtimeInput: protocol.RealtimeInput{
			MediaChunks: []protocol.Blob{{
				MimeType: protocol.MimeTypeAudioIn,
				Data:     base64.StdEncoding.EncodeToString(pcm),
			}},
		},
	}
	if err := s.sendJSON(frame); err != nil {
		return err
	}
	s.metrics.frameSent()
	return nil
}

// AckToolCall acknowledges one extraction call with a success result.
func (s *LiveSession) AckToolCall(call protocol.FunctionCall) error {
	return s.SendToolResponses([]protocol.FunctionResponse{{
		ID:       call.ID,
		Name:     call.Name,
		Response: map[string]any{"result": "ok"},
	}})
}

// SendToolResponses sends tool acknowledgments back over the connection.
func (s *LiveSession) SendToolResponses(responses []protocol.FunctionResponse) error {
	if s == nil {
		return fmt.Errorf("session must not be nil")
	}
	if len(responses) == 0 {
		return nil
	}
	return s.sendJSON(protocol.ClientToolResponse{
		ToolResponse: protocol.ToolResponse{FunctionResponses: responses},
	})
}

func (s *LiveSession) sendJSON(v any) error {
	if s.closed.Load() {
		return core.NewConnectionFailedError("live session is closed", nil)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// Close closes the websocket session and waits for the read loop to drain.
// Idempotent.
func (s *LiveSession) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.quit)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

// Err returns the terminal session error (if any). Blocks until the
// session ends.
func (s *LiveSession) Err() error {
	if s == nil {
		return nil
	}
	<-s.done
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *LiveSession) setErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *LiveSession) readLoop() {
	defer close(s.done)
	defer close(s.events)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			s.setErr(core.NewConnectionFailedError("live connection lost", err))
			return
		}

		msg, err := protocol.DecodeServerMessage(data)
		if err != nil {
			evErr := core.NewMalformedEventError(err.Error())
			if evErr.IsFatalToSession() {
				s.setErr(evErr)
				return
			}
			// Malformed frames are skipped; the next frame may be fine.
			continue
		}

		switch m := msg.(type) {
		case protocol.ServerSetupComplete:
			// Already consumed during Connect; ignore duplicates.
		case protocol.ServerContent:
			for _, b64 := range m.InlineAudio() {
				pcm, decErr := audio.DecodeFrame(b64)
				if decErr != nil {
					continue
				}
				s.emit(AudioSegmentEvent{PCM: pcm})
			}
			if m.Interrupted {
				s.emit(InterruptedEvent{})
			}
			if m.TurnComplete {
				s.emit(TurnCompleteEvent{})
			}
		case protocol.ServerToolCall:
			// Tool calls must reach the consumer so every call gets
			// acknowledged; unlike audio they are never dropped on a full
			// buffer.
			if !s.emitBlocking(ToolCallEvent{Calls: m.FunctionCalls}) {
				return
			}
		case protocol.ServerGoAway:
			s.emit(GoAwayEvent{TimeLeft: m.TimeLeft})
		case protocol.ServerUnknown:
			s.emit(UnknownEvent{Raw: m.Raw})
		}
	}
}

func (s *LiveSession) emit(event LiveEvent) {
	select {
	case s.events <- event:
	default:
		// Avoid deadlocking the read loop if the caller stops consuming.
	}
}

// emitBlocking waits for buffer space instead of dropping. Close releases
// a blocked emit through quit, so an abandoned consumer cannot wedge the
// read loop forever.
func (s *LiveSession) emitBlocking(event LiveEvent) bool {
	select {
	case s.events <- event:
		return true
	case <-s.quit:
		return false
	}
}

// Connect dials the live endpoint, performs the setup handshake for the
// given mode, and returns an open session.
func (s *LiveService) Connect(ctx context.Context, cfg ModeConfig) (*LiveSession, error) {
	if s == nil || s.client == nil {
		return nil, core.NewInvalidRequestError("live service is not initialized")
	}

	ctx, span := s.client.tracer.Start(ctx, "live.connect")
	defer span.End()

	wsURL, err := s.client.liveEndpoint()
	if err != nil {
		return nil, err
	}

	setup, err := s.client.buildSetup(cfg)
	if err != nil {
		return nil, err
	}

	dialer := websocket.DefaultDialer
	if dialer == nil {
		dialer = &websocket.Dialer{}
	}
	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		dialCtx, cancel = context.WithTimeout(ctx, defaultLiveConnectTimeout)
		defer cancel()
	}

	conn, resp, err := dialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		s.client.metrics.sessionFailed()
		if resp != nil {
			return nil, &TransportError{Op: "GET", URL: wsURL, Err: fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)}
		}
		return nil, &TransportError{Op: "GET", URL: wsURL, Err: err}
	}

	if err := conn.WriteJSON(setup); err != nil {
		_ = conn.Close()
		s.client.metrics.sessionFailed()
		return nil, core.NewConnectionFailedError("send setup", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(defaultLiveConnectTimeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		s.client.metrics.sessionFailed()
		return nil, core.NewConnectionFailedError("read setup acknowledgment", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	first, err := protocol.DecodeServerMessage(payload)
	if err != nil {
		_ = conn.Close()
		s.client.metrics.sessionFailed()
		return nil, err
	}
	if _, ok := first.(protocol.ServerSetupComplete); !ok {
		_ = conn.Close()
		s.client.metrics.sessionFailed()
		return nil, core.NewConnectionFailedError("unexpected first server frame", errors.New("expected setup acknowledgment"))
	}

	session := &LiveSession{
		conn:    conn,
		events:  make(chan LiveEvent, 256),
		done:    make(chan struct{}),
		quit:    make(chan struct{}),
		metrics: s.client.metrics,
	}
	go session.readLoop()
	s.client.metrics.sessionStarted()
	s.client.logger.Debug("live session open", "model", s.client.model, "mode", string(cfg.Mode))
	return session, nil
}

func (c *Client) liveEndpoint() (string, error) {
	base := c.liveHost
	if !strings.Contains(base, "://") {
		base = "wss://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", core.NewInvalidRequestError("invalid live host")
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// already websocket scheme.
	default:
		return "", core.NewInvalidRequestError("live host must use http(s) or ws(s)")
	}
	u.Path = liveWSPath
	u.RawQuery = url.Values{"key": {c.apiKey}}.Encode()
	return u.String(), nil
}

func (c *Client) buildSetup(cfg ModeConfig) (protocol.ClientSetup, error) {
	setup := protocol.Setup{
		Model: c.model,
		GenerationConfig: &protocol.GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &protocol.SpeechConfig{
				VoiceConfig: &protocol.VoiceConfig{
					PrebuiltVoiceConfig: &protocol.PrebuiltVoiceConfig{VoiceName: c.voice},
				},
			},
		},
	}
	if cfg.Instruction != "" {
		setup.SystemInstruction = &protocol.Content{
			Parts: []protocol.Part{{Text: cfg.Instruction}},
		}
	}
	if cfg.ToolName != "" {
		params, err := json.Marshal(cfg.Schema)
		if err != nil {
			return protocol.ClientSetup{}, core.NewInvalidRequestError("marshal tool schema: " + err.Error())
		}
		setup.Tools = []protocol.Tool{{
			FunctionDeclarations: []protocol.FunctionDeclaration{{
				Name:        cfg.ToolName,
				Description: cfg.ToolDescription,
				Parameters:  params,
			}},
		}}
	}
	return protocol.ClientSetup{Setup: setup}, nil
}
