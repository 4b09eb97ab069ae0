package voxform

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxform/voxform/pkg/audio"
	"github.com/voxform/voxform/pkg/core"
	"github.com/voxform/voxform/pkg/core/types"
	"github.com/voxform/voxform/pkg/live/protocol"
)

type fakeCapture struct {
	mu     sync.Mutex
	blocks chan []byte
	closed bool
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{blocks: make(chan []byte, 16)}
}

func (f *fakeCapture) Blocks() <-chan []byte { return f.blocks }

func (f *fakeCapture) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.blocks)
	}
	return nil
}

func (f *fakeCapture) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakePlaybackSink struct {
	mu       sync.Mutex
	writes   [][]byte
	writeErr error
	closed   bool
}

func (f *fakePlaybackSink) Write(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, append([]byte(nil), pcm...))
	return nil
}

func (f *fakePlaybackSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePlaybackSink) snapshot() ([][]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.writes...), f.closed
}

// newTestBridge wires a bridge to fake devices. Each Start gets a fresh
// capture; the latest pair is returned via the pointers.
func newTestBridge(t *testing.T, serverURL string) (*Bridge, *types.Record, func() *fakeCapture, func() *fakePlaybackSink) {
	t.Helper()

	client := newTestClient(t, serverURL)
	cfg := ConfigFor(ModeIntake)
	record := cfg.NewRecord()
	transcript := types.NewTranscript(cfg.Greeting)
	bridge := NewBridge(client, record, transcript)

	var mu sync.Mutex
	var capture *fakeCapture
	var sink *fakePlaybackSink
	bridge.openCapture = func(audio.Config) (CaptureSource, error) {
		mu.Lock()
		defer mu.Unlock()
		capture = newFakeCapture()
		return capture, nil
	}
	bridge.openSink = func(audio.Config) (audio.Sink, error) {
		mu.Lock()
		defer mu.Unlock()
		sink = &fakePlaybackSink{}
		return sink, nil
	}

	getCapture := func() *fakeCapture {
		mu.Lock()
		defer mu.Unlock()
		return capture
	}
	getSink := func() *fakePlaybackSink {
		mu.Lock()
		defer mu.Unlock()
		return sink
	}
	return bridge, record, getCapture, getSink
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestBridgeStopWhileIdleIsNoOp(t *testing.T) {
	t.Parallel()

	bridge, _, _, _ := newTestBridge(t, "ws://127.0.0.1:1")
	if got := bridge.State(); got != StateIdle {
		t.Fatalf("state = %v", got)
	}
	bridge.Stop()
	bridge.Stop()
	if got := bridge.State(); got != StateIdle {
		t.Fatalf("state after Stop = %v", got)
	}
	if err := bridge.Err(); err != nil {
		t.Fatalf("Err = %v", err)
	}
}

func TestBridgeStartStopCycles(t *testing.T) {
	t.Parallel()

	serverURL, closeServer := newLiveTestServer(t, func(conn *websocket.Conn, _ protocol.ClientSetup) {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer closeServer()

	bridge, _, getCapture, getSink := newTestBridge(t, serverURL)

	for cycle := 0; cycle < 2; cycle++ {
		if err := bridge.Start(context.Background(), ConfigFor(ModeIntake)); err != nil {
			t.Fatalf("cycle %d Start: %v", cycle, err)
		}
		if got := bridge.State(); got != StateOpen {
			t.Fatalf("cycle %d state = %v, want open", cycle, got)
		}
		scheduler := bridge.Scheduler()
		if scheduler == nil {
			t.Fatalf("cycle %d scheduler is nil", cycle)
		}

		bridge.Stop()
		if got := bridge.State(); got != StateIdle {
			t.Fatalf("cycle %d state after Stop = %v", cycle, got)
		}
		if !getCapture().isClosed() {
			t.Fatalf("cycle %d capture left open", cycle)
		}
		if _, closed := getSink().snapshot(); !closed {
			t.Fatalf("cycle %d sink left open", cycle)
		}
		if handles := scheduler.Live(); len(handles) != 0 {
			t.Fatalf("cycle %d dangling segment handles: %v", cycle, handles)
		}
		if bridge.Scheduler() != nil {
			t.Fatalf("cycle %d scheduler not cleared", cycle)
		}
	}
}

func TestBridgeStartWhileOpenFailsFast(t *testing.T) {
	t.Parallel()

	serverURL, closeServer := newLiveTestServer(t, func(conn *websocket.Conn, _ protocol.ClientSetup) {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer closeServer()

	bridge, _, _, _ := newTestBridge(t, serverURL)
	if err := bridge.Start(context.Background(), ConfigFor(ModeIntake)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer bridge.Stop()

	err := bridge.Start(context.Background(), ConfigFor(ModeSales))
	if err == nil {
		t.Fatal("second Start succeeded while open")
	}
	var coreErr *core.Error
	if !asCoreError(err, &coreErr) || coreErr.Type != core.ErrInvalidRequest {
		t.Fatalf("err = %v", err)
	}
}

func asCoreError(err error, target **core.Error) bool {
	ce, ok := err.(*core.Error)
	if ok {
		*target = ce
	}
	return ok
}

func TestBridgeCaptureFailureRollsBackToIdle(t *testing.T) {
	t.Parallel()

	bridge, _, _, _ := newTestBridge(t, "ws://127.0.0.1:1")
	bridge.openCapture = func(audio.Config) (CaptureSource, error) {
		return nil, core.NewPermissionDeniedError("microphone access denied")
	}

	err := bridge.Start(context.Background(), ConfigFor(ModeIntake))
	if err == nil {
		t.Fatal("Start succeeded without a microphone")
	}
	if got := bridge.State(); got != StateIdle {
		t.Fatalf("state = %v, want idle", got)
	}
	if bridge.Err() == nil {
		t.Fatal("Err not recorded")
	}
}

func TestBridgeConnectFailureClosesDevices(t *testing.T) {
	t.Parallel()

	bridge, _, getCapture, getSink := newTestBridge(t, "ws://127.0.0.1:1")
	err := bridge.Start(context.Background(), ConfigFor(ModeIntake))
	if err == nil {
		t.Fatal("Start succeeded without a server")
	}
	if got := bridge.State(); got != StateIdle {
		t.Fatalf("state = %v, want idle", got)
	}
	if !getCapture().isClosed() {
		t.Fatal("capture left open after failed connect")
	}
	if _, closed := getSink().snapshot(); !closed {
		t.Fatal("sink left open after failed connect")
	}
}

func TestBridgeForwardsCaptureBlocks(t *testing.T) {
	t.Parallel()

	frameCh := make(chan string, 4)
	serverURL, closeServer := newLiveTestServer(t, func(conn *websocket.Conn, _ protocol.ClientSetup) {
		defer conn.Close()
		for {
			var frame protocol.ClientRealtimeInput
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if len(frame.RealtimeInput.MediaChunks) == 1 {
				frameCh <- frame.RealtimeInput.MediaChunks[0].Data
			}
		}
	})
	defer closeServer()

	bridge, _, getCapture, _ := newTestBridge(t, serverURL)
	if err := bridge.Start(context.Background(), ConfigFor(ModeIntake)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer bridge.Stop()

	first := []byte{1, 2, 3, 4}
	second := []byte{5, 6, 7, 8}
	getCapture().blocks <- first
	getCapture().blocks <- second

	for _, want := range [][]byte{first, second} {
		select {
		case got := <-frameCh:
			if got != base64.StdEncoding.EncodeToString(want) {
				t.Fatalf("frame = %q, want %v", got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("capture block never reached the server")
		}
	}
}

func TestBridgeAppliesToolCallsAndAcks(t *testing.T) {
	t.Parallel()

	ackCh := make(chan map[string]any, 2)
	serverURL, closeServer := newLiveTestServer(t, func(conn *websocket.Conn, _ protocol.ClientSetup) {
		defer conn.Close()
		_ = conn.WriteJSON(map[string]any{
			"toolCall": map[string]any{
				"functionCalls": []any{
					map[string]any{
						"id":   "call-1",
						"name": "update_patient_record",
						"args": map[string]any{
							"fullName":          "John Smith",
							"insuranceProvider": "Aetna",
							"copay":             "$20",
							"notAField":         "ignored",
						},
					},
					map[string]any{
						"id":   "call-2",
						"name": "unknown_tool",
						"args": map[string]any{"fullName": "Hacker"},
					},
				},
			},
		})
		for i := 0; i < 2; i++ {
			var ack map[string]any
			if err := conn.ReadJSON(&ack); err != nil {
				return
			}
			ackCh <- ack
		}
	})
	defer closeServer()

	bridge, record, _, _ := newTestBridge(t, serverURL)
	if err := bridge.Start(context.Background(), ConfigFor(ModeIntake)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer bridge.Stop()

	waitUntil(t, "record update", func() bool {
		return record.Get("fullName") == "John Smith"
	})
	if got := record.Get("insuranceProvider"); got != "Aetna" {
		t.Errorf("insuranceProvider = %q", got)
	}
	if got := record.Get("copay"); got != "$20" {
		t.Errorf("copay = %q", got)
	}
	// The unknown tool's args never touch the record.
	if got := record.Get("fullName"); got == "Hacker" {
		t.Error("unknown tool call mutated the record")
	}

	ids := make(map[string]bool)
	for i := 0; i < 2; i++ {
		select {
		case ack := <-ackCh:
			tr, _ := ack["toolResponse"].(map[string]any)
			responses, _ := tr["functionResponses"].([]any)
			for _, r := range responses {
				entry, _ := r.(map[string]any)
				id, _ := entry["id"].(string)
				ids[id] = true
			}
		case <-time.After(5 * time.Second):
			t.Fatal("acknowledgment never arrived")
		}
	}
	if !ids["call-1"] || !ids["call-2"] {
		t.Fatalf("acked ids = %v, want both calls", ids)
	}
}

func TestBridgeStopAbandonsBufferedToolCalls(t *testing.T) {
	t.Parallel()

	serverURL, closeServer := newLiveTestServer(t, func(conn *websocket.Conn, _ protocol.ClientSetup) {
		defer conn.Close()
		for i := 0; i < 300; i++ {
			if err := conn.WriteJSON(map[string]any{
				"toolCall": map[string]any{
					"functionCalls": []any{map[string]any{
						"id":   fmt.Sprintf("call-%d", i),
						"name": "update_patient_record",
						"args": map[string]any{"fullName": fmt.Sprintf("Caller %d", i)},
					}},
				},
			}); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer closeServer()

	bridge, record, _, _ := newTestBridge(t, serverURL)

	for cycle := 0; cycle < 3; cycle++ {
		if err := bridge.Start(context.Background(), ConfigFor(ModeIntake)); err != nil {
			t.Fatalf("cycle %d Start: %v", cycle, err)
		}
		waitUntil(t, "first applied call", func() bool {
			return record.Get("fullName") != ""
		})

		bridge.Stop()
		if got := bridge.State(); got != StateIdle {
			t.Fatalf("cycle %d state after Stop = %v", cycle, got)
		}

		// Calls still buffered when Stop ran must never reach the record,
		// even while the next session starts.
		snapshot := record.Get("fullName")
		time.Sleep(50 * time.Millisecond)
		if got := record.Get("fullName"); got != snapshot {
			t.Fatalf("cycle %d record mutated after Stop: %q -> %q", cycle, snapshot, got)
		}
		record.Reset()
	}
}

func TestBridgePlaybackFailureTearsDown(t *testing.T) {
	t.Parallel()

	serverURL, closeServer := newLiveTestServer(t, func(conn *websocket.Conn, _ protocol.ClientSetup) {
		defer conn.Close()
		_ = conn.WriteJSON(map[string]any{
			"serverContent": map[string]any{
				"modelTurn": map[string]any{
					"parts": []any{map[string]any{
						"inlineData": map[string]any{
							"mimeType": "audio/pcm;rate=24000",
							"data":     base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4}),
						},
					}},
				},
			},
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer closeServer()

	bridge, _, _, _ := newTestBridge(t, serverURL)
	bridge.openSink = func(audio.Config) (audio.Sink, error) {
		return &fakePlaybackSink{writeErr: errors.New("device lost")}, nil
	}

	if err := bridge.Start(context.Background(), ConfigFor(ModeIntake)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitUntil(t, "teardown after playback failure", func() bool {
		return bridge.State() == StateIdle
	})
	var coreErr *core.Error
	if !asCoreError(bridge.Err(), &coreErr) || coreErr.Type != core.ErrApplication {
		t.Fatalf("Err = %v", bridge.Err())
	}
}

func TestBridgeSchedulesInboundAudio(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 480)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	serverURL, closeServer := newLiveTestServer(t, func(conn *websocket.Conn, _ protocol.ClientSetup) {
		defer conn.Close()
		_ = conn.WriteJSON(map[string]any{
			"serverContent": map[string]any{
				"modelTurn": map[string]any{
					"parts": []any{map[string]any{
						"inlineData": map[string]any{
							"mimeType": "audio/pcm;rate=24000",
							"data":     base64.StdEncoding.EncodeToString(pcm),
						},
					}},
				},
			},
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer closeServer()

	bridge, _, _, getSink := newTestBridge(t, serverURL)
	if err := bridge.Start(context.Background(), ConfigFor(ModeIntake)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer bridge.Stop()

	waitUntil(t, "playback write", func() bool {
		writes, _ := getSink().snapshot()
		return len(writes) == 1
	})
	writes, _ := getSink().snapshot()
	if string(writes[0]) != string(pcm) {
		t.Fatal("sink received different PCM than the server sent")
	}
}

func TestBridgeConnectionLossReturnsToIdle(t *testing.T) {
	t.Parallel()

	serverURL, closeServer := newLiveTestServer(t, func(conn *websocket.Conn, _ protocol.ClientSetup) {
		// Drop the connection without a close handshake.
		_ = conn.Close()
	})
	defer closeServer()

	bridge, _, getCapture, _ := newTestBridge(t, serverURL)
	if err := bridge.Start(context.Background(), ConfigFor(ModeIntake)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitUntil(t, "return to idle", func() bool {
		return bridge.State() == StateIdle
	})
	if bridge.Err() == nil {
		t.Error("connection loss did not record an error")
	}
	if !getCapture().isClosed() {
		t.Error("capture left open after connection loss")
	}

	// No automatic reconnection: the bridge stays idle until restarted.
	time.Sleep(50 * time.Millisecond)
	if got := bridge.State(); got != StateIdle {
		t.Fatalf("state = %v, want idle", got)
	}
}
