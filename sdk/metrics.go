package voxform

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects session-level counters. Attach with WithMetrics; a nil
// *Metrics is safe everywhere and records nothing.
type Metrics struct {
	sessionsStarted   prometheus.Counter
	sessionsFailed    prometheus.Counter
	framesSent        prometheus.Counter
	segmentsScheduled prometheus.Counter
	toolCallsApplied  prometheus.Counter
	chatRoundTrips    prometheus.Counter
}

// NewMetrics registers the voxform collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		sessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "voxform",
			Name:      "live_sessions_started_total",
			Help:      "Live sessions successfully opened.",
		}),
		sessionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "voxform",
			Name:      "live_sessions_failed_total",
			Help:      "Live session opens that failed.",
		}),
		framesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "voxform",
			Name:      "audio_frames_sent_total",
			Help:      "Outbound microphone frames pushed to the model.",
		}),
		segmentsScheduled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "voxform",
			Name:      "audio_segments_scheduled_total",
			Help:      "Inbound model audio segments scheduled for playback.",
		}),
		toolCallsApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "voxform",
			Name:      "tool_calls_applied_total",
			Help:      "Extraction tool calls applied to the record.",
		}),
		chatRoundTrips: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "voxform",
			Name:      "chat_round_trips_total",
			Help:      "Turn-based chat requests completed.",
		}),
	}
}

func (m *Metrics) sessionStarted() {
	if m != nil {
		m.sessionsStarted.Inc()
	}
}

func (m *Metrics) sessionFailed() {
	if m != nil {
		m.sessionsFailed.Inc()
	}
}

func (m *Metrics) frameSent() {
	if m != nil {
		m.framesSent.Inc()
	}
}

func (m *Metrics) segmentScheduled() {
	if m != nil {
		m.segmentsScheduled.Inc()
	}
}

func (m *Metrics) toolCallApplied() {
	if m != nil {
		m.toolCallsApplied.Inc()
	}
}

func (m *Metrics) chatRoundTrip() {
	if m != nil {
		m.chatRoundTrips.Inc()
	}
}
