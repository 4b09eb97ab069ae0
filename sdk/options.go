package voxform

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the Gemini API key explicitly.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithModel sets the live model identifier.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithChatModel sets the model used by the turn-based chat path.
func WithChatModel(model string) ClientOption {
	return func(c *Client) {
		c.chatModel = model
	}
}

// WithVoice selects the prebuilt synthesis voice for live sessions.
func WithVoice(name string) ClientOption {
	return func(c *Client) {
		c.voice = name
	}
}

// WithLiveHost overrides the live websocket host. Tests point this at a
// local server.
func WithLiveHost(host string) ClientOption {
	return func(c *Client) {
		c.liveHost = host
	}
}

// WithChatBaseURL overrides the HTTP base URL for the turn-based chat
// path. Tests point this at a local server.
func WithChatBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.chatBaseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger for the client.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithTracer sets the OpenTelemetry tracer for the client.
func WithTracer(t trace.Tracer) ClientOption {
	return func(c *Client) {
		c.tracer = t
	}
}

// WithMetrics attaches a metrics registry to the client's sessions.
func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}
