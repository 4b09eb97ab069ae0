// Package voxform provides the VoxForm SDK for Go: structured-dictation
// sessions against the Gemini API, in both turn-based text chat and
// realtime duplex voice.
package voxform

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxform/voxform/pkg/core"
)

const (
	defaultModel     = "models/gemini-2.0-flash-exp"
	defaultChatModel = "gemini-2.0-flash"
	defaultVoice     = "Puck"
	defaultLiveHost  = "generativelanguage.googleapis.com"
)

// Client is the main entry point for the SDK.
type Client struct {
	Chat *ChatService
	Live *LiveService

	apiKey      string
	model       string
	chatModel   string
	voice       string
	liveHost    string
	chatBaseURL string
	httpClient  *http.Client
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     *Metrics
}

// NewClient creates a client. The API key is taken from GEMINI_API_KEY
// (falling back to GOOGLE_API_KEY) unless WithAPIKey overrides it.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		model:      defaultModel,
		chatModel:  defaultChatModel,
		voice:      defaultVoice,
		liveHost:   defaultLiveHost,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     slog.Default(),
		tracer:     otel.Tracer("github.com/voxform/voxform"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.apiKey == "" {
		c.apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if c.apiKey == "" {
		return nil, core.NewInvalidRequestError("missing API key (set GEMINI_API_KEY)")
	}

	c.Chat = &ChatService{client: c}
	c.Live = &LiveService{client: c}
	return c, nil
}

// Model returns the live model identifier the client connects with.
func (c *Client) Model() string {
	return c.model
}
