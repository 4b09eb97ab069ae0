// Package protocol defines the wire frames exchanged over the duplex
// streaming connection to the Gemini live API (BidiGenerateContent).
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MimeTypeAudioIn is the outbound microphone frame format.
const MimeTypeAudioIn = "audio/pcm;rate=16000"

// AudioOutSampleRateHz is the model's native synthesis rate. Inbound
// segments arrive as s16le mono at this rate.
const AudioOutSampleRateHz = 24000

// DecodeError reports a server frame whose payload shape is unexpected.
type DecodeError struct {
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func malformed(message, param string) *DecodeError {
	return &DecodeError{Message: message, Param: param}
}

// --- Client frames ---

// Blob is a base64-wrapped media payload.
type Blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Content is a role-tagged list of parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is one piece of content. Exactly one member is set.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

// FunctionDeclaration advertises one callable extraction function to the
// model. Parameters carries an already-marshaled JSON schema.
type FunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Tool groups function declarations.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations,omitempty"`
}

// PrebuiltVoiceConfig selects a synthesized voice by name.
type PrebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

// VoiceConfig wraps the voice selection.
type VoiceConfig struct {
	PrebuiltVoiceConfig *PrebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

// SpeechConfig configures synthesis.
type SpeechConfig struct {
	VoiceConfig *VoiceConfig `json:"voiceConfig,omitempty"`
}

// GenerationConfig carries the session-level generation settings.
type GenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
}

// Setup is the first client frame, sent once after dial.
type Setup struct {
	Model             string            `json:"model"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	Tools             []Tool            `json:"tools,omitempty"`
}

// ClientSetup wraps Setup in its envelope.
type ClientSetup struct {
	Setup Setup `json:"setup"`
}

// RealtimeInput carries continuous media from the capture device.
type RealtimeInput struct {
	MediaChunks []Blob `json:"mediaChunks"`
}

// ClientRealtimeInput wraps RealtimeInput in its envelope.
type ClientRealtimeInput struct {
	RealtimeInput RealtimeInput `json:"realtimeInput"`
}

// FunctionResponse acknowledges one tool call, correlated by id.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// ToolResponse carries acknowledgments for one or more calls.
type ToolResponse struct {
	FunctionResponses []FunctionResponse `json:"functionResponses"`
}

// ClientToolResponse wraps ToolResponse in its envelope.
type ClientToolResponse struct {
	ToolResponse ToolResponse `json:"toolResponse"`
}

// --- Server frames ---

// ServerSetupComplete acknowledges the setup frame.
type ServerSetupComplete struct{}

// ServerContent is a model turn fragment: inline audio and/or text parts,
// plus turn bookkeeping.
type ServerContent struct {
	ModelTurn    *Content `json:"modelTurn,omitempty"`
	TurnComplete bool     `json:"turnComplete,omitempty"`
	Interrupted  bool     `json:"interrupted,omitempty"`
}

// FunctionCall is one model-issued extraction instruction.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ServerToolCall carries one or more function calls issued in one event.
type ServerToolCall struct {
	FunctionCalls []FunctionCall `json:"functionCalls"`
}

// ServerGoAway warns that the server will close the connection.
type ServerGoAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

// ServerMessage is the discriminated union of inbound frames. Exactly one
// of the typed accessors applies per message.
type ServerMessage interface {
	serverMessageType() string
}

func (ServerSetupComplete) serverMessageType() string { return "setup_complete" }
func (ServerContent) serverMessageType() string       { return "server_content" }
func (ServerToolCall) serverMessageType() string      { return "tool_call" }
func (ServerGoAway) serverMessageType() string        { return "go_away" }

// ServerUnknown preserves frames this client does not understand.
type ServerUnknown struct {
	Raw json.RawMessage
}

func (ServerUnknown) serverMessageType() string { return "unknown" }

type serverEnvelope struct {
	SetupComplete *json.RawMessage `json:"setupComplete,omitempty"`
	ServerContent *ServerContent   `json:"serverContent,omitempty"`
	ToolCall      *ServerToolCall  `json:"toolCall,omitempty"`
	GoAway        *ServerGoAway    `json:"goAway,omitempty"`
}

// DecodeServerMessage parses one inbound frame into the union. Audio and
// tool-call payloads may co-occur on the wire only as separate envelopes;
// a single envelope carries exactly one member.
func DecodeServerMessage(data []byte) (ServerMessage, error) {
	var env serverEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, malformed("undecodable server frame: "+err.Error(), "")
	}

	switch {
	case env.SetupComplete != nil:
		return ServerSetupComplete{}, nil
	case env.ServerContent != nil:
		return *env.ServerContent, nil
	case env.ToolCall != nil:
		if len(env.ToolCall.FunctionCalls) == 0 {
			return nil, malformed("tool call frame without function calls", "toolCall.functionCalls")
		}
		return *env.ToolCall, nil
	case env.GoAway != nil:
		return *env.GoAway, nil
	default:
		return ServerUnknown{Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

// InlineAudio extracts the concatenated inline audio payloads of a content
// frame, in part order. Returns base64 strings; the caller decodes.
func (c ServerContent) InlineAudio() []string {
	if c.ModelTurn == nil {
		return nil
	}
	var out []string
	for _, p := range c.ModelTurn.Parts {
		if p.InlineData != nil && p.InlineData.Data != "" {
			out = append(out, p.InlineData.Data)
		}
	}
	return out
}

// Text extracts the concatenated text parts of a content frame.
func (c ServerContent) Text() string {
	if c.ModelTurn == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range c.ModelTurn.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// StringArgs flattens a function call's arguments to the string-valued
// field update shape. Non-string values are skipped.
func (f FunctionCall) StringArgs() map[string]string {
	out := make(map[string]string, len(f.Args))
	for k, v := range f.Args {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
