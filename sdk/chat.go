package voxform

import (
	"context"
	"sync"

	"google.golang.org/genai"

	"github.com/voxform/voxform/pkg/core"
	"github.com/voxform/voxform/pkg/core/types"
)

// chatErrorReply is appended to the transcript when a round trip fails, so
// the operator sees the failure where they typed.
const chatErrorReply = "Sorry, I encountered an error processing that."

// ChatService opens turn-based text sessions against the model.
type ChatService struct {
	client *Client
}

// ChatSession is the synchronous request/response counterpart to the live
// bridge. It shares the record and transcript with the rest of the
// application and carries the accumulated message history itself.
//
// Send rejects reentrant calls: a second Send while one is outstanding
// returns an error instead of interleaving histories.
type ChatSession struct {
	client     *Client
	cfg        ModeConfig
	genai      *genai.Client
	record     *types.Record
	transcript *types.Transcript

	sendMu  sync.Mutex
	history []*genai.Content
}

// NewSession creates a chat session for the given mode. The transcript is
// reset to the mode's greeting.
func (s *ChatService) NewSession(ctx context.Context, cfg ModeConfig, record *types.Record, transcript *types.Transcript) (*ChatSession, error) {
	if s == nil || s.client == nil {
		return nil, core.NewInvalidRequestError("chat service is not initialized")
	}
	if record == nil || transcript == nil {
		return nil, core.NewInvalidRequestError("record and transcript must not be nil")
	}

	cc := &genai.ClientConfig{
		APIKey:     s.client.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: s.client.httpClient,
	}
	if s.client.chatBaseURL != "" {
		cc.HTTPOptions.BaseURL = s.client.chatBaseURL
	}
	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, core.NewConnectionFailedError("create chat client", err)
	}

	transcript.Reset(cfg.Greeting)
	return &ChatSession{
		client:     s.client,
		cfg:        cfg,
		genai:      gc,
		record:     record,
		transcript: transcript,
	}, nil
}

// Send runs one user turn: request, tool application, and (when the model
// called the extraction tool) a second round trip carrying tool results to
// obtain the final reply.
func (c *ChatSession) Send(ctx context.Context, userText string) (string, error) {
	if c == nil {
		return "", core.NewInvalidRequestError("session must not be nil")
	}
	if !c.sendMu.TryLock() {
		return "", core.NewInvalidRequestError("a send is already in flight")
	}
	defer c.sendMu.Unlock()

	ctx, span := c.client.tracer.Start(ctx, "chat.send")
	defer span.End()

	c.transcript.Append(types.RoleUser, userText)
	c.history = append(c.history, &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: userText}},
	})

	config := c.generateConfig()

	resp, err := c.genai.Models.GenerateContent(ctx, c.client.chatModel, c.history, config)
	if err != nil {
		// Drop the failed turn so a retry does not submit two consecutive
		// user turns.
		c.history = c.history[:len(c.history)-1]
		c.transcript.Append(types.RoleAssistant, chatErrorReply)
		return "", core.NewAPIError("chat request failed: " + err.Error())
	}

	calls := resp.FunctionCalls()
	if len(calls) == 0 {
		reply := resp.Text()
		c.appendModelTurn(resp)
		c.transcript.Append(types.RoleAssistant, reply)
		c.client.metrics.chatRoundTrip()
		return reply, nil
	}

	// Apply the extraction calls, then answer them in a second round trip
	// so the model can produce its confirmation text.
	responses := make([]*genai.Part, 0, len(calls))
	for _, call := range calls {
		if call.Name == c.cfg.ToolName {
			changed := c.record.Apply(stringArgs(call.Args))
			if len(changed) > 0 {
				c.client.metrics.toolCallApplied()
			}
		}
		responses = append(responses, &genai.Part{FunctionResponse: &genai.FunctionResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: map[string]any{"result": "ok"},
		}})
	}
	c.appendModelTurn(resp)
	c.history = append(c.history, &genai.Content{Role: genai.RoleUser, Parts: responses})

	final, err := c.genai.Models.GenerateContent(ctx, c.client.chatModel, c.history, config)
	if err != nil {
		c.transcript.Append(types.RoleAssistant, chatErrorReply)
		return "", core.NewAPIError("tool result round trip failed: " + err.Error())
	}

	reply := final.Text()
	c.appendModelTurn(final)
	c.transcript.Append(types.RoleAssistant, reply)
	c.client.metrics.chatRoundTrip()
	return reply, nil
}

func (c *ChatSession) generateConfig() *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if c.cfg.Instruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: c.cfg.Instruction}},
		}
	}
	if c.cfg.ToolName != "" {
		config.Tools = []*genai.Tool{{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        c.cfg.ToolName,
				Description: c.cfg.ToolDescription,
				Parameters:  c.cfg.Schema,
			}},
		}}
	}
	return config
}

func (c *ChatSession) appendModelTurn(resp *genai.GenerateContentResponse) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return
	}
	c.history = append(c.history, resp.Candidates[0].Content)
}

// stringArgs flattens tool-call arguments to the string-valued field
// update shape. Non-string values are skipped.
func stringArgs(args map[string]any) types.FieldUpdate {
	out := make(types.FieldUpdate, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
