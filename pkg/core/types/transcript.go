package types

import (
	"sync"
)

// Role identifies the speaker of a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one conversational entry in the transcript.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Transcript is the append-only turn log shown in the chat pane. It is
// cleared wholesale on reset or mode switch, never edited in place.
type Transcript struct {
	mu    sync.Mutex
	turns []Turn
}

// NewTranscript creates a transcript seeded with an assistant greeting.
func NewTranscript(greeting string) *Transcript {
	t := &Transcript{}
	if greeting != "" {
		t.turns = append(t.turns, Turn{Role: RoleAssistant, Text: greeting})
	}
	return t
}

// Append adds one turn.
func (t *Transcript) Append(role Role, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, Turn{Role: role, Text: text})
}

// Turns returns a copy of all turns in order.
func (t *Transcript) Turns() []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Turn(nil), t.turns...)
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.turns)
}

// Reset drops all turns and reseeds the greeting.
func (t *Transcript) Reset(greeting string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = t.turns[:0]
	if greeting != "" {
		t.turns = append(t.turns, Turn{Role: RoleAssistant, Text: greeting})
	}
}
