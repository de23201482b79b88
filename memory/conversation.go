package memory

import (
	"encoding/base64"
	"sync"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ChatMessage is one side of a turn. Thinking is only set on model messages that
// carried a reasoning block; Image is a data URI and only set on user messages.
type ChatMessage struct {
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Thinking  string `json:"thinking,omitempty"`
	Image     string `json:"image,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Conversation is the transient, in-process transcript of the current session.
type Conversation struct {
	mu   sync.RWMutex
	msgs []ChatMessage
}

func NewConversation() *Conversation {
	return &Conversation{}
}

// Append adds messages to the end of the transcript.
func (c *Conversation) Append(msgs ...ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msgs...)
}

// Messages returns a copy of the transcript, oldest first.
func (c *Conversation) Messages() []ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ChatMessage, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.msgs)
}

// Reset drops every message.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = nil
}

// DataURI renders raw image bytes as a data URI.
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
