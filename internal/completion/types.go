// Package completion provides the chat completion client: fingerprinted
// response caching, cancellable atomic and streaming requests, and model
// discovery against an OpenAI-compatible provider.
package completion

import (
	"errors"
	"fmt"
)

const (
	// RoleSystem is the role for system instruction messages.
	RoleSystem = "system"
	// RoleUser is the role for user messages.
	RoleUser = "user"
	// RoleAssistant is the role for assistant messages.
	RoleAssistant = "assistant"
)

// Message is a single conversation message. Order within a conversation is
// semantically significant and participates in the cache fingerprint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one completion call. A nil Temperature means the
// provider default; it is distinct from an explicit zero and the two
// fingerprint differently.
type Request struct {
	Messages    []Message
	Model       string
	Temperature *float32
}

// Validate checks the request invariants before any network activity.
func (r *Request) Validate() error {
	if r.Model == "" {
		return errors.New("model is required")
	}
	if len(r.Messages) == 0 {
		return errors.New("at least one message is required")
	}
	for i, m := range r.Messages {
		if m.Role != RoleSystem && m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("invalid role %q in messages[%d]", m.Role, i)
		}
	}

	return nil
}

// Request shape sent upstream (OpenAI-style). Temperature is a pointer so
// the key is omitted entirely when the caller did not set one; providers
// must never receive an implicit zero.
type providerChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float32  `json:"temperature,omitempty"`
}

type providerChatChoice struct {
	Message Message `json:"message"`
}

type providerChatResponse struct {
	Choices []providerChatChoice `json:"choices"`
}

// Chunk shape for streaming responses (each SSE "data:" event).
type providerStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type providerModel struct {
	ID string `json:"id"`
}

type providerModelsResponse struct {
	Data []providerModel `json:"data"`
}
