package ai

import "context"

// ChatRequest is the logical payload both transports accept.
type ChatRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id"`
	Locale    string `json:"locale"`
}

type Provider interface {
	Chat(ctx context.Context, token string, req ChatRequest) (string, error)
}

// StreamProvider is an optional interface. Providers may implement streaming chat.
type StreamProvider interface {
	StreamChat(ctx context.Context, token string, req ChatRequest) (<-chan Event, <-chan error)
}
