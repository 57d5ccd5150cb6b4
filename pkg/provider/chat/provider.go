// Package chat defines the Provider interface for chat-completion backends.
//
// A chat provider wraps a remote or local language model API (e.g., OpenAI,
// Anthropic, Gemini, or a local Ollama instance) and exposes a uniform
// interface for producing assistant replies from a conversation history plus
// a system instruction, without coupling to any specific SDK.
//
// The session core consumes either a complete reply string (Complete) or an
// incremental stream (StreamCompletion) and treats stream end as the
// reply-ready event.
//
// Implementations must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends
// or when the supplied context is cancelled.
package chat

import (
	"context"

	"github.com/presidence-ga/iasted/pkg/types"
)

// Message is one turn of conversation input to the model.
type Message struct {
	// Role is who authored the turn.
	Role types.Role

	// Content is the turn text.
	Content string
}

// Usage holds token accounting information returned by the backend.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages
	// and system prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// Request carries everything the model needs to produce a reply. A
// zero-value request is invalid; at minimum Messages must be non-empty.
type Request struct {
	// Messages is the ordered conversation history. The last message is
	// typically the user turn that drives the reply.
	Messages []Message

	// SystemPrompt is a high-priority instruction injected before the
	// conversation history. Providers without a dedicated system slot
	// prepend it as a "system"-role message.
	SystemPrompt string

	// Temperature controls output randomness in the range [0.0, 2.0].
	// Zero requests the provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means the
	// provider default.
	MaxTokens int
}

// Chunk is a single fragment emitted by a streaming completion.
type Chunk struct {
	// Text is the incremental text content of this chunk.
	Text string

	// FinishReason is set on the final chunk and indicates why generation
	// stopped: "stop" (natural end), "length" (MaxTokens reached),
	// "error" (backend failure; Text carries the message), or "" for
	// non-final chunks.
	FinishReason string
}

// Response is returned by the non-streaming Complete method.
type Response struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any chat-completion backend.
//
// Implementations must be safe for concurrent use and must propagate
// context cancellation promptly. Errors returned by either method should be
// passed through [Classify] by implementations that can recognize
// rate-limit or quota failures, so callers can surface the specific kind.
type Provider interface {
	// StreamCompletion sends req to the model and returns a read-only
	// channel emitting Chunk values as they arrive. The channel is closed
	// when generation finishes or ctx is cancelled. Callers must drain the
	// channel to avoid goroutine leaks. Errors after the stream opens are
	// surfaced as a Chunk with FinishReason "error"; the initial error
	// return is non-nil only for failures that prevent the stream from
	// starting. The returned channel must never be nil when error is nil.
	StreamCompletion(ctx context.Context, req Request) (<-chan Chunk, error)

	// Complete sends req to the model and waits for the full reply.
	Complete(ctx context.Context, req Request) (*Response, error)
}
