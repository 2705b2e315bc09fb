// Package llm is the completion-capability boundary: a role-tagged message
// list in, full or chunked text plus token-usage metadata out.
package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged turn sent to the model.
type Message struct {
	Role    string
	Content string
}

// Usage carries per-call token accounting. Fields the underlying API omits
// stay zero.
type Usage struct {
	ModelName          string
	PromptTokens       int
	CompletionTokens   int
	CachedPromptTokens int
	TotalTokens        int
}

// Chunk is one event of a streamed completion. A stream yields zero or more
// content chunks followed by exactly one terminal event: either Final with
// the call's Usage, or Err.
type Chunk struct {
	Parts []ContentPart
	Final bool
	Usage Usage
	Err   error
}

// Completer is the chat-completion capability.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, Usage, error)
	Stream(ctx context.Context, messages []Message) (<-chan Chunk, error)
}
