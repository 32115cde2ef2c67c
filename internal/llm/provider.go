// Package llm abstracts the language-model providers behind a single
// completion interface with native tool calling.
package llm

import (
	"context"

	"github.com/fieldlab/sportsdesk/internal/tools"
)

// Message roles used on the provider wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is one function invocation requested by the model. Arguments is
// the raw JSON object the model produced.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is one entry of a completion input sequence.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // assistant messages only
	ToolCallID string     // tool messages only
}

// Request is the input to one model completion.
type Request struct {
	Messages []Message
	Tools    []*tools.Tool
}

// Completion is the model's output: final text, or tool calls to satisfy
// before asking again, or both.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// Provider produces completions. Implementations must be safe for
// concurrent use.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}
