package conversation

import (
	"context"
	"time"
)

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
	ChatRoleTool      = "tool"
)

// ToolCall is a model request to run one tool with structured arguments.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the structured outcome fed back for one tool call.
type ToolResult struct {
	CallID  string         `json:"callId"`
	Name    string         `json:"name"`
	Content map[string]any `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ChatMessage is one turn in the conversation. Assistant turns may carry tool
// calls; tool turns carry the matching results.
type ChatMessage struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	ToolCalls   []ToolCall   `json:"toolCalls,omitempty"`
	ToolResults []ToolResult `json:"toolResults,omitempty"`
}

// ToolSpec describes one callable tool to the model. InputSchema is a JSON
// Schema object; both providers consume it natively.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	Tools       []ToolSpec
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMResponse struct {
	Text       string
	ToolCalls  []ToolCall
	Usage      TokenUsage
	StopReason string
}

// LLMClient abstracts the model provider. Implementations must surface tool
// calls verbatim; the dispatch loop owns execution order.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

type timeoutLLMClient struct {
	inner   LLMClient
	timeout time.Duration
}

// WithRequestTimeout wraps a client so every model call carries a deadline.
// A non-positive timeout returns the client unchanged.
func WithRequestTimeout(inner LLMClient, timeout time.Duration) LLMClient {
	if timeout <= 0 {
		return inner
	}
	return &timeoutLLMClient{inner: inner, timeout: timeout}
}

func (c *timeoutLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.inner.Complete(ctx, req)
}
