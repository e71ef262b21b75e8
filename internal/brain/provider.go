package brain

import (
	"context"
	"encoding/json"
)

// Provider is an AI backend the operator assistant can talk through. Send
// delivers the installation prompt and the operator conversation so far and
// returns the model's next turn. Implementations live in claude.go and
// gemini.go.
type Provider interface {
	Send(ctx context.Context, systemPrompt string, history []Message) (*Response, error)
}

// Message is one turn of an operator conversation. A user turn carries the
// operator's text or the results of stage tools; an assistant turn carries
// the reply or the stage tools it wants run.
type Message struct {
	Role        string // "user" or "assistant"
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ToolCall asks for one stage tool (get_state, set_mood, ...) to run.
// Gemini has no call IDs, so its ID is the function name.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResult is a stage tool's output, matched to its call by ID. IsError
// marks refusals such as an unknown mood or an active override.
type ToolResult struct {
	ID      string
	Content string
	IsError bool
}

// Response is the model's turn. Done is set when it asked for no tools and
// Text is the final answer for the operator.
type Response struct {
	Text      string
	ToolCalls []ToolCall
	Done      bool
}
