package llm

import (
	"context"
)

// Message is a chat message in a provider-agnostic format.
type Message struct {
	Role       string // "user", "assistant", "system", "tool"
	Content    string
	ToolCallID string     // set on role "tool" responses
	ToolCalls  []ToolCall // set on assistant messages that requested tools
}

// ToolDefinition advertises a callable function to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ToolCall is the model's request to invoke one tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ChatResult is one completed model turn: free text, tool requests, or both.
type ChatResult struct {
	Content   string
	ToolCalls []ToolCall
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
	JSONOutput  bool
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// WithJSONOutput asks the model to emit a single JSON object.
func WithJSONOutput() Option {
	return func(o *Options) {
		o.JSONOutput = true
	}
}

func ApplyOptions(options ...Option) Options {
	opts := Options{Temperature: 0.7}
	for _, fn := range options {
		fn(&opts)
	}
	return opts
}

// LLMProvider defines the contract for any LLM backend.
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response text.
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// ChatWithTools additionally advertises callable tools; the result may
	// carry tool invocation requests instead of (or alongside) text.
	ChatWithTools(ctx context.Context, history []Message, tools []ToolDefinition, options ...Option) (*ChatResult, error)
}
