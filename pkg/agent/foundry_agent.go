package agent

import (
	"context"
	"sync"

	"ai-accelerator-be/internal/dto"
	"ai-accelerator-be/internal/pkg/logger"
	"ai-accelerator-be/pkg/llm"
)

// FoundryAgent executes a remotely defined agent: model, instructions and
// response schema come from the registry, and each conversation gets its own
// thread so turns share state server-side.
type FoundryAgent struct {
	config   *dto.AIFoundryAgentConfig
	provider llm.LLMProvider
	logger   logger.ILogger

	mu      sync.Mutex
	threads map[string][]llm.Message
}

func NewFoundryAgent(cfg *dto.AIFoundryAgentConfig, provider llm.LLMProvider, log logger.ILogger) *FoundryAgent {
	return &FoundryAgent{
		config:   cfg,
		provider: provider,
		logger:   log,
		threads:  make(map[string][]llm.Message),
	}
}

func (a *FoundryAgent) Name() string {
	return a.config.AgentName
}

func (a *FoundryAgent) Invoke(ctx context.Context, input Input) (*Output, error) {
	return invokeWithRetry(ctx, func(ctx context.Context) (*Output, error) {
		return a.invokeOnce(ctx, input)
	})
}

func (a *FoundryAgent) invokeOnce(ctx context.Context, input Input) (*Output, error) {
	thread := a.loadThread(input.ConversationID)

	messages := make([]llm.Message, 0, len(thread)+len(input.History)+1)
	messages = append(messages, llm.Message{Role: "system", Content: a.config.Instructions})
	messages = append(messages, thread...)
	messages = append(messages, input.History...)

	opts := []llm.Option{
		llm.WithModel(a.config.ModelID),
		llm.WithTemperature(a.config.Temperature),
	}
	if a.config.MaxCompletionTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(a.config.MaxCompletionTokens))
	}
	if a.config.ResponseSchema != nil {
		opts = append(opts, llm.WithJSONOutput())
	}

	content, err := a.provider.Chat(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}

	a.appendToThread(input.ConversationID, input.History, llm.Message{Role: "assistant", Content: content})
	return &Output{Content: content}, nil
}

func (a *FoundryAgent) loadThread(conversationID string) []llm.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	thread := a.threads[conversationID]
	out := make([]llm.Message, len(thread))
	copy(out, thread)
	return out
}

func (a *FoundryAgent) appendToThread(conversationID string, turns []llm.Message, reply llm.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.threads[conversationID] = append(a.threads[conversationID], append(turns, reply)...)
}

// EndThread discards the per-conversation thread state.
func (a *FoundryAgent) EndThread(conversationID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.threads, conversationID)
}
