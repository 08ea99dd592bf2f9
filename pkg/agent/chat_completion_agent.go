package agent

import (
	"context"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/dto"
	"ai-accelerator-be/internal/pkg/logger"
	"ai-accelerator-be/pkg/llm"
	"ai-accelerator-be/pkg/prompt"
)

// maxToolRounds bounds the function-calling loop per invocation.
const maxToolRounds = 5

// ChatCompletionAgent is a prompt-driven agent bound to one chat service.
// Plugins are resolved to tools at construction time.
type ChatCompletionAgent struct {
	config   *dto.ChatCompletionAgentConfig
	provider llm.LLMProvider
	builder  *prompt.Builder
	tools    []Tool
	logger   logger.ILogger
}

func NewChatCompletionAgent(cfg *dto.ChatCompletionAgentConfig, provider llm.LLMProvider, builder *prompt.Builder, tools []Tool, log logger.ILogger) *ChatCompletionAgent {
	return &ChatCompletionAgent{
		config:   cfg,
		provider: provider,
		builder:  builder,
		tools:    tools,
		logger:   log,
	}
}

func (a *ChatCompletionAgent) Name() string {
	return a.config.AgentName
}

func (a *ChatCompletionAgent) Invoke(ctx context.Context, input Input) (*Output, error) {
	return invokeWithRetry(ctx, func(ctx context.Context) (*Output, error) {
		return a.invokeOnce(ctx, input)
	})
}

func (a *ChatCompletionAgent) invokeOnce(ctx context.Context, input Input) (*Output, error) {
	p := &prompt.Prompt{
		Name:           a.config.AgentName,
		SystemTemplate: a.config.Prompt,
		TotalMaxTokens: 8192,
		MaxTokens:      a.config.ExecutionSettings.MaxTokens,
	}
	messages, err := a.builder.BuildMessages(p, input.Arguments, input.History, input.Context)
	if err != nil {
		return nil, err
	}

	opts := []llm.Option{
		llm.WithTemperature(a.config.ExecutionSettings.Temperature),
	}
	if a.config.ExecutionSettings.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(a.config.ExecutionSettings.MaxTokens))
	}
	if a.config.ExecutionSettings.ResponseFormat != nil {
		opts = append(opts, llm.WithJSONOutput())
	}

	definitions := make([]llm.ToolDefinition, len(a.tools))
	byName := make(map[string]*Tool, len(a.tools))
	for i := range a.tools {
		definitions[i] = llm.ToolDefinition{
			Name:        a.tools[i].Name,
			Description: a.tools[i].Description,
			Parameters:  a.tools[i].Parameters,
		}
		byName[a.tools[i].Name] = &a.tools[i]
	}

	for round := 0; round < maxToolRounds; round++ {
		result, err := a.provider.ChatWithTools(ctx, messages, definitions, opts...)
		if err != nil {
			return nil, err
		}
		if len(result.ToolCalls) == 0 {
			return &Output{Content: result.Content}, nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   result.Content,
			ToolCalls: result.ToolCalls,
		})
		for _, call := range result.ToolCalls {
			tool, ok := byName[call.Name]
			if !ok {
				messages = append(messages, llm.Message{
					Role:       "tool",
					ToolCallID: call.ID,
					Content:    "error: unknown tool " + call.Name,
				})
				continue
			}
			output, err := tool.Invoke(ctx, call.Arguments)
			if err != nil {
				a.logger.Warn("agent", "tool invocation failed", map[string]interface{}{
					"agent": a.config.AgentName,
					"tool":  call.Name,
					"error": err.Error(),
				})
				output = "error: " + err.Error()
			}
			messages = append(messages, llm.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    output,
			})
		}
	}
	return nil, apperror.Newf(apperror.KindFatal, "agent %q exceeded %d tool rounds", a.config.AgentName, maxToolRounds)
}
