package anthropic

import (
	"context"
	"encoding/json"
	"errors"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/pkg/llm"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
)

const defaultMaxTokens = 4096

// Provider wraps the Anthropic Messages API behind llm.LLMProvider.
type Provider struct {
	client       anthropic.Client
	defaultModel anthropic.Model
}

func NewProvider(apiKey, defaultModel string) *Provider {
	var clientOpts []option.RequestOption
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	model := anthropic.Model(defaultModel)
	if defaultModel == "" {
		model = anthropic.ModelClaude3_5Sonnet20241022
	}
	return &Provider{
		client:       anthropic.NewClient(clientOpts...),
		defaultModel: model,
	}
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	result, err := p.ChatWithTools(ctx, history, nil, options...)
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

func (p *Provider) ChatWithTools(ctx context.Context, history []llm.Message, tools []llm.ToolDefinition, options ...llm.Option) (*llm.ChatResult, error) {
	opts := llm.ApplyOptions(options...)

	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       p.model(opts),
		Messages:    buildMessages(history),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(opts.Temperature),
	}
	if system := extractSystem(history); len(system) > 0 {
		params.System = system
	}
	if len(tools) > 0 {
		params.Tools = buildTools(tools)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	result := &llm.ChatResult{}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			result.Content += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			args, _ := json.Marshal(toolBlock.Input)
			result.ToolCalls = append(result.ToolCalls, llm.ToolCall{
				ID:        toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: string(args),
			})
		}
	}
	return result, nil
}

func (p *Provider) model(opts llm.Options) anthropic.Model {
	if opts.Model != "" {
		return anthropic.Model(opts.Model)
	}
	return p.defaultModel
}

func buildMessages(history []llm.Message) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, msg := range history {
		switch msg.Role {
		case "system":
			continue
		case "assistant":
			blocks := []anthropic.ContentBlockParamUnion{}
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, json.RawMessage(tc.Arguments), tc.Name))
			}
			if len(blocks) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(blocks...))
			}
		case "tool":
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return messages
}

func extractSystem(history []llm.Message) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, msg := range history {
		if msg.Role == "system" && msg.Content != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: msg.Content})
		}
	}
	return blocks
}

func buildTools(tools []llm.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if tool.Parameters != nil {
			if properties, ok := tool.Parameters["properties"]; ok {
				inputSchema.Properties = properties
			}
		}
		out[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: inputSchema,
			},
		}
	}
	return out
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429:
			return apperror.Wrap(apperror.KindRateLimit, "model rate limited", err)
		case 400:
			return apperror.Wrap(apperror.KindFatal, "model rejected request", err)
		case 500, 502, 503, 529:
			return apperror.Wrap(apperror.KindServiceUnavailable, "model backend unavailable", err)
		}
	}
	return apperror.Wrap(apperror.KindTransient, "model call failed", err)
}
