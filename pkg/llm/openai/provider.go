package openai

import (
	"context"
	"errors"
	"fmt"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/pkg/llm"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Provider wraps the OpenAI Chat Completions API behind llm.LLMProvider.
type Provider struct {
	client       openai.Client
	defaultModel string
}

func NewProvider(apiKey, defaultModel string) *Provider {
	var clientOpts []option.RequestOption
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	if defaultModel == "" {
		defaultModel = openai.ChatModelGPT4oMini
	}
	return &Provider{
		client:       openai.NewClient(clientOpts...),
		defaultModel: defaultModel,
	}
}

// NewAzureProvider targets an Azure OpenAI deployment through the same SDK.
func NewAzureProvider(apiKey, endpoint, deployment string) *Provider {
	return &Provider{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(endpoint),
		),
		defaultModel: deployment,
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

	params := openai.ChatCompletionNewParams{
		Messages:    buildMessages(history),
		Model:       p.model(opts),
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.JSONOutput {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	if len(tools) > 0 {
		params.Tools = buildTools(tools)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperror.New(apperror.KindTransient, "model returned no choices")
	}

	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return nil, apperror.New(apperror.KindContentFilter, "model response blocked by content filter")
	}

	result := &llm.ChatResult{Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return result, nil
}

func (p *Provider) model(opts llm.Options) string {
	if opts.Model != "" {
		return opts.Model
	}
	return p.defaultModel
}

func buildMessages(history []llm.Message) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(msg.Content))
		case "assistant":
			if len(msg.ToolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(msg.Content))
				continue
			}
			toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(msg.ToolCalls))
			for i, tc := range msg.ToolCalls {
				toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				}
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				},
			})
		case "tool":
			messages = append(messages, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	return messages
}

func buildTools(tools []llm.ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, tool := range tools {
		out[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  tool.Parameters,
			},
		}
	}
	return out
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429:
			return apperror.Wrap(apperror.KindRateLimit, "model rate limited", err)
		case 400:
			if apiErr.Code == "content_filter" {
				return apperror.Wrap(apperror.KindContentFilter, "request blocked by content filter", err)
			}
			return apperror.Wrap(apperror.KindFatal, "model rejected request", err)
		case 500, 502, 503:
			return apperror.Wrap(apperror.KindServiceUnavailable, "model backend unavailable", err)
		}
	}
	return apperror.Wrap(apperror.KindTransient, fmt.Sprintf("model call failed: %v", err), err)
}
