package factory

import (
	"fmt"

	"ai-accelerator-be/internal/dto"
	"ai-accelerator-be/pkg/llm"
	"ai-accelerator-be/pkg/llm/anthropic"
	"ai-accelerator-be/pkg/llm/openai"
)

// Credentials carries the API keys the factory may hand to providers.
type Credentials struct {
	OpenAIAPIKey    string
	AnthropicAPIKey string
	AzureEndpoint   string
	AzureAPIKey     string
}

// NewLLMProvider builds a provider for a generic provider name.
func NewLLMProvider(providerType, modelName string, creds Credentials) (llm.LLMProvider, error) {
	switch providerType {
	case "openai":
		return openai.NewProvider(creds.OpenAIAPIKey, modelName), nil
	case "anthropic":
		return anthropic.NewProvider(creds.AnthropicAPIKey, modelName), nil
	case "azure_openai":
		return openai.NewAzureProvider(creds.AzureAPIKey, creds.AzureEndpoint, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}

// NewProviderForService builds a provider from a resolved service config.
func NewProviderForService(svc *dto.ServiceConfig, creds Credentials) (llm.LLMProvider, error) {
	switch svc.Type {
	case dto.ServiceKindOpenAI:
		return openai.NewProvider(creds.OpenAIAPIKey, svc.ModelID), nil
	case dto.ServiceKindAzureOpenAI:
		return openai.NewAzureProvider(creds.AzureAPIKey, creds.AzureEndpoint, svc.DeploymentName), nil
	case dto.ServiceKindAzureAIInference:
		return openai.NewAzureProvider(creds.AzureAPIKey, creds.AzureEndpoint, svc.ModelID), nil
	default:
		return nil, fmt.Errorf("unsupported service type: %s", svc.Type)
	}
}
