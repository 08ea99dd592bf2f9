package agent

import (
	"context"
	"sync"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/dto"
	"ai-accelerator-be/internal/pkg/logger"
	"ai-accelerator-be/pkg/llm/factory"
	"ai-accelerator-be/pkg/prompt"
)

// ToolRegistry resolves plugin names declared in agent configs to tools.
type ToolRegistry map[string]Tool

// Factory builds agents from a resolved orchestrator configuration. Agents
// are singletons: repeated lookups return the same initialized instance.
type Factory struct {
	resolved *dto.ResolvedOrchestratorConfig
	creds    factory.Credentials
	tools    ToolRegistry
	builder  *prompt.Builder
	logger   logger.ILogger

	mu     sync.Mutex
	agents map[string]Agent
}

func NewFactory(resolved *dto.ResolvedOrchestratorConfig, creds factory.Credentials, tools ToolRegistry, builder *prompt.Builder, log logger.ILogger) (*Factory, error) {
	if err := resolved.Validate(); err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, "agent factory rejected configuration", err)
	}
	return &Factory{
		resolved: resolved,
		creds:    creds,
		tools:    tools,
		builder:  builder,
		logger:   log,
		agents:   make(map[string]Agent),
	}, nil
}

// GetAgent returns the named agent, constructing it on first use.
func (f *Factory) GetAgent(ctx context.Context, name string) (Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if agent, ok := f.agents[name]; ok {
		return agent, nil
	}

	cfg := f.resolved.GetAgentConfig(name)
	if cfg == nil {
		return nil, apperror.Newf(apperror.KindNotFound, "agent %q is not configured", name)
	}

	agent, err := f.build(cfg)
	if err != nil {
		return nil, err
	}
	f.agents[name] = agent
	f.logger.Debug("agent_factory", "agent initialized", map[string]interface{}{
		"agent": name,
		"type":  string(cfg.Type),
	})
	return agent, nil
}

func (f *Factory) build(cfg *dto.AgentConfig) (Agent, error) {
	switch cfg.Type {
	case dto.AgentKindChatCompletion:
		svc := f.resolved.GetServiceConfig(cfg.ChatCompletion.ExecutionSettings.ServiceID)
		if svc == nil {
			return nil, apperror.Newf(apperror.KindValidation,
				"agent %q references unknown service %q", cfg.ChatCompletion.AgentName, cfg.ChatCompletion.ExecutionSettings.ServiceID)
		}
		provider, err := factory.NewProviderForService(svc, f.creds)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindValidation, "agent provider construction failed", err)
		}
		tools, err := f.resolveTools(cfg.ChatCompletion.Plugins)
		if err != nil {
			return nil, err
		}
		return NewChatCompletionAgent(cfg.ChatCompletion, provider, f.builder, tools, f.logger), nil

	case dto.AgentKindFoundry:
		provider, err := factory.NewLLMProvider("openai", cfg.Foundry.ModelID, f.creds)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindValidation, "agent provider construction failed", err)
		}
		return NewFoundryAgent(cfg.Foundry, provider, f.logger), nil
	}
	return nil, apperror.Newf(apperror.KindValidation, "unknown agent type %q", cfg.Type)
}

func (f *Factory) resolveTools(plugins []string) ([]Tool, error) {
	tools := make([]Tool, 0, len(plugins))
	for _, name := range plugins {
		tool, ok := f.tools[name]
		if !ok {
			return nil, apperror.Newf(apperror.KindValidation, "plugin %q is not registered", name)
		}
		tools = append(tools, tool)
	}
	return tools, nil
}
