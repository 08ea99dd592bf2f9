package dto

import (
	"encoding/json"
	"fmt"
)

// ConfigType partitions the configuration registry.
type ConfigType string

const (
	ConfigTypeAgent          ConfigType = "agent"
	ConfigTypeService        ConfigType = "service"
	ConfigTypeSystem         ConfigType = "system"
	ConfigTypeOrchestrator   ConfigType = "orchestrator"
	ConfigTypeSessionManager ConfigType = "session-manager"
	ConfigTypeEvaluation     ConfigType = "evaluation"
)

func (t ConfigType) Valid() bool {
	switch t {
	case ConfigTypeAgent, ConfigTypeService, ConfigTypeSystem,
		ConfigTypeOrchestrator, ConfigTypeSessionManager, ConfigTypeEvaluation:
		return true
	}
	return false
}

// AgentKind discriminates the agent config union.
type AgentKind string

const (
	AgentKindFoundry        AgentKind = "ai_foundry_agent"
	AgentKindChatCompletion AgentKind = "chat_completion_agent"
)

// ResponseSchema declares a typed JSON output contract for an agent.
type ResponseSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
}

// AIFoundryAgentConfig configures a remote agent definition.
type AIFoundryAgentConfig struct {
	AgentName           string          `json:"agent_name" validate:"required"`
	ModelID             string          `json:"model_id" validate:"required"`
	Instructions        string          `json:"instructions"`
	Temperature         float64         `json:"temperature" validate:"gte=0,lte=1"`
	TopP                float64         `json:"top_p,omitempty"`
	MaxPromptTokens     int             `json:"max_prompt_tokens,omitempty"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	ResponseSchema      *ResponseSchema `json:"response_schema,omitempty"`
	Tools               []string        `json:"tools,omitempty"`
}

// ExecutionSettings bind a chat-completion agent to a service and decoding
// parameters.
type ExecutionSettings struct {
	ServiceID      string          `json:"service_id" validate:"required"`
	Temperature    float64         `json:"temperature" validate:"gte=0,lte=1"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseSchema `json:"response_format,omitempty"`
}

// ChatCompletionAgentConfig configures a local prompt-driven agent.
type ChatCompletionAgentConfig struct {
	AgentName         string             `json:"agent_name" validate:"required"`
	Prompt            string             `json:"prompt" validate:"required"`
	Description       string             `json:"description,omitempty"`
	ExecutionSettings *ExecutionSettings `json:"execution_settings" validate:"required"`
	Plugins           []string           `json:"plugins,omitempty"`
}

// AgentConfig is the sealed agent union; exactly one variant is set according
// to Type.
type AgentConfig struct {
	Type           AgentKind                  `json:"type"`
	Foundry        *AIFoundryAgentConfig      `json:"-"`
	ChatCompletion *ChatCompletionAgentConfig `json:"-"`
}

func (a AgentConfig) AgentName() string {
	switch a.Type {
	case AgentKindFoundry:
		return a.Foundry.AgentName
	case AgentKindChatCompletion:
		return a.ChatCompletion.AgentName
	}
	return ""
}

func (a *AgentConfig) UnmarshalJSON(data []byte) error {
	var head struct {
		Type AgentKind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	switch head.Type {
	case AgentKindFoundry:
		var body AIFoundryAgentConfig
		if err := json.Unmarshal(data, &body); err != nil {
			return err
		}
		*a = AgentConfig{Type: head.Type, Foundry: &body}
	case AgentKindChatCompletion:
		var body ChatCompletionAgentConfig
		if err := json.Unmarshal(data, &body); err != nil {
			return err
		}
		*a = AgentConfig{Type: head.Type, ChatCompletion: &body}
	default:
		return fmt.Errorf("unknown agent config type %q", head.Type)
	}
	return nil
}

func (a AgentConfig) MarshalJSON() ([]byte, error) {
	switch a.Type {
	case AgentKindFoundry:
		return marshalWithType(a.Foundry, string(a.Type))
	case AgentKindChatCompletion:
		return marshalWithType(a.ChatCompletion, string(a.Type))
	}
	return nil, fmt.Errorf("unknown agent config type %q", a.Type)
}

// ServiceKind discriminates the service config union.
type ServiceKind string

const (
	ServiceKindAzureOpenAI      ServiceKind = "azure_openai"
	ServiceKindOpenAI           ServiceKind = "openai"
	ServiceKindAzureAIInference ServiceKind = "azure_ai_inference"
)

// ServiceUsage describes what the service is used for.
type ServiceUsage string

const (
	ServiceUsageChat      ServiceUsage = "Chat"
	ServiceUsageEmbedding ServiceUsage = "Embedding"
	ServiceUsageInference ServiceUsage = "Inference"
)

// ServiceConfig describes one model endpoint binding.
type ServiceConfig struct {
	Type           ServiceKind  `json:"type" validate:"required"`
	ServiceID      string       `json:"service_id" validate:"required"`
	ServiceType    ServiceUsage `json:"service_type" validate:"required"`
	DeploymentName string       `json:"deployment_name,omitempty"` // azure_openai
	APIVersion     string       `json:"api_version,omitempty"`     // azure_openai
	ModelID        string       `json:"model_id,omitempty"`        // openai / azure_ai_inference
}

// SystemConfig carries process-level orchestrator settings.
type SystemConfig struct {
	Locale              string            `json:"locale,omitempty"`
	CannedResponses     map[string]string `json:"canned_responses,omitempty"`
	TurnTimeoutSeconds  int               `json:"turn_timeout_seconds,omitempty"`
	MergeStrategy       string            `json:"merge_strategy,omitempty"`
	SearchConfigVersion string            `json:"search_config_version,omitempty"`
}

// OrchestratorConfig references its parts by version; resolution inlines them.
type OrchestratorConfig struct {
	SystemConfig   string            `json:"system_config,omitempty"`
	AgentsConfig   map[string]string `json:"agents_config,omitempty"`
	ServicesConfig []string          `json:"services_config,omitempty"`
}

// SessionManagerConfig carries gateway-side runtime overrides.
type SessionManagerConfig struct {
	StorageAccountURL string `json:"storage_account_url,omitempty"`
	StorageContainer  string `json:"storage_container,omitempty"`
}

// EvaluationConfig parameterizes the offline benchmark runner.
type EvaluationConfig struct {
	DatasetPath          string `json:"dataset_path,omitempty"`
	OrchestratorVersion  string `json:"orchestrator_version,omitempty"`
	SearchTopK           int    `json:"search_top_k,omitempty"`
	ConversationIDPrefix string `json:"conversation_id_prefix,omitempty"`
}

// ConfigDocument is the stored registry row: a (type, version) key and the
// raw validated body.
type ConfigDocument struct {
	ConfigType    ConfigType      `json:"config_type"`
	ConfigVersion string          `json:"config_version"`
	ConfigBody    json.RawMessage `json:"config_body"`
}

type CreateConfigRequest struct {
	ConfigVersion string          `json:"config_version,omitempty"`
	ConfigBody    json.RawMessage `json:"config_body" validate:"required"`
}

type CreateConfigResponse struct {
	ConfigType    ConfigType `json:"config_type"`
	ConfigVersion string     `json:"config_version"`
}

// ResolvedOrchestratorConfig is the acyclic, fully dereferenced orchestrator
// configuration: agents are re-keyed by agent name, services inlined.
type ResolvedOrchestratorConfig struct {
	BaseConfig     OrchestratorConfig     `json:"base_config"`
	SystemConfig   *SystemConfig          `json:"system_config,omitempty"`
	AgentConfigs   map[string]AgentConfig `json:"agent_configs"`
	ServiceConfigs []ServiceConfig        `json:"service_configs"`
}

// GetAgentConfig returns the named agent's config, or nil.
func (c *ResolvedOrchestratorConfig) GetAgentConfig(agentName string) *AgentConfig {
	if cfg, ok := c.AgentConfigs[agentName]; ok {
		return &cfg
	}
	return nil
}

// Validate ensures every chat-completion agent references a resolved service.
func (c *ResolvedOrchestratorConfig) Validate() error {
	validServiceIDs := make(map[string]bool, len(c.ServiceConfigs))
	for _, svc := range c.ServiceConfigs {
		validServiceIDs[svc.ServiceID] = true
	}
	for name, agent := range c.AgentConfigs {
		if agent.Type != AgentKindChatCompletion {
			continue
		}
		settings := agent.ChatCompletion.ExecutionSettings
		if settings == nil || settings.ServiceID == "" {
			return fmt.Errorf("agent %q of type chat_completion_agent must declare a service_id", name)
		}
		if !validServiceIDs[settings.ServiceID] {
			return fmt.Errorf("agent %q references service_id %q that does not exist in the resolved service configurations", name, settings.ServiceID)
		}
	}
	return nil
}

// GetServiceConfig returns the service with the given id, or nil.
func (c *ResolvedOrchestratorConfig) GetServiceConfig(serviceID string) *ServiceConfig {
	for i := range c.ServiceConfigs {
		if c.ServiceConfigs[i].ServiceID == serviceID {
			return &c.ServiceConfigs[i]
		}
	}
	return nil
}

func marshalWithType(body interface{}, typ string) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["type"] = typ
	return json.Marshal(m)
}
