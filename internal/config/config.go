package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Channels   ChannelConfig
	Moderation ModerationConfig
	Blob       BlobConfig
	SMTP       SMTPConfig
	Ai         AIConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	// Seconds the gateway waits for a final orchestrator answer.
	ChatMaxResponseTimeout int
	// Number of orchestrator workers draining the task queue.
	OrchestratorWorkers int
	ConfigSeedPath      string
}

type DatabaseConfig struct {
	Connection string
}

// ChannelConfig names the Redis task queues and the pub/sub response channel
// prefix shared between the session manager and the orchestrator.
type ChannelConfig struct {
	TaskQueue           string
	TaskQueueRetail     string
	ResponseChannel     string
	NotificationSubject string
}

type ModerationConfig struct {
	Endpoint string
	APIKey   string
	Enabled  bool
}

type BlobConfig struct {
	AccountURL string
	Container  string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
	// Inbox receiving post-call summary emails. Empty disables the mailer.
	NotifyEmail string
}

type AIConfig struct {
	LLMProvider      string // "openai" or "anthropic"
	LLMModel         string
	EmbeddingModel   string
	OpenAIAPIKey     string
	AnthropicAPIKey  string
	AgentTimeoutSecs int
	// Orchestrator config version used when a request carries no override.
	DefaultOrchestratorVersion string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:                   getEnv("APP_PORT", "3000"),
			BaseURL:                getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:            getEnv("GO_ENV", "development"),
			LogFilePath:            getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins:     getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:                getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:               getEnv("REDIS_URL", "redis://localhost:6379"),
			ChatMaxResponseTimeout: getEnvAsInt("CHAT_MAX_RESPONSE_TIMEOUT_IN_SECONDS", 120),
			OrchestratorWorkers:    getEnvAsInt("ORCHESTRATOR_WORKERS", 1),
			ConfigSeedPath:         getEnv("CONFIG_SEED_PATH", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Channels: ChannelConfig{
			TaskQueue:           getEnv("CHAT_REQUEST_TASK_QUEUE_CHANNEL", "orchestrator_tasks"),
			TaskQueueRetail:     getEnv("CHAT_REQUEST_TASK_QUEUE_CHANNEL_RETAIL", "orchestrator_tasks_retail"),
			ResponseChannel:     getEnv("CHAT_RESPONSE_MESSAGE_QUEUE_CHANNEL", "chat_responses"),
			NotificationSubject: getEnv("NOTIFICATION_EVENT_SUBJECT", "orchestrator.notification"),
		},
		Moderation: ModerationConfig{
			Endpoint: getEnv("CONTENT_SAFETY_ENDPOINT", ""),
			APIKey:   getEnv("CONTENT_SAFETY_API_KEY", ""),
			Enabled:  getEnv("CONTENT_SAFETY_ENABLED", "true") == "true",
		},
		Blob: BlobConfig{
			AccountURL: getEnv("STORAGE_ACCOUNT_URL", ""),
			Container:  getEnv("STORAGE_CONTAINER", "content"),
		},
		SMTP: SMTPConfig{
			Host:        getEnv("SMTP_HOST", ""),
			Port:        getEnvAsInt("SMTP_PORT", 587),
			Email:       getEnv("SMTP_EMAIL", ""),
			Password:    getEnv("SMTP_PASSWORD", ""),
			SenderName:  getEnv("SMTP_SENDER_NAME", "Accelerator"),
			NotifyEmail: getEnv("NOTIFICATION_EMAIL_TO", ""),
		},
		Ai: AIConfig{
			LLMProvider:      getEnv("LLM_PROVIDER", "openai"),
			LLMModel:         getEnv("LLM_MODEL", "gpt-4o-mini"),
			EmbeddingModel:   getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
			AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
			AgentTimeoutSecs: getEnvAsInt("AGENT_INVOKE_TIMEOUT_IN_SECONDS", 60),

			DefaultOrchestratorVersion: getEnv("DEFAULT_ORCHESTRATOR_CONFIG_VERSION", "default"),
		},
	}
}

// MustLoad fails fast when values required at process start are missing.
func MustLoad() *Config {
	cfg := Load()
	required := map[string]string{
		"DB_CONNECTION_STRING": cfg.Database.Connection,
	}
	for key, value := range required {
		if value == "" {
			log.Fatalf("[FATAL] Required environment variable %s is not set", key)
		}
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
