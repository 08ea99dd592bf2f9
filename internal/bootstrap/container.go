package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-accelerator-be/internal/cache"
	"ai-accelerator-be/internal/config"
	"ai-accelerator-be/internal/controller"
	"ai-accelerator-be/internal/pkg/logger"
	"ai-accelerator-be/internal/repository/implementation"
	"ai-accelerator-be/internal/service"
	"ai-accelerator-be/internal/websocket"
	"ai-accelerator-be/pkg/blob"
	"ai-accelerator-be/pkg/bus"
	"ai-accelerator-be/pkg/embedding"
	"ai-accelerator-be/pkg/llm/factory"
	"ai-accelerator-be/pkg/moderation"
	"ai-accelerator-be/pkg/notification"
	"ai-accelerator-be/pkg/orchestrator"
	"ai-accelerator-be/pkg/queue"
	"ai-accelerator-be/pkg/search"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController   controller.IChatController
	ConfigController controller.IConfigController

	// Gateway runtime
	WebSocketHub   *websocket.Hub
	SessionService service.ISessionService
	ConfigService  service.IConfigService

	// Orchestrator runtime (exposed for cmd/orchestrator to run)
	Orchestrator *orchestrator.Runtime
	RagQueue     queue.TaskQueue
	RetailQueue  queue.TaskQueue

	// Shared infrastructure
	Bus         bus.Bus
	Notifier    *notification.NatsPublisher
	EmailSender notification.IEmailSender
	Logger      logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Repositories
	configRepo := implementation.NewConfigDocumentRepository(db)
	conversationRepo := implementation.NewConversationRepository(db)
	profileRepo := implementation.NewUserProfileRepository(db)
	searchRepo := implementation.NewSearchDocumentRepository(db)

	// 3. Redis (task queues, pub/sub bus and config cache share one client)
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	ragQueue := queue.NewRedisQueue(rdb, cfg.Channels.TaskQueue, sysLogger)
	retailQueue := queue.NewRedisQueue(rdb, cfg.Channels.TaskQueueRetail, sysLogger)
	redisBus := bus.NewRedisBus(rdb, sysLogger)

	// 4. Services
	configBase := service.NewConfigService(configRepo, sysLogger)
	configCache := cache.NewCachingConfigClient(
		cache.NewRedisStore(rdb, time.Hour),
		configBase,
		sysLogger,
	)
	configService := service.NewCachedConfigService(configBase, configCache)

	chatSessionService := service.NewChatSessionService(conversationRepo, sysLogger)
	profileService := service.NewUserProfileService(profileRepo)

	// Content safety runs open when no endpoint is configured.
	var textMod, imageMod moderation.Moderator
	if cfg.Moderation.Endpoint != "" {
		textMod = moderation.NewTextModerator(cfg.Moderation.Endpoint, cfg.Moderation.APIKey, sysLogger)
		imageMod = moderation.NewImageModerator(cfg.Moderation.Endpoint, cfg.Moderation.APIKey, sysLogger)
	} else {
		log.Println("[WARN] CONTENT_SAFETY_ENDPOINT not set, moderation disabled")
		textMod = moderation.NoopModerator{}
		imageMod = moderation.NoopModerator{}
	}

	// Citation links degrade to plain filenames without blob storage.
	var presigner websocket.Presigner
	if cfg.Blob.AccountURL != "" {
		helper, err := blob.NewHelper(cfg.Blob.AccountURL, cfg.Blob.Container, sysLogger)
		if err != nil {
			log.Printf("[WARN] Failed to initialize blob helper: %v", err)
		} else {
			presigner = helper
		}
	}

	natsPub, err := notification.NewNatsPublisher(cfg.App.NatsURL, sysLogger)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	emailSender := notification.NewEmailSender(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.Email,
		sysLogger,
	)

	// 5. Retrieval Skill
	creds := factory.Credentials{
		OpenAIAPIKey:    cfg.Ai.OpenAIAPIKey,
		AnthropicAPIKey: cfg.Ai.AnthropicAPIKey,
	}
	llmProvider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, creds)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	embedder := embedding.NewOpenAIProvider(cfg.Ai.OpenAIAPIKey, cfg.Ai.EmbeddingModel)

	skill, err := search.NewSkill(defaultIndexConfig(), searchRepo, embedder, llmProvider, sysLogger)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize search skill: %v", err)
	}

	// 6. Session Manager & Orchestrator
	sessionService := service.NewSessionService(
		cfg,
		chatSessionService,
		configService,
		textMod,
		imageMod,
		ragQueue,
		retailQueue,
		redisBus,
		presigner,
		natsPub,
		sysLogger,
	)

	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")
	wsHub := websocket.NewHub(wsLogger)

	runtime := orchestrator.NewRuntime(cfg, configService, chatSessionService, skill, redisBus, natsPub, sysLogger)

	// 7. Controllers
	chatController := controller.NewChatController(sessionService, profileService, wsHub, sysLogger)
	configController := controller.NewConfigController(configService)

	return &Container{
		ChatController:   chatController,
		ConfigController: configController,
		WebSocketHub:     wsHub,
		SessionService:   sessionService,
		ConfigService:    configService,
		Orchestrator:     runtime,
		RagQueue:         ragQueue,
		RetailQueue:      retailQueue,
		Bus:              redisBus,
		Notifier:         natsPub,
		EmailSender:      emailSender,
		Logger:           sysLogger,
	}
}

// defaultIndexConfig describes the built-in pgvector corpus. Deployments that
// index different fields override search behavior per request.
func defaultIndexConfig() *search.IndexConfig {
	return &search.IndexConfig{
		Name: "search_documents",
		Mode: search.ModeHybridKeywords,
		SelectFields: []search.FieldConfig{
			{Name: "item_id", IsItemID: true},
			{Name: "content"},
			{Name: "category", Filterable: true},
			{Name: "source_file", Filterable: true},
			{Name: "source_page"},
		},
		DefaultMaxResults: 10,
	}
}
