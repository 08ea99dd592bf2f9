package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"ai-accelerator-be/internal/cache"
	"ai-accelerator-be/internal/config"
	"ai-accelerator-be/internal/pkg/logger"
	"ai-accelerator-be/internal/repository/implementation"
	"ai-accelerator-be/internal/service"
	"ai-accelerator-be/pkg/blob"
	"ai-accelerator-be/pkg/bus"
	"ai-accelerator-be/pkg/database"
	"ai-accelerator-be/pkg/embedding"
	"ai-accelerator-be/pkg/evaluation"
	"ai-accelerator-be/pkg/llm/factory"
	"ai-accelerator-be/pkg/orchestrator"
	"ai-accelerator-be/pkg/search"

	"github.com/fatih/color"
)

func main() {
	localDataset := flag.String("local_dataset", "", "path to a local JSONL dataset")
	amlDataset := flag.String("aml_dataset", "", "blob URL of a remote JSONL dataset")
	orchestratorConfig := flag.String("orchestrator_config", "", "orchestrator config version to evaluate")
	searchConfig := flag.String("search_config", "", "search config version override")
	conversationIDPrefix := flag.String("conversation_id_prefix", "eval", "prefix for generated conversation ids")
	searchTopK := flag.Int("search_topk", 0, "override for the number of search results per turn")
	sampleSize := flag.Int("sample_size", 0, "evaluate only the first N records (0 = all)")
	verbose := flag.Bool("verbose", false, "print every answer and status update")
	flag.Parse()

	if *localDataset == "" && *amlDataset == "" {
		color.Red("one of --local_dataset or --aml_dataset is required")
		os.Exit(2)
	}

	cfg := config.MustLoad()
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, false)

	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatalf("Unable to connect to GORM DB: %v", err)
	}

	records, err := loadRecords(cfg, sysLogger, *localDataset, *amlDataset)
	if err != nil {
		color.Red("dataset load failed: %v", err)
		os.Exit(1)
	}

	// The harness runs the orchestrator in process over an in-memory bus, so
	// a run needs Postgres and model credentials but no Redis or gateway.
	configBase := service.NewConfigService(implementation.NewConfigDocumentRepository(gormDB), sysLogger)
	configService := service.NewCachedConfigService(configBase,
		cache.NewCachingConfigClient(cache.NewLocalStore(time.Hour), configBase, sysLogger))
	chatSessionService := service.NewChatSessionService(implementation.NewConversationRepository(gormDB), sysLogger)

	creds := factory.Credentials{
		OpenAIAPIKey:    cfg.Ai.OpenAIAPIKey,
		AnthropicAPIKey: cfg.Ai.AnthropicAPIKey,
	}
	llmProvider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, creds)
	if err != nil {
		log.Fatalf("Unable to initialize LLM provider: %v", err)
	}
	embedder := embedding.NewOpenAIProvider(cfg.Ai.OpenAIAPIKey, cfg.Ai.EmbeddingModel)

	skill, err := search.NewSkill(evalIndexConfig(), implementation.NewSearchDocumentRepository(gormDB), embedder, llmProvider, sysLogger)
	if err != nil {
		log.Fatalf("Unable to initialize search skill: %v", err)
	}

	localBus := bus.NewLocalBus(sysLogger)
	defer localBus.Close()

	runtime := orchestrator.NewRuntime(cfg, configService, chatSessionService, skill, localBus, nil, sysLogger)

	runner := evaluation.NewRunner(runtime, localBus, cfg.Channels.ResponseChannel, evaluation.Options{
		OrchestratorVersion:  *orchestratorConfig,
		SearchConfigVersion:  *searchConfig,
		SearchTopK:           *searchTopK,
		ConversationIDPrefix: *conversationIDPrefix,
		SampleSize:           *sampleSize,
		Verbose:              *verbose,
	}, sysLogger)

	report, err := runner.Run(context.Background(), records)
	if err != nil {
		color.Red("evaluation run failed: %v", err)
		os.Exit(1)
	}

	report.Print(os.Stdout, *verbose)
	if !report.Success() {
		os.Exit(1)
	}
}

func loadRecords(cfg *config.Config, log logger.ILogger, localPath, amlURL string) ([]evaluation.Record, error) {
	if localPath != "" {
		return evaluation.LoadDatasetFile(localPath)
	}

	helper, err := blob.NewHelper(cfg.Blob.AccountURL, cfg.Blob.Container, log)
	if err != nil {
		return nil, err
	}
	_, raw, err := helper.Download(context.Background(), amlURL)
	if err != nil {
		return nil, err
	}
	return evaluation.ParseDataset(raw)
}

// evalIndexConfig mirrors the serving index so evaluation measures what
// production retrieves.
func evalIndexConfig() *search.IndexConfig {
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
