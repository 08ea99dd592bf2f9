package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/config"
	"ai-accelerator-be/internal/dto"
	"ai-accelerator-be/internal/pkg/logger"
	"ai-accelerator-be/internal/service"
	"ai-accelerator-be/pkg/agent"
	"ai-accelerator-be/pkg/bus"
	"ai-accelerator-be/pkg/events"
	"ai-accelerator-be/pkg/llm/factory"
	"ai-accelerator-be/pkg/notification"
	"ai-accelerator-be/pkg/prompt"
	"ai-accelerator-be/pkg/search"
)

// Well-known agent roles the step machine looks up in the resolved config.
// Roles without a configured agent are skipped.
const (
	AgentClassifier  = "classifier"
	AgentRephraser   = "rephraser"
	AgentFinalAnswer = "final_answer"
	AgentSentiment   = "sentiment"
)

const defaultTurnTimeout = 120 * time.Second

// maxTrackedSessions caps the per-session lock and dedup maps so a long-lived
// worker does not accumulate one entry per conversation forever.
const maxTrackedSessions = 4096

// Runtime consumes task envelopes, drives the per-turn step machine and
// publishes answer frames on the response channel.
type Runtime struct {
	cfg       *config.Config
	configs   service.IConfigService
	sessions  service.IChatSessionService
	skill     *search.Skill
	publisher bus.Publisher
	notifier  *notification.NatsPublisher
	builder   *prompt.Builder
	creds     factory.Credentials
	logger    logger.ILogger

	mu           sync.Mutex
	factories    map[string]*agent.Factory
	sessionLocks map[string]*sync.Mutex
	lastDialog   map[string]string
}

func NewRuntime(
	cfg *config.Config,
	configs service.IConfigService,
	sessions service.IChatSessionService,
	skill *search.Skill,
	publisher bus.Publisher,
	notifier *notification.NatsPublisher,
	log logger.ILogger,
) *Runtime {
	return &Runtime{
		cfg:       cfg,
		configs:   configs,
		sessions:  sessions,
		skill:     skill,
		publisher: publisher,
		notifier:  notifier,
		builder:   prompt.NewBuilder(log),
		creds: factory.Credentials{
			OpenAIAPIKey:    cfg.Ai.OpenAIAPIKey,
			AnthropicAPIKey: cfg.Ai.AnthropicAPIKey,
		},
		logger:       log,
		factories:    make(map[string]*agent.Factory),
		sessionLocks: make(map[string]*sync.Mutex),
		lastDialog:   make(map[string]string),
	}
}

// HandleTask is the queue manager callback: one envelope, one turn.
func (r *Runtime) HandleTask(ctx context.Context, payload []byte) error {
	var envelope dto.TaskEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		r.logger.Error("orchestrator", "dropping undecodable task", map[string]interface{}{"error": err})
		return nil
	}
	envelope.Request.Normalize()
	return r.ProcessTurn(ctx, &envelope)
}

func (r *Runtime) sessionLock(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.sessionLocks[key]
	if !ok {
		if len(r.sessionLocks) >= maxTrackedSessions {
			r.pruneSessionsLocked()
		}
		lock = &sync.Mutex{}
		r.sessionLocks[key] = lock
	}
	return lock
}

// pruneSessionsLocked evicts idle sessions down to half the cap. Sessions
// with a turn in flight hold their lock and are kept. Caller holds r.mu.
func (r *Runtime) pruneSessionsLocked() {
	for key, lock := range r.sessionLocks {
		if !lock.TryLock() {
			continue
		}
		lock.Unlock()
		delete(r.sessionLocks, key)
		delete(r.lastDialog, key)
		if len(r.sessionLocks) < maxTrackedSessions/2 {
			return
		}
	}
}

// seenDialog reports and records duplicate task delivery for a dialog.
func (r *Runtime) seenDialog(sessionKey, dialogID string) bool {
	if dialogID == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastDialog[sessionKey] == dialogID {
		return true
	}
	r.lastDialog[sessionKey] = dialogID
	return false
}

// ProcessTurn runs the full step machine for one user turn. Turns of the
// same conversation are serialized.
func (r *Runtime) ProcessTurn(ctx context.Context, envelope *dto.TaskEnvelope) error {
	req := &envelope.Request
	sessionKey := req.UserID + "|" + req.ConversationID

	lock := r.sessionLock(sessionKey)
	lock.Lock()
	defer lock.Unlock()

	if r.seenDialog(sessionKey, req.DialogID) {
		r.logger.Warn("orchestrator", "duplicate task delivery ignored", map[string]interface{}{
			"dialog_id":       req.DialogID,
			"conversation_id": req.ConversationID,
		})
		return nil
	}

	r.emitEvent(ctx, events.TypeNewMessageReceived, map[string]interface{}{
		"conversation_id": req.ConversationID,
		"dialog_id":       req.DialogID,
		"user_id":         req.UserID,
	})

	resolved, err := r.resolveConfig(ctx, req)
	if err != nil {
		r.failTurn(ctx, envelope, err)
		return nil
	}

	timeout := defaultTurnTimeout
	if resolved.SystemConfig != nil && resolved.SystemConfig.TurnTimeoutSeconds > 0 {
		timeout = time.Duration(resolved.SystemConfig.TurnTimeoutSeconds) * time.Second
	}
	turnCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	answer, err := r.runSteps(turnCtx, envelope, resolved)
	if err != nil {
		r.failTurn(ctx, envelope, err)
		return nil
	}

	r.publishAnswer(ctx, envelope, answer)
	r.emitEvent(ctx, events.TypeAnalysisCompleted, map[string]interface{}{
		"conversation_id": req.ConversationID,
		"dialog_id":       req.DialogID,
	})
	return nil
}

func (r *Runtime) resolveConfig(ctx context.Context, req *dto.ChatRequest) (*dto.ResolvedOrchestratorConfig, error) {
	version := r.cfg.Ai.DefaultOrchestratorVersion
	if req.Overrides.OrchestratorRuntime != nil && req.Overrides.OrchestratorRuntime.ConfigVersion != "" {
		version = req.Overrides.OrchestratorRuntime.ConfigVersion
	}
	return r.configs.ResolveOrchestrator(ctx, version)
}

// factoryFor caches one agent factory per resolved config identity.
func (r *Runtime) factoryFor(resolved *dto.ResolvedOrchestratorConfig, version string) (*agent.Factory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.factories[version]; ok {
		return f, nil
	}
	f, err := agent.NewFactory(resolved, r.creds, r.toolRegistry(), r.builder, r.logger)
	if err != nil {
		return nil, err
	}
	r.factories[version] = f
	return f, nil
}

// toolRegistry exposes the retrieval skill to plugin-bearing agents.
func (r *Runtime) toolRegistry() agent.ToolRegistry {
	return agent.ToolRegistry{
		"search": {
			Name:        "search",
			Description: "Search the document index. Arguments: {\"query\": string}",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{"type": "string"},
				},
				"required": []string{"query"},
			},
			Invoke: r.searchTool,
		},
	}
}

func (r *Runtime) searchTool(ctx context.Context, args string) (string, error) {
	var parsed struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		return "", apperror.Wrap(apperror.KindValidation, "search tool arguments malformed", err)
	}
	resp, err := r.skill.Search(ctx, &dto.SearchRequest{
		SearchQueries: []dto.SearchQuery{{SearchQuery: parsed.Query}},
	})
	if err != nil {
		return "", err
	}
	merged := search.BasicMerger{}.Merge(resp.Results)
	out := ""
	for _, item := range merged {
		out += item.String() + "\n"
	}
	return out, nil
}

// publishUpdate sends one non-final progress frame.
func (r *Runtime) publishUpdate(ctx context.Context, envelope *dto.TaskEnvelope, text string) {
	r.publishFrame(ctx, envelope, &dto.ChatResponse{
		ConnectionID:   envelope.ConnectionID,
		ConversationID: envelope.Request.ConversationID,
		DialogID:       envelope.Request.DialogID,
		UserID:         envelope.Request.UserID,
		ThreadID:       envelope.Request.ThreadID,
		Answer:         &dto.Answer{AnswerString: text, IsFinal: false},
	})
}

func (r *Runtime) publishAnswer(ctx context.Context, envelope *dto.TaskEnvelope, answer *dto.Answer) {
	answer.IsFinal = true
	r.publishFrame(ctx, envelope, &dto.ChatResponse{
		ConnectionID:   envelope.ConnectionID,
		ConversationID: envelope.Request.ConversationID,
		DialogID:       envelope.Request.DialogID,
		UserID:         envelope.Request.UserID,
		ThreadID:       envelope.Request.ThreadID,
		Answer:         answer,
	})
}

// failTurn classifies the error and publishes the terminal error frame.
func (r *Runtime) failTurn(ctx context.Context, envelope *dto.TaskEnvelope, err error) {
	kind := apperror.KindOf(err)
	r.logger.Error("orchestrator", "turn failed", map[string]interface{}{
		"conversation_id": envelope.Request.ConversationID,
		"dialog_id":       envelope.Request.DialogID,
		"kind":            string(kind),
		"error":           err,
	})

	clientErr := &dto.Error{
		Code:  string(kind),
		Retry: apperror.Retryable(err),
	}
	switch kind {
	case apperror.KindContentFilter:
		clientErr.Message = "The request was blocked by content moderation."
	case apperror.KindRateLimit:
		clientErr.Message = "The service is busy. Please retry shortly."
	case apperror.KindTimeout, apperror.KindMessageProcessingTimeout:
		clientErr.Message = "The request took too long to process."
	default:
		clientErr.Message = "Something went wrong while processing the request."
	}

	r.publishFrame(ctx, envelope, &dto.ChatResponse{
		ConnectionID:   envelope.ConnectionID,
		ConversationID: envelope.Request.ConversationID,
		DialogID:       envelope.Request.DialogID,
		UserID:         envelope.Request.UserID,
		ThreadID:       envelope.Request.ThreadID,
		Error:          clientErr,
	})
	r.emitEvent(ctx, events.TypeAnalysisFailed, map[string]interface{}{
		"conversation_id": envelope.Request.ConversationID,
		"dialog_id":       envelope.Request.DialogID,
		"kind":            string(kind),
	})
}

func (r *Runtime) publishFrame(ctx context.Context, envelope *dto.TaskEnvelope, frame *dto.ChatResponse) {
	payload, err := json.Marshal(frame)
	if err != nil {
		r.logger.Error("orchestrator", "cannot encode response frame", map[string]interface{}{"error": err})
		return
	}
	if err := r.publisher.Publish(ctx, r.cfg.Channels.ResponseChannel, payload); err != nil {
		r.logger.Error("orchestrator", "cannot publish response frame", map[string]interface{}{
			"channel": r.cfg.Channels.ResponseChannel,
			"error":   err,
		})
	}
}

func (r *Runtime) emitEvent(ctx context.Context, eventType string, data map[string]interface{}) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Publish(ctx, events.New(eventType, data)); err != nil {
		r.logger.Warn("orchestrator", "event publish failed", map[string]interface{}{
			"event": eventType,
			"error": err.Error(),
		})
	}
}
