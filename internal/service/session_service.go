package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/config"
	"ai-accelerator-be/internal/dto"
	"ai-accelerator-be/internal/pkg/logger"
	"ai-accelerator-be/internal/websocket"
	"ai-accelerator-be/pkg/bus"
	"ai-accelerator-be/pkg/events"
	"ai-accelerator-be/pkg/moderation"
	"ai-accelerator-be/pkg/notification"
	"ai-accelerator-be/pkg/queue"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ScenarioRetail selects the retail task channel; everything else uses the
// default rag channel.
const ScenarioRetail = "retail"

type ISessionService interface {
	HandleTurn(ctx context.Context, conn *websocket.Connection, raw []byte)
	HandleFrame(ctx context.Context, conn *websocket.Connection, frame *dto.ChatResponse)
	ProcessHTTPTurn(ctx context.Context, req *dto.ChatRequest) (*dto.ChatResponse, error)
	EndSession(ctx context.Context, userID, conversationID string) error
}

type sessionService struct {
	cfg        *config.Config
	sessions   IChatSessionService
	configs    IConfigService
	textMod    moderation.Moderator
	imageMod   moderation.Moderator
	queues     map[string]queue.TaskQueue
	subscriber bus.Subscriber
	presigner  websocket.Presigner
	notifier   *notification.NatsPublisher
	validate   *validator.Validate
	logger     logger.ILogger
}

func NewSessionService(
	cfg *config.Config,
	sessions IChatSessionService,
	configs IConfigService,
	textMod moderation.Moderator,
	imageMod moderation.Moderator,
	ragQueue queue.TaskQueue,
	retailQueue queue.TaskQueue,
	subscriber bus.Subscriber,
	presigner websocket.Presigner,
	notifier *notification.NatsPublisher,
	log logger.ILogger,
) ISessionService {
	return &sessionService{
		cfg:      cfg,
		sessions: sessions,
		configs:  configs,
		textMod:  textMod,
		imageMod: imageMod,
		queues: map[string]queue.TaskQueue{
			"rag":          ragQueue,
			ScenarioRetail: retailQueue,
		},
		subscriber: subscriber,
		presigner:  presigner,
		notifier:   notifier,
		validate:   validator.New(),
		logger:     log,
	}
}

// HandleTurn runs the full inbound pipeline for one websocket frame:
// validate, moderate, persist the user dialog, verify configuration and
// enqueue for the orchestrator. Failures surface as terminal error frames.
func (s *sessionService) HandleTurn(ctx context.Context, conn *websocket.Connection, raw []byte) {
	var req dto.ChatRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.sendError(conn, &req, apperror.Wrap(apperror.KindValidation, "malformed chat request", err))
		return
	}
	req.Normalize()
	if req.DialogID == "" {
		req.DialogID = uuid.NewString()
	}
	if err := s.validate.Struct(&req); err != nil {
		s.sendError(conn, &req, apperror.Wrap(apperror.KindValidation, "chat request failed validation", err))
		return
	}
	conn.UserID = req.UserID

	if err := s.moderate(ctx, &req); err != nil {
		s.sendError(conn, &req, err)
		return
	}

	if err := s.sessions.AppendDialog(ctx, req.UserID, req.ConversationID, dto.Dialog{
		Participant: dto.ParticipantUser,
		Payload:     req.Message.Payload,
	}); err != nil {
		s.sendError(conn, &req, err)
		return
	}

	// Fail fast on unresolvable configuration before the task is queued.
	if _, err := s.resolveVersion(ctx, &req); err != nil {
		s.sendError(conn, &req, err)
		return
	}

	if err := s.submit(ctx, conn.ID, conn.Scenario, &req); err != nil {
		s.sendError(conn, &req, err)
		return
	}

	timeout := time.Duration(s.cfg.App.ChatMaxResponseTimeout) * time.Second
	conn.StartTurnTimer(timeout, func() {
		s.logger.Warn("session_manager", "turn timed out waiting for orchestrator", map[string]interface{}{
			"connection_id": conn.ID,
			"dialog_id":     req.DialogID,
		})
		_ = conn.Send(&dto.ChatResponse{
			ConnectionID:   conn.ID,
			ConversationID: req.ConversationID,
			DialogID:       req.DialogID,
			UserID:         req.UserID,
			Error: &dto.Error{
				Code:    string(apperror.KindMessageProcessingTimeout),
				Retry:   true,
				Message: "The request took too long to process.",
			},
		})
		// The turn is over; a late orchestrator answer must not reach the
		// client after the failure was announced.
		conn.Close(websocket.CloseShutdown, "turn response deadline exceeded")
	})
}

// HandleFrame post-processes one routed orchestrator frame: final answers
// get citation links and are persisted as the assistant dialog.
func (s *sessionService) HandleFrame(ctx context.Context, conn *websocket.Connection, frame *dto.ChatResponse) {
	if conn.State() >= websocket.StateClosing {
		return
	}
	if !frame.IsFinal() {
		return
	}
	conn.StopTurnTimer()

	if frame.Answer == nil {
		return
	}
	frame.Answer.AnswerString = websocket.RewriteCitations(ctx, frame.Answer.AnswerString, s.presigner)

	err := s.sessions.AppendDialog(ctx, frame.UserID, frame.ConversationID, dto.Dialog{
		Participant: dto.ParticipantAssistant,
		Payload: []dto.UserPromptPayload{{
			Type:   dto.PayloadTypeText,
			Value:  frame.Answer.AnswerString,
			Locale: frame.Answer.SpeakerLocale,
		}},
		TraceID: frame.DialogID,
	})
	if err != nil {
		s.logger.Error("session_manager", "assistant dialog append failed", map[string]interface{}{
			"conversation_id": frame.ConversationID,
			"error":           err,
		})
	}
}

// ProcessHTTPTurn serves the single-turn HTTP fallback: the same pipeline,
// then a blocking wait for this turn's final frame.
func (s *sessionService) ProcessHTTPTurn(ctx context.Context, req *dto.ChatRequest) (*dto.ChatResponse, error) {
	req.Normalize()
	if req.DialogID == "" {
		req.DialogID = uuid.NewString()
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, "chat request failed validation", err)
	}
	if err := s.moderate(ctx, req); err != nil {
		return nil, err
	}
	if err := s.sessions.AppendDialog(ctx, req.UserID, req.ConversationID, dto.Dialog{
		Participant: dto.ParticipantUser,
		Payload:     req.Message.Payload,
	}); err != nil {
		return nil, err
	}
	if _, err := s.resolveVersion(ctx, req); err != nil {
		return nil, err
	}

	connectionID := uuid.NewString()
	timeout := time.Duration(s.cfg.App.ChatMaxResponseTimeout) * time.Second
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	final := make(chan *dto.ChatResponse, 1)
	err := s.subscriber.Subscribe(waitCtx, []string{s.cfg.Channels.ResponseChannel}, func(_ context.Context, _ string, payload []byte) error {
		var frame dto.ChatResponse
		if err := json.Unmarshal(payload, &frame); err != nil {
			return nil
		}
		if frame.ConnectionID != connectionID || !frame.IsFinal() {
			return nil
		}
		select {
		case final <- &frame:
		default:
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.submit(ctx, connectionID, "rag", req); err != nil {
		return nil, err
	}

	select {
	case frame := <-final:
		if frame.Answer != nil {
			frame.Answer.AnswerString = websocket.RewriteCitations(ctx, frame.Answer.AnswerString, s.presigner)
			s.persistAssistantDialog(ctx, frame)
		}
		return frame, nil
	case <-waitCtx.Done():
		return nil, apperror.New(apperror.KindMessageProcessingTimeout, "no final answer before the response deadline")
	}
}

// EndSession clears the stored conversation and announces the call end.
func (s *sessionService) EndSession(ctx context.Context, userID, conversationID string) error {
	if err := s.sessions.Clear(ctx, userID, conversationID); err != nil {
		return err
	}
	if s.notifier != nil {
		if err := s.notifier.Publish(ctx, events.New(events.TypeCallEnded, map[string]interface{}{
			"user_id":         userID,
			"conversation_id": conversationID,
		})); err != nil {
			s.logger.Warn("session_manager", "call end event publish failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return nil
}

func (s *sessionService) persistAssistantDialog(ctx context.Context, frame *dto.ChatResponse) {
	err := s.sessions.AppendDialog(ctx, frame.UserID, frame.ConversationID, dto.Dialog{
		Participant: dto.ParticipantAssistant,
		Payload: []dto.UserPromptPayload{{
			Type:  dto.PayloadTypeText,
			Value: frame.Answer.AnswerString,
		}},
		TraceID: frame.DialogID,
	})
	if err != nil {
		s.logger.Error("session_manager", "assistant dialog append failed", map[string]interface{}{
			"conversation_id": frame.ConversationID,
			"error":           err,
		})
	}
}

// moderate screens the inbound payload. Moderation failures and unsafe
// verdicts both block the turn.
func (s *sessionService) moderate(ctx context.Context, req *dto.ChatRequest) error {
	enabled := s.cfg.Moderation.Enabled
	if req.Overrides.IsContentSafetyEnabled != nil {
		enabled = *req.Overrides.IsContentSafetyEnabled
	}
	if !enabled {
		return nil
	}

	checkImages := true
	if req.Overrides.SessionManagerRuntime != nil && req.Overrides.SessionManagerRuntime.CheckSafeImageContent != nil {
		checkImages = *req.Overrides.SessionManagerRuntime.CheckSafeImageContent
	}

	for _, part := range req.Message.Payload {
		switch part.Type {
		case dto.PayloadTypeText:
			safe, err := s.textMod.IsSafe(ctx, part.Value)
			if err != nil {
				return err
			}
			if !safe {
				return apperror.New(apperror.KindContentFilter, "message blocked by content moderation")
			}
		case dto.PayloadTypeImage:
			if !checkImages {
				continue
			}
			safe, err := s.imageMod.IsSafe(ctx, part.Value)
			if err != nil {
				return err
			}
			if !safe {
				return apperror.New(apperror.KindContentFilter, "image blocked by content moderation")
			}
		}
	}
	return nil
}

func (s *sessionService) resolveVersion(ctx context.Context, req *dto.ChatRequest) (*dto.ResolvedOrchestratorConfig, error) {
	version := s.cfg.Ai.DefaultOrchestratorVersion
	if req.Overrides.OrchestratorRuntime != nil && req.Overrides.OrchestratorRuntime.ConfigVersion != "" {
		version = req.Overrides.OrchestratorRuntime.ConfigVersion
	}
	return s.configs.ResolveOrchestrator(ctx, version)
}

func (s *sessionService) submit(ctx context.Context, connectionID, scenario string, req *dto.ChatRequest) error {
	q, ok := s.queues[scenario]
	if !ok {
		q = s.queues["rag"]
	}
	payload, err := json.Marshal(&dto.TaskEnvelope{
		ConnectionID: connectionID,
		SessionID:    req.UserID + "|" + req.ConversationID,
		Request:      *req,
		EnqueuedAt:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return q.Enqueue(ctx, payload)
}

func (s *sessionService) sendError(conn *websocket.Connection, req *dto.ChatRequest, err error) {
	kind := apperror.KindOf(err)
	s.logger.Warn("session_manager", "turn rejected", map[string]interface{}{
		"connection_id": conn.ID,
		"kind":          string(kind),
		"error":         err.Error(),
	})

	message := "Something went wrong while processing the request."
	switch kind {
	case apperror.KindContentFilter:
		message = "The request was blocked by content moderation."
	case apperror.KindValidation:
		message = "The request is invalid."
	case apperror.KindNotFound:
		message = "The requested configuration was not found."
	}
	_ = conn.Send(&dto.ChatResponse{
		ConnectionID:   conn.ID,
		ConversationID: req.ConversationID,
		DialogID:       req.DialogID,
		UserID:         req.UserID,
		Error: &dto.Error{
			Code:    string(kind),
			Retry:   apperror.Retryable(err),
			Message: message,
		},
	})
}
