package service

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/config"
	"ai-accelerator-be/internal/dto"
	"ai-accelerator-be/internal/pkg/logger"
	ws "ai-accelerator-be/internal/websocket"
	"ai-accelerator-be/pkg/bus"
	"ai-accelerator-be/pkg/moderation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessionStore struct {
	mu      sync.Mutex
	appends []dto.Dialog
	cleared []string
}

func (s *fakeSessionStore) Get(_ context.Context, userID, conversationID string) (*ChatSession, error) {
	return &ChatSession{UserID: userID, ConversationID: conversationID}, nil
}

func (s *fakeSessionStore) CreateIfAbsent(_ context.Context, _, _ string) error { return nil }

func (s *fakeSessionStore) AppendDialog(_ context.Context, _, _ string, dialog dto.Dialog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends = append(s.appends, dialog)
	return nil
}

func (s *fakeSessionStore) Clear(_ context.Context, userID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared = append(s.cleared, userID+"|"+conversationID)
	return nil
}

func (s *fakeSessionStore) appended() []dto.Dialog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dto.Dialog(nil), s.appends...)
}

type stubConfigResolver struct {
	resolveErr error
}

func (r *stubConfigResolver) Create(_ context.Context, _ dto.ConfigType, _ *dto.CreateConfigRequest) (*dto.CreateConfigResponse, error) {
	return nil, apperror.New(apperror.KindInternal, "not implemented")
}

func (r *stubConfigResolver) Get(_ context.Context, _ dto.ConfigType, _ string) (*dto.ConfigDocument, error) {
	return nil, apperror.New(apperror.KindNotFound, "not implemented")
}

func (r *stubConfigResolver) GetConfigBody(_ context.Context, _, _ string) ([]byte, error) {
	return nil, apperror.New(apperror.KindNotFound, "not implemented")
}

func (r *stubConfigResolver) List(_ context.Context, _ dto.ConfigType) ([]*dto.ConfigDocument, error) {
	return nil, nil
}

func (r *stubConfigResolver) ResolveOrchestrator(_ context.Context, _ string) (*dto.ResolvedOrchestratorConfig, error) {
	if r.resolveErr != nil {
		return nil, r.resolveErr
	}
	return &dto.ResolvedOrchestratorConfig{}, nil
}

func (r *stubConfigResolver) SeedFromFile(_ context.Context, _ string) error { return nil }

// captureQueue records enqueued envelopes and optionally reacts to them,
// standing in for the orchestrator side of the contract.
type captureQueue struct {
	mu        sync.Mutex
	payloads  [][]byte
	onEnqueue func(payload []byte)
}

func (q *captureQueue) Enqueue(_ context.Context, payload []byte) error {
	q.mu.Lock()
	q.payloads = append(q.payloads, payload)
	q.mu.Unlock()
	if q.onEnqueue != nil {
		q.onEnqueue(payload)
	}
	return nil
}

func (q *captureQueue) Dequeue(_ context.Context) ([]byte, error) { return nil, nil }
func (q *captureQueue) Size(_ context.Context) (int64, error)     { return 0, nil }
func (q *captureQueue) IsEmpty(_ context.Context) (bool, error)   { return true, nil }
func (q *captureQueue) Clear(_ context.Context) error             { return nil }
func (q *captureQueue) Close() error                              { return nil }

func (q *captureQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.payloads)
}

// fakeWire stands in for the upgraded websocket on the client side.
type fakeWire struct {
	mu     sync.Mutex
	writes [][]byte
	closed bool
}

func (w *fakeWire) ReadMessage() (int, []byte, error) { return 0, nil, io.EOF }

func (w *fakeWire) WriteMessage(_ int, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, append([]byte(nil), payload...))
	return nil
}

func (w *fakeWire) SetWriteDeadline(time.Time) error { return nil }

func (w *fakeWire) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWire) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *fakeWire) firstWrite() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.writes) == 0 {
		return nil
	}
	return w.writes[0]
}

type stubModerator struct {
	safe bool
	err  error
}

func (m stubModerator) IsSafe(_ context.Context, _ string) (bool, error) {
	return m.safe, m.err
}

func gatewayConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.ChatMaxResponseTimeout = 60
	cfg.Channels.ResponseChannel = "chat_responses"
	cfg.Moderation.Enabled = true
	cfg.Ai.DefaultOrchestratorVersion = "default"
	return cfg
}

func chatRequestJSON(t *testing.T, text string) []byte {
	t.Helper()
	payload, err := json.Marshal(dto.ChatRequest{
		ConversationID: "c1",
		UserID:         "u1",
		DialogID:       "d1",
		Message: dto.UserPrompt{
			Payload: []dto.UserPromptPayload{{Type: dto.PayloadTypeText, Value: text}},
		},
	})
	require.NoError(t, err)
	return payload
}

func TestHandleTurnModeratesPersistsAndEnqueues(t *testing.T) {
	store := &fakeSessionStore{}
	ragQueue := &captureQueue{}
	retailQueue := &captureQueue{}

	svc := NewSessionService(gatewayConfig(), store, &stubConfigResolver{},
		stubModerator{safe: true}, stubModerator{safe: true},
		ragQueue, retailQueue, nil, nil, nil, logger.NopLogger{})

	conn := ws.NewConnection("conn-1", ScenarioRetail, nil, logger.NopLogger{})
	defer conn.StopTurnTimer()

	svc.HandleTurn(context.Background(), conn, chatRequestJSON(t, "where are my boots?"))

	require.Equal(t, 1, retailQueue.count(), "retail scenario routes to the retail queue")
	assert.Zero(t, ragQueue.count())

	var envelope dto.TaskEnvelope
	require.NoError(t, json.Unmarshal(retailQueue.payloads[0], &envelope))
	assert.Equal(t, "conn-1", envelope.ConnectionID)
	assert.Equal(t, "u1|c1", envelope.SessionID)
	assert.Equal(t, "where are my boots?", envelope.Request.Message.Text())

	dialogs := store.appended()
	require.Len(t, dialogs, 1)
	assert.Equal(t, dto.ParticipantUser, dialogs[0].Participant)
}

func TestHandleTurnAssignsDialogID(t *testing.T) {
	ragQueue := &captureQueue{}
	svc := NewSessionService(gatewayConfig(), &fakeSessionStore{}, &stubConfigResolver{},
		stubModerator{safe: true}, stubModerator{safe: true},
		ragQueue, &captureQueue{}, nil, nil, nil, logger.NopLogger{})

	conn := ws.NewConnection("conn-1", "rag", nil, logger.NopLogger{})
	defer conn.StopTurnTimer()

	raw, err := json.Marshal(dto.ChatRequest{
		ConversationID: "c1",
		UserID:         "u1",
		Message: dto.UserPrompt{
			Payload: []dto.UserPromptPayload{{Type: dto.PayloadTypeText, Value: "first"}},
		},
	})
	require.NoError(t, err)

	svc.HandleTurn(context.Background(), conn, raw)
	svc.HandleTurn(context.Background(), conn, raw)
	require.Equal(t, 2, ragQueue.count())

	var first, second dto.TaskEnvelope
	require.NoError(t, json.Unmarshal(ragQueue.payloads[0], &first))
	require.NoError(t, json.Unmarshal(ragQueue.payloads[1], &second))
	assert.NotEmpty(t, first.Request.DialogID, "every queued turn carries a dialog id")
	assert.NotEmpty(t, second.Request.DialogID)
	assert.NotEqual(t, first.Request.DialogID, second.Request.DialogID)
}

func TestTurnTimeoutClosesConnectionAndDropsLateFinal(t *testing.T) {
	store := &fakeSessionStore{}
	cfg := gatewayConfig()
	cfg.App.ChatMaxResponseTimeout = 0

	svc := NewSessionService(cfg, store, &stubConfigResolver{},
		stubModerator{safe: true}, stubModerator{safe: true},
		&captureQueue{}, &captureQueue{}, nil, nil, nil, logger.NopLogger{})

	wire := &fakeWire{}
	conn := ws.NewConnection("conn-1", "rag", wire, logger.NopLogger{})

	svc.HandleTurn(context.Background(), conn, chatRequestJSON(t, "slow question"))

	deadline := time.Now().Add(2 * time.Second)
	for !wire.isClosed() {
		if time.Now().After(deadline) {
			t.Fatal("turn timeout never closed the connection")
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.GreaterOrEqual(t, conn.State(), ws.StateClosing)

	var timeoutFrame dto.ChatResponse
	require.NoError(t, json.Unmarshal(wire.firstWrite(), &timeoutFrame))
	require.NotNil(t, timeoutFrame.Error)
	assert.Equal(t, string(apperror.KindMessageProcessingTimeout), timeoutFrame.Error.Code)
	assert.True(t, timeoutFrame.Error.Retry)

	// A late orchestrator final for the failed turn is not persisted.
	svc.HandleFrame(context.Background(), conn, &dto.ChatResponse{
		UserID:         "u1",
		ConversationID: "c1",
		DialogID:       "d1",
		Answer:         &dto.Answer{AnswerString: "too late", IsFinal: true},
	})
	assert.Len(t, store.appended(), 1, "only the user dialog is stored")
}

func TestHandleFrameAppendsAssistantDialogOnFinal(t *testing.T) {
	store := &fakeSessionStore{}
	svc := NewSessionService(gatewayConfig(), store, &stubConfigResolver{},
		stubModerator{safe: true}, stubModerator{safe: true},
		&captureQueue{}, &captureQueue{}, nil, nil, nil, logger.NopLogger{})

	conn := ws.NewConnection("conn-1", "rag", nil, logger.NopLogger{})

	svc.HandleFrame(context.Background(), conn, &dto.ChatResponse{
		UserID:         "u1",
		ConversationID: "c1",
		Answer:         &dto.Answer{AnswerString: "streaming...", IsFinal: false},
	})
	assert.Empty(t, store.appended(), "non-final frames are not persisted")

	svc.HandleFrame(context.Background(), conn, &dto.ChatResponse{
		UserID:         "u1",
		ConversationID: "c1",
		DialogID:       "d1",
		Answer:         &dto.Answer{AnswerString: "here is the answer", IsFinal: true},
	})

	dialogs := store.appended()
	require.Len(t, dialogs, 1)
	assert.Equal(t, dto.ParticipantAssistant, dialogs[0].Participant)
	assert.Equal(t, "here is the answer", dialogs[0].Payload[0].Value)
	assert.Equal(t, "d1", dialogs[0].TraceID)
}

func TestProcessHTTPTurnRoundTrip(t *testing.T) {
	localBus := bus.NewLocalBus(logger.NopLogger{})
	defer localBus.Close()

	store := &fakeSessionStore{}
	ragQueue := &captureQueue{}
	ragQueue.onEnqueue = func(payload []byte) {
		var envelope dto.TaskEnvelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			return
		}
		frame, _ := json.Marshal(dto.ChatResponse{
			ConnectionID:   envelope.ConnectionID,
			ConversationID: envelope.Request.ConversationID,
			DialogID:       envelope.Request.DialogID,
			UserID:         envelope.Request.UserID,
			Answer:         &dto.Answer{AnswerString: "final answer", IsFinal: true},
		})
		_ = localBus.Publish(context.Background(), "chat_responses", frame)
	}

	svc := NewSessionService(gatewayConfig(), store, &stubConfigResolver{},
		stubModerator{safe: true}, stubModerator{safe: true},
		ragQueue, &captureQueue{}, localBus, nil, nil, logger.NopLogger{})

	res, err := svc.ProcessHTTPTurn(context.Background(), &dto.ChatRequest{
		ConversationID: "c1",
		UserID:         "u1",
		Message: dto.UserPrompt{
			Payload: []dto.UserPromptPayload{{Type: dto.PayloadTypeText, Value: "hello"}},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Answer)
	assert.Equal(t, "final answer", res.Answer.AnswerString)

	// User turn plus the persisted assistant answer.
	assert.Len(t, store.appended(), 2)
}

func TestProcessHTTPTurnBlocksUnsafeContent(t *testing.T) {
	svc := NewSessionService(gatewayConfig(), &fakeSessionStore{}, &stubConfigResolver{},
		stubModerator{safe: false}, stubModerator{safe: true},
		&captureQueue{}, &captureQueue{}, nil, nil, nil, logger.NopLogger{})

	_, err := svc.ProcessHTTPTurn(context.Background(), &dto.ChatRequest{
		ConversationID: "c1",
		Message: dto.UserPrompt{
			Payload: []dto.UserPromptPayload{{Type: dto.PayloadTypeText, Value: "something nasty"}},
		},
	})
	require.Error(t, err)
	assert.Equal(t, apperror.KindContentFilter, apperror.KindOf(err))
}

func TestProcessHTTPTurnRejectsUnresolvableConfig(t *testing.T) {
	resolver := &stubConfigResolver{resolveErr: apperror.New(apperror.KindNotFound, "no such version")}
	svc := NewSessionService(gatewayConfig(), &fakeSessionStore{}, resolver,
		stubModerator{safe: true}, stubModerator{safe: true},
		&captureQueue{}, &captureQueue{}, nil, nil, nil, logger.NopLogger{})

	_, err := svc.ProcessHTTPTurn(context.Background(), &dto.ChatRequest{
		ConversationID: "c1",
		Message: dto.UserPrompt{
			Payload: []dto.UserPromptPayload{{Type: dto.PayloadTypeText, Value: "hello"}},
		},
	})
	require.Error(t, err)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestProcessHTTPTurnValidation(t *testing.T) {
	svc := NewSessionService(gatewayConfig(), &fakeSessionStore{}, &stubConfigResolver{},
		stubModerator{safe: true}, stubModerator{safe: true},
		&captureQueue{}, &captureQueue{}, nil, nil, nil, logger.NopLogger{})

	_, err := svc.ProcessHTTPTurn(context.Background(), &dto.ChatRequest{
		Message: dto.UserPrompt{
			Payload: []dto.UserPromptPayload{{Type: dto.PayloadTypeText, Value: "hello"}},
		},
	})
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestEndSessionClearsConversation(t *testing.T) {
	store := &fakeSessionStore{}
	svc := NewSessionService(gatewayConfig(), store, &stubConfigResolver{},
		stubModerator{safe: true}, stubModerator{safe: true},
		&captureQueue{}, &captureQueue{}, nil, nil, nil, logger.NopLogger{})

	require.NoError(t, svc.EndSession(context.Background(), "u1", "c1"))
	assert.Equal(t, []string{"u1|c1"}, store.cleared)
}

var _ moderation.Moderator = stubModerator{}
