package orchestrator

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/config"
	"ai-accelerator-be/internal/dto"
	"ai-accelerator-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	resolveErr   error
	lastVersion  string
	resolveCalls int
	mu           sync.Mutex
}

func (f *fakeResolver) Create(ctx context.Context, configType dto.ConfigType, req *dto.CreateConfigRequest) (*dto.CreateConfigResponse, error) {
	return nil, apperror.New(apperror.KindInternal, "not implemented")
}

func (f *fakeResolver) Get(ctx context.Context, configType dto.ConfigType, configVersion string) (*dto.ConfigDocument, error) {
	return nil, apperror.New(apperror.KindNotFound, "not implemented")
}

func (f *fakeResolver) GetConfigBody(ctx context.Context, configType, configVersion string) ([]byte, error) {
	return nil, apperror.New(apperror.KindNotFound, "not implemented")
}

func (f *fakeResolver) List(ctx context.Context, configType dto.ConfigType) ([]*dto.ConfigDocument, error) {
	return nil, nil
}

func (f *fakeResolver) ResolveOrchestrator(ctx context.Context, configVersion string) (*dto.ResolvedOrchestratorConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveCalls++
	f.lastVersion = configVersion
	return nil, f.resolveErr
}

func (f *fakeResolver) SeedFromFile(ctx context.Context, path string) error { return nil }

type capturingPublisher struct {
	mu     sync.Mutex
	frames []dto.ChatResponse
}

func (p *capturingPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	var frame dto.ChatResponse
	if err := json.Unmarshal(payload, &frame); err != nil {
		return err
	}
	p.mu.Lock()
	p.frames = append(p.frames, frame)
	p.mu.Unlock()
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func (p *capturingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Ai.DefaultOrchestratorVersion = "default"
	cfg.Channels.ResponseChannel = "chat_responses"
	return cfg
}

func TestHandleTaskDropsUndecodablePayload(t *testing.T) {
	publisher := &capturingPublisher{}
	runtime := NewRuntime(testConfig(), &fakeResolver{}, nil, nil, publisher, nil, logger.NopLogger{})

	err := runtime.HandleTask(context.Background(), []byte("not json"))
	require.NoError(t, err, "undecodable tasks are dropped, not retried")
	assert.Zero(t, publisher.count())
}

func TestProcessTurnPublishesTypedErrorFrame(t *testing.T) {
	publisher := &capturingPublisher{}
	resolver := &fakeResolver{resolveErr: apperror.New(apperror.KindContentFilter, "blocked")}
	runtime := NewRuntime(testConfig(), resolver, nil, nil, publisher, nil, logger.NopLogger{})

	envelope := &dto.TaskEnvelope{
		ConnectionID: "conn-1",
		Request: dto.ChatRequest{
			UserID:         "u1",
			ConversationID: "c1",
			DialogID:       "d1",
		},
	}

	require.NoError(t, runtime.ProcessTurn(context.Background(), envelope))
	require.Equal(t, 1, publisher.count())

	frame := publisher.frames[0]
	require.NotNil(t, frame.Error)
	assert.Equal(t, string(apperror.KindContentFilter), frame.Error.Code)
	assert.False(t, frame.Error.Retry)
	assert.Contains(t, frame.Error.Message, "content moderation")
	assert.Equal(t, "conn-1", frame.ConnectionID)
}

func TestProcessTurnMarksRetryableErrors(t *testing.T) {
	publisher := &capturingPublisher{}
	resolver := &fakeResolver{resolveErr: apperror.New(apperror.KindRateLimit, "throttled")}
	runtime := NewRuntime(testConfig(), resolver, nil, nil, publisher, nil, logger.NopLogger{})

	envelope := &dto.TaskEnvelope{Request: dto.ChatRequest{UserID: "u1", ConversationID: "c1", DialogID: "d1"}}
	require.NoError(t, runtime.ProcessTurn(context.Background(), envelope))

	require.Equal(t, 1, publisher.count())
	require.NotNil(t, publisher.frames[0].Error)
	assert.True(t, publisher.frames[0].Error.Retry)
}

func TestProcessTurnIgnoresDuplicateDialogDelivery(t *testing.T) {
	publisher := &capturingPublisher{}
	resolver := &fakeResolver{resolveErr: apperror.New(apperror.KindInternal, "boom")}
	runtime := NewRuntime(testConfig(), resolver, nil, nil, publisher, nil, logger.NopLogger{})

	envelope := &dto.TaskEnvelope{Request: dto.ChatRequest{UserID: "u1", ConversationID: "c1", DialogID: "d1"}}

	require.NoError(t, runtime.ProcessTurn(context.Background(), envelope))
	require.NoError(t, runtime.ProcessTurn(context.Background(), envelope))

	assert.Equal(t, 1, publisher.count(), "second delivery of the same dialog is dropped")
	assert.Equal(t, 1, resolver.resolveCalls)
}

func TestSessionStateStaysBounded(t *testing.T) {
	runtime := NewRuntime(testConfig(), &fakeResolver{}, nil, nil, &capturingPublisher{}, nil, logger.NopLogger{})

	for i := 0; i < maxTrackedSessions+64; i++ {
		key := "u1|c" + strconv.Itoa(i)
		runtime.sessionLock(key)
		runtime.seenDialog(key, "d1")
	}

	runtime.mu.Lock()
	defer runtime.mu.Unlock()
	assert.LessOrEqual(t, len(runtime.sessionLocks), maxTrackedSessions)
	assert.LessOrEqual(t, len(runtime.lastDialog), maxTrackedSessions)
}

func TestPruneKeepsSessionsWithTurnsInFlight(t *testing.T) {
	runtime := NewRuntime(testConfig(), &fakeResolver{}, nil, nil, &capturingPublisher{}, nil, logger.NopLogger{})

	held := runtime.sessionLock("u1|busy")
	held.Lock()
	defer held.Unlock()

	for i := 0; i < maxTrackedSessions+64; i++ {
		runtime.sessionLock("u1|idle-" + strconv.Itoa(i))
	}

	runtime.mu.Lock()
	defer runtime.mu.Unlock()
	assert.Same(t, held, runtime.sessionLocks["u1|busy"], "in-flight session survives pruning")
}

func TestResolveConfigHonorsOverrideVersion(t *testing.T) {
	publisher := &capturingPublisher{}
	resolver := &fakeResolver{resolveErr: apperror.New(apperror.KindNotFound, "no such version")}
	runtime := NewRuntime(testConfig(), resolver, nil, nil, publisher, nil, logger.NopLogger{})

	envelope := &dto.TaskEnvelope{Request: dto.ChatRequest{
		UserID:         "u1",
		ConversationID: "c1",
		DialogID:       "d1",
		Overrides: dto.Overrides{
			OrchestratorRuntime: &dto.OrchestratorServiceOverrides{ConfigVersion: "pinned_20250101_000001"},
		},
	}}

	require.NoError(t, runtime.ProcessTurn(context.Background(), envelope))
	assert.Equal(t, "pinned_20250101_000001", resolver.lastVersion)
}
