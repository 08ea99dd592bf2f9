package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/dto"
	"ai-accelerator-be/internal/pkg/logger"
	"ai-accelerator-be/pkg/bus"

	"github.com/google/uuid"
)

const defaultTurnWait = 3 * time.Minute

// TurnProcessor is the slice of the orchestrator runtime the harness drives.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, envelope *dto.TaskEnvelope) error
}

// Options parameterize one evaluation run.
type Options struct {
	OrchestratorVersion  string
	SearchConfigVersion  string
	SearchTopK           int
	ConversationIDPrefix string
	SampleSize           int
	Verbose              bool
}

// Runner replays dataset questions through an in-process orchestrator and
// collects the final answer frames from the response channel.
type Runner struct {
	processor       TurnProcessor
	subscriber      bus.Subscriber
	responseChannel string
	opts            Options
	logger          logger.ILogger

	mu      sync.Mutex
	waiters map[string]chan *dto.ChatResponse
}

func NewRunner(processor TurnProcessor, subscriber bus.Subscriber, responseChannel string, opts Options, log logger.ILogger) *Runner {
	if opts.ConversationIDPrefix == "" {
		opts.ConversationIDPrefix = "eval"
	}
	return &Runner{
		processor:       processor,
		subscriber:      subscriber,
		responseChannel: responseChannel,
		opts:            opts,
		logger:          log,
		waiters:         make(map[string]chan *dto.ChatResponse),
	}
}

// Run replays every sampled record as one turn. A turn that errors is recorded
// and the run continues; the report tells failures apart from completions.
func (r *Runner) Run(ctx context.Context, records []Record) (*Report, error) {
	if err := r.subscriber.Subscribe(ctx, []string{r.responseChannel}, r.routeFrame); err != nil {
		return nil, apperror.Wrap(apperror.KindServiceUnavailable, "cannot subscribe to response channel", err)
	}

	records = Sample(records, r.opts.SampleSize)
	report := &Report{StartedAt: time.Now()}

	for i, rec := range records {
		result := r.runTurn(ctx, i, rec)
		report.Results = append(report.Results, result)
		if r.opts.Verbose {
			r.logger.Info("evaluation", "turn finished", map[string]interface{}{
				"index":   i,
				"latency": result.Latency.String(),
				"failed":  result.Err != "",
			})
		}
	}

	report.FinishedAt = time.Now()
	return report, nil
}

func (r *Runner) runTurn(ctx context.Context, index int, rec Record) TurnResult {
	connectionID := uuid.NewString()
	conversationID := rec.ConversationID
	if conversationID == "" {
		conversationID = fmt.Sprintf("%s-%d-%s", r.opts.ConversationIDPrefix, index, uuid.NewString()[:8])
	} else {
		conversationID = r.opts.ConversationIDPrefix + "-" + conversationID
	}

	frames := make(chan *dto.ChatResponse, 1)
	r.addWaiter(connectionID, frames)
	defer r.removeWaiter(connectionID)

	envelope := &dto.TaskEnvelope{
		ConnectionID: connectionID,
		SessionID:    conversationID,
		Request:      r.buildRequest(conversationID, rec),
		EnqueuedAt:   time.Now(),
	}

	start := time.Now()
	result := TurnResult{
		ConversationID: conversationID,
		Question:       rec.Question,
		GroundTruth:    rec.GroundTruth,
	}

	if err := r.processor.ProcessTurn(ctx, envelope); err != nil {
		result.Latency = time.Since(start)
		result.Err = err.Error()
		return result
	}

	select {
	case frame := <-frames:
		result.Latency = time.Since(start)
		if frame.Error != nil {
			result.Err = frame.Error.Message
		} else if frame.Answer != nil {
			result.Answer = frame.Answer.AnswerString
			result.DataPoints = len(frame.Answer.DataPoints)
		}
	case <-time.After(defaultTurnWait):
		result.Latency = time.Since(start)
		result.Err = "no final answer within " + defaultTurnWait.String()
	case <-ctx.Done():
		result.Latency = time.Since(start)
		result.Err = ctx.Err().Error()
	}
	return result
}

func (r *Runner) buildRequest(conversationID string, rec Record) dto.ChatRequest {
	req := dto.ChatRequest{
		ConversationID: conversationID,
		UserID:         "evaluation",
		DialogID:       uuid.NewString(),
		Message: dto.UserPrompt{
			Payload: []dto.UserPromptPayload{{Type: dto.PayloadTypeText, Value: rec.Question}},
		},
	}
	if r.opts.OrchestratorVersion != "" {
		req.Overrides.OrchestratorRuntime = &dto.OrchestratorServiceOverrides{
			ConfigVersion: r.opts.OrchestratorVersion,
		}
	}
	if r.opts.SearchTopK > 0 || r.opts.SearchConfigVersion != "" {
		overrides := &dto.SearchOverrides{ConfigVersion: r.opts.SearchConfigVersion}
		if r.opts.SearchTopK > 0 {
			top := r.opts.SearchTopK
			overrides.Top = &top
		}
		req.Overrides.SearchOverrides = overrides
	}
	return req
}

// routeFrame delivers final frames to the turn waiting on their connection.
// Intermediate status frames are only surfaced in verbose mode.
func (r *Runner) routeFrame(_ context.Context, _ string, payload []byte) error {
	var frame dto.ChatResponse
	if err := json.Unmarshal(payload, &frame); err != nil {
		r.logger.Warn("evaluation", "undecodable response frame", map[string]interface{}{"error": err.Error()})
		return nil
	}

	if !frame.IsFinal() {
		if r.opts.Verbose && frame.Answer != nil {
			r.logger.Info("evaluation", "status update", map[string]interface{}{
				"connection_id": frame.ConnectionID,
				"status":        frame.Answer.AnswerString,
			})
		}
		return nil
	}

	r.mu.Lock()
	waiter, ok := r.waiters[frame.ConnectionID]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case waiter <- &frame:
	default:
	}
	return nil
}

func (r *Runner) addWaiter(connectionID string, ch chan *dto.ChatResponse) {
	r.mu.Lock()
	r.waiters[connectionID] = ch
	r.mu.Unlock()
}

func (r *Runner) removeWaiter(connectionID string) {
	r.mu.Lock()
	delete(r.waiters, connectionID)
	r.mu.Unlock()
}
