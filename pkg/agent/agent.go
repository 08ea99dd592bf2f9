package agent

import (
	"context"
	"time"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/pkg/llm"
)

// Tool is one callable capability exposed to an agent. The argument payload
// is the model's JSON arguments string.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Invoke      func(ctx context.Context, args string) (string, error)
}

// Input is one agent invocation: template arguments, prior conversation and
// retrieved context.
type Input struct {
	ConversationID string
	Arguments      map[string]string
	History        []llm.Message
	Context        []string
}

// Output is the agent's reply for one invocation.
type Output struct {
	Content string
}

// Agent is a configured reasoning unit the orchestrator can invoke by name.
type Agent interface {
	Name() string
	Invoke(ctx context.Context, input Input) (*Output, error)
}

const (
	invokeTimeout  = 60 * time.Second
	invokeAttempts = 3
	invokeBackoff  = time.Second
)

// invokeWithRetry bounds one invocation to the agent timeout and retries
// transient failures with fixed back-off.
func invokeWithRetry(ctx context.Context, fn func(ctx context.Context) (*Output, error)) (*Output, error) {
	var lastErr error
	for attempt := 1; attempt <= invokeAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, invokeTimeout)
		out, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !apperror.Retryable(err) || ctx.Err() != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, apperror.Wrap(apperror.KindTimeout, "agent invocation cancelled", ctx.Err())
		case <-time.After(invokeBackoff):
		}
	}
	return nil, lastErr
}
