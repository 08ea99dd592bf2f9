package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"ai-accelerator-be/internal/dto"
	"ai-accelerator-be/internal/pkg/logger"
	"ai-accelerator-be/pkg/bus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoProcessor publishes a final answer frame for every turn, mimicking the
// orchestrator's half of the contract.
type echoProcessor struct {
	publisher bus.Publisher
	channel   string
	failOn    string
}

func (p *echoProcessor) ProcessTurn(ctx context.Context, envelope *dto.TaskEnvelope) error {
	question := envelope.Request.Message.Text()
	if question == p.failOn {
		return errors.New("turn rejected")
	}
	frame := dto.ChatResponse{
		ConnectionID:   envelope.ConnectionID,
		ConversationID: envelope.Request.ConversationID,
		DialogID:       envelope.Request.DialogID,
		Answer: &dto.Answer{
			AnswerString: "echo: " + question,
			IsFinal:      true,
			DataPoints:   []string{"doc-1"},
		},
	}
	payload, _ := json.Marshal(frame)
	return p.publisher.Publish(ctx, p.channel, payload)
}

func TestRunnerCollectsAnswers(t *testing.T) {
	localBus := bus.NewLocalBus(logger.NopLogger{})
	defer localBus.Close()

	processor := &echoProcessor{publisher: localBus, channel: "chat_responses"}
	runner := NewRunner(processor, localBus, "chat_responses", Options{
		ConversationIDPrefix: "test",
	}, logger.NopLogger{})

	records := []Record{
		{Question: "first"},
		{Question: "second", GroundTruth: "expected"},
	}

	report, err := runner.Run(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	assert.True(t, report.Success())
	assert.Equal(t, 2, report.Completed())
	assert.Equal(t, "echo: first", report.Results[0].Answer)
	assert.Equal(t, "echo: second", report.Results[1].Answer)
	assert.Equal(t, "expected", report.Results[1].GroundTruth)
	assert.Equal(t, 1, report.Results[0].DataPoints)
	assert.Contains(t, report.Results[0].ConversationID, "test-")
}

func TestRunnerRecordsProcessorFailures(t *testing.T) {
	localBus := bus.NewLocalBus(logger.NopLogger{})
	defer localBus.Close()

	processor := &echoProcessor{publisher: localBus, channel: "chat_responses", failOn: "bad"}
	runner := NewRunner(processor, localBus, "chat_responses", Options{}, logger.NopLogger{})

	report, err := runner.Run(context.Background(), []Record{
		{Question: "good"},
		{Question: "bad"},
	})
	require.NoError(t, err)

	assert.False(t, report.Success())
	assert.Equal(t, 1, report.Completed())
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, "turn rejected", report.Results[1].Err)
}

func TestRunnerHonorsSampleSize(t *testing.T) {
	localBus := bus.NewLocalBus(logger.NopLogger{})
	defer localBus.Close()

	processor := &echoProcessor{publisher: localBus, channel: "chat_responses"}
	runner := NewRunner(processor, localBus, "chat_responses", Options{SampleSize: 1}, logger.NopLogger{})

	report, err := runner.Run(context.Background(), []Record{
		{Question: "first"},
		{Question: "second"},
	})
	require.NoError(t, err)
	assert.Len(t, report.Results, 1)
}
