package prompt

import (
	"strings"
	"testing"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/pkg/logger"
	"ai-accelerator-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	p := &Prompt{
		Name:           "greeter",
		SystemTemplate: "Hello {name}, you asked about {topic}.",
	}

	out, err := p.Render(map[string]string{"name": "Ada", "topic": "boots"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada, you asked about boots.", out)
}

func TestRenderMissingArgumentFails(t *testing.T) {
	p := &Prompt{Name: "greeter", SystemTemplate: "Hello {name}."}

	_, err := p.Render(map[string]string{})
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Contains(t, err.Error(), "name")
}

func TestRenderLeavesUnclosedBraceAlone(t *testing.T) {
	p := &Prompt{SystemTemplate: "set {x} to {not closed"}

	out, err := p.Render(map[string]string{"x": "1"})
	require.NoError(t, err)
	assert.Equal(t, "set 1 to {not closed", out)
}

func TestBuildMessagesKeepsEverythingWithinBudget(t *testing.T) {
	b := NewBuilder(logger.NopLogger{})
	p := &Prompt{
		Name:           "answer",
		SystemTemplate: "Answer using the sources.",
		TotalMaxTokens: 4096,
		MaxTokens:      512,
	}
	history := []llm.Message{
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "first answer"},
	}
	contextItems := []string{"doc one", "doc two"}

	messages, err := b.BuildMessages(p, nil, history, contextItems)
	require.NoError(t, err)

	require.Len(t, messages, 3)
	assert.Equal(t, "system", messages[0].Role)
	assert.Contains(t, messages[0].Content, "Sources:")
	assert.Contains(t, messages[0].Content, "doc one")
	assert.Contains(t, messages[0].Content, "doc two")
	assert.Equal(t, history, messages[1:])
}

func TestBuildMessagesShedsOldestHistoryFirst(t *testing.T) {
	b := NewBuilder(logger.NopLogger{})
	big := strings.Repeat("word ", 400) // ~500 tokens per message
	p := &Prompt{
		Name:           "answer",
		SystemTemplate: "Answer.",
		TotalMaxTokens: 700,
		MaxTokens:      100,
	}
	history := []llm.Message{
		{Role: "user", Content: big},
		{Role: "assistant", Content: big},
		{Role: "user", Content: "latest question"},
	}

	messages, err := b.BuildMessages(p, nil, history, nil)
	require.NoError(t, err)

	// The oldest (user, assistant) pair is dropped together.
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "latest question", messages[1].Content)
}

func TestBuildMessagesContextOverflowFails(t *testing.T) {
	b := NewBuilder(logger.NopLogger{})
	p := &Prompt{
		Name:           "answer",
		SystemTemplate: "Answer.",
		TotalMaxTokens: 50,
		MaxTokens:      40,
	}

	_, err := b.BuildMessages(p, nil, nil, []string{strings.Repeat("x", 4000)})
	assert.ErrorIs(t, err, ErrPromptOverflow)
}

func TestBuildMessagesSystemAloneOverflows(t *testing.T) {
	b := NewBuilder(logger.NopLogger{})
	p := &Prompt{
		Name:           "answer",
		SystemTemplate: strings.Repeat("x", 4000),
		TotalMaxTokens: 100,
		MaxTokens:      50,
	}

	_, err := b.BuildMessages(p, nil, nil, nil)
	assert.ErrorIs(t, err, ErrPromptOverflow)
}

func TestMergeArgsLaterMapsWin(t *testing.T) {
	merged := MergeArgs(
		map[string]string{"a": "1", "b": "2"},
		map[string]string{"b": "3"},
	)
	assert.Equal(t, map[string]string{"a": "1", "b": "3"}, merged)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("hi"))
	assert.Equal(t, 3, EstimateTokens("12345678x"))
}
