package orchestrator

import (
	"testing"

	"ai-accelerator-be/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want dto.DialogClassification
	}{
		{"bare token", "chit_chat", dto.ClassificationChitChat},
		{"uppercase with whitespace", "  OUT_OF_SCOPE \n", dto.ClassificationOutOfScope},
		{"json field", `{"classification":"continuation"}`, dto.ClassificationContinuation},
		{"json with extras", `{"classification":"chit_chat","confidence":0.93}`, dto.ClassificationChitChat},
		{"unknown token defaults to valid", "smalltalk?", dto.ClassificationValid},
		{"empty defaults to valid", "", dto.ClassificationValid},
		{"json with unknown value", `{"classification":"other"}`, dto.ClassificationValid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseClassification(tt.raw))
		})
	}
}

func TestParseRephraserOutputFreeText(t *testing.T) {
	query, filter := parseRephraserOutput("waterproof hiking boots", "original question")
	assert.Equal(t, "waterproof hiking boots", query)
	assert.Nil(t, filter)
}

func TestParseRephraserOutputEmptyFallsBack(t *testing.T) {
	query, filter := parseRephraserOutput("   ", "original question")
	assert.Equal(t, "original question", query)
	assert.Nil(t, filter)
}

func TestParseRephraserOutputTypedJSON(t *testing.T) {
	raw := `{
		"search_query": "annual revenue",
		"filters": [
			{"field_name": "reportedYear", "field_value": "2023", "filter_type": "GREATER_OR_EQUALS"},
			{"field_name": "category", "field_value": "finance"}
		]
	}`

	query, filter := parseRephraserOutput(raw, "fallback")
	assert.Equal(t, "annual revenue", query)
	require.NotNil(t, filter)
	assert.Equal(t, dto.LogicalAnd, filter.LogicalOperator)
	require.Len(t, filter.SearchFilters, 2)
	assert.Equal(t, dto.FilterGreaterOrEquals, filter.SearchFilters[0].FilterType)
	// Missing filter_type defaults to EQUALS.
	assert.Equal(t, dto.FilterEquals, filter.SearchFilters[1].FilterType)
}

func TestParseRephraserOutputSkipsIncompleteFilters(t *testing.T) {
	raw := `{"search_query":"q","filters":[{"field_name":"category"},{"field_value":"x"}]}`

	query, filter := parseRephraserOutput(raw, "fallback")
	assert.Equal(t, "q", query)
	assert.Nil(t, filter, "filters without both name and value are dropped")
}

func TestParseRephraserOutputJSONWithoutQuery(t *testing.T) {
	query, filter := parseRephraserOutput(`{"filters":[]}`, "fallback")
	assert.Equal(t, "fallback", query)
	assert.Nil(t, filter)
}

func TestCannedResponse(t *testing.T) {
	resolved := &dto.ResolvedOrchestratorConfig{
		SystemConfig: &dto.SystemConfig{
			CannedResponses: map[string]string{
				"chit_chat": "Happy to chat, but I answer product questions.",
			},
		},
	}

	assert.Equal(t, "Happy to chat, but I answer product questions.",
		cannedResponse(resolved, dto.ClassificationChitChat))
	// No configured response falls back to the built-in one.
	assert.NotEmpty(t, cannedResponse(resolved, dto.ClassificationOutOfScope))
	// Valid turns never short-circuit.
	assert.Empty(t, cannedResponse(resolved, dto.ClassificationValid))
	assert.Empty(t, cannedResponse(resolved, dto.ClassificationContinuation))
}

func TestHistoryMessagesRolesAndFlattening(t *testing.T) {
	dialogs := []dto.Dialog{
		{
			Participant: dto.ParticipantUser,
			Payload: []dto.UserPromptPayload{
				{Type: dto.PayloadTypeText, Value: "show me boots"},
				{Type: dto.PayloadTypeProduct, Value: "sku-42"},
			},
		},
		{
			Participant: dto.ParticipantAssistant,
			Payload:     []dto.UserPromptPayload{{Type: dto.PayloadTypeText, Value: "here are three options"}},
		},
	}

	messages := historyMessages(dialogs)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Contains(t, messages[0].Content, "show me boots")
	assert.Contains(t, messages[0].Content, "sku-42")
	assert.Equal(t, "assistant", messages[1].Role)
}
