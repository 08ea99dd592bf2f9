package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/dto"
	"ai-accelerator-be/pkg/agent"
	"ai-accelerator-be/pkg/events"
	"ai-accelerator-be/pkg/llm"
	"ai-accelerator-be/pkg/search"

	"github.com/tidwall/gjson"
)

const (
	stepClassify    = "classify"
	stepRephrase    = "rephrase"
	stepRetrieve    = "retrieve"
	stepMerge       = "merge"
	stepFinalAnswer = "final_answer"
	stepSentiment   = "sentiment"
)

// runSteps executes the turn's step graph and builds the final answer.
func (r *Runtime) runSteps(ctx context.Context, envelope *dto.TaskEnvelope, resolved *dto.ResolvedOrchestratorConfig) (*dto.Answer, error) {
	req := &envelope.Request
	steps := map[string]dto.StepTrace{}

	version := r.cfg.Ai.DefaultOrchestratorVersion
	if req.Overrides.OrchestratorRuntime != nil && req.Overrides.OrchestratorRuntime.ConfigVersion != "" {
		version = req.Overrides.OrchestratorRuntime.ConfigVersion
	}
	agents, err := r.factoryFor(resolved, version)
	if err != nil {
		return nil, err
	}

	session, err := r.sessions.Get(ctx, req.UserID, req.ConversationID)
	if err != nil {
		return nil, err
	}
	history := historyMessages(session.Dialogs)
	userText := req.Message.Text()

	r.publishUpdate(ctx, envelope, "Analyzing user query...")

	classification, trace, err := r.classify(ctx, agents, req, history, userText)
	if err != nil {
		return nil, err
	}
	if trace != nil {
		steps[stepClassify] = *trace
		r.stepCompleted(ctx, req, stepClassify)
	}
	if canned := cannedResponse(resolved, classification); canned != "" {
		return r.finishAnswer(resolved, req, canned, nil, steps), nil
	}

	searchQuery, filter, trace, err := r.rephrase(ctx, agents, history, userText)
	if err != nil {
		return nil, err
	}
	if trace != nil {
		steps[stepRephrase] = *trace
		r.stepCompleted(ctx, req, stepRephrase)
	}

	r.publishUpdate(ctx, envelope, "Searching for "+searchQuery)
	resp, err := r.skill.Search(ctx, &dto.SearchRequest{
		SearchQueries:   []dto.SearchQuery{{SearchQuery: searchQuery, Filter: filter}},
		SearchOverrides: req.Overrides.SearchOverrides,
	})
	if err != nil {
		return nil, err
	}
	total := 0
	for _, result := range resp.Results {
		total += len(result.Results)
	}
	r.publishUpdate(ctx, envelope, fmt.Sprintf("Search completed with %d results", total))
	steps[stepRetrieve] = dto.StepTrace{Input: searchQuery, Output: fmt.Sprintf("%d results", total)}
	r.stepCompleted(ctx, req, stepRetrieve)

	merged := r.merger(resolved, req).Merge(resp.Results)
	steps[stepMerge] = dto.StepTrace{Output: fmt.Sprintf("%d merged results", len(merged))}
	r.stepCompleted(ctx, req, stepMerge)

	answerText, trace, err := r.finalAnswer(ctx, agents, req, history, userText, merged)
	if err != nil {
		return nil, err
	}
	steps[stepFinalAnswer] = *trace
	r.stepCompleted(ctx, req, stepFinalAnswer)

	r.postProcess(ctx, agents, req, userText, answerText, steps)

	dataPoints := make([]string, 0, len(merged))
	for _, item := range merged {
		dataPoints = append(dataPoints, item.String())
	}
	answer := r.finishAnswer(resolved, req, answerText, dataPoints, steps)
	return answer, nil
}

// classify routes the user turn. Without a classifier agent every turn is
// treated as valid.
func (r *Runtime) classify(ctx context.Context, agents *agent.Factory, req *dto.ChatRequest, history []llm.Message, userText string) (dto.DialogClassification, *dto.StepTrace, error) {
	classifier, err := agents.GetAgent(ctx, AgentClassifier)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindNotFound {
			return dto.ClassificationValid, nil, nil
		}
		return "", nil, err
	}

	out, err := classifier.Invoke(ctx, agent.Input{
		ConversationID: req.ConversationID,
		Arguments:      map[string]string{"query": userText},
		History:        append(history, llm.Message{Role: "user", Content: userText}),
	})
	if err != nil {
		return "", nil, err
	}

	classification := parseClassification(out.Content)
	return classification, &dto.StepTrace{Input: userText, Output: string(classification)}, nil
}

func parseClassification(raw string) dto.DialogClassification {
	candidate := raw
	if parsed := gjson.Get(raw, "classification"); parsed.Exists() {
		candidate = parsed.String()
	}
	switch dto.DialogClassification(strings.TrimSpace(strings.ToLower(candidate))) {
	case dto.ClassificationChitChat:
		return dto.ClassificationChitChat
	case dto.ClassificationOutOfScope:
		return dto.ClassificationOutOfScope
	case dto.ClassificationContinuation:
		return dto.ClassificationContinuation
	default:
		return dto.ClassificationValid
	}
}

func cannedResponse(resolved *dto.ResolvedOrchestratorConfig, classification dto.DialogClassification) string {
	if classification != dto.ClassificationChitChat && classification != dto.ClassificationOutOfScope {
		return ""
	}
	if resolved.SystemConfig != nil {
		if canned, ok := resolved.SystemConfig.CannedResponses[string(classification)]; ok {
			return canned
		}
	}
	if classification == dto.ClassificationChitChat {
		return "I'm here to help with questions about the indexed content. What would you like to know?"
	}
	return "I'm sorry, that question is outside what I can help with."
}

// rephrase turns the conversational query into a standalone search query,
// optionally with typed filters. The model may answer free text or JSON.
func (r *Runtime) rephrase(ctx context.Context, agents *agent.Factory, history []llm.Message, userText string) (string, *dto.Filter, *dto.StepTrace, error) {
	rephraser, err := agents.GetAgent(ctx, AgentRephraser)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindNotFound {
			return userText, nil, nil, nil
		}
		return "", nil, nil, err
	}

	out, err := rephraser.Invoke(ctx, agent.Input{
		Arguments: map[string]string{"query": userText},
		History:   append(history, llm.Message{Role: "user", Content: userText}),
	})
	if err != nil {
		return "", nil, nil, err
	}

	query, filter := parseRephraserOutput(out.Content, userText)
	return query, filter, &dto.StepTrace{Input: userText, Output: out.Content}, nil
}

func parseRephraserOutput(raw, fallback string) (string, *dto.Filter) {
	if !gjson.Valid(raw) {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			return trimmed, nil
		}
		return fallback, nil
	}

	query := gjson.Get(raw, "search_query").String()
	if query == "" {
		query = fallback
	}

	var filter *dto.Filter
	if filters := gjson.Get(raw, "filters"); filters.IsArray() {
		parsed := &dto.Filter{LogicalOperator: dto.LogicalAnd}
		for _, item := range filters.Array() {
			name := item.Get("field_name").String()
			value := item.Get("field_value").String()
			if name == "" || value == "" {
				continue
			}
			filterType := dto.FilterType(item.Get("filter_type").String())
			if filterType == "" {
				filterType = dto.FilterEquals
			}
			parsed.SearchFilters = append(parsed.SearchFilters, dto.SearchFilter{
				FieldName:  name,
				FieldValue: value,
				FilterType: filterType,
			})
		}
		if len(parsed.SearchFilters) > 0 {
			filter = parsed
		}
	}
	return query, filter
}

func (r *Runtime) finalAnswer(ctx context.Context, agents *agent.Factory, req *dto.ChatRequest, history []llm.Message, userText string, merged []dto.SearchResultItem) (string, *dto.StepTrace, error) {
	answerer, err := agents.GetAgent(ctx, AgentFinalAnswer)
	if err != nil {
		return "", nil, err
	}

	contextItems := make([]string, 0, len(merged))
	for _, item := range merged {
		contextItems = append(contextItems, item.String())
	}

	out, err := answerer.Invoke(ctx, agent.Input{
		ConversationID: req.ConversationID,
		Arguments:      map[string]string{"query": userText},
		History:        append(history, llm.Message{Role: "user", Content: userText}),
		Context:        contextItems,
	})
	if err != nil {
		return "", nil, err
	}
	return out.Content, &dto.StepTrace{Input: userText, Output: out.Content}, nil
}

// postProcess runs optional hooks that must never fail the turn.
func (r *Runtime) postProcess(ctx context.Context, agents *agent.Factory, req *dto.ChatRequest, userText, answerText string, steps map[string]dto.StepTrace) {
	sentiment, err := agents.GetAgent(ctx, AgentSentiment)
	if err != nil {
		return
	}
	out, err := sentiment.Invoke(ctx, agent.Input{
		Arguments: map[string]string{"query": userText, "answer": answerText},
		History: []llm.Message{
			{Role: "user", Content: userText},
			{Role: "assistant", Content: answerText},
		},
	})
	if err != nil {
		r.logger.Warn("orchestrator", "sentiment hook failed", map[string]interface{}{
			"conversation_id": req.ConversationID,
			"error":           err.Error(),
		})
		return
	}
	steps[stepSentiment] = dto.StepTrace{Output: out.Content}
	r.stepCompleted(ctx, req, stepSentiment)
}

func (r *Runtime) finishAnswer(resolved *dto.ResolvedOrchestratorConfig, req *dto.ChatRequest, text string, dataPoints []string, steps map[string]dto.StepTrace) *dto.Answer {
	answer := &dto.Answer{
		AnswerString:   text,
		IsFinal:        true,
		DataPoints:     dataPoints,
		StepsExecution: steps,
		SpeakAnswer:    text,
	}
	if resolved.SystemConfig != nil {
		answer.SpeakerLocale = resolved.SystemConfig.Locale
	}
	for _, part := range req.Message.Payload {
		if part.Type == dto.PayloadTypeText && part.Locale != "" {
			answer.SpeakerLocale = part.Locale
		}
	}
	return answer
}

func (r *Runtime) merger(resolved *dto.ResolvedOrchestratorConfig, req *dto.ChatRequest) search.Merger {
	strategy := ""
	if resolved.SystemConfig != nil {
		strategy = resolved.SystemConfig.MergeStrategy
	}
	if req.Overrides.OrchestratorRuntime != nil && req.Overrides.OrchestratorRuntime.SearchResultsMergeStrategy != "" {
		strategy = req.Overrides.OrchestratorRuntime.SearchResultsMergeStrategy
	}
	return search.NewMerger(strategy)
}

func (r *Runtime) stepCompleted(ctx context.Context, req *dto.ChatRequest, step string) {
	r.emitEvent(ctx, events.TypeStepCompleted, map[string]interface{}{
		"conversation_id": req.ConversationID,
		"dialog_id":       req.DialogID,
		"step":            step,
	})
}

// historyMessages flattens persisted dialogs into provider messages.
func historyMessages(dialogs []dto.Dialog) []llm.Message {
	messages := make([]llm.Message, 0, len(dialogs))
	for _, dialog := range dialogs {
		role := "user"
		if dialog.Participant == dto.ParticipantAssistant {
			role = "assistant"
		}
		messages = append(messages, llm.Message{
			Role:    role,
			Content: dto.UserPrompt{Payload: dialog.Payload}.Text(),
		})
	}
	return messages
}
