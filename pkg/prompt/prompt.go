package prompt

import (
	"strings"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/pkg/logger"
	"ai-accelerator-be/pkg/llm"
)

// ErrPromptOverflow reports that no amount of shedding can fit the prompt
// into its token budget.
var ErrPromptOverflow = apperror.New(apperror.KindValidation, "prompt exceeds its token budget")

// EstimateTokens approximates the token count of a string. Four characters
// per token is close enough for budget enforcement.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return len(s)/4 + 1
}

// Prompt describes one templated system prompt with its token budgets.
type Prompt struct {
	Name           string
	SystemTemplate string
	FewShots       []llm.Message
	TotalMaxTokens int
	MaxTokens      int // reserved for the completion
}

// Render substitutes {name} placeholders strictly: every placeholder in the
// template must have an argument.
func (p *Prompt) Render(args map[string]string) (string, error) {
	var out strings.Builder
	template := p.SystemTemplate
	for {
		open := strings.IndexByte(template, '{')
		if open < 0 {
			out.WriteString(template)
			return out.String(), nil
		}
		end := strings.IndexByte(template[open:], '}')
		if end < 0 {
			out.WriteString(template)
			return out.String(), nil
		}
		end += open

		name := template[open+1 : end]
		value, ok := args[name]
		if !ok {
			return "", apperror.Newf(apperror.KindValidation, "prompt %q is missing argument %q", p.Name, name)
		}
		out.WriteString(template[:open])
		out.WriteString(value)
		template = template[end+1:]
	}
}

// historyIndexRatio splits the variable budget five parts context to one part
// history.
const historyIndexRatio = 5

// Builder assembles bounded message lists from a prompt, conversation
// history and retrieved context.
type Builder struct {
	logger logger.ILogger
}

func NewBuilder(log logger.ILogger) *Builder {
	return &Builder{logger: log}
}

// BuildMessages renders the system prompt and packs history plus context into
// the remaining budget. Context items are shed least-relevant-first (they
// arrive sorted most relevant first), history is shed oldest pair first.
func (b *Builder) BuildMessages(p *Prompt, args map[string]string, history []llm.Message, contextItems []string) ([]llm.Message, error) {
	system, err := p.Render(args)
	if err != nil {
		return nil, err
	}

	fixed := EstimateTokens(system)
	for _, shot := range p.FewShots {
		fixed += EstimateTokens(shot.Content)
	}

	budget := p.TotalMaxTokens - p.MaxTokens - fixed
	if budget < 0 {
		return nil, ErrPromptOverflow
	}

	contextBudget := budget * historyIndexRatio / (historyIndexRatio + 1)
	historyBudget := budget - contextBudget

	keptContext, contextTokens := packContext(contextItems, contextBudget)
	keptHistory, historyTokens := packHistory(history, historyBudget+contextBudget-contextTokens)

	if len(contextItems) > 0 && len(keptContext) == 0 {
		return nil, ErrPromptOverflow
	}

	if len(keptContext) < len(contextItems) || len(keptHistory) < len(history) {
		b.logger.Info("prompt_builder", "prompt content trimmed to budget", map[string]interface{}{
			"prompt":           p.Name,
			"context_original": len(contextItems),
			"context_final":    len(keptContext),
			"history_original": len(history),
			"history_final":    len(keptHistory),
			"tokens_used":      fixed + contextTokens + historyTokens,
			"tokens_budget":    p.TotalMaxTokens - p.MaxTokens,
		})
	}

	messages := make([]llm.Message, 0, len(p.FewShots)+len(keptHistory)+2)
	if len(keptContext) > 0 {
		system += "\n\nSources:\n" + strings.Join(keptContext, "\n")
	}
	messages = append(messages, llm.Message{Role: "system", Content: system})
	messages = append(messages, p.FewShots...)
	messages = append(messages, keptHistory...)
	return messages, nil
}

func packContext(items []string, budget int) ([]string, int) {
	kept := items
	used := 0
	for _, item := range items {
		used += EstimateTokens(item)
	}
	for len(kept) > 0 && used > budget {
		used -= EstimateTokens(kept[len(kept)-1])
		kept = kept[:len(kept)-1]
	}
	if used > budget {
		return nil, 0
	}
	return kept, used
}

func packHistory(history []llm.Message, budget int) ([]llm.Message, int) {
	kept := history
	used := 0
	for _, msg := range history {
		used += EstimateTokens(msg.Content)
	}
	for len(kept) > 0 && used > budget {
		// Shed the oldest (user, assistant) exchange together so the
		// remaining history never starts mid-pair.
		drop := 1
		if len(kept) > 1 && kept[0].Role == "user" && kept[1].Role == "assistant" {
			drop = 2
		}
		for i := 0; i < drop; i++ {
			used -= EstimateTokens(kept[0].Content)
			kept = kept[1:]
		}
	}
	if used > budget {
		return nil, 0
	}
	return kept, used
}

// MergeArgs merges argument maps; later maps win on conflicts.
func MergeArgs(maps ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
