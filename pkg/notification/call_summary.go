package notification

import (
	"context"

	"ai-accelerator-be/internal/pkg/logger"
	"ai-accelerator-be/pkg/events"
)

// CallSummaryMailer emails a wrap-up to the configured inbox every time a
// conversation ends.
type CallSummaryMailer struct {
	sender  IEmailSender
	toEmail string
	logger  logger.ILogger
}

func NewCallSummaryMailer(sender IEmailSender, toEmail string, log logger.ILogger) *CallSummaryMailer {
	return &CallSummaryMailer{sender: sender, toEmail: toEmail, logger: log}
}

// Start attaches the mailer to the CALL_ENDED subject.
func (m *CallSummaryMailer) Start(sub *NatsSubscriber) error {
	return sub.Subscribe(events.TypeCallEnded, "call-summary-mailer", m.handle)
}

func (m *CallSummaryMailer) handle(_ context.Context, payload map[string]interface{}) error {
	conversationID, _ := payload["conversation_id"].(string)
	summary, _ := payload["summary"].(string)
	if summary == "" {
		summary = "The conversation has ended."
	}

	m.logger.Info("notification", "sending call summary", map[string]interface{}{
		"conversation_id": conversationID,
		"to":              m.toEmail,
	})
	return m.sender.SendCallSummary(m.toEmail, conversationID, summary)
}
