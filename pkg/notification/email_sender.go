package notification

import (
	"fmt"

	"ai-accelerator-be/internal/pkg/logger"

	"gopkg.in/gomail.v2"
)

type IEmailSender interface {
	SendCallSummary(toEmail, conversationID, summary string) error
}

type emailSender struct {
	dialer      *gomail.Dialer
	senderEmail string
	logger      logger.ILogger
}

func NewEmailSender(host string, port int, username, password, senderEmail string, log logger.ILogger) IEmailSender {
	return &emailSender{
		dialer:      gomail.NewDialer(host, port, username, password),
		senderEmail: senderEmail,
		logger:      log,
	}
}

// SendCallSummary mails the post-call analysis for one ended conversation.
func (s *emailSender) SendCallSummary(toEmail, conversationID, summary string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("Conversation summary: %s", conversationID))

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Conversation %s ended</h2>
			<p>%s</p>
		</div>
	`, conversationID, summary)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error("notification", "failed to send call summary email", map[string]interface{}{
			"to":    toEmail,
			"error": err,
		})
		return err
	}
	return nil
}
