package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending notification emails.
	TaskTypeSendEmail = "mail:send"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.Queue(QueueDefault)), nil
}

// Mailer delivers queued notification mail over SMTP. An empty host leaves
// the mailer in log-only mode.
type Mailer struct {
	addr   string
	from   string
	logger *slog.Logger
	send   func(addr, from string, to []string, msg []byte) error
}

// NewMailer constructs a Mailer. host may be empty.
func NewMailer(host string, port int, from string, logger *slog.Logger) *Mailer {
	addr := ""
	if host != "" {
		addr = fmt.Sprintf("%s:%d", host, port)
	}
	return &Mailer{
		addr:   addr,
		from:   from,
		logger: logger,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

// HandleSendEmail processes TaskTypeSendEmail tasks.
func (m *Mailer) HandleSendEmail(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if m == nil || m.addr == "" {
		logger := slog.Default()
		if m != nil && m.logger != nil {
			logger = m.logger
		}
		logger.Info("mail delivery skipped, no smtp host configured",
			slog.String("to", payload.To),
			slog.String("subject", payload.Subject))
		return nil
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.from, payload.To, payload.Subject, payload.Body)
	if err := m.send(m.addr, m.from, []string{payload.To}, []byte(msg)); err != nil {
		return fmt.Errorf("jobs: send mail to %s: %w", payload.To, err)
	}
	m.logger.Info("mail sent",
		slog.String("to", payload.To),
		slog.String("subject", payload.Subject))
	return nil
}
