package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/gatehouse-api/gatehouse/internal/auth"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeVerificationEmail is the task type for email verification mail.
	TaskTypeVerificationEmail = "mail:verification"
	// TaskTypePasswordResetEmail is the task type for password reset mail.
	TaskTypePasswordResetEmail = "mail:password-reset"
)

// EmailTaskPayload describes one outbound account email. MessageID makes
// task submissions traceable across logs.
type EmailTaskPayload struct {
	MessageID      string `json:"message_id"`
	To             string `json:"to"`
	Username       string `json:"username"`
	Link           string `json:"link"`
	AppName        string `json:"app_name"`
	ExpirationTime string `json:"expiration_time"`
}

// NewVerificationEmailTask constructs an Asynq task for a verification email.
func NewVerificationEmailTask(payload EmailTaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeVerificationEmail, data), nil
}

// NewPasswordResetEmailTask constructs an Asynq task for a reset email.
func NewPasswordResetEmailTask(payload EmailTaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePasswordResetEmail, data), nil
}

// MailProcessor handles queued email tasks by delegating to a sender.
type MailProcessor struct {
	sender auth.Mailer
	logger *slog.Logger
}

// NewMailProcessor constructs a MailProcessor.
func NewMailProcessor(sender auth.Mailer, logger *slog.Logger) *MailProcessor {
	return &MailProcessor{sender: sender, logger: logger}
}

// HandleVerificationEmail processes TaskTypeVerificationEmail tasks.
func (p *MailProcessor) HandleVerificationEmail(ctx context.Context, t *asynq.Task) error {
	payload, err := decodePayload(t)
	if err != nil {
		return err
	}
	p.logger.Info("sending verification email",
		slog.String("message_id", payload.MessageID), slog.String("to", payload.To))
	return p.sender.SendVerificationEmail(ctx, payload.To, emailData(payload))
}

// HandlePasswordResetEmail processes TaskTypePasswordResetEmail tasks.
func (p *MailProcessor) HandlePasswordResetEmail(ctx context.Context, t *asynq.Task) error {
	payload, err := decodePayload(t)
	if err != nil {
		return err
	}
	p.logger.Info("sending password reset email",
		slog.String("message_id", payload.MessageID), slog.String("to", payload.To))
	return p.sender.SendPasswordResetEmail(ctx, payload.To, emailData(payload))
}

func decodePayload(t *asynq.Task) (EmailTaskPayload, error) {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// A payload that never unmarshals will never succeed.
		return payload, asynq.SkipRetry
	}
	return payload, nil
}

func emailData(payload EmailTaskPayload) auth.EmailData {
	return auth.EmailData{
		Username:       payload.Username,
		Link:           payload.Link,
		AppName:        payload.AppName,
		ExpirationTime: payload.ExpirationTime,
	}
}
