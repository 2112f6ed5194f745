package mail

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gatehouse-api/gatehouse/internal/auth"
	"github.com/gatehouse-api/gatehouse/jobs"
)

// QueueMailer implements auth.Mailer by enqueueing tasks for the worker
// instead of sending inline, keeping SMTP latency out of the request path.
type QueueMailer struct {
	client *jobs.Client
}

// NewQueueMailer constructs a QueueMailer.
func NewQueueMailer(client *jobs.Client) *QueueMailer {
	return &QueueMailer{client: client}
}

// SendVerificationEmail enqueues a verification email task.
func (m *QueueMailer) SendVerificationEmail(ctx context.Context, to string, data auth.EmailData) error {
	_, err := m.client.EnqueueVerificationEmail(ctx, payload(to, data))
	if err != nil {
		return fmt.Errorf("mail: enqueue verification email: %w", err)
	}
	return nil
}

// SendPasswordResetEmail enqueues a password reset email task.
func (m *QueueMailer) SendPasswordResetEmail(ctx context.Context, to string, data auth.EmailData) error {
	_, err := m.client.EnqueuePasswordResetEmail(ctx, payload(to, data))
	if err != nil {
		return fmt.Errorf("mail: enqueue password reset email: %w", err)
	}
	return nil
}

func payload(to string, data auth.EmailData) jobs.EmailTaskPayload {
	return jobs.EmailTaskPayload{
		MessageID:      uuid.NewString(),
		To:             to,
		Username:       data.Username,
		Link:           data.Link,
		AppName:        data.AppName,
		ExpirationTime: data.ExpirationTime,
	}
}

var _ auth.Mailer = (*QueueMailer)(nil)
