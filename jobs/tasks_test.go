package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-api/gatehouse/internal/auth"
)

type recordingSender struct {
	verifications []string
	resets        []string
	lastData      auth.EmailData
	err           error
}

func (s *recordingSender) SendVerificationEmail(ctx context.Context, to string, data auth.EmailData) error {
	s.verifications = append(s.verifications, to)
	s.lastData = data
	return s.err
}

func (s *recordingSender) SendPasswordResetEmail(ctx context.Context, to string, data auth.EmailData) error {
	s.resets = append(s.resets, to)
	s.lastData = data
	return s.err
}

func testPayload() EmailTaskPayload {
	return EmailTaskPayload{
		MessageID:      "msg-1",
		To:             "a@x.com",
		Username:       "Ada Lovelace",
		Link:           "http://localhost:8080/api/auth/verify-email/key",
		AppName:        "Gatehouse",
		ExpirationTime: "60 minutes",
	}
}

func TestVerificationEmailTaskRoundTrip(t *testing.T) {
	task, err := NewVerificationEmailTask(testPayload())
	require.NoError(t, err)
	assert.Equal(t, TaskTypeVerificationEmail, task.Type())

	var decoded EmailTaskPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, testPayload(), decoded)
}

func TestMailProcessorDispatchesBySender(t *testing.T) {
	sender := &recordingSender{}
	processor := NewMailProcessor(sender, slog.Default())

	task, err := NewVerificationEmailTask(testPayload())
	require.NoError(t, err)
	require.NoError(t, processor.HandleVerificationEmail(context.Background(), task))
	assert.Equal(t, []string{"a@x.com"}, sender.verifications)
	assert.Equal(t, "Ada Lovelace", sender.lastData.Username)
	assert.Equal(t, "Gatehouse", sender.lastData.AppName)

	task, err = NewPasswordResetEmailTask(testPayload())
	require.NoError(t, err)
	require.NoError(t, processor.HandlePasswordResetEmail(context.Background(), task))
	assert.Equal(t, []string{"a@x.com"}, sender.resets)
}

func TestMailProcessorPropagatesSenderError(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	processor := NewMailProcessor(sender, slog.Default())

	task, err := NewVerificationEmailTask(testPayload())
	require.NoError(t, err)
	assert.Error(t, processor.HandleVerificationEmail(context.Background(), task))
}

func TestMailProcessorSkipsUnparseablePayload(t *testing.T) {
	sender := &recordingSender{}
	processor := NewMailProcessor(sender, slog.Default())

	task := asynq.NewTask(TaskTypeVerificationEmail, []byte("not json"))
	err := processor.HandleVerificationEmail(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, sender.verifications)
}
