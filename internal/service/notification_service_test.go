package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnhs-portal/registrar-api/internal/models"
	"github.com/mnhs-portal/registrar-api/pkg/mail"
)

type recordingMailer struct {
	mu       sync.Mutex
	sent     []mail.Message
	failEach bool
	attempts int
}

func (m *recordingMailer) Send(msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.failEach {
		return errors.New("smtp relay unreachable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) snapshot() (int, []mail.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts, append([]mail.Message(nil), m.sent...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestNotificationDeliversDecisionEmail(t *testing.T) {
	mailer := &recordingMailer{}
	svc := NewNotificationService(mailer, nil, 1, 8)
	svc.Start(context.Background())
	defer svc.Stop()

	svc.NotifyEnrollmentDecision(&models.Enrollment{
		ID:           "enr-1",
		EnrollmentNo: "ENR-2026-000001",
		FirstName:    "Maria",
		Email:        "maria@example.com",
		Status:       models.EnrollmentStatusApproved,
	})

	waitFor(t, func() bool {
		_, sent := mailer.snapshot()
		return len(sent) == 1
	})
	_, sent := mailer.snapshot()
	assert.Equal(t, "maria@example.com", sent[0].To)
	assert.Contains(t, sent[0].Subject, "ENR-2026-000001")
	assert.Contains(t, sent[0].Body, "APPROVED")
}

func TestNotificationFailureIsSwallowedAndNotRetried(t *testing.T) {
	mailer := &recordingMailer{failEach: true}
	svc := NewNotificationService(mailer, nil, 1, 8)
	svc.Start(context.Background())
	defer svc.Stop()

	// The caller never sees the failure.
	svc.NotifyEnrollmentDecision(&models.Enrollment{
		ID:           "enr-1",
		EnrollmentNo: "ENR-2026-000002",
		FirstName:    "Jose",
		Email:        "jose@example.com",
		Status:       models.EnrollmentStatusRejected,
	})

	waitFor(t, func() bool {
		attempts, _ := mailer.snapshot()
		return attempts == 1
	})

	// At most once: no retry shows up after the failure.
	time.Sleep(100 * time.Millisecond)
	attempts, sent := mailer.snapshot()
	assert.Equal(t, 1, attempts)
	assert.Empty(t, sent)
}

func TestNotificationSkipsMissingRecipient(t *testing.T) {
	mailer := &recordingMailer{}
	svc := NewNotificationService(mailer, nil, 1, 8)
	svc.Start(context.Background())
	defer svc.Stop()

	svc.NotifyEnrollmentDecision(&models.Enrollment{
		ID:     "enr-1",
		Status: models.EnrollmentStatusApproved,
	})

	time.Sleep(50 * time.Millisecond)
	attempts, _ := mailer.snapshot()
	assert.Zero(t, attempts)
}

func TestNotificationPendingStatusSendsNothing(t *testing.T) {
	mailer := &recordingMailer{}
	svc := NewNotificationService(mailer, nil, 1, 8)
	svc.Start(context.Background())
	defer svc.Stop()

	svc.NotifyEnrollmentDecision(&models.Enrollment{
		ID:     "enr-1",
		Email:  "maria@example.com",
		Status: models.EnrollmentStatusPending,
	})

	time.Sleep(50 * time.Millisecond)
	attempts, _ := mailer.snapshot()
	assert.Zero(t, attempts)
}

func TestNotificationReplyEmail(t *testing.T) {
	mailer := &recordingMailer{}
	svc := NewNotificationService(mailer, nil, 1, 8)
	svc.Start(context.Background())
	defer svc.Stop()

	svc.NotifyInquiryReply(&models.InquiryDetail{
		Inquiry:     models.Inquiry{ID: "inq-1", Subject: "Form 137 release"},
		SenderName:  "Juan",
		SenderEmail: "juan@example.com",
	}, &models.InquiryReply{Message: "Please bring a valid ID."})

	waitFor(t, func() bool {
		_, sent := mailer.snapshot()
		return len(sent) == 1
	})
	_, sent := mailer.snapshot()
	require.Len(t, sent, 1)
	assert.Equal(t, "Re: Form 137 release", sent[0].Subject)
	assert.Contains(t, sent[0].Body, "Please bring a valid ID.")
}
