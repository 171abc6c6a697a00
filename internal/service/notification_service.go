package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mnhs-portal/registrar-api/internal/models"
	"github.com/mnhs-portal/registrar-api/pkg/jobs"
	"github.com/mnhs-portal/registrar-api/pkg/mail"
)

// NotificationService dispatches applicant emails through a background
// queue. Delivery is at most once: a failed send is logged and dropped,
// and enqueue failures never propagate to the caller's request.
type NotificationService struct {
	queue  *jobs.Queue
	mailer mail.Mailer
	logger *zap.Logger
}

// NewNotificationService builds the dispatcher. Call Start before use.
func NewNotificationService(mailer mail.Mailer, logger *zap.Logger, workers, bufferSize int) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mailer == nil {
		mailer = mail.NopMailer{}
	}
	s := &NotificationService{mailer: mailer, logger: logger}
	s.queue = jobs.NewQueue("notifications", s.handle, jobs.QueueConfig{
		Workers:    workers,
		BufferSize: bufferSize,
		MaxRetries: 0,
		Logger:     logger,
	})
	return s
}

// Start launches the queue workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Depth reports queued, undelivered notifications.
func (s *NotificationService) Depth() int {
	return s.queue.Depth()
}

// NotifyEnrollmentDecision emails the applicant about a review decision.
// Errors are swallowed: notification failure must never fail the decision.
func (s *NotificationService) NotifyEnrollmentDecision(enrollment *models.Enrollment) {
	if enrollment.Email == "" {
		s.logger.Warn("enrollment has no applicant email, skipping notification",
			zap.String("enrollment_id", enrollment.ID))
		return
	}

	var body string
	switch enrollment.Status {
	case models.EnrollmentStatusApproved:
		body = fmt.Sprintf("Good day %s,\n\nYour enrollment application %s has been APPROVED. Please visit the registrar's office to complete the process.\n\nThank you.",
			enrollment.FirstName, enrollment.EnrollmentNo)
	case models.EnrollmentStatusRejected:
		body = fmt.Sprintf("Good day %s,\n\nWe regret to inform you that your enrollment application %s was not approved.%s\n\nYou may contact the registrar's office for details.",
			enrollment.FirstName, enrollment.EnrollmentNo, reviewNotesLine(enrollment.ReviewNotes))
	default:
		return
	}

	s.enqueue(mail.Message{
		To:      enrollment.Email,
		Subject: fmt.Sprintf("Enrollment Application %s - %s", enrollment.EnrollmentNo, enrollment.Status),
		Body:    body,
	})
}

// NotifyInquiryReply emails the inquiry sender about a new reply.
func (s *NotificationService) NotifyInquiryReply(inquiry *models.InquiryDetail, reply *models.InquiryReply) {
	if inquiry.SenderEmail == "" {
		return
	}
	s.enqueue(mail.Message{
		To:      inquiry.SenderEmail,
		Subject: fmt.Sprintf("Re: %s", inquiry.Subject),
		Body: fmt.Sprintf("Good day %s,\n\nThe registrar's office replied to your inquiry:\n\n%s\n\nYou can view the full thread in the portal.",
			inquiry.SenderName, reply.Message),
	})
}

func (s *NotificationService) enqueue(msg mail.Message) {
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "email",
		Payload: msg,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue notification", zap.String("to", msg.To), zap.Error(err))
	}
}

func (s *NotificationService) handle(_ context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(mail.Message)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	return s.mailer.Send(msg)
}

func reviewNotesLine(notes string) string {
	if notes == "" {
		return ""
	}
	return fmt.Sprintf(" Reviewer notes: %s.", notes)
}
