package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/jobs"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/mailer"
)

// JobTypeStatusEmail identifies status change email jobs.
const JobTypeStatusEmail = "status_change_email"

// Notification outcome labels.
const (
	NotificationResultSent    = "sent"
	NotificationResultFailed  = "failed"
	NotificationResultDropped = "dropped"
)

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

var statusEmailTemplate = template.Must(template.New("status").Parse(`<p>Dear {{.AuthorName}},</p>
<p>The status of your submission <strong>{{.PaperTitle}}</strong> (ID {{.SubmissionID}}) is now <strong>{{.Status}}</strong>.</p>
{{if .DOI}}<p>DOI: <a href="https://doi.org/{{.DOI}}">{{.DOI}}</a></p>{{end}}
<p>ICTIRC Editorial Office</p>`))

var statusHeadlines = map[models.PaperStatus]string{
	models.PaperStatusUnderReview: "is under review",
	models.PaperStatusAccepted:    "has been accepted",
	models.PaperStatusRejected:    "was not accepted",
	models.PaperStatusPublished:   "has been published",
}

// NotificationService delivers status change emails through a background queue.
type NotificationService struct {
	queue        jobEnqueuer
	sender       mailer.Sender
	adminAddress string
	metrics      *MetricsService
	logger       *zap.Logger
}

// NewNotificationService constructs the service. AttachQueue must be called before NotifyStatusChange.
func NewNotificationService(sender mailer.Sender, adminAddress string, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{sender: sender, adminAddress: adminAddress, metrics: metrics, logger: logger}
}

// AttachQueue wires the queue whose handler is HandleJob.
func (s *NotificationService) AttachQueue(queue jobEnqueuer) {
	s.queue = queue
}

// NotifyStatusChange enqueues the email and returns without waiting for delivery.
func (s *NotificationService) NotifyStatusChange(ctx context.Context, n models.StatusChangeNotification) error {
	if s.queue == nil {
		s.metrics.ObserveNotification(NotificationResultDropped)
		return fmt.Errorf("notification queue not configured")
	}
	job := jobs.Job{ID: uuid.NewString(), Type: JobTypeStatusEmail, Payload: n}
	if err := s.queue.Enqueue(job); err != nil {
		s.metrics.ObserveNotification(NotificationResultDropped)
		return err
	}
	return nil
}

// HandleJob sends the email carried by job. It is the queue handler.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.StatusChangeNotification)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.Type)
	}
	msg, err := s.BuildMessage(n)
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, msg)
}

// OnResult records the terminal outcome of a notification job.
func (s *NotificationService) OnResult(job jobs.Job, err error) {
	if err != nil {
		s.metrics.ObserveNotification(NotificationResultFailed)
		s.logger.Error("status notification failed", zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
		return
	}
	s.metrics.ObserveNotification(NotificationResultSent)
}

// BuildMessage renders the status change email.
func (s *NotificationService) BuildMessage(n models.StatusChangeNotification) (mailer.Message, error) {
	headline, ok := statusHeadlines[n.NewStatus]
	if !ok {
		headline = "changed status"
	}
	var body bytes.Buffer
	err := statusEmailTemplate.Execute(&body, map[string]string{
		"AuthorName":   n.AuthorName,
		"PaperTitle":   n.PaperTitle,
		"SubmissionID": n.SubmissionID,
		"Status":       strings.ReplaceAll(string(n.NewStatus), "_", " "),
		"DOI":          n.DOI,
	})
	if err != nil {
		return mailer.Message{}, fmt.Errorf("render status email: %w", err)
	}

	text := fmt.Sprintf("Your submission %q (ID %s) %s.", n.PaperTitle, n.SubmissionID, headline)
	if n.DOI != "" {
		text += " DOI: " + n.DOI
	}
	msg := mailer.Message{
		To:      []string{n.To},
		Subject: fmt.Sprintf("[ICTIRC] Your paper %s", headline),
		HTML:    body.String(),
		Text:    text,
	}
	if n.NotifyAdmin && s.adminAddress != "" {
		msg.Cc = []string{s.adminAddress}
	}
	return msg, nil
}
