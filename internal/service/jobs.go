package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/Herald/internal/adapter/otel"
	"github.com/Strob0t/Herald/internal/domain"
	"github.com/Strob0t/Herald/internal/domain/alert"
	"github.com/Strob0t/Herald/internal/domain/event"
	"github.com/Strob0t/Herald/internal/domain/job"
	"github.com/Strob0t/Herald/internal/domain/mail"
	"github.com/Strob0t/Herald/internal/port/broadcast"
	"github.com/Strob0t/Herald/internal/port/database"
	"github.com/Strob0t/Herald/internal/port/messagequeue"
	"github.com/Strob0t/Herald/internal/templates"
)

// JobProgress is the websocket payload for job.progress events.
type JobProgress struct {
	JobID  string     `json:"jobId"`
	Kind   job.Kind   `json:"kind"`
	Status job.Status `json:"status"`
	Total  int        `json:"total"`
	Sent   int        `json:"sent"`
	Failed int        `json:"failed"`
}

// JobService queues multi-recipient sends and processes them from the
// message queue.
type JobService struct {
	store   database.JobStore
	queue   messagequeue.Queue
	mail    *MailService
	hub     broadcast.Broadcaster
	notify  *NotificationService
	metrics *otel.Metrics
	now     func() time.Time
}

// NewJobService creates a JobService. hub may be nil.
func NewJobService(store database.JobStore, queue messagequeue.Queue, mailSvc *MailService, hub broadcast.Broadcaster) *JobService {
	if hub == nil {
		hub = broadcast.Nop{}
	}
	return &JobService{store: store, queue: queue, mail: mailSvc, hub: hub, now: time.Now}
}

// SetNotifier enables alert mirroring and failed-job reports.
func (s *JobService) SetNotifier(n *NotificationService) { s.notify = n }

// SetMetrics enables OpenTelemetry metrics.
func (s *JobService) SetMetrics(m *otel.Metrics) { s.metrics = m }

// EnqueueBulkAlert queues a to every recipient. An alert without an id is
// given one.
func (s *JobService) EnqueueBulkAlert(ctx context.Context, to mail.Recipients, a *alert.Alert) (*job.Job, error) {
	if a != nil && a.ID == "" {
		a.ID = "ALERT-" + strings.ToUpper(uuid.NewString()[:8])
	}
	return s.Enqueue(ctx, job.Payload{Kind: job.KindAlertBulk, Recipients: to, Alert: a})
}

// EnqueueEventMail queues an event notification of kind to every recipient.
func (s *JobService) EnqueueEventMail(ctx context.Context, kind job.Kind, to mail.Recipients, ev *event.Event) (*job.Job, error) {
	return s.Enqueue(ctx, job.Payload{Kind: kind, Recipients: to, Event: ev})
}

// EnqueueReminder queues a reminder for ev to every recipient.
func (s *JobService) EnqueueReminder(ctx context.Context, to mail.Recipients, ev *event.Event) (*job.Job, error) {
	return s.EnqueueEventMail(ctx, job.KindEventReminder, to, ev)
}

// Enqueue validates p, records the job in the ledger and publishes it.
func (s *JobService) Enqueue(ctx context.Context, p job.Payload) (*job.Job, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.JobID = uuid.NewString()

	j := &job.Job{
		ID:        p.JobID,
		Kind:      p.Kind,
		Reference: p.Reference(),
		Status:    job.StatusQueued,
		Total:     len(p.Recipients),
	}
	if err := s.store.CreateJob(ctx, j); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}
	if err := s.queue.Publish(ctx, messagequeue.JobSubject(string(p.Kind)), data); err != nil {
		if ferr := s.store.FinishJob(ctx, j.ID, job.StatusFailed, 0, j.Total, "enqueue failed: "+err.Error()); ferr != nil {
			slog.ErrorContext(ctx, "mark unpublished job failed", "job_id", j.ID, "error", ferr)
		}
		return nil, fmt.Errorf("publish job: %w", err)
	}

	slog.InfoContext(ctx, "job queued", "job_id", j.ID, "kind", j.Kind, "total", j.Total)
	s.progress(ctx, j)
	return j, nil
}

// GetJob returns a job with its per-recipient deliveries.
func (s *JobService) GetJob(ctx context.Context, id string) (*job.Job, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.Invalid("job id is required")
	}
	return s.store.GetJob(ctx, id)
}

// ListJobs returns the most recent jobs.
func (s *JobService) ListJobs(ctx context.Context, limit int) ([]job.Job, error) {
	return s.store.ListJobs(ctx, limit)
}

// PurgeJobs deletes finished jobs older than age.
func (s *JobService) PurgeJobs(ctx context.Context, age time.Duration) (int64, error) {
	return s.store.PurgeJobs(ctx, s.now().Add(-age))
}

// StartWorkers subscribes workers consumers to every job subject. The
// returned function stops them.
func (s *JobService) StartWorkers(ctx context.Context, workers int) (func(), error) {
	var stops []func()
	stopAll := func() {
		for _, stop := range stops {
			stop()
		}
	}
	for range max(workers, 1) {
		stop, err := s.queue.Subscribe(ctx, messagequeue.SubjectJobsAll, s.Handle)
		if err != nil {
			stopAll()
			return nil, fmt.Errorf("subscribe job worker: %w", err)
		}
		stops = append(stops, stop)
	}
	slog.Info("job workers started", "workers", len(stops), "subject", messagequeue.SubjectJobsAll)
	return stopAll, nil
}

// Handle processes one job message. Returning an error makes the queue
// redeliver the message; a job that already reached a terminal state is
// acknowledged without sending again.
func (s *JobService) Handle(ctx context.Context, subject string, data []byte) error {
	var p job.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		slog.ErrorContext(ctx, "discarding undecodable job", "subject", subject, "error", err)
		return nil
	}

	j, err := s.store.GetJob(ctx, p.JobID)
	if errors.Is(err, domain.ErrNotFound) {
		slog.WarnContext(ctx, "discarding job without ledger entry", "job_id", p.JobID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job %s: %w", p.JobID, err)
	}
	if j.Status.Terminal() {
		slog.InfoContext(ctx, "job already finished", "job_id", j.ID, "status", j.Status)
		return nil
	}
	if err := p.Validate(); err != nil {
		return s.finish(ctx, j, 0, j.Total, err.Error())
	}

	ctx, span := otel.StartJobSpan(ctx, j.ID, string(j.Kind))
	err = s.run(ctx, j, &p)
	otel.EndSpan(span, err)
	return err
}

func (s *JobService) run(ctx context.Context, j *job.Job, p *job.Payload) error {
	firstAttempt := j.Attempts == 0
	if err := s.store.StartJob(ctx, j.ID); err != nil {
		return fmt.Errorf("start job %s: %w", j.ID, err)
	}
	j.Status = job.StatusRunning
	s.progress(ctx, j)

	if firstAttempt && p.Alert != nil {
		s.notify.MirrorAlert(ctx, p.Alert, len(p.Recipients))
	}

	// Addresses delivered by an earlier attempt are not mailed again.
	done := make(map[string]bool)
	for _, d := range j.Deliveries {
		if d.Status == mail.StateSent {
			done[mail.NormalizeAddress(d.Email)] = true
		}
	}
	alreadySent := 0
	pending := make([]mail.Recipient, 0, len(p.Recipients))
	for _, r := range p.Recipients {
		if r.Email != "" && done[mail.NormalizeAddress(r.Email)] {
			alreadySent++
			continue
		}
		pending = append(pending, r)
	}

	send, err := s.sender(p)
	if err != nil {
		return s.finish(ctx, j, alreadySent, len(pending), err.Error())
	}

	res := s.mail.FanOut(ctx, pending, send)

	for _, f := range res.Failed {
		s.record(ctx, j.ID, job.Delivery{Email: f.Email, Status: mail.StateFailed, Error: f.Error, SentAt: s.now().UTC()})
	}
	for _, d := range res.Success {
		s.record(ctx, j.ID, job.Delivery{Email: d.Email, Status: mail.StateSent, MessageID: d.MessageID, SentAt: s.now().UTC()})
	}

	errMsg := ""
	if len(res.Failed) > 0 {
		errMsg = res.Failed[0].Error
	}
	return s.finish(ctx, j, alreadySent+len(res.Success), len(res.Failed), errMsg)
}

// sender returns the per-recipient send function for the payload kind.
func (s *JobService) sender(p *job.Payload) (func(context.Context, mail.Recipient) (mail.Receipt, error), error) {
	switch p.Kind {
	case job.KindAlertBulk:
		return func(ctx context.Context, r mail.Recipient) (mail.Receipt, error) {
			return s.mail.SendAlertMail(ctx, r, p.Alert, "")
		}, nil
	case job.KindEventReminder, job.KindEventCancellation, job.KindEventConfirmation:
		kind := templates.EventKind(strings.TrimPrefix(string(p.Kind), "event."))
		return func(ctx context.Context, r mail.Recipient) (mail.Receipt, error) {
			return s.mail.SendEventMail(ctx, kind, r, p.Event)
		}, nil
	}
	return nil, fmt.Errorf("unknown job kind %q", p.Kind)
}

func (s *JobService) record(ctx context.Context, jobID string, d job.Delivery) {
	if err := s.store.RecordDelivery(ctx, jobID, d); err != nil {
		slog.ErrorContext(ctx, "record delivery failed", "job_id", jobID, "email", d.Email, "error", err)
	}
}

func (s *JobService) finish(ctx context.Context, j *job.Job, sent, failed int, errMsg string) error {
	status := job.Outcome(sent, failed)
	if err := s.store.FinishJob(ctx, j.ID, status, sent, failed, errMsg); err != nil {
		return fmt.Errorf("finish job %s: %w", j.ID, err)
	}
	j.Status, j.Sent, j.Failed, j.Error = status, sent, failed, errMsg

	s.metrics.RecordJob(ctx, string(j.Kind), string(status))
	s.progress(ctx, j)
	slog.InfoContext(ctx, "job finished", "job_id", j.ID, "kind", j.Kind, "status", status, "sent", sent, "failed", failed)
	if status != job.StatusCompleted {
		s.notify.JobFailed(ctx, j)
	}
	return nil
}

func (s *JobService) progress(ctx context.Context, j *job.Job) {
	s.hub.BroadcastEvent(ctx, broadcast.EventJobProgress, JobProgress{
		JobID:  j.ID,
		Kind:   j.Kind,
		Status: j.Status,
		Total:  j.Total,
		Sent:   j.Sent,
		Failed: j.Failed,
	})
}
