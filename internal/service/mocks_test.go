package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Strob0t/Herald/internal/domain"
	"github.com/Strob0t/Herald/internal/domain/job"
	"github.com/Strob0t/Herald/internal/domain/mail"
	"github.com/Strob0t/Herald/internal/port/messagequeue"
	"github.com/Strob0t/Herald/internal/templates"
)

// fixedNow is the clock used by service tests.
var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// mockMailer implements mailer.Mailer. Addresses in fail are rejected.
type mockMailer struct {
	mu        sync.Mutex
	sent      []mail.Message
	fail      map[string]bool
	verifyErr error
}

func (m *mockMailer) Name() string { return "mock" }

func (m *mockMailer) Send(_ context.Context, msg mail.Message) (mail.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[msg.To] {
		return mail.Receipt{}, errors.New("550 mailbox unavailable")
	}
	m.sent = append(m.sent, msg)
	return mail.Receipt{
		MessageID: fmt.Sprintf("<%d@mock>", len(m.sent)),
		Response:  "250 ok",
		Recipient: msg.To,
		SentAt:    fixedNow,
	}, nil
}

func (m *mockMailer) Verify(context.Context) error { return m.verifyErr }

func (m *mockMailer) messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

func (m *mockMailer) recipients() []string {
	var out []string
	for _, msg := range m.messages() {
		out = append(out, msg.To)
	}
	sort.Strings(out)
	return out
}

// memCache implements cache.Cache in memory.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// mockQueue implements messagequeue.Queue and records published messages.
type mockQueue struct {
	mu         sync.Mutex
	published  []publishedMsg
	publishErr error
	subscribed []string
}

type publishedMsg struct {
	Subject string
	Data    []byte
}

func (q *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	if q.publishErr != nil {
		return q.publishErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, publishedMsg{Subject: subject, Data: data})
	return nil
}

func (q *mockQueue) Subscribe(_ context.Context, subject string, _ messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subscribed = append(q.subscribed, subject)
	return func() {}, nil
}

func (q *mockQueue) Drain() error      { return nil }
func (q *mockQueue) Close() error      { return nil }
func (q *mockQueue) IsConnected() bool { return true }

func (q *mockQueue) bySubject(subject string) []publishedMsg {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []publishedMsg
	for _, m := range q.published {
		if m.Subject == subject {
			out = append(out, m)
		}
	}
	return out
}

// mockBroadcaster records broadcast event types.
type mockBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *mockBroadcaster) BroadcastEvent(_ context.Context, eventType string, _ any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, eventType)
}

func (b *mockBroadcaster) count(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e == eventType {
			n++
		}
	}
	return n
}

// mockJobStore implements database.JobStore in memory.
type mockJobStore struct {
	mu     sync.Mutex
	jobs   map[string]*job.Job
	getErr error
}

func newMockJobStore() *mockJobStore { return &mockJobStore{jobs: make(map[string]*job.Job)} }

func (s *mockJobStore) CreateJob(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.Status == "" {
		j.Status = job.StatusQueued
	}
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}

func (s *mockJobStore) GetJob(_ context.Context, id string) (*job.Job, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	cp := *j
	cp.Deliveries = append([]job.Delivery(nil), j.Deliveries...)
	return &cp, nil
}

func (s *mockJobStore) StartJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Status = job.StatusRunning
	j.Attempts++
	var kept []job.Delivery
	for _, d := range j.Deliveries {
		if d.Status == mail.StateSent {
			kept = append(kept, d)
		}
	}
	j.Deliveries = kept
	return nil
}

func (s *mockJobStore) RecordDelivery(_ context.Context, jobID string, d job.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	j.Deliveries = append(j.Deliveries, d)
	return nil
}

func (s *mockJobStore) FinishJob(_ context.Context, id string, status job.Status, sent, failed int, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Status, j.Sent, j.Failed, j.Error = status, sent, failed, errMsg
	return nil
}

func (s *mockJobStore) ListJobs(_ context.Context, _ int) ([]job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out, nil
}

func (s *mockJobStore) PurgeJobs(_ context.Context, _ time.Time) (int64, error) { return 0, nil }

func (s *mockJobStore) only() *job.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		return j
	}
	return nil
}

// newTestMailService wires a MailService over a mock mailer and an
// in-memory status store.
func newTestMailService(m *mockMailer, hub *mockBroadcaster) (*MailService, *StatusStore) {
	if hub == nil {
		hub = &mockBroadcaster{}
	}
	status := NewStatusStore(newMemCache(), time.Hour, hub)
	status.now = func() time.Time { return fixedNow }
	svc := NewMailService(m, templates.MustNew("Campus Events", "Disaster Desk"), status, MailConfig{
		EventFrom:      "Campus Events <events@example.com>",
		AlertFrom:      "Disaster Desk <alerts@example.com>",
		TestRecipient:  "ops@example.com",
		ExtraTestBCC:   []string{"ops@example.com", "audit@example.com"},
		MaxConcurrency: 3,
	})
	svc.now = func() time.Time { return fixedNow }
	return svc, status
}
