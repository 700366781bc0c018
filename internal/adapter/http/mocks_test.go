package http_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Strob0t/Herald/internal/domain"
	"github.com/Strob0t/Herald/internal/domain/event"
	"github.com/Strob0t/Herald/internal/domain/job"
	"github.com/Strob0t/Herald/internal/domain/mail"
	"github.com/Strob0t/Herald/internal/domain/user"
	"github.com/Strob0t/Herald/internal/port/messagequeue"
	"github.com/Strob0t/Herald/internal/port/payment"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// mockMailer implements mailer.Mailer. Addresses in fail are rejected.
type mockMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	fail map[string]bool
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

func (m *mockMailer) Verify(context.Context) error { return nil }

func (m *mockMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
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

// mockQueue implements messagequeue.Queue and records publishes.
type mockQueue struct {
	mu        sync.Mutex
	published []string
}

func (q *mockQueue) Publish(_ context.Context, subject string, _ []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, subject)
	return nil
}

func (q *mockQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}
func (q *mockQueue) Drain() error      { return nil }
func (q *mockQueue) Close() error      { return nil }
func (q *mockQueue) IsConnected() bool { return true }

func (q *mockQueue) subjects() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.published...)
}

// mockJobStore implements database.JobStore in memory.
type mockJobStore struct {
	mu   sync.Mutex
	jobs map[string]*job.Job
}

func newMockJobStore() *mockJobStore { return &mockJobStore{jobs: make(map[string]*job.Job)} }

func (s *mockJobStore) CreateJob(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}

func (s *mockJobStore) GetJob(_ context.Context, id string) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	cp := *j
	return &cp, nil
}

func (s *mockJobStore) StartJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Status = job.StatusRunning
		j.Attempts++
	}
	return nil
}

func (s *mockJobStore) RecordDelivery(_ context.Context, id string, d job.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Deliveries = append(j.Deliveries, d)
	}
	return nil
}

func (s *mockJobStore) FinishJob(_ context.Context, id string, status job.Status, sent, failed int, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Status, j.Sent, j.Failed, j.Error = status, sent, failed, errMsg
	}
	return nil
}

func (s *mockJobStore) ListJobs(_ context.Context, limit int) ([]job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *mockJobStore) PurgeJobs(context.Context, time.Time) (int64, error) { return 0, nil }

// mockIdentity implements identity.Provider with fixed accounts and tokens.
type mockIdentity struct {
	passwords map[string]string
	users     map[string]user.Identity // by email
	tokens    map[string]user.Identity
}

func (m *mockIdentity) SignIn(_ context.Context, email, password string) (*user.Identity, error) {
	id, ok := m.users[email]
	if !ok || m.passwords[email] != password {
		return nil, domain.ErrUnauthorized
	}
	id.AccessToken = "token-" + id.ID
	return &id, nil
}

func (m *mockIdentity) Verify(_ context.Context, token string) (*user.Identity, error) {
	id, ok := m.tokens[token]
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return &id, nil
}

// mockEventStore implements database.EventStore in memory.
type mockEventStore struct {
	mu       sync.Mutex
	events   []event.Event
	bookings []event.Booking
	holders  map[string][]event.Holder
}

func (s *mockEventStore) FindBooked(_ context.Context, date string, limit int) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.Event
	for _, e := range s.events {
		if e.Date == date && e.Status == event.StatusBooked {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *mockEventStore) SlotBooked(_ context.Context, slot event.Slot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].Status == event.StatusBooked && s.events[i].Slot() == slot {
			return true, nil
		}
	}
	return false, nil
}

func (s *mockEventStore) BookEvent(_ context.Context, ev event.Event, b event.Booking) (*event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.ID = fmt.Sprintf("ev-%d", len(s.events)+1)
	ev.CreatedAt = fixedNow
	s.events = append(s.events, ev)
	b.ID = fmt.Sprintf("bk-%d", len(s.bookings)+1)
	b.EventID = ev.ID
	s.bookings = append(s.bookings, b)
	return &ev, nil
}

func (s *mockEventStore) GetEvent(_ context.Context, id string) (*event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, fmt.Errorf("event %s: %w", id, domain.ErrNotFound)
}

func (s *mockEventStore) CancelEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == id {
			s.events[i].Status = event.StatusCancelled
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *mockEventStore) Holders(_ context.Context, eventID string) ([]event.Holder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holders[eventID], nil
}

// mockProcessor implements payment.Processor.
type mockProcessor struct {
	last       payment.CheckoutRequest
	completion *payment.Completion
}

func (p *mockProcessor) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (*payment.Session, error) {
	p.last = req
	return &payment.Session{ID: "cs_test_1", URL: "https://checkout.example.com/cs_test_1"}, nil
}

func (p *mockProcessor) ParseWebhook(_ []byte, signature string) (*payment.Completion, error) {
	if signature != "valid" {
		return nil, domain.Invalid("invalid webhook signature")
	}
	return p.completion, nil
}
