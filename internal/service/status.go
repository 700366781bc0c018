package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Strob0t/Herald/internal/domain"
	"github.com/Strob0t/Herald/internal/domain/mail"
	"github.com/Strob0t/Herald/internal/port/broadcast"
	"github.com/Strob0t/Herald/internal/port/cache"
)

const statusKeyPrefix = "status:"

// StatusStore keeps the last known delivery status per recipient address.
// Every change is broadcast to websocket clients.
type StatusStore struct {
	cache cache.Cache
	ttl   time.Duration
	hub   broadcast.Broadcaster
	now   func() time.Time
}

// NewStatusStore creates a StatusStore. hub may be nil.
func NewStatusStore(c cache.Cache, ttl time.Duration, hub broadcast.Broadcaster) *StatusStore {
	if hub == nil {
		hub = broadcast.Nop{}
	}
	return &StatusStore{cache: c, ttl: ttl, hub: hub, now: time.Now}
}

// Record stores st under its normalized recipient address.
func (s *StatusStore) Record(ctx context.Context, st mail.Status) error {
	st.Recipient = mail.NormalizeAddress(st.Recipient)
	if st.Recipient == "" {
		return domain.Invalid("status recipient is required")
	}
	st.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := s.cache.Set(ctx, statusKeyPrefix+st.Recipient, data, s.ttl); err != nil {
		return fmt.Errorf("store status: %w", err)
	}

	s.hub.BroadcastEvent(ctx, broadcast.EventEmailStatus, st)
	return nil
}

// Get returns the status recorded for addr or domain.ErrNotFound.
func (s *StatusStore) Get(ctx context.Context, addr string) (*mail.Status, error) {
	key := mail.NormalizeAddress(addr)
	if key == "" {
		return nil, domain.Invalid("Email parameter is required")
	}
	data, ok, err := s.cache.Get(ctx, statusKeyPrefix+key)
	if err != nil {
		return nil, fmt.Errorf("load status: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("status for %s: %w", key, domain.ErrNotFound)
	}
	var st mail.Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &st, nil
}
