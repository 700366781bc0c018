// Package database defines the database store ports (interfaces).
package database

import (
	"context"
	"time"

	"github.com/Strob0t/Herald/internal/domain/event"
	"github.com/Strob0t/Herald/internal/domain/job"
	"github.com/Strob0t/Herald/internal/domain/user"
)

// EventStore persists booked events and their bookings.
type EventStore interface {
	// FindBooked lists booked events on a date, ordered by time. limit <= 0 means all.
	FindBooked(ctx context.Context, date string, limit int) ([]event.Event, error)
	// SlotBooked reports whether a booked event occupies the slot.
	SlotBooked(ctx context.Context, slot event.Slot) (bool, error)
	// BookEvent inserts a booked event together with the booking b that
	// holds it; b.EventID is set from the new event. Either both rows are
	// stored or neither is. Returns domain.ErrConflict when the slot is taken.
	BookEvent(ctx context.Context, ev event.Event, b event.Booking) (*event.Event, error)
	GetEvent(ctx context.Context, id string) (*event.Event, error)
	CancelEvent(ctx context.Context, id string) error
	// Holders lists the users holding bookings for an event, with their addresses.
	Holders(ctx context.Context, eventID string) ([]event.Holder, error)
}

// JobStore is the ledger of background notification jobs.
type JobStore interface {
	CreateJob(ctx context.Context, j *job.Job) error
	GetJob(ctx context.Context, id string) (*job.Job, error)
	// StartJob marks the job running and bumps its attempt counter.
	StartJob(ctx context.Context, id string) error
	RecordDelivery(ctx context.Context, jobID string, d job.Delivery) error
	FinishJob(ctx context.Context, id string, status job.Status, sent, failed int, errMsg string) error
	ListJobs(ctx context.Context, limit int) ([]job.Job, error)
	PurgeJobs(ctx context.Context, olderThan time.Time) (int64, error)
}

// UserStore persists locally managed accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *user.User) error
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	GetUser(ctx context.Context, id string) (*user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
}
