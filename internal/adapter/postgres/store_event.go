package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/Herald/internal/domain/event"
)

const eventColumns = `id, name, date, time, venue, chief_guest, audience_limit, club, status, created_at`

func scanEvent(row scannable) (event.Event, error) {
	var (
		ev    event.Event
		date  time.Time
		limit int
	)
	err := row.Scan(&ev.ID, &ev.Name, &date, &ev.Time, &ev.Venue, &ev.ChiefGuest, &limit, &ev.Club, &ev.Status, &ev.CreatedAt)
	if err != nil {
		return ev, err
	}
	ev.Date = date.Format(event.DateLayout)
	ev.AudienceLimit = event.Limit(limit)
	return ev, nil
}

func (s *Store) FindBooked(ctx context.Context, date string, limit int) ([]event.Event, error) {
	d, err := parseDate(date)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + eventColumns + ` FROM events WHERE date = $1 AND status = 'booked' ORDER BY time, created_at`
	args := []any{d}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find booked events on %s: %w", date, err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return orEmpty(events), rows.Err()
}

func (s *Store) SlotBooked(ctx context.Context, slot event.Slot) (bool, error) {
	d, err := parseDate(slot.Date)
	if err != nil {
		return false, err
	}

	var exists bool
	err = s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE date = $1 AND time = $2 AND venue = $3 AND status = 'booked')`,
		d, slot.Time, slot.Venue).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}
	return exists, nil
}

// queryRower is satisfied by both the pool and an open transaction.
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) CreateEvent(ctx context.Context, ev event.Event) (*event.Event, error) {
	return insertEvent(ctx, s.pool, ev)
}

// BookEvent stores ev and its holding booking in one transaction so a
// failed booking insert never leaves an orphaned event occupying the slot.
func (s *Store) BookEvent(ctx context.Context, ev event.Event, b event.Booking) (*event.Event, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("book event %q: begin: %w", ev.Name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created, err := insertEvent(ctx, tx, ev)
	if err != nil {
		return nil, err
	}
	b.EventID = created.ID
	if _, err := insertBooking(ctx, tx, b); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("book event %q: commit: %w", ev.Name, err)
	}
	return created, nil
}

func insertEvent(ctx context.Context, q queryRower, ev event.Event) (*event.Event, error) {
	d, err := parseDate(ev.Date)
	if err != nil {
		return nil, err
	}
	if ev.Status == "" {
		ev.Status = event.StatusBooked
	}

	row := q.QueryRow(ctx,
		`INSERT INTO events (name, date, time, venue, chief_guest, audience_limit, club, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+eventColumns,
		ev.Name, d, ev.Time, ev.Venue, ev.ChiefGuest, int(ev.AudienceLimit), ev.Club, ev.Status)

	created, err := scanEvent(row)
	if err != nil {
		return nil, conflictWrap(err, "create event %q", ev.Name)
	}
	return &created, nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	if err := checkID(id, "event"); err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	ev, err := scanEvent(row)
	if err != nil {
		return nil, notFoundWrap(err, "get event %s", id)
	}
	return &ev, nil
}

func (s *Store) CancelEvent(ctx context.Context, id string) error {
	if err := checkID(id, "event"); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE events SET status = 'cancelled' WHERE id = $1 AND status = 'booked'`, id)
	return execExpectOne(tag, err, "cancel event %s", id)
}

func (s *Store) CreateBooking(ctx context.Context, b event.Booking) (*event.Booking, error) {
	return insertBooking(ctx, s.pool, b)
}

func insertBooking(ctx context.Context, q queryRower, b event.Booking) (*event.Booking, error) {
	if b.PaymentStatus == "" {
		b.PaymentStatus = event.PaymentCompleted
	}
	err := q.QueryRow(ctx,
		`INSERT INTO bookings (user_id, event_id, payment_status)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		b.UserID, b.EventID, b.PaymentStatus).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create booking for event %s: %w", b.EventID, err)
	}
	return &b, nil
}

// Holders joins bookings to local accounts. Bookings whose user_id does not
// match a local user (for example ids from an external identity provider)
// are skipped since there is no address to notify.
func (s *Store) Holders(ctx context.Context, eventID string) ([]event.Holder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT b.user_id, u.email, u.fullname
		 FROM bookings b
		 JOIN users u ON u.id::text = b.user_id
		 WHERE b.event_id = $1`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list holders of event %s: %w", eventID, err)
	}
	defer rows.Close()

	var holders []event.Holder
	for rows.Next() {
		var h event.Holder
		if err := rows.Scan(&h.UserID, &h.Email, &h.FullName); err != nil {
			return nil, fmt.Errorf("scan holder: %w", err)
		}
		holders = append(holders, h)
	}
	return orEmpty(holders), rows.Err()
}
