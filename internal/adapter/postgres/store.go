package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/Herald/internal/port/database"
)

// Store implements the database ports using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ database.EventStore = (*Store)(nil)
	_ database.JobStore   = (*Store)(nil)
	_ database.UserStore  = (*Store)(nil)
)

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}
