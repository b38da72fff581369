// Package pg implements the agent and oauth store interfaces on PostgreSQL
// through database/sql with the pgx stdlib driver.
package pg

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"codexbase.org/internal/agent"
	"codexbase.org/internal/oauth"
)

// Store wraps the shared connection pool. It satisfies both store surfaces.
type Store struct {
	db *sql.DB
}

var (
	_ agent.Store = (*Store)(nil)
	_ oauth.Store = (*Store)(nil)
)

// Open dials PostgreSQL and tunes the pool.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing pool, used by tests with sqlmock.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Users(ctx context.Context) agent.UserStore   { return &userStore{db: s.db} }
func (s *Store) Groups(ctx context.Context) agent.GroupStore { return &groupStore{db: s.db} }

func (s *Store) Clients(ctx context.Context) oauth.ClientStore { return &clientStore{db: s.db} }
func (s *Store) Codes(ctx context.Context) oauth.CodeStore     { return &codeStore{db: s.db} }
func (s *Store) Tokens(ctx context.Context) oauth.TokenStore   { return &tokenStore{db: s.db} }
func (s *Store) Master(ctx context.Context) oauth.MasterStore  { return &masterStore{db: s.db} }
