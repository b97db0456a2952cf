package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pkordes/attraction-queue/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Conn is a db that can also start transactions. *pgxpool.Pool satisfies it,
// and so does pgx.Tx (nested transactions become savepoints).
type Conn interface {
	db
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Constraint names from the migrations, matched against *pgconn.PgError.
const (
	constraintAttractionName  = "attractions_name_unique"
	constraintEntryAttraction = "queue_entries_attraction_id_fkey"
)

// SQLSTATE codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html.
const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
)

// PostgresStore is the Postgres implementation of Store.
type PostgresStore struct {
	conn Conn
	pgRepos
}

// NewPostgresStore constructs a Store backed by the provided connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewPostgresStore(conn Conn) *PostgresStore {
	return &PostgresStore{conn: conn, pgRepos: pgRepos{db: conn}}
}

// InTx runs fn inside a single transaction scoped to this call.
// Errors returned by fn are passed through unchanged.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Repos) error) error {
	var fnErr error
	err := pgx.BeginFunc(ctx, s.conn, func(tx pgx.Tx) error {
		fnErr = fn(pgRepos{db: tx})
		return fnErr
	})
	if err != nil && fnErr == nil {
		return fmt.Errorf("repo.PostgresStore.InTx: %w", err)
	}
	return err
}

// Ping runs a trivial query so it works for pools and transactions alike.
func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.conn.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("repo.PostgresStore.Ping: %w", err)
	}
	return nil
}

// Close closes the underlying pool. It is a no-op for transactions, which the
// caller owns.
func (s *PostgresStore) Close() {
	if c, ok := s.conn.(interface{ Close() }); ok {
		c.Close()
	}
}

// pgRepos binds both repositories to the same db handle.
type pgRepos struct {
	db db
}

func (r pgRepos) Attractions() AttractionRepo { return NewAttractionRepo(r.db) }
func (r pgRepos) Queue() QueueRepo             { return NewQueueRepo(r.db) }

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing scan helpers to be
// reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// classify translates typed Postgres constraint violations into domain errors.
// Anything else is returned unchanged.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == sqlStateUniqueViolation && pgErr.ConstraintName == constraintAttractionName:
		return domain.ErrDuplicateName
	case pgErr.Code == sqlStateForeignKeyViolation && pgErr.ConstraintName == constraintEntryAttraction:
		return domain.ErrNotFound
	}
	return err
}
