package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pkordes/attraction-queue/internal/domain"
)

// pgQueueRepo is the Postgres implementation of QueueRepo.
// FIFO order is (enqueued_at, id); enqueued_at defaults to clock_timestamp() so
// inserts made one after another under the attraction lock get increasing times.
type pgQueueRepo struct {
	db db
}

// NewQueueRepo constructs a QueueRepo backed by the provided db connection.
func NewQueueRepo(db db) QueueRepo {
	return &pgQueueRepo{db: db}
}

const entryColumns = `id, attraction_id, person_name, enqueued_at`

// Insert appends an entry. A foreign key violation means the attraction is gone.
// The outer SELECT sees the line as it was before the insert, hence the + 1.
func (r *pgQueueRepo) Insert(ctx context.Context, attractionID int64, personName string) (domain.QueueEntry, int, error) {
	const q = `
		WITH inserted AS (
			INSERT INTO queue_entries (attraction_id, person_name)
			VALUES (@attraction_id, @person_name)
			RETURNING ` + entryColumns + `
		)
		SELECT ` + entryColumns + `,
			(SELECT count(*) FROM queue_entries WHERE attraction_id = @attraction_id) + 1
		FROM inserted`

	args := pgx.NamedArgs{"attraction_id": attractionID, "person_name": personName}

	result, depth, err := scanEntryDepth(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.QueueEntry{}, 0, fmt.Errorf("repo.QueueRepo.Insert: %w", classify(err))
	}
	return result, depth, nil
}

// PopHead deletes the head of the line in a single statement.
func (r *pgQueueRepo) PopHead(ctx context.Context, attractionID int64) (domain.QueueEntry, int, error) {
	const q = `
		WITH popped AS (
			DELETE FROM queue_entries
			WHERE id = (
				SELECT id
				FROM queue_entries
				WHERE attraction_id = @attraction_id
				ORDER BY enqueued_at, id
				LIMIT 1
				FOR UPDATE
			)
			RETURNING ` + entryColumns + `
		)
		SELECT ` + entryColumns + `,
			(SELECT count(*) FROM queue_entries WHERE attraction_id = @attraction_id) - 1
		FROM popped`

	result, depth, err := scanEntryDepth(r.db.QueryRow(ctx, q, pgx.NamedArgs{"attraction_id": attractionID}))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.QueueEntry{}, 0, fmt.Errorf("repo.QueueRepo.PopHead: %w", domain.ErrEmptyQueue)
		}
		return domain.QueueEntry{}, 0, fmt.Errorf("repo.QueueRepo.PopHead: %w", err)
	}
	return result, depth, nil
}

// GetByID retrieves a queue entry by primary key.
func (r *pgQueueRepo) GetByID(ctx context.Context, id int64) (domain.QueueEntry, error) {
	const q = `SELECT ` + entryColumns + ` FROM queue_entries WHERE id = @id`

	result, err := scanEntry(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.QueueEntry{}, fmt.Errorf("repo.QueueRepo.GetByID: %w", err)
	}
	return result, nil
}

// Delete removes one entry and returns the removed row.
func (r *pgQueueRepo) Delete(ctx context.Context, id int64) (domain.QueueEntry, int, error) {
	const q = `
		WITH deleted AS (
			DELETE FROM queue_entries WHERE id = @id RETURNING ` + entryColumns + `
		)
		SELECT ` + entryColumns + `,
			(SELECT count(*) FROM queue_entries q WHERE q.attraction_id = deleted.attraction_id) - 1
		FROM deleted`

	result, depth, err := scanEntryDepth(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.QueueEntry{}, 0, fmt.Errorf("repo.QueueRepo.Delete: %w", err)
	}
	return result, depth, nil
}

// DeleteByAttraction empties one line.
func (r *pgQueueRepo) DeleteByAttraction(ctx context.Context, attractionID int64) (int, error) {
	const q = `DELETE FROM queue_entries WHERE attraction_id = @attraction_id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"attraction_id": attractionID})
	if err != nil {
		return 0, fmt.Errorf("repo.QueueRepo.DeleteByAttraction: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Count returns the depth of one line.
func (r *pgQueueRepo) Count(ctx context.Context, attractionID int64) (int, error) {
	const q = `SELECT count(*) FROM queue_entries WHERE attraction_id = @attraction_id`

	var n int
	if err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"attraction_id": attractionID}).Scan(&n); err != nil {
		return 0, fmt.Errorf("repo.QueueRepo.Count: %w", err)
	}
	return n, nil
}

// CountAll returns the depth of every non-empty line.
func (r *pgQueueRepo) CountAll(ctx context.Context) (map[int64]int, error) {
	const q = `
		SELECT attraction_id, count(*)
		FROM queue_entries
		GROUP BY attraction_id`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.QueueRepo.CountAll: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var (
			id int64
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("repo.QueueRepo.CountAll: scan: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.QueueRepo.CountAll: rows: %w", err)
	}
	return counts, nil
}

// ListByAttraction returns one line, oldest first.
func (r *pgQueueRepo) ListByAttraction(ctx context.Context, attractionID int64) ([]domain.QueueEntry, error) {
	const q = `
		SELECT ` + entryColumns + `
		FROM queue_entries
		WHERE attraction_id = @attraction_id
		ORDER BY enqueued_at, id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"attraction_id": attractionID})
	if err != nil {
		return nil, fmt.Errorf("repo.QueueRepo.ListByAttraction: %w", err)
	}
	defer rows.Close()

	entries := []domain.QueueEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.QueueRepo.ListByAttraction: scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.QueueRepo.ListByAttraction: rows: %w", err)
	}
	return entries, nil
}

// Rank counts the entries of the same line that sort before entry.
func (r *pgQueueRepo) Rank(ctx context.Context, entry domain.QueueEntry) (int, error) {
	const q = `
		SELECT
			EXISTS (SELECT 1 FROM queue_entries WHERE id = @id),
			(SELECT count(*)
			 FROM queue_entries
			 WHERE attraction_id = @attraction_id
			   AND (enqueued_at, id) < (@enqueued_at, @id))`

	args := pgx.NamedArgs{
		"id":            entry.ID,
		"attraction_id": entry.AttractionID,
		"enqueued_at":   entry.EnqueuedAt,
	}

	var (
		exists bool
		ahead  int
	)
	if err := r.db.QueryRow(ctx, q, args).Scan(&exists, &ahead); err != nil {
		return 0, fmt.Errorf("repo.QueueRepo.Rank: %w", err)
	}
	if !exists {
		return 0, fmt.Errorf("repo.QueueRepo.Rank: %w", domain.ErrNotFound)
	}
	return ahead, nil
}

// scanEntry maps a single database row into a domain.QueueEntry.
func scanEntry(s scanner) (domain.QueueEntry, error) {
	var e domain.QueueEntry
	err := s.Scan(&e.ID, &e.AttractionID, &e.PersonName, &e.EnqueuedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.QueueEntry{}, domain.ErrNotFound
		}
		return domain.QueueEntry{}, err
	}
	return e, nil
}

// scanEntryDepth maps an entry row followed by a line depth column.
func scanEntryDepth(s scanner) (domain.QueueEntry, int, error) {
	var (
		e     domain.QueueEntry
		depth int
	)
	err := s.Scan(&e.ID, &e.AttractionID, &e.PersonName, &e.EnqueuedAt, &depth)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.QueueEntry{}, 0, domain.ErrNotFound
		}
		return domain.QueueEntry{}, 0, err
	}
	return e, depth, nil
}
