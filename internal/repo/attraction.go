package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pkordes/attraction-queue/internal/domain"
)

// pgAttractionRepo is the Postgres implementation of AttractionRepo.
type pgAttractionRepo struct {
	db db
}

// NewAttractionRepo constructs an AttractionRepo backed by the provided db connection.
func NewAttractionRepo(db db) AttractionRepo {
	return &pgAttractionRepo{db: db}
}

const attractionColumns = `id, name, description, service_duration, created_at, updated_at`

// Create inserts a new attraction row. The unique constraint on name is the
// final arbiter of duplicates; its violation is reported as domain.ErrDuplicateName.
func (r *pgAttractionRepo) Create(ctx context.Context, a domain.Attraction) (domain.Attraction, error) {
	const q = `
		INSERT INTO attractions (name, description, service_duration)
		VALUES (@name, @description, @service_duration)
		RETURNING ` + attractionColumns

	args := pgx.NamedArgs{
		"name":             a.Name,
		"description":      a.Description,
		"service_duration": a.ServiceDuration,
	}

	result, err := scanAttraction(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Attraction{}, fmt.Errorf("repo.AttractionRepo.Create: %w", classify(err))
	}
	return result, nil
}

// GetByID retrieves an attraction by primary key.
func (r *pgAttractionRepo) GetByID(ctx context.Context, id int64) (domain.Attraction, error) {
	const q = `SELECT ` + attractionColumns + ` FROM attractions WHERE id = @id`

	result, err := scanAttraction(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Attraction{}, fmt.Errorf("repo.AttractionRepo.GetByID: %w", err)
	}
	return result, nil
}

// GetForUpdate retrieves an attraction and takes a row lock on it. Every queue
// mutation locks its attraction first, which serializes writers of one line
// while leaving other attractions untouched.
func (r *pgAttractionRepo) GetForUpdate(ctx context.Context, id int64) (domain.Attraction, error) {
	const q = `SELECT ` + attractionColumns + ` FROM attractions WHERE id = @id FOR UPDATE`

	result, err := scanAttraction(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Attraction{}, fmt.Errorf("repo.AttractionRepo.GetForUpdate: %w", err)
	}
	return result, nil
}

// FindByName retrieves an attraction by exact name.
func (r *pgAttractionRepo) FindByName(ctx context.Context, name string) (domain.Attraction, error) {
	const q = `SELECT ` + attractionColumns + ` FROM attractions WHERE name = @name`

	result, err := scanAttraction(r.db.QueryRow(ctx, q, pgx.NamedArgs{"name": name}))
	if err != nil {
		return domain.Attraction{}, fmt.Errorf("repo.AttractionRepo.FindByName: %w", err)
	}
	return result, nil
}

// List returns all attractions ordered by name. The "C" collation compares
// bytes, so ordering is case-sensitive and independent of the database locale.
func (r *pgAttractionRepo) List(ctx context.Context) ([]domain.Attraction, error) {
	const q = `
		SELECT ` + attractionColumns + `
		FROM attractions
		ORDER BY name COLLATE "C", id`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.AttractionRepo.List: %w", err)
	}
	defer rows.Close()

	attractions := []domain.Attraction{}
	for rows.Next() {
		a, err := scanAttraction(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.AttractionRepo.List: scan: %w", err)
		}
		attractions = append(attractions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.AttractionRepo.List: rows: %w", err)
	}
	return attractions, nil
}

// Update overwrites the mutable fields of an attraction.
func (r *pgAttractionRepo) Update(ctx context.Context, a domain.Attraction) (domain.Attraction, error) {
	const q = `
		UPDATE attractions
		SET name             = @name,
		    description      = @description,
		    service_duration = @service_duration,
		    updated_at       = now()
		WHERE id = @id
		RETURNING ` + attractionColumns

	args := pgx.NamedArgs{
		"id":               a.ID,
		"name":             a.Name,
		"description":      a.Description,
		"service_duration": a.ServiceDuration,
	}

	result, err := scanAttraction(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Attraction{}, fmt.Errorf("repo.AttractionRepo.Update: %w", classify(err))
	}
	return result, nil
}

// Delete removes an attraction. Remaining queue entries go with it through the
// ON DELETE CASCADE foreign key.
func (r *pgAttractionRepo) Delete(ctx context.Context, id int64) (int, error) {
	// The line is counted in the statement's snapshot, before ON DELETE CASCADE
	// removes it.
	const q = `
		WITH line AS (
			SELECT count(*) AS n FROM queue_entries WHERE attraction_id = @id
		)
		DELETE FROM attractions
		WHERE id = @id
		RETURNING (SELECT n FROM line)`

	var purged int
	if err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}).Scan(&purged); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("repo.AttractionRepo.Delete: %w", domain.ErrNotFound)
		}
		return 0, fmt.Errorf("repo.AttractionRepo.Delete: %w", err)
	}
	return purged, nil
}

// scanAttraction maps a single database row into a domain.Attraction.
func scanAttraction(s scanner) (domain.Attraction, error) {
	var a domain.Attraction
	err := s.Scan(&a.ID, &a.Name, &a.Description, &a.ServiceDuration, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Attraction{}, domain.ErrNotFound
		}
		return domain.Attraction{}, err
	}
	return a, nil
}
