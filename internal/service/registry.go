package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkordes/attraction-queue/internal/domain"
	"github.com/pkordes/attraction-queue/internal/repo"
)

// AttractionRegistry owns attraction metadata and enforces name uniqueness.
type AttractionRegistry struct {
	*core
	queues *QueueManager
}

// Create validates and persists a new attraction. The name is trimmed and must
// not be blank; a non-positive service duration becomes the default.
func (r *AttractionRegistry) Create(ctx context.Context, name, description string, serviceDuration int) (_ domain.Attraction, err error) {
	start := time.Now()
	defer func() { r.observe(OpCreateAttraction, start, err) }()

	candidate, err := domain.NewAttraction(name, description, serviceDuration)
	if err != nil {
		return domain.Attraction{}, fmt.Errorf("service.AttractionRegistry.Create: %w", err)
	}

	var created domain.Attraction
	err = r.store.InTx(ctx, func(tx repo.Repos) error {
		if err := ensureNameFree(ctx, tx, candidate.Name, 0); err != nil {
			return err
		}
		var err error
		created, err = tx.Attractions().Create(ctx, candidate)
		return err
	})
	if err != nil {
		return domain.Attraction{}, fmt.Errorf("service.AttractionRegistry.Create: %w", classify(err))
	}

	r.logger.DebugContext(ctx, "attraction created",
		slog.Int64("attraction_id", created.ID),
		slog.String("name", created.Name),
		slog.Int("service_duration", created.ServiceDuration),
	)
	return created, nil
}

// Get returns one attraction.
func (r *AttractionRegistry) Get(ctx context.Context, id int64) (domain.Attraction, error) {
	a, err := r.record(ctx, r.store, id)
	if err != nil {
		return domain.Attraction{}, fmt.Errorf("service.AttractionRegistry.Get: %w", classify(err))
	}
	return a, nil
}

// Detail returns one attraction with the status of its line, from one read.
func (r *AttractionRegistry) Detail(ctx context.Context, id int64) (domain.AttractionDetail, error) {
	var detail domain.AttractionDetail
	err := r.store.InTx(ctx, func(tx repo.Repos) error {
		a, err := r.record(ctx, tx, id)
		if err != nil {
			return err
		}
		depth, err := tx.Queue().Count(ctx, id)
		if err != nil {
			return err
		}
		detail = domain.AttractionDetail{Attraction: a, Queue: domain.NewQueueStatus(a, depth)}
		return nil
	})
	if err != nil {
		return domain.AttractionDetail{}, fmt.Errorf("service.AttractionRegistry.Detail: %w", classify(err))
	}
	return detail, nil
}

// List returns every attraction ordered by name, each annotated with the
// depth and estimated wait of its line.
func (r *AttractionRegistry) List(ctx context.Context) ([]domain.AttractionSummary, error) {
	var summaries []domain.AttractionSummary
	err := r.store.InTx(ctx, func(tx repo.Repos) error {
		attractions, err := tx.Attractions().List(ctx)
		if err != nil {
			return err
		}
		summaries, err = r.queues.annotate(ctx, tx, attractions)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("service.AttractionRegistry.List: %w", classify(err))
	}
	return summaries, nil
}

// Update replaces name, description and service duration of an attraction.
// Keeping the current name is allowed; taking another attraction's is not.
func (r *AttractionRegistry) Update(ctx context.Context, id int64, name, description string, serviceDuration int) (_ domain.Attraction, err error) {
	start := time.Now()
	defer func() { r.observe(OpUpdateAttraction, start, err) }()

	candidate, err := domain.NewAttraction(name, description, serviceDuration)
	if err != nil {
		return domain.Attraction{}, fmt.Errorf("service.AttractionRegistry.Update: %w", err)
	}
	candidate.ID = id

	var updated domain.Attraction
	err = r.withLock(id, func() error {
		return r.store.InTx(ctx, func(tx repo.Repos) error {
			if _, err := r.recordForUpdate(ctx, tx, id); err != nil {
				return err
			}
			if err := ensureNameFree(ctx, tx, candidate.Name, id); err != nil {
				return err
			}
			var err error
			updated, err = tx.Attractions().Update(ctx, candidate)
			return err
		})
	})
	if err != nil {
		return domain.Attraction{}, fmt.Errorf("service.AttractionRegistry.Update: %w", classify(err))
	}

	r.logger.DebugContext(ctx, "attraction updated",
		slog.Int64("attraction_id", updated.ID),
		slog.String("name", updated.Name),
		slog.Int("service_duration", updated.ServiceDuration),
	)
	return updated, nil
}

// Delete removes an attraction. Its line is purged by the same storage call;
// the number of purged entries is returned.
func (r *AttractionRegistry) Delete(ctx context.Context, id int64) (_ int, err error) {
	start := time.Now()
	defer func() { r.observe(OpDeleteAttraction, start, err) }()

	var purged int
	err = r.withLock(id, func() error {
		err := r.store.InTx(ctx, func(tx repo.Repos) error {
			if _, err := r.recordForUpdate(ctx, tx, id); err != nil {
				return err
			}
			var err error
			purged, err = tx.Attractions().Delete(ctx, id)
			return err
		})
		if err != nil {
			return err
		}
		r.rec.EntriesRemoved(domain.EntryPurged, purged)
		r.rec.ForgetAttraction(id)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("service.AttractionRegistry.Delete: %w", classify(err))
	}

	r.logger.DebugContext(ctx, "attraction deleted",
		slog.Int64("attraction_id", id),
		slog.Int("purged", purged),
	)
	return purged, nil
}

// record reads one attraction through repos, which may be the store itself or
// a transaction.
func (r *AttractionRegistry) record(ctx context.Context, repos repo.Repos, id int64) (domain.Attraction, error) {
	return repos.Attractions().GetByID(ctx, id)
}

// recordForUpdate is record that also locks the row where the backend supports it.
func (r *AttractionRegistry) recordForUpdate(ctx context.Context, tx repo.Repos, id int64) (domain.Attraction, error) {
	return tx.Attractions().GetForUpdate(ctx, id)
}

// ensureNameFree fails with domain.ErrDuplicateName when name belongs to an
// attraction other than selfID. Pass 0 when creating.
func ensureNameFree(ctx context.Context, tx repo.Repos, name string, selfID int64) error {
	existing, err := tx.Attractions().FindByName(ctx, name)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return domain.ErrDuplicateName
	}
	return nil
}
