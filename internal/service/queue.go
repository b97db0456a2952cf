package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkordes/attraction-queue/internal/domain"
	"github.com/pkordes/attraction-queue/internal/repo"
)

// QueueManager owns the FIFO line of every attraction and computes depth and
// estimated wait. Attraction records are read through the registry.
type QueueManager struct {
	*core
	registry *AttractionRegistry
}

// Enqueue appends a person to the attraction's line. The returned status is
// read in the same transaction as the insert, so it includes the new entry.
func (q *QueueManager) Enqueue(ctx context.Context, attractionID int64, personName string) (_ domain.EnqueueResult, err error) {
	start := time.Now()
	defer func() { q.observe(OpEnqueue, start, err) }()

	name, err := domain.NormalizePersonName(personName)
	if err != nil {
		return domain.EnqueueResult{}, fmt.Errorf("service.QueueManager.Enqueue: %w", err)
	}

	var result domain.EnqueueResult
	err = q.withLock(attractionID, func() error {
		err := q.store.InTx(ctx, func(tx repo.Repos) error {
			a, err := q.registry.recordForUpdate(ctx, tx, attractionID)
			if err != nil {
				return err
			}
			entry, depth, err := tx.Queue().Insert(ctx, attractionID, name)
			if err != nil {
				return err
			}
			result = domain.EnqueueResult{Entry: entry, Status: domain.NewQueueStatus(a, depth)}
			return nil
		})
		if err != nil {
			return err
		}
		q.rec.SetDepth(attractionID, result.Status.Depth)
		return nil
	})
	if err != nil {
		return domain.EnqueueResult{}, fmt.Errorf("service.QueueManager.Enqueue: %w", classify(err))
	}

	q.logger.DebugContext(ctx, "entry enqueued",
		slog.Int64("attraction_id", attractionID),
		slog.Int64("entry_id", result.Entry.ID),
		slog.Int("depth", result.Status.Depth),
		slog.Int("estimated_wait", result.Status.EstimatedWait),
	)
	return result, nil
}

// DequeueNext serves the head of the line. The removed entry is not retained.
func (q *QueueManager) DequeueNext(ctx context.Context, attractionID int64) (_ domain.DequeueResult, err error) {
	start := time.Now()
	defer func() { q.observe(OpDequeueNext, start, err) }()

	var result domain.DequeueResult
	err = q.withLock(attractionID, func() error {
		err := q.store.InTx(ctx, func(tx repo.Repos) error {
			a, err := q.registry.recordForUpdate(ctx, tx, attractionID)
			if err != nil {
				return err
			}
			entry, depth, err := tx.Queue().PopHead(ctx, attractionID)
			if err != nil {
				return err
			}
			result = domain.DequeueResult{Entry: entry, Status: domain.NewQueueStatus(a, depth)}
			return nil
		})
		if err != nil {
			return err
		}
		q.recordServed(result)
		return nil
	})
	if err != nil {
		return domain.DequeueResult{}, fmt.Errorf("service.QueueManager.DequeueNext: %w", classify(err))
	}

	q.logServed(ctx, result)
	return result, nil
}

// DequeueByID serves one entry regardless of its position. The entry's
// attraction is resolved first; the entry is then removed under that
// attraction's lock, failing with domain.ErrNotFound if it left meanwhile.
func (q *QueueManager) DequeueByID(ctx context.Context, entryID int64) (_ domain.DequeueResult, err error) {
	start := time.Now()
	defer func() { q.observe(OpDequeueByID, start, err) }()

	found, err := q.store.Queue().GetByID(ctx, entryID)
	if err != nil {
		return domain.DequeueResult{}, fmt.Errorf("service.QueueManager.DequeueByID: %w", classify(err))
	}
	attractionID := found.AttractionID

	var result domain.DequeueResult
	err = q.withLock(attractionID, func() error {
		err := q.store.InTx(ctx, func(tx repo.Repos) error {
			a, err := q.registry.recordForUpdate(ctx, tx, attractionID)
			if err != nil {
				return err
			}
			entry, depth, err := tx.Queue().Delete(ctx, entryID)
			if err != nil {
				return err
			}
			result = domain.DequeueResult{Entry: entry, Status: domain.NewQueueStatus(a, depth)}
			return nil
		})
		if err != nil {
			return err
		}
		q.recordServed(result)
		return nil
	})
	if err != nil {
		return domain.DequeueResult{}, fmt.Errorf("service.QueueManager.DequeueByID: %w", classify(err))
	}

	q.logServed(ctx, result)
	return result, nil
}

// Clear empties the attraction's line. Clearing an empty line removes nothing
// and succeeds.
func (q *QueueManager) Clear(ctx context.Context, attractionID int64) (_ domain.ClearResult, err error) {
	start := time.Now()
	defer func() { q.observe(OpClear, start, err) }()

	var removed int
	err = q.withLock(attractionID, func() error {
		err := q.store.InTx(ctx, func(tx repo.Repos) error {
			if _, err := q.registry.recordForUpdate(ctx, tx, attractionID); err != nil {
				return err
			}
			var err error
			removed, err = tx.Queue().DeleteByAttraction(ctx, attractionID)
			return err
		})
		if err != nil {
			return err
		}
		q.rec.EntriesRemoved(domain.EntryPurged, removed)
		q.rec.SetDepth(attractionID, 0)
		return nil
	})
	if err != nil {
		return domain.ClearResult{}, fmt.Errorf("service.QueueManager.Clear: %w", classify(err))
	}

	q.logger.DebugContext(ctx, "queue cleared",
		slog.Int64("attraction_id", attractionID),
		slog.Int("removed", removed),
	)
	return domain.ClearResult{AttractionID: attractionID, Removed: removed}, nil
}

// Status returns depth, service duration and estimated wait from one read.
func (q *QueueManager) Status(ctx context.Context, attractionID int64) (domain.QueueStatus, error) {
	var status domain.QueueStatus
	err := q.store.InTx(ctx, func(tx repo.Repos) error {
		a, err := q.registry.record(ctx, tx, attractionID)
		if err != nil {
			return err
		}
		depth, err := tx.Queue().Count(ctx, attractionID)
		if err != nil {
			return err
		}
		status = domain.NewQueueStatus(a, depth)
		return nil
	})
	if err != nil {
		return domain.QueueStatus{}, fmt.Errorf("service.QueueManager.Status: %w", classify(err))
	}
	return status, nil
}

// Depth returns the number of people waiting for the attraction.
func (q *QueueManager) Depth(ctx context.Context, attractionID int64) (int, error) {
	status, err := q.Status(ctx, attractionID)
	if err != nil {
		return 0, err
	}
	return status.Depth, nil
}

// EstimatedWait returns depth × service duration in minutes, using the
// service duration as it is now.
func (q *QueueManager) EstimatedWait(ctx context.Context, attractionID int64) (int, error) {
	status, err := q.Status(ctx, attractionID)
	if err != nil {
		return 0, err
	}
	return status.EstimatedWait, nil
}

// ListEntries returns the attraction's line, oldest first. It is never nil.
func (q *QueueManager) ListEntries(ctx context.Context, attractionID int64) ([]domain.QueueEntry, error) {
	line, err := q.Line(ctx, attractionID)
	if err != nil {
		return nil, err
	}
	return line.Entries, nil
}

// Line returns the attraction's entries together with the status derived from
// them, both from one read.
func (q *QueueManager) Line(ctx context.Context, attractionID int64) (domain.Line, error) {
	var line domain.Line
	err := q.store.InTx(ctx, func(tx repo.Repos) error {
		a, err := q.registry.record(ctx, tx, attractionID)
		if err != nil {
			return err
		}
		entries, err := tx.Queue().ListByAttraction(ctx, attractionID)
		if err != nil {
			return err
		}
		if entries == nil {
			entries = []domain.QueueEntry{}
		}
		line = domain.Line{Status: domain.NewQueueStatus(a, len(entries)), Entries: entries}
		return nil
	})
	if err != nil {
		return domain.Line{}, fmt.Errorf("service.QueueManager.Line: %w", classify(err))
	}
	return line, nil
}

// Position reports where a waiting entry stands: its 1-based position, the
// line depth, and its own estimated wait (position × service duration).
func (q *QueueManager) Position(ctx context.Context, entryID int64) (domain.Position, error) {
	entry, err := q.store.Queue().GetByID(ctx, entryID)
	if err != nil {
		return domain.Position{}, fmt.Errorf("service.QueueManager.Position: %w", classify(err))
	}

	var pos domain.Position
	err = q.store.InTx(ctx, func(tx repo.Repos) error {
		a, err := q.registry.record(ctx, tx, entry.AttractionID)
		if err != nil {
			return err
		}
		ahead, err := tx.Queue().Rank(ctx, entry)
		if err != nil {
			return err
		}
		depth, err := tx.Queue().Count(ctx, entry.AttractionID)
		if err != nil {
			return err
		}
		pos = domain.Position{
			Entry:         entry,
			Position:      ahead + 1,
			Depth:         depth,
			EstimatedWait: domain.EstimatedWait(ahead+1, a.ServiceDuration),
		}
		return nil
	})
	if err != nil {
		return domain.Position{}, fmt.Errorf("service.QueueManager.Position: %w", classify(err))
	}
	return pos, nil
}

// annotate pairs each attraction with the depth and wait of its line.
func (q *QueueManager) annotate(ctx context.Context, tx repo.Repos, attractions []domain.Attraction) ([]domain.AttractionSummary, error) {
	depths, err := tx.Queue().CountAll(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]domain.AttractionSummary, 0, len(attractions))
	for _, a := range attractions {
		depth := depths[a.ID]
		summaries = append(summaries, domain.AttractionSummary{
			Attraction:    a,
			Depth:         depth,
			EstimatedWait: domain.EstimatedWait(depth, a.ServiceDuration),
		})
	}
	return summaries, nil
}

// recordServed reports a dequeued entry to the recorder. The caller holds the
// attraction lock, so depths reach the recorder in commit order.
func (q *QueueManager) recordServed(result domain.DequeueResult) {
	q.rec.EntriesRemoved(domain.EntryServed, 1)
	q.rec.SetDepth(result.Entry.AttractionID, result.Status.Depth)
}

func (q *QueueManager) logServed(ctx context.Context, result domain.DequeueResult) {
	q.logger.DebugContext(ctx, "entry served",
		slog.Int64("attraction_id", result.Entry.AttractionID),
		slog.Int64("entry_id", result.Entry.ID),
		slog.Int("depth", result.Status.Depth),
	)
}
