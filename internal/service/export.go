package service

import (
	"context"
	"fmt"

	"github.com/pkordes/attraction-queue/internal/domain"
	"github.com/pkordes/attraction-queue/internal/repo"
)

// Export returns the whole board as flat rows, read in one transaction:
// attractions by name, and within each attraction its line oldest first.
// Attractions with an empty line contribute one row with empty entry fields.
func (q *QueueManager) Export(ctx context.Context) ([]domain.BoardRow, error) {
	var rows []domain.BoardRow
	err := q.store.InTx(ctx, func(tx repo.Repos) error {
		attractions, err := tx.Attractions().List(ctx)
		if err != nil {
			return err
		}
		rows = make([]domain.BoardRow, 0, len(attractions))
		for _, a := range attractions {
			line, err := tx.Queue().ListByAttraction(ctx, a.ID)
			if err != nil {
				return err
			}
			rows = append(rows, boardRows(a, line)...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("service.QueueManager.Export: %w", classify(err))
	}
	return rows, nil
}

func boardRows(a domain.Attraction, line []domain.QueueEntry) []domain.BoardRow {
	base := domain.BoardRow{
		AttractionID:    a.ID,
		AttractionName:  a.Name,
		ServiceDuration: a.ServiceDuration,
		Depth:           len(line),
	}
	if len(line) == 0 {
		return []domain.BoardRow{base}
	}

	rows := make([]domain.BoardRow, 0, len(line))
	for i, e := range line {
		row := base
		row.Position = i + 1
		row.EntryID = e.ID
		row.PersonName = e.PersonName
		enqueuedAt := e.EnqueuedAt
		row.EnqueuedAt = &enqueuedAt
		row.EstimatedWait = domain.EstimatedWait(i+1, a.ServiceDuration)
		rows = append(rows, row)
	}
	return rows
}
