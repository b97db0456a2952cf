package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/pkordes/attraction-queue/internal/domain"
)

// queueRepo is the Redis implementation of repo.QueueRepo.
// A line is a sorted set of entry ids scored by id, so ZRANGE is FIFO order.
type queueRepo struct {
	s *Store
}

func (r queueRepo) Insert(ctx context.Context, attractionID int64, personName string) (domain.QueueEntry, int, error) {
	payload, err := r.s.run(ctx, insertEntryScript, formatID(attractionID), personName)
	if err != nil {
		return domain.QueueEntry{}, 0, fmt.Errorf("redisstore.QueueRepo.Insert: %w", err)
	}
	result, depth, err := entryAndDepth(payload)
	if err != nil {
		return domain.QueueEntry{}, 0, fmt.Errorf("redisstore.QueueRepo.Insert: %w", err)
	}
	return result, depth, nil
}

func (r queueRepo) PopHead(ctx context.Context, attractionID int64) (domain.QueueEntry, int, error) {
	payload, err := r.s.run(ctx, popHeadScript, formatID(attractionID))
	if err != nil {
		return domain.QueueEntry{}, 0, fmt.Errorf("redisstore.QueueRepo.PopHead: %w", err)
	}
	result, depth, err := entryAndDepth(payload)
	if err != nil {
		return domain.QueueEntry{}, 0, fmt.Errorf("redisstore.QueueRepo.PopHead: %w", err)
	}
	return result, depth, nil
}

func (r queueRepo) GetByID(ctx context.Context, id int64) (domain.QueueEntry, error) {
	m, err := r.s.client.HGetAll(ctx, r.s.entryKey(id)).Result()
	if err != nil {
		return domain.QueueEntry{}, fmt.Errorf("redisstore.QueueRepo.GetByID: %w", err)
	}
	if len(m) == 0 {
		return domain.QueueEntry{}, fmt.Errorf("redisstore.QueueRepo.GetByID: %w", domain.ErrNotFound)
	}
	result, err := parseEntry(m)
	if err != nil {
		return domain.QueueEntry{}, fmt.Errorf("redisstore.QueueRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r queueRepo) Delete(ctx context.Context, id int64) (domain.QueueEntry, int, error) {
	payload, err := r.s.run(ctx, deleteEntryScript, formatID(id))
	if err != nil {
		return domain.QueueEntry{}, 0, fmt.Errorf("redisstore.QueueRepo.Delete: %w", err)
	}
	result, depth, err := entryAndDepth(payload)
	if err != nil {
		return domain.QueueEntry{}, 0, fmt.Errorf("redisstore.QueueRepo.Delete: %w", err)
	}
	return result, depth, nil
}

func (r queueRepo) DeleteByAttraction(ctx context.Context, attractionID int64) (int, error) {
	payload, err := r.s.run(ctx, clearLineScript, formatID(attractionID))
	if err != nil {
		return 0, fmt.Errorf("redisstore.QueueRepo.DeleteByAttraction: %w", err)
	}
	n, err := count(payload)
	if err != nil {
		return 0, fmt.Errorf("redisstore.QueueRepo.DeleteByAttraction: %w", err)
	}
	return n, nil
}

func (r queueRepo) Count(ctx context.Context, attractionID int64) (int, error) {
	n, err := r.s.client.ZCard(ctx, r.s.queueKey(attractionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redisstore.QueueRepo.Count: %w", err)
	}
	return int(n), nil
}

// CountAll reads the attraction index, then every line length in one pipeline.
func (r queueRepo) CountAll(ctx context.Context) (map[int64]int, error) {
	ids, err := r.s.client.ZRange(ctx, r.s.key("attractions"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore.QueueRepo.CountAll: %w", err)
	}

	cmds := make([]*redis.IntCmd, len(ids))
	_, err = r.s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.ZCard(ctx, r.s.key("queue", id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redisstore.QueueRepo.CountAll: %w", err)
	}

	counts := make(map[int64]int)
	for i, cmd := range cmds {
		if cmd.Val() == 0 {
			continue
		}
		id, err := parseID(ids[i])
		if err != nil {
			return nil, fmt.Errorf("redisstore.QueueRepo.CountAll: %w", err)
		}
		counts[id] = int(cmd.Val())
	}
	return counts, nil
}

func (r queueRepo) ListByAttraction(ctx context.Context, attractionID int64) ([]domain.QueueEntry, error) {
	payload, err := r.s.run(ctx, listEntriesScript, formatID(attractionID))
	if err != nil {
		return nil, fmt.Errorf("redisstore.QueueRepo.ListByAttraction: %w", err)
	}
	entries := make([]domain.QueueEntry, 0, len(payload))
	for _, rec := range payload {
		m, err := fieldMap(rec)
		if err != nil {
			return nil, fmt.Errorf("redisstore.QueueRepo.ListByAttraction: %w", err)
		}
		e, err := parseEntry(m)
		if err != nil {
			return nil, fmt.Errorf("redisstore.QueueRepo.ListByAttraction: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r queueRepo) Rank(ctx context.Context, entry domain.QueueEntry) (int, error) {
	rank, err := r.s.client.ZRank(ctx, r.s.queueKey(entry.AttractionID), formatID(entry.ID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("redisstore.QueueRepo.Rank: %w", domain.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("redisstore.QueueRepo.Rank: %w", err)
	}
	return int(rank), nil
}

func entryAndDepth(payload []any) (domain.QueueEntry, int, error) {
	m, depth, err := recordAndDepth(payload)
	if err != nil {
		return domain.QueueEntry{}, 0, err
	}
	e, err := parseEntry(m)
	if err != nil {
		return domain.QueueEntry{}, 0, err
	}
	return e, depth, nil
}
