package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/pkordes/attraction-queue/internal/domain"
)

// attractionRepo is the Redis implementation of repo.AttractionRepo.
type attractionRepo struct {
	s *Store
}

func (r attractionRepo) Create(ctx context.Context, a domain.Attraction) (domain.Attraction, error) {
	payload, err := r.s.run(ctx, createAttractionScript, a.Name, a.Description, strconv.Itoa(a.ServiceDuration))
	if err != nil {
		return domain.Attraction{}, fmt.Errorf("redisstore.AttractionRepo.Create: %w", err)
	}
	result, err := attractionFromPayload(payload)
	if err != nil {
		return domain.Attraction{}, fmt.Errorf("redisstore.AttractionRepo.Create: %w", err)
	}
	return result, nil
}

func (r attractionRepo) GetByID(ctx context.Context, id int64) (domain.Attraction, error) {
	m, err := r.s.client.HGetAll(ctx, r.s.attractionKey(id)).Result()
	if err != nil {
		return domain.Attraction{}, fmt.Errorf("redisstore.AttractionRepo.GetByID: %w", err)
	}
	if len(m) == 0 {
		return domain.Attraction{}, fmt.Errorf("redisstore.AttractionRepo.GetByID: %w", domain.ErrNotFound)
	}
	result, err := parseAttraction(m)
	if err != nil {
		return domain.Attraction{}, fmt.Errorf("redisstore.AttractionRepo.GetByID: %w", err)
	}
	return result, nil
}

// GetForUpdate is GetByID; Redis has no row locks.
func (r attractionRepo) GetForUpdate(ctx context.Context, id int64) (domain.Attraction, error) {
	return r.GetByID(ctx, id)
}

func (r attractionRepo) FindByName(ctx context.Context, name string) (domain.Attraction, error) {
	raw, err := r.s.client.HGet(ctx, r.s.key("attractions", "byname"), name).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Attraction{}, fmt.Errorf("redisstore.AttractionRepo.FindByName: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.Attraction{}, fmt.Errorf("redisstore.AttractionRepo.FindByName: %w", err)
	}
	id, err := parseID(raw)
	if err != nil {
		return domain.Attraction{}, fmt.Errorf("redisstore.AttractionRepo.FindByName: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r attractionRepo) List(ctx context.Context) ([]domain.Attraction, error) {
	payload, err := r.s.run(ctx, listAttractionsScript)
	if err != nil {
		return nil, fmt.Errorf("redisstore.AttractionRepo.List: %w", err)
	}
	attractions := make([]domain.Attraction, 0, len(payload))
	for _, rec := range payload {
		m, err := fieldMap(rec)
		if err != nil {
			return nil, fmt.Errorf("redisstore.AttractionRepo.List: %w", err)
		}
		a, err := parseAttraction(m)
		if err != nil {
			return nil, fmt.Errorf("redisstore.AttractionRepo.List: %w", err)
		}
		attractions = append(attractions, a)
	}
	sort.Slice(attractions, func(i, j int) bool {
		if attractions[i].Name == attractions[j].Name {
			return attractions[i].ID < attractions[j].ID
		}
		return attractions[i].Name < attractions[j].Name
	})
	return attractions, nil
}

func (r attractionRepo) Update(ctx context.Context, a domain.Attraction) (domain.Attraction, error) {
	payload, err := r.s.run(ctx, updateAttractionScript,
		formatID(a.ID), a.Name, a.Description, strconv.Itoa(a.ServiceDuration))
	if err != nil {
		return domain.Attraction{}, fmt.Errorf("redisstore.AttractionRepo.Update: %w", err)
	}
	result, err := attractionFromPayload(payload)
	if err != nil {
		return domain.Attraction{}, fmt.Errorf("redisstore.AttractionRepo.Update: %w", err)
	}
	return result, nil
}

// Delete removes the attraction and its line in one script.
func (r attractionRepo) Delete(ctx context.Context, id int64) (int, error) {
	payload, err := r.s.run(ctx, deleteAttractionScript, formatID(id))
	if err != nil {
		return 0, fmt.Errorf("redisstore.AttractionRepo.Delete: %w", err)
	}
	purged, err := count(payload)
	if err != nil {
		return 0, fmt.Errorf("redisstore.AttractionRepo.Delete: %w", err)
	}
	return purged, nil
}

func attractionFromPayload(payload []any) (domain.Attraction, error) {
	m, err := record(payload)
	if err != nil {
		return domain.Attraction{}, err
	}
	return parseAttraction(m)
}
