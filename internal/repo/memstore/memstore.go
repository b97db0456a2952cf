// Package memstore provides an in-memory implementation of repo.Store.
// It is selected when no database is configured (local development) and backs
// the service and handler tests.
//
// All state sits behind one mutex. InTx holds that mutex for the whole callback
// and records an undo function for every mutation, replaying them in reverse
// if the callback fails. Ids are never rolled back, so they are never reused.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/pkordes/attraction-queue/internal/domain"
	"github.com/pkordes/attraction-queue/internal/repo"
)

// Store is an in-memory repo.Store. The zero value is not usable; call New.
type Store struct {
	mu  sync.Mutex
	st  state
	now func() time.Time
}

type state struct {
	attractions map[int64]domain.Attraction
	byName      map[string]int64
	entries     map[int64]domain.QueueEntry
	// lines holds entry ids per attraction in FIFO order.
	lines map[int64][]int64

	lastAttractionID int64
	lastEntryID      int64
	lastEnqueuedAt   time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		st: state{
			attractions: make(map[int64]domain.Attraction),
			byName:      make(map[string]int64),
			entries:     make(map[int64]domain.QueueEntry),
			lines:       make(map[int64][]int64),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

var _ repo.Store = (*Store)(nil)

func (s *Store) Attractions() repo.AttractionRepo { return attractionRepo{repos{s: s}} }
func (s *Store) Queue() repo.QueueRepo             { return queueRepo{repos{s: s}} }

// InTx runs fn with the store locked. Mutations made through the Repos passed
// to fn are undone if fn returns an error or panics. fn must only use those
// Repos; calling back into s would deadlock.
func (s *Store) InTx(ctx context.Context, fn func(repo.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	t := &txn{}
	committed := false
	defer func() {
		if !committed {
			t.rollback()
		}
		s.mu.Unlock()
	}()

	if err := fn(repos{s: s, tx: t}); err != nil {
		return err
	}
	committed = true
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// txn is the undo log of one InTx call.
type txn struct {
	undo []func()
}

// record is a no-op outside a transaction.
func (t *txn) record(fn func()) {
	if t != nil {
		t.undo = append(t.undo, fn)
	}
}

func (t *txn) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// repos is a view of the store, optionally bound to a transaction.
type repos struct {
	s  *Store
	tx *txn
}

func (r repos) Attractions() repo.AttractionRepo { return attractionRepo{r} }
func (r repos) Queue() repo.QueueRepo             { return queueRepo{r} }

// do runs fn against the state, taking the store lock unless the view belongs
// to a transaction that already holds it.
func (r repos) do(ctx context.Context, fn func(st *state, tx *txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.tx == nil {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	return fn(&r.s.st, r.tx)
}

// attractionRepo is the in-memory implementation of repo.AttractionRepo.
type attractionRepo struct {
	repos
}

func (r attractionRepo) Create(ctx context.Context, a domain.Attraction) (domain.Attraction, error) {
	var result domain.Attraction
	err := r.do(ctx, func(st *state, tx *txn) error {
		if _, taken := st.byName[a.Name]; taken {
			return domain.ErrDuplicateName
		}
		st.lastAttractionID++
		a.ID = st.lastAttractionID
		a.CreatedAt = r.s.now()
		a.UpdatedAt = a.CreatedAt
		st.attractions[a.ID] = a
		st.byName[a.Name] = a.ID
		tx.record(func() {
			delete(st.attractions, a.ID)
			delete(st.byName, a.Name)
		})
		result = a
		return nil
	})
	return result, err
}

func (r attractionRepo) GetByID(ctx context.Context, id int64) (domain.Attraction, error) {
	var result domain.Attraction
	err := r.do(ctx, func(st *state, _ *txn) error {
		a, ok := st.attractions[id]
		if !ok {
			return domain.ErrNotFound
		}
		result = a
		return nil
	})
	return result, err
}

// GetForUpdate needs no extra locking: the store is already exclusive within a transaction.
func (r attractionRepo) GetForUpdate(ctx context.Context, id int64) (domain.Attraction, error) {
	return r.GetByID(ctx, id)
}

func (r attractionRepo) FindByName(ctx context.Context, name string) (domain.Attraction, error) {
	var result domain.Attraction
	err := r.do(ctx, func(st *state, _ *txn) error {
		id, ok := st.byName[name]
		if !ok {
			return domain.ErrNotFound
		}
		result = st.attractions[id]
		return nil
	})
	return result, err
}

func (r attractionRepo) List(ctx context.Context) ([]domain.Attraction, error) {
	var result []domain.Attraction
	err := r.do(ctx, func(st *state, _ *txn) error {
		result = make([]domain.Attraction, 0, len(st.attractions))
		for _, a := range st.attractions {
			result = append(result, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Go string comparison is byte-wise, hence case-sensitive.
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name == result[j].Name {
			return result[i].ID < result[j].ID
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (r attractionRepo) Update(ctx context.Context, a domain.Attraction) (domain.Attraction, error) {
	var result domain.Attraction
	err := r.do(ctx, func(st *state, tx *txn) error {
		old, ok := st.attractions[a.ID]
		if !ok {
			return domain.ErrNotFound
		}
		if owner, taken := st.byName[a.Name]; taken && owner != a.ID {
			return domain.ErrDuplicateName
		}
		a.CreatedAt = old.CreatedAt
		a.UpdatedAt = r.s.now()
		delete(st.byName, old.Name)
		st.byName[a.Name] = a.ID
		st.attractions[a.ID] = a
		tx.record(func() {
			delete(st.byName, a.Name)
			st.byName[old.Name] = old.ID
			st.attractions[old.ID] = old
		})
		result = a
		return nil
	})
	return result, err
}

func (r attractionRepo) Delete(ctx context.Context, id int64) (int, error) {
	var purged int
	err := r.do(ctx, func(st *state, tx *txn) error {
		old, ok := st.attractions[id]
		if !ok {
			return domain.ErrNotFound
		}
		line := st.lines[id]
		removed := make([]domain.QueueEntry, 0, len(line))
		for _, eid := range line {
			removed = append(removed, st.entries[eid])
			delete(st.entries, eid)
		}
		delete(st.lines, id)
		delete(st.attractions, id)
		delete(st.byName, old.Name)
		tx.record(func() {
			st.attractions[id] = old
			st.byName[old.Name] = id
			for _, e := range removed {
				st.entries[e.ID] = e
			}
			if len(line) > 0 {
				st.lines[id] = line
			}
		})
		purged = len(line)
		return nil
	})
	return purged, err
}

// queueRepo is the in-memory implementation of repo.QueueRepo.
type queueRepo struct {
	repos
}

func (r queueRepo) Insert(ctx context.Context, attractionID int64, personName string) (domain.QueueEntry, int, error) {
	var (
		result domain.QueueEntry
		depth  int
	)
	err := r.do(ctx, func(st *state, tx *txn) error {
		if _, ok := st.attractions[attractionID]; !ok {
			return domain.ErrNotFound
		}
		// Clamp so that line order is also (EnqueuedAt, ID) order if the wall clock steps back.
		ts := r.s.now()
		if ts.Before(st.lastEnqueuedAt) {
			ts = st.lastEnqueuedAt
		}
		st.lastEnqueuedAt = ts
		st.lastEntryID++
		e := domain.QueueEntry{
			ID:           st.lastEntryID,
			AttractionID: attractionID,
			PersonName:   personName,
			EnqueuedAt:   ts,
		}
		st.entries[e.ID] = e
		st.lines[attractionID] = append(st.lines[attractionID], e.ID)
		tx.record(func() {
			delete(st.entries, e.ID)
			st.removeFromLine(attractionID, e.ID)
		})
		result, depth = e, len(st.lines[attractionID])
		return nil
	})
	return result, depth, err
}

func (r queueRepo) PopHead(ctx context.Context, attractionID int64) (domain.QueueEntry, int, error) {
	var (
		result domain.QueueEntry
		depth  int
	)
	err := r.do(ctx, func(st *state, tx *txn) error {
		line := st.lines[attractionID]
		if len(line) == 0 {
			return domain.ErrEmptyQueue
		}
		e := st.entries[line[0]]
		delete(st.entries, e.ID)
		st.removeFromLine(attractionID, e.ID)
		tx.record(func() {
			st.entries[e.ID] = e
			st.lines[attractionID] = slices.Insert(st.lines[attractionID], 0, e.ID)
		})
		result, depth = e, len(st.lines[attractionID])
		return nil
	})
	return result, depth, err
}

func (r queueRepo) GetByID(ctx context.Context, id int64) (domain.QueueEntry, error) {
	var result domain.QueueEntry
	err := r.do(ctx, func(st *state, _ *txn) error {
		e, ok := st.entries[id]
		if !ok {
			return domain.ErrNotFound
		}
		result = e
		return nil
	})
	return result, err
}

func (r queueRepo) Delete(ctx context.Context, id int64) (domain.QueueEntry, int, error) {
	var (
		result domain.QueueEntry
		depth  int
	)
	err := r.do(ctx, func(st *state, tx *txn) error {
		e, ok := st.entries[id]
		if !ok {
			return domain.ErrNotFound
		}
		idx := slices.Index(st.lines[e.AttractionID], id)
		delete(st.entries, id)
		st.removeFromLine(e.AttractionID, id)
		tx.record(func() {
			st.entries[id] = e
			st.lines[e.AttractionID] = slices.Insert(st.lines[e.AttractionID], idx, id)
		})
		result, depth = e, len(st.lines[e.AttractionID])
		return nil
	})
	return result, depth, err
}

func (r queueRepo) DeleteByAttraction(ctx context.Context, attractionID int64) (int, error) {
	var n int
	err := r.do(ctx, func(st *state, tx *txn) error {
		line := st.lines[attractionID]
		removed := make([]domain.QueueEntry, 0, len(line))
		for _, id := range line {
			removed = append(removed, st.entries[id])
			delete(st.entries, id)
		}
		delete(st.lines, attractionID)
		tx.record(func() {
			for _, e := range removed {
				st.entries[e.ID] = e
			}
			if len(line) > 0 {
				st.lines[attractionID] = line
			}
		})
		n = len(line)
		return nil
	})
	return n, err
}

func (r queueRepo) Count(ctx context.Context, attractionID int64) (int, error) {
	var n int
	err := r.do(ctx, func(st *state, _ *txn) error {
		n = len(st.lines[attractionID])
		return nil
	})
	return n, err
}

func (r queueRepo) CountAll(ctx context.Context) (map[int64]int, error) {
	counts := make(map[int64]int)
	err := r.do(ctx, func(st *state, _ *txn) error {
		for id, line := range st.lines {
			if len(line) > 0 {
				counts[id] = len(line)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r queueRepo) ListByAttraction(ctx context.Context, attractionID int64) ([]domain.QueueEntry, error) {
	var result []domain.QueueEntry
	err := r.do(ctx, func(st *state, _ *txn) error {
		line := st.lines[attractionID]
		result = make([]domain.QueueEntry, 0, len(line))
		for _, id := range line {
			result = append(result, st.entries[id])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r queueRepo) Rank(ctx context.Context, entry domain.QueueEntry) (int, error) {
	var rank int
	err := r.do(ctx, func(st *state, _ *txn) error {
		idx := slices.Index(st.lines[entry.AttractionID], entry.ID)
		if idx < 0 {
			return domain.ErrNotFound
		}
		rank = idx
		return nil
	})
	return rank, err
}

// removeFromLine drops id from the attraction's line, deleting the line once empty.
func (st *state) removeFromLine(attractionID, id int64) {
	line := st.lines[attractionID]
	idx := slices.Index(line, id)
	if idx < 0 {
		return
	}
	line = slices.Delete(line, idx, idx+1)
	if len(line) == 0 {
		delete(st.lines, attractionID)
		return
	}
	st.lines[attractionID] = line
}
