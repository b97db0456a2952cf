// Package storetest holds the behavioural test suite every repo.Store backend
// must pass. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/attraction-queue/internal/domain"
	"github.com/pkordes/attraction-queue/internal/repo"
)

// Options describes backend capabilities that change expected behaviour.
type Options struct {
	// Transactional is true when InTx undoes every mutation made by a failing fn.
	Transactional bool
}

// NewStoreFunc returns an empty store. It should register its own cleanup.
type NewStoreFunc func(t *testing.T) repo.Store

// Run executes the whole suite against stores produced by newStore.
func Run(t *testing.T, newStore NewStoreFunc, opts Options) {
	t.Run("Attractions", func(t *testing.T) { runAttractions(t, newStore) })
	t.Run("Queue", func(t *testing.T) { runQueue(t, newStore) })
	t.Run("InTx", func(t *testing.T) { runInTx(t, newStore, opts) })
}

// attractionFixture returns an attraction ready to be created.
func attractionFixture(name string) domain.Attraction {
	return domain.Attraction{Name: name, Description: "fixture", ServiceDuration: 3}
}

func mustCreate(t *testing.T, s repo.Store, name string) domain.Attraction {
	t.Helper()
	a, err := s.Attractions().Create(context.Background(), attractionFixture(name))
	require.NoError(t, err, "create %q", name)
	return a
}

func mustInsert(t *testing.T, s repo.Store, attractionID int64, person string) domain.QueueEntry {
	t.Helper()
	e, _, err := s.Queue().Insert(context.Background(), attractionID, person)
	require.NoError(t, err, "insert %q", person)
	return e
}

func runAttractions(t *testing.T, newStore NewStoreFunc) {
	ctx := context.Background()

	t.Run("Create assigns id and timestamps", func(t *testing.T) {
		s := newStore(t)

		got, err := s.Attractions().Create(ctx, attractionFixture("Zipline"))

		require.NoError(t, err)
		assert.Positive(t, got.ID)
		assert.Equal(t, "Zipline", got.Name)
		assert.Equal(t, "fixture", got.Description)
		assert.Equal(t, 3, got.ServiceDuration)
		assert.False(t, got.CreatedAt.IsZero(), "CreatedAt should be set")
		assert.False(t, got.UpdatedAt.IsZero(), "UpdatedAt should be set")
	})

	t.Run("Create rejects duplicate name", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, "Zipline")

		_, err := s.Attractions().Create(ctx, attractionFixture("Zipline"))

		assert.ErrorIs(t, err, domain.ErrDuplicateName)
	})

	t.Run("names are case-sensitive", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, "Zipline")

		_, err := s.Attractions().Create(ctx, attractionFixture("zipline"))

		assert.NoError(t, err)
	})

	t.Run("GetByID and FindByName", func(t *testing.T) {
		s := newStore(t)
		created := mustCreate(t, s, "Carousel")

		byID, err := s.Attractions().GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Name, byID.Name)

		locked, err := s.Attractions().GetForUpdate(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, locked.ID)

		byName, err := s.Attractions().FindByName(ctx, "Carousel")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byName.ID)
	})

	t.Run("lookups of unknown attractions", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Attractions().GetByID(ctx, 987654)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = s.Attractions().GetForUpdate(ctx, 987654)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = s.Attractions().FindByName(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("List orders by name byte-wise", func(t *testing.T) {
		s := newStore(t)
		created := map[int64]bool{}
		for _, name := range []string{"beta", "alpha", "Alpha"} {
			created[mustCreate(t, s, name).ID] = true
		}

		all, err := s.Attractions().List(ctx)
		require.NoError(t, err)

		var names []string
		for _, a := range all {
			if created[a.ID] {
				names = append(names, a.Name)
			}
		}
		assert.Equal(t, []string{"Alpha", "alpha", "beta"}, names)
	})

	t.Run("Update overwrites fields", func(t *testing.T) {
		s := newStore(t)
		created := mustCreate(t, s, "Old Mill")

		created.Name = "New Mill"
		created.Description = "renovated"
		created.ServiceDuration = 9
		got, err := s.Attractions().Update(ctx, created)

		require.NoError(t, err)
		assert.Equal(t, "New Mill", got.Name)
		assert.Equal(t, "renovated", got.Description)
		assert.Equal(t, 9, got.ServiceDuration)
		assert.True(t, got.CreatedAt.Equal(created.CreatedAt), "CreatedAt must not change")

		_, err = s.Attractions().FindByName(ctx, "Old Mill")
		assert.ErrorIs(t, err, domain.ErrNotFound, "old name should be free")
		_, err = s.Attractions().FindByName(ctx, "New Mill")
		assert.NoError(t, err)
	})

	t.Run("Update keeping own name", func(t *testing.T) {
		s := newStore(t)
		created := mustCreate(t, s, "Carousel")

		created.ServiceDuration = 7
		got, err := s.Attractions().Update(ctx, created)

		require.NoError(t, err)
		assert.Equal(t, 7, got.ServiceDuration)
	})

	t.Run("Update to a taken name", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, "Carousel")
		other := mustCreate(t, s, "Zipline")

		other.Name = "Carousel"
		_, err := s.Attractions().Update(ctx, other)

		assert.ErrorIs(t, err, domain.ErrDuplicateName)
	})

	t.Run("Update unknown attraction", func(t *testing.T) {
		s := newStore(t)

		a := attractionFixture("Ghost")
		a.ID = 987654
		_, err := s.Attractions().Update(ctx, a)

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Delete cascades to the line", func(t *testing.T) {
		s := newStore(t)
		a := mustCreate(t, s, "Zipline")
		b := mustCreate(t, s, "Carousel")
		e := mustInsert(t, s, a.ID, "Alice")
		mustInsert(t, s, a.ID, "Bob")
		mustInsert(t, s, a.ID, "Carol")
		mustInsert(t, s, b.ID, "Xavier")

		purged, err := s.Attractions().Delete(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, purged, "purged count comes from the same call")

		_, err = s.Attractions().GetByID(ctx, a.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = s.Queue().GetByID(ctx, e.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		n, err := s.Queue().Count(ctx, a.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
		n, err = s.Queue().Count(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "other lines untouched")

		// The name is free again.
		mustCreate(t, s, "Zipline")
	})

	t.Run("Delete of an empty line purges nothing", func(t *testing.T) {
		s := newStore(t)
		a := mustCreate(t, s, "Zipline")

		purged, err := s.Attractions().Delete(ctx, a.ID)

		require.NoError(t, err)
		assert.Zero(t, purged)
	})

	t.Run("Delete unknown attraction", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Attractions().Delete(ctx, 987654)

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func runQueue(t *testing.T, newStore NewStoreFunc) {
	ctx := context.Background()

	t.Run("Insert into unknown attraction", func(t *testing.T) {
		s := newStore(t)

		_, _, err := s.Queue().Insert(ctx, 987654, "Alice")

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Insert reports the depth including the new entry", func(t *testing.T) {
		s := newStore(t)
		a := mustCreate(t, s, "Zipline")
		b := mustCreate(t, s, "Carousel")
		mustInsert(t, s, b.ID, "Xavier")

		for want := 1; want <= 3; want++ {
			_, depth, err := s.Queue().Insert(ctx, a.ID, "Guest")
			require.NoError(t, err)
			assert.Equal(t, want, depth)
		}
	})

	t.Run("Insert assigns increasing ids and timestamps", func(t *testing.T) {
		s := newStore(t)
		a := mustCreate(t, s, "Zipline")

		first := mustInsert(t, s, a.ID, "Alice")
		second := mustInsert(t, s, a.ID, "Bob")

		assert.Equal(t, a.ID, first.AttractionID)
		assert.Equal(t, "Alice", first.PersonName)
		assert.False(t, first.EnqueuedAt.IsZero())
		assert.Greater(t, second.ID, first.ID)
		assert.True(t, first.Before(second), "first entry must sort before second")
	})

	t.Run("ListByAttraction is FIFO and scoped", func(t *testing.T) {
		s := newStore(t)
		a := mustCreate(t, s, "Zipline")
		b := mustCreate(t, s, "Carousel")
		mustInsert(t, s, a.ID, "Alice")
		mustInsert(t, s, b.ID, "Xavier")
		mustInsert(t, s, a.ID, "Bob")
		mustInsert(t, s, a.ID, "Carol")

		line, err := s.Queue().ListByAttraction(ctx, a.ID)
		require.NoError(t, err)

		names := make([]string, 0, len(line))
		for _, e := range line {
			names = append(names, e.PersonName)
		}
		assert.Equal(t, []string{"Alice", "Bob", "Carol"}, names)
	})

	t.Run("ListByAttraction of empty line is empty", func(t *testing.T) {
		s := newStore(t)
		a := mustCreate(t, s, "Zipline")

		line, err := s.Queue().ListByAttraction(ctx, a.ID)

		require.NoError(t, err)
		assert.NotNil(t, line)
		assert.Empty(t, line)
	})

	t.Run("PopHead serves in FIFO order", func(t *testing.T) {
		s := newStore(t)
		a := mustCreate(t, s, "Zipline")
		alice := mustInsert(t, s, a.ID, "Alice")
		bob := mustInsert(t, s, a.ID, "Bob")

		got, depth, err := s.Queue().PopHead(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)
		assert.Equal(t, 1, depth)

		got, depth, err = s.Queue().PopHead(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, bob.ID, got.ID)
		assert.Zero(t, depth)

		_, _, err = s.Queue().PopHead(ctx, a.ID)
		assert.ErrorIs(t, err, domain.ErrEmptyQueue)
	})

	t.Run("ids are never reused", func(t *testing.T) {
		s := newStore(t)
		a := mustCreate(t, s, "Zipline")
		first := mustInsert(t, s, a.ID, "Alice")
		_, _, err := s.Queue().PopHead(ctx, a.ID)
		require.NoError(t, err)

		again := mustInsert(t, s, a.ID, "Alice")

		assert.Greater(t, again.ID, first.ID)
	})

	t.Run("Delete removes from the middle", func(t *testing.T) {
		s := newStore(t)
		a := mustCreate(t, s, "Zipline")
		mustInsert(t, s, a.ID, "Alice")
		bob := mustInsert(t, s, a.ID, "Bob")
		mustInsert(t, s, a.ID, "Carol")

		got, depth, err := s.Queue().Delete(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, "Bob", got.PersonName)
		assert.Equal(t, 2, depth)

		line, err := s.Queue().ListByAttraction(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, line, 2)
		assert.Equal(t, "Alice", line[0].PersonName)
		assert.Equal(t, "Carol", line[1].PersonName)

		_, _, err = s.Queue().Delete(ctx, bob.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("DeleteByAttraction empties one line", func(t *testing.T) {
		s := newStore(t)
		a := mustCreate(t, s, "Zipline")
		b := mustCreate(t, s, "Carousel")
		mustInsert(t, s, a.ID, "Alice")
		mustInsert(t, s, a.ID, "Bob")
		mustInsert(t, s, b.ID, "Xavier")

		n, err := s.Queue().DeleteByAttraction(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.Queue().DeleteByAttraction(ctx, a.ID)
		require.NoError(t, err)
		assert.Zero(t, n, "second purge removes nothing")

		depth, err := s.Queue().Count(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, depth, "other lines untouched")

		_, err = s.Attractions().GetByID(ctx, a.ID)
		assert.NoError(t, err, "attraction survives a purge")
	})

	t.Run("Count and CountAll", func(t *testing.T) {
		s := newStore(t)
		a := mustCreate(t, s, "Zipline")
		b := mustCreate(t, s, "Carousel")
		c := mustCreate(t, s, "Ferris Wheel")
		mustInsert(t, s, a.ID, "Alice")
		mustInsert(t, s, a.ID, "Bob")
		mustInsert(t, s, b.ID, "Xavier")

		n, err := s.Queue().Count(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.Queue().Count(ctx, c.ID)
		require.NoError(t, err)
		assert.Zero(t, n)

		counts, err := s.Queue().CountAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, counts[a.ID])
		assert.Equal(t, 1, counts[b.ID])
		assert.Zero(t, counts[c.ID])
	})

	t.Run("Rank", func(t *testing.T) {
		s := newStore(t)
		a := mustCreate(t, s, "Zipline")
		alice := mustInsert(t, s, a.ID, "Alice")
		bob := mustInsert(t, s, a.ID, "Bob")
		carol := mustInsert(t, s, a.ID, "Carol")

		for want, e := range []domain.QueueEntry{alice, bob, carol} {
			got, err := s.Queue().Rank(ctx, e)
			require.NoError(t, err)
			assert.Equal(t, want, got, "rank of %s", e.PersonName)
		}

		_, _, err := s.Queue().Delete(ctx, alice.ID)
		require.NoError(t, err)

		got, err := s.Queue().Rank(ctx, carol)
		require.NoError(t, err)
		assert.Equal(t, 1, got, "rank moves up after a removal ahead")

		_, err = s.Queue().Rank(ctx, alice)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

var errAbort = errors.New("abort")

func runInTx(t *testing.T, newStore NewStoreFunc, opts Options) {
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		s := newStore(t)
		var created domain.Attraction

		err := s.InTx(ctx, func(r repo.Repos) error {
			var err error
			created, err = r.Attractions().Create(ctx, attractionFixture("Zipline"))
			if err != nil {
				return err
			}
			_, _, err = r.Queue().Insert(ctx, created.ID, "Alice")
			return err
		})
		require.NoError(t, err)

		n, err := s.Queue().Count(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("fn error is returned unchanged", func(t *testing.T) {
		s := newStore(t)

		err := s.InTx(ctx, func(repo.Repos) error { return errAbort })

		assert.ErrorIs(t, err, errAbort)
	})

	t.Run("rollback", func(t *testing.T) {
		if !opts.Transactional {
			t.Skip("backend does not roll back multi-step units of work")
		}
		s := newStore(t)
		a := mustCreate(t, s, "Zipline")
		alice := mustInsert(t, s, a.ID, "Alice")
		mustInsert(t, s, a.ID, "Bob")

		err := s.InTx(ctx, func(r repo.Repos) error {
			if _, _, err := r.Queue().PopHead(ctx, a.ID); err != nil {
				return err
			}
			if _, _, err := r.Queue().Insert(ctx, a.ID, "Carol"); err != nil {
				return err
			}
			upd := a
			upd.Name = "Renamed"
			if _, err := r.Attractions().Update(ctx, upd); err != nil {
				return err
			}
			if _, err := r.Attractions().Create(ctx, attractionFixture("Carousel")); err != nil {
				return err
			}
			return errAbort
		})
		require.ErrorIs(t, err, errAbort)

		line, err := s.Queue().ListByAttraction(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, line, 2)
		assert.Equal(t, alice.ID, line[0].ID, "popped head restored in place")
		assert.Equal(t, "Bob", line[1].PersonName)

		got, err := s.Attractions().GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "Zipline", got.Name)

		_, err = s.Attractions().FindByName(ctx, "Carousel")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("rollback of a delete", func(t *testing.T) {
		if !opts.Transactional {
			t.Skip("backend does not roll back multi-step units of work")
		}
		s := newStore(t)
		a := mustCreate(t, s, "Zipline")
		mustInsert(t, s, a.ID, "Alice")

		err := s.InTx(ctx, func(r repo.Repos) error {
			if _, err := r.Attractions().Delete(ctx, a.ID); err != nil {
				return err
			}
			return errAbort
		})
		require.ErrorIs(t, err, errAbort)

		_, err = s.Attractions().GetByID(ctx, a.ID)
		assert.NoError(t, err)
		n, err := s.Queue().Count(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}
