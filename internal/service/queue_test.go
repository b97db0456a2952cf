package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/attraction-queue/internal/domain"
	"github.com/pkordes/attraction-queue/internal/service"
)

func TestQueueManager_ZiplineScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	zip := f.mustCreate(t, "Zipline", 4)

	ana := f.mustEnqueue(t, zip.ID, "Ana")
	assert.Equal(t, 1, ana.Status.Depth)
	assert.Equal(t, 4, ana.Status.EstimatedWait)

	bo := f.mustEnqueue(t, zip.ID, "Bo")
	assert.Equal(t, 2, bo.Status.Depth)
	assert.Equal(t, 8, bo.Status.EstimatedWait)

	next, err := f.queues.DequeueNext(ctx, zip.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", next.Entry.PersonName)
	assert.Equal(t, 1, next.Status.Depth)
	assert.Equal(t, 4, next.Status.EstimatedWait)

	cleared, err := f.queues.Clear(ctx, zip.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared.Removed)

	status, err := f.queues.Status(ctx, zip.ID)
	require.NoError(t, err)
	assert.Zero(t, status.Depth)
	assert.Zero(t, status.EstimatedWait)

	assert.Equal(t, 1, f.rec.removed[domain.EntryServed])
	assert.Equal(t, 1, f.rec.removed[domain.EntryPurged])
	assert.Equal(t, 0, f.rec.depths[zip.ID])
}

func TestQueueManager_Enqueue_NameValidation(t *testing.T) {
	f := newFixture(t)
	a := f.mustCreate(t, "Zipline", 4)

	tests := []struct {
		input   string
		want    string
		wantErr error
	}{
		{input: " A ", wantErr: domain.ErrInvalidName},
		{input: "   ", wantErr: domain.ErrInvalidName},
		{input: "", wantErr: domain.ErrInvalidName},
		{input: " Jo ", want: "Jo"},
		{input: "Żó", want: "Żó"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := f.queues.Enqueue(context.Background(), a.ID, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Entry.PersonName)
		})
	}
}

func TestQueueManager_Enqueue_UnknownAttraction(t *testing.T) {
	f := newFixture(t)

	_, err := f.queues.Enqueue(context.Background(), 404, "Ana")

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, []string{"not_found"}, f.rec.ops[service.OpEnqueue])
}

func TestQueueManager_Enqueue_OnlyTouchesItsAttraction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreate(t, "Zipline", 4)
	b := f.mustCreate(t, "Carousel", 2)
	f.mustEnqueue(t, b.ID, "Xi")

	f.mustEnqueue(t, a.ID, "Ana")

	depth, err := f.queues.Depth(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestQueueManager_FIFO(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreate(t, "Zipline", 3)
	names := []string{"Ana", "Bo", "Cy", "Di", "Ed", "Flo"}
	for _, n := range names {
		f.mustEnqueue(t, a.ID, n)
		f.assertWaitInvariant(t, a.ID)
	}

	entries, err := f.queues.ListEntries(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, entries, len(names))
	for i, e := range entries {
		assert.Equal(t, names[i], e.PersonName)
	}

	for i, want := range names {
		got, err := f.queues.DequeueNext(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got.Entry.PersonName)
		assert.Equal(t, len(names)-i-1, got.Status.Depth, "depth drops by one per dequeue")
		f.assertWaitInvariant(t, a.ID)
	}

	_, err = f.queues.DequeueNext(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrEmptyQueue)
}

func TestQueueManager_DequeueNext_UnknownAttraction(t *testing.T) {
	f := newFixture(t)

	_, err := f.queues.DequeueNext(context.Background(), 404)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQueueManager_DequeueByID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreate(t, "Zipline", 4)
	f.mustEnqueue(t, a.ID, "Ana")
	bo := f.mustEnqueue(t, a.ID, "Bo")
	f.mustEnqueue(t, a.ID, "Cy")

	got, err := f.queues.DequeueByID(ctx, bo.Entry.ID)

	require.NoError(t, err)
	assert.Equal(t, a.ID, got.Entry.AttractionID, "caller learns which attraction the entry belonged to")
	assert.Equal(t, "Bo", got.Entry.PersonName)
	assert.Equal(t, 2, got.Status.Depth)
	assert.Equal(t, 8, got.Status.EstimatedWait)

	entries, err := f.queues.ListEntries(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Ana", entries[0].PersonName)
	assert.Equal(t, "Cy", entries[1].PersonName)

	_, err = f.queues.DequeueByID(ctx, bo.Entry.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "an entry is served at most once")
}

func TestQueueManager_DequeueByID_Unknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.queues.DequeueByID(context.Background(), 404)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQueueManager_Clear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreate(t, "Zipline", 4)

	t.Run("empty queue succeeds with zero removed", func(t *testing.T) {
		got, err := f.queues.Clear(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.AttractionID)
		assert.Zero(t, got.Removed)
	})

	t.Run("removes every entry", func(t *testing.T) {
		f.mustEnqueue(t, a.ID, "Ana")
		f.mustEnqueue(t, a.ID, "Bo")

		got, err := f.queues.Clear(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Removed)
		f.assertWaitInvariant(t, a.ID)
	})

	t.Run("unknown attraction", func(t *testing.T) {
		_, err := f.queues.Clear(ctx, 404)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestQueueManager_ReadsOfUnknownAttraction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.queues.Depth(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.queues.EstimatedWait(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.queues.ListEntries(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.queues.Status(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQueueManager_ListEntries_EmptyIsNotNil(t *testing.T) {
	f := newFixture(t)
	a := f.mustCreate(t, "Zipline", 4)

	got, err := f.queues.ListEntries(context.Background(), a.ID)

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestQueueManager_Line(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreate(t, "Zipline", 4)
	f.mustEnqueue(t, a.ID, "Ana")
	f.mustEnqueue(t, a.ID, "Bo")

	got, err := f.queues.Line(ctx, a.ID)

	require.NoError(t, err)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, "Ana", got.Entries[0].PersonName)
	assert.Equal(t, 2, got.Status.Depth)
	assert.Equal(t, 8, got.Status.EstimatedWait)

	_, err = f.queues.Line(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQueueManager_Position(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreate(t, "Zipline", 4)
	ana := f.mustEnqueue(t, a.ID, "Ana")
	bo := f.mustEnqueue(t, a.ID, "Bo")

	got, err := f.queues.Position(ctx, bo.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Position)
	assert.Equal(t, 2, got.Depth)
	assert.Equal(t, bo.Status.EstimatedWait, got.EstimatedWait, "matches the wait reported on enqueue")

	_, err = f.queues.DequeueNext(ctx, a.ID)
	require.NoError(t, err)

	got, err = f.queues.Position(ctx, bo.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Position)
	assert.Equal(t, 4, got.EstimatedWait)

	_, err = f.queues.Position(ctx, ana.Entry.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQueueManager_IDsAreNeverReused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreate(t, "Zipline", 4)
	first := f.mustEnqueue(t, a.ID, "Ana")
	_, err := f.queues.DequeueByID(ctx, first.Entry.ID)
	require.NoError(t, err)

	again := f.mustEnqueue(t, a.ID, "Ana")

	assert.Greater(t, again.Entry.ID, first.Entry.ID)
}

// ---- concurrency -----------------------------------------------------------

func TestQueueManager_ConcurrentEnqueuesKeepEveryEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreate(t, "Zipline", 4)

	const n = 50
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[int64]bool{}
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.queues.Enqueue(ctx, a.ID, "Guest")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[res.Entry.ID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, n, "ids must be distinct")
	depth, err := f.queues.Depth(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, n, depth)
	f.assertWaitInvariant(t, a.ID)
}

func TestQueueManager_ConcurrentDequeuesServeEachEntryOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreate(t, "Zipline", 4)
	b := f.mustCreate(t, "Carousel", 2)

	const n = 40
	var wg sync.WaitGroup
	for range n {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.queues.Enqueue(ctx, a.ID, "Guest A")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := f.queues.Enqueue(ctx, b.ID, "Guest B")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	f.assertWaitInvariant(t, a.ID)

	var (
		mu     sync.Mutex
		served = map[int64]int{}
	)
	for range n + 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.queues.DequeueNext(ctx, a.ID)
			if errors.Is(err, domain.ErrEmptyQueue) {
				return
			}
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			served[res.Entry.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, served, n, "every entry served")
	for id, count := range served {
		assert.Equal(t, 1, count, "entry %d served more than once", id)
	}

	depth, err := f.queues.Depth(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, n, depth, "other attraction untouched")
}

func TestQueueManager_DeleteRacingEnqueueLeavesNoOrphans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreate(t, "Zipline", 4)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		enqueued []int64
	)
	for range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.queues.Enqueue(ctx, a.ID, "Guest")
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrNotFound, "enqueue either lands or sees the deletion")
				return
			}
			mu.Lock()
			enqueued = append(enqueued, res.Entry.ID)
			mu.Unlock()
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.registry.Delete(ctx, a.ID)
		assert.NoError(t, err)
	}()
	wg.Wait()

	for _, id := range enqueued {
		_, err := f.queues.Position(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound, "entry %d outlived its attraction", id)
	}
	n, err := f.store.Queue().Count(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
