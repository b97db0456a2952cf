package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pkordes/attraction-queue/internal/domain"
	"github.com/pkordes/attraction-queue/internal/handler"
)

// mockAttractionServicer is a test double for handler.AttractionServicer.
// Set only the method fields your test needs.
type mockAttractionServicer struct {
	create func(ctx context.Context, name, description string, serviceDuration int) (domain.Attraction, error)
	detail func(ctx context.Context, id int64) (domain.AttractionDetail, error)
	list   func(ctx context.Context) ([]domain.AttractionSummary, error)
	update func(ctx context.Context, id int64, name, description string, serviceDuration int) (domain.Attraction, error)
	delete func(ctx context.Context, id int64) (int, error)
}

func (m *mockAttractionServicer) Create(ctx context.Context, name, description string, serviceDuration int) (domain.Attraction, error) {
	return m.create(ctx, name, description, serviceDuration)
}
func (m *mockAttractionServicer) Detail(ctx context.Context, id int64) (domain.AttractionDetail, error) {
	return m.detail(ctx, id)
}
func (m *mockAttractionServicer) List(ctx context.Context) ([]domain.AttractionSummary, error) {
	return m.list(ctx)
}
func (m *mockAttractionServicer) Update(ctx context.Context, id int64, name, description string, serviceDuration int) (domain.Attraction, error) {
	return m.update(ctx, id, name, description, serviceDuration)
}
func (m *mockAttractionServicer) Delete(ctx context.Context, id int64) (int, error) {
	return m.delete(ctx, id)
}

// compile-time check: mockAttractionServicer must satisfy handler.AttractionServicer.
var _ handler.AttractionServicer = (*mockAttractionServicer)(nil)

// mockQueueServicer is a test double for handler.QueueServicer.
type mockQueueServicer struct {
	enqueue     func(ctx context.Context, attractionID int64, personName string) (domain.EnqueueResult, error)
	dequeueNext func(ctx context.Context, attractionID int64) (domain.DequeueResult, error)
	dequeueByID func(ctx context.Context, entryID int64) (domain.DequeueResult, error)
	clear       func(ctx context.Context, attractionID int64) (domain.ClearResult, error)
	status      func(ctx context.Context, attractionID int64) (domain.QueueStatus, error)
	line        func(ctx context.Context, attractionID int64) (domain.Line, error)
	position    func(ctx context.Context, entryID int64) (domain.Position, error)
	export      func(ctx context.Context) ([]domain.BoardRow, error)
}

func (m *mockQueueServicer) Enqueue(ctx context.Context, attractionID int64, personName string) (domain.EnqueueResult, error) {
	return m.enqueue(ctx, attractionID, personName)
}
func (m *mockQueueServicer) DequeueNext(ctx context.Context, attractionID int64) (domain.DequeueResult, error) {
	return m.dequeueNext(ctx, attractionID)
}
func (m *mockQueueServicer) DequeueByID(ctx context.Context, entryID int64) (domain.DequeueResult, error) {
	return m.dequeueByID(ctx, entryID)
}
func (m *mockQueueServicer) Clear(ctx context.Context, attractionID int64) (domain.ClearResult, error) {
	return m.clear(ctx, attractionID)
}
func (m *mockQueueServicer) Status(ctx context.Context, attractionID int64) (domain.QueueStatus, error) {
	return m.status(ctx, attractionID)
}
func (m *mockQueueServicer) Line(ctx context.Context, attractionID int64) (domain.Line, error) {
	return m.line(ctx, attractionID)
}
func (m *mockQueueServicer) Position(ctx context.Context, entryID int64) (domain.Position, error) {
	return m.position(ctx, entryID)
}
func (m *mockQueueServicer) Export(ctx context.Context) ([]domain.BoardRow, error) {
	return m.export(ctx)
}

// compile-time check: mockQueueServicer must satisfy handler.QueueServicer.
var _ handler.QueueServicer = (*mockQueueServicer)(nil)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// ---- helpers ---------------------------------------------------------------

// newHTTPHandler wires a Server with the given mocks into a chi router.
// Either mock may be nil when the test does not reach it.
func newHTTPHandler(attractions handler.AttractionServicer, queues handler.QueueServicer) http.Handler {
	return handler.NewServer(attractions, queues, nil, nil).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func errorDetail(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorDetail {
	t.Helper()
	return decode[handler.ErrorResponse](t, rec).Error
}

func attractionFixture() domain.Attraction {
	now := time.Date(2025, 7, 4, 10, 0, 0, 0, time.UTC)
	return domain.Attraction{
		ID:              7,
		Name:            "Zipline",
		Description:     "Across the lake",
		ServiceDuration: 4,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func entryFixture(id int64, name string) domain.QueueEntry {
	return domain.QueueEntry{
		ID:           id,
		AttractionID: 7,
		PersonName:   name,
		EnqueuedAt:   time.Date(2025, 7, 4, 10, 0, int(id), 0, time.UTC),
	}
}
