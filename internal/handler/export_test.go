package handler_test

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/attraction-queue/internal/domain"
	"github.com/pkordes/attraction-queue/internal/handler"
)

func exportMock(rows []domain.BoardRow) *mockQueueServicer {
	return &mockQueueServicer{
		export: func(context.Context) ([]domain.BoardRow, error) { return rows, nil },
	}
}

// boardFixture returns one empty attraction and one with a single entry.
func boardFixture() []domain.BoardRow {
	at := time.Date(2025, 7, 4, 10, 0, 0, 0, time.UTC)
	return []domain.BoardRow{
		{AttractionID: 2, AttractionName: "Carousel", ServiceDuration: 2},
		{
			AttractionID: 7, AttractionName: "Zipline", ServiceDuration: 4, Depth: 1,
			Position: 1, EntryID: 11, PersonName: "Ana", EnqueuedAt: &at, EstimatedWait: 4,
		},
	}
}

// ---- GET /export: JSON -----------------------------------------------------

func TestGetExport_DefaultJSON_EmptyResult(t *testing.T) {
	rec := do(t, newHTTPHandler(nil, exportMock([]domain.BoardRow{})), http.MethodGet, "/export", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetExport_DefaultJSON_OmitsEntryFieldsForEmptyLine(t *testing.T) {
	rec := do(t, newHTTPHandler(nil, exportMock(boardFixture())), http.MethodGet, "/export", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]handler.BoardRow](t, rec)
	require.Len(t, rows, 2)

	assert.Equal(t, "Carousel", rows[0].AttractionName)
	assert.Nil(t, rows[0].EntryID)
	assert.Nil(t, rows[0].Position)
	assert.Nil(t, rows[0].EnqueuedAt)

	require.NotNil(t, rows[1].EntryID)
	assert.Equal(t, int64(11), *rows[1].EntryID)
	assert.Equal(t, "Ana", *rows[1].PersonName)
	assert.Equal(t, 4, *rows[1].EstimatedWait)
}

// ---- GET /export?format=csv ------------------------------------------------

func TestGetExport_CSV(t *testing.T) {
	rec := do(t, newHTTPHandler(nil, exportMock(boardFixture())), http.MethodGet, "/export?format=csv", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header plus two rows")

	assert.Equal(t, "attraction_id", records[0][0])
	assert.Equal(t, []string{"2", "Carousel", "2", "0", "", "", "", "", ""}, records[1])
	assert.Equal(t, []string{"7", "Zipline", "4", "1", "1", "11", "Ana", "2025-07-04T10:00:00Z", "4"}, records[2])
}

func TestGetExport_400_UnknownFormat(t *testing.T) {
	rec := do(t, newHTTPHandler(nil, &mockQueueServicer{}), http.MethodGet, "/export?format=xml", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetExport_503_StorageError(t *testing.T) {
	queues := &mockQueueServicer{
		export: func(context.Context) ([]domain.BoardRow, error) {
			return nil, fmt.Errorf("service.QueueManager.Export: %w: %w", domain.ErrStorage, errors.New("timeout"))
		},
	}

	rec := do(t, newHTTPHandler(nil, queues), http.MethodGet, "/export", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
