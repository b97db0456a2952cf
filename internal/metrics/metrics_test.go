package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/attraction-queue/internal/domain"
	"github.com/pkordes/attraction-queue/internal/metrics"
	"github.com/pkordes/attraction-queue/internal/service"
)

// compile-time check: Metrics must satisfy service.Recorder.
var _ service.Recorder = (*metrics.Metrics)(nil)

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetrics_ObserveOperation(t *testing.T) {
	m := metrics.New()

	m.ObserveOperation(service.OpEnqueue, nil, 2*time.Millisecond)
	m.ObserveOperation(service.OpEnqueue, nil, 3*time.Millisecond)
	m.ObserveOperation(service.OpEnqueue, domain.ErrInvalidName, time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `attraction_queue_operations_total{operation="enqueue",outcome="ok"} 2`)
	assert.Contains(t, body, `attraction_queue_operations_total{operation="enqueue",outcome="invalid_name"} 1`)
	assert.Contains(t, body, `attraction_queue_operation_duration_seconds_count{operation="enqueue"} 3`)
}

func TestMetrics_DepthAndForget(t *testing.T) {
	m := metrics.New()

	m.SetDepth(7, 3)
	m.SetDepth(8, 1)
	assert.Contains(t, scrape(t, m), `attraction_queue_queue_depth{attraction_id="7"} 3`)

	m.ForgetAttraction(7)
	body := scrape(t, m)
	assert.NotContains(t, body, `attraction_id="7"`)
	assert.Contains(t, body, `attraction_queue_queue_depth{attraction_id="8"} 1`)
}

func TestMetrics_EntriesRemoved(t *testing.T) {
	m := metrics.New()

	m.EntriesRemoved(domain.EntryServed, 1)
	m.EntriesRemoved(domain.EntryPurged, 3)
	m.EntriesRemoved(domain.EntryPurged, 0)

	expected := `
# HELP attraction_queue_entries_removed_total Queue entries that left the line, by terminal state.
# TYPE attraction_queue_entries_removed_total counter
attraction_queue_entries_removed_total{state="purged"} 3
attraction_queue_entries_removed_total{state="served"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Gatherer(), strings.NewReader(expected),
		"attraction_queue_entries_removed_total"))
}

func TestMetrics_Middleware_UsesRoutePattern(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/attractions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, path := range []string{"/attractions/1", "/attractions/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t, m)
	assert.Contains(t, body, `attraction_queue_http_requests_total{method="GET",route="/attractions/{id}",status="404"} 2`)
	assert.Contains(t, body, `attraction_queue_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
}

func TestMetrics_ErrorKindsAsOutcome(t *testing.T) {
	m := metrics.New()

	m.ObserveOperation(service.OpClear, errors.Join(domain.ErrStorage, errors.New("io")), time.Millisecond)

	assert.Contains(t, scrape(t, m), `outcome="storage_error"`)
}
