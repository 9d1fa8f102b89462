package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailpos/internal/app"
	"retailpos/internal/core/entity"
	"retailpos/internal/domain"
	"retailpos/internal/domain/documents"
	"retailpos/internal/domain/posting"
	"retailpos/internal/domain/revision"
)

func TestObserveRequest(t *testing.T) {
	m := New()

	m.ObserveRequest(http.MethodPost, "/api/v1/documents", http.StatusCreated, 20*time.Millisecond)
	m.ObserveRequest(http.MethodPost, "/api/v1/documents", http.StatusCreated, 30*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodPost, "/api/v1/documents", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "unmatched", "404")))
}

func TestObserveRequest_NilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	})
}

func TestAttach_CountsCommittedOperations(t *testing.T) {
	ctx := context.Background()
	e, _, _ := app.NewMemory(posting.DefaultAccounts())
	m := New()
	m.Attach(e)

	finalized := &documents.Result{
		Movements: make([]entity.StockMovement, 2),
		Warning:   &posting.Warning{Code: posting.CodeLedgerPostingFailed},
	}
	require.NoError(t, e.Documents.Hooks().Run(ctx, domain.AfterFinalize, finalized))
	require.NoError(t, e.Revisions.Hooks().Run(ctx, domain.AfterAmend, &revision.Result{
		Movements: make([]entity.StockMovement, 1),
	}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues(OperationFinalize)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.stockMovements.WithLabelValues(OperationFinalize)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.postingWarnings.WithLabelValues(OperationFinalize)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues(OperationAmend)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.postingWarnings.WithLabelValues(OperationAmend)))
}

func TestHandler_ServesRegistry(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/health/live", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "retailpos_http_requests_total")
}
