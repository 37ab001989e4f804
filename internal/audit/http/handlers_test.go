package audithttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-wms/internal/audit"
)

type stubTimelineService struct {
	result      audit.Result
	lastFilters audit.TimelineFilters
	calls       int
}

func (s *stubTimelineService) Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.calls++
	s.lastFilters = filters
	return s.result, nil
}

func newRouter(service *stubTimelineService) http.Handler {
	h := NewHandler(nil, service)
	h.now = func() time.Time { return time.Date(2026, 3, 20, 15, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Route("/audit", h.MountRoutes)
	return r
}

func TestTimelineDefaultsToLastWeek(t *testing.T) {
	svc := &stubTimelineService{result: audit.Result{Rows: []audit.Record{}, Paging: audit.PagingInfo{Page: 1, PageSize: 20}}}
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC), svc.lastFilters.From)
	assert.Equal(t, time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC), svc.lastFilters.To)
	assert.Equal(t, 1, svc.lastFilters.Page)
	assert.Equal(t, defaultPageSize, svc.lastFilters.PageSize)
	assert.JSONEq(t, `{"rows":[],"paging":{"page":1,"page_size":20,"has_next":false}}`, rec.Body.String())
}

func TestTimelineFilters(t *testing.T) {
	svc := &stubTimelineService{}
	rec := httptest.NewRecorder()
	url := "/audit?from=2026-03-01&to=2026-03-02&actor_id=42&entity=document&entity_id=7&action=doc_confirm&page=2&page_size=500"
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	f := svc.lastFilters
	assert.Equal(t, int64(42), f.ActorID)
	assert.Equal(t, "document", f.Entity)
	assert.Equal(t, "7", f.EntityID)
	assert.Equal(t, string(audit.ActionDocConfirm), f.Action)
	assert.Equal(t, 2, f.Page)
	assert.Equal(t, maxPageSize, f.PageSize)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), f.To)
}

func TestTimelineRejectsBadQueries(t *testing.T) {
	for _, query := range []string{
		"to=yesterday",
		"from=2026-03-10&to=2026-03-01",
		"from=2025-01-01&to=2026-03-01",
		"page=0",
		"page_size=x",
		"actor_id=-3",
	} {
		svc := &stubTimelineService{}
		rec := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit?"+query, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
		assert.Zero(t, svc.calls, query)
	}
}
