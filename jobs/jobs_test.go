package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-wms/internal/counts"
	jobmetrics "github.com/odyssey-erp/odyssey-wms/internal/jobs"
	"github.com/odyssey-erp/odyssey-wms/internal/ledger"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
	"github.com/odyssey-erp/odyssey-wms/internal/testing/memstore"
)

type fakeIntegritySource struct {
	misplaced []ledger.StockRow
	orphans   []int64
	released  []int64
	err       error
}

func (f *fakeIntegritySource) MisplacedContainerRows(context.Context) ([]ledger.StockRow, error) {
	return f.misplaced, f.err
}

func (f *fakeIntegritySource) OrphanLocks(context.Context) ([]int64, error) {
	return f.orphans, nil
}

func (f *fakeIntegritySource) ReleaseOrphanLock(ctx context.Context, id int64) (bool, error) {
	f.released = append(f.released, id)
	return id != 13, nil
}

func testMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

func TestLedgerIntegrityReportsWithoutRepair(t *testing.T) {
	container := int64(9)
	src := &fakeIntegritySource{
		misplaced: []ledger.StockRow{{ID: 1, ProductID: 2, LocationID: 3, ContainerID: &container, Qty: 4}},
		orphans:   []int64{11, 12},
	}
	job := NewLedgerIntegrityJob(src, nil, testMetrics())

	report, err := job.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, report.Misplaced, 1)
	assert.Equal(t, []int64{11, 12}, report.Orphans)
	assert.Empty(t, report.Released)
	assert.Empty(t, src.released)
}

func TestLedgerIntegrityRepairsOrphans(t *testing.T) {
	src := &fakeIntegritySource{orphans: []int64{11, 13}}
	job := NewLedgerIntegrityJob(src, nil, testMetrics())

	task, err := NewLedgerIntegrityTask(true)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, []int64{11, 13}, src.released)

	report, err := job.Run(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, report.Released, "a location relocked meanwhile is not reported as released")
}

func TestLedgerIntegrityCountsFindings(t *testing.T) {
	reg := prometheus.NewRegistry()
	container := int64(4)
	src := &fakeIntegritySource{
		misplaced: []ledger.StockRow{{ID: 1, ProductID: 2, LocationID: 3, ContainerID: &container, Qty: 2}},
		orphans:   []int64{7},
	}
	job := NewLedgerIntegrityJob(src, nil, jobmetrics.NewMetrics(reg))

	_, err := job.Run(context.Background(), false)
	require.NoError(t, err)

	expected := `
# HELP odyssey_job_findings_total Problems detected by maintenance jobs grouped by job and kind.
# TYPE odyssey_job_findings_total counter
odyssey_job_findings_total{job="ledger:integrity",kind="container_mismatch"} 1
odyssey_job_findings_total{job="ledger:integrity",kind="orphan_lock"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "odyssey_job_findings_total"))
}

func TestLedgerIntegrityPropagatesErrors(t *testing.T) {
	job := NewLedgerIntegrityJob(&fakeIntegritySource{err: errors.New("db down")}, nil, testMetrics())
	_, err := job.Run(context.Background(), false)
	require.EqualError(t, err, "db down")

	var unset *LedgerIntegrityJob
	require.Error(t, unset.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, nil)))
}

func TestStaleCountScan(t *testing.T) {
	ctx := shared.ContextWithActor(context.Background(), 1)
	store := memstore.New()
	f, err := store.Seed(ctx)
	require.NoError(t, err)
	svc := counts.NewService(store.Counts(), counts.Options{}, nil)

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	var ids []int64
	for _, loc := range []int64{f.A1.ID, f.A2.ID, f.A3.ID} {
		c, err := svc.Create(ctx, counts.CreateRequest{WarehouseID: f.Warehouse.ID, Name: "night", LocationIDs: []int64{loc}})
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}
	store.SetCountUpdatedAt(ids[0], now.Add(-72*time.Hour))
	store.SetCountUpdatedAt(ids[1], now.Add(-49*time.Hour))
	store.SetCountUpdatedAt(ids[2], now.Add(-time.Hour))
	closed, err := svc.Cancel(ctx, ids[1])
	require.NoError(t, err)
	store.SetCountUpdatedAt(closed.ID, now.Add(-49*time.Hour))

	job := NewStaleCountScanJob(svc, 48*time.Hour, nil, testMetrics())
	job.clock = func() time.Time { return now }

	stale, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, ids[0], stale[0].ID)

	job.StaleAfter = 0
	_, err = job.Run(context.Background())
	require.Error(t, err)
}

type fakeCleaner struct {
	retention time.Duration
	err       error
}

func (f *fakeCleaner) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.retention = olderThan
	return 3, f.err
}

func TestIdempotencyCleanup(t *testing.T) {
	cleaner := &fakeCleaner{}
	job := NewIdempotencyCleanupJob(cleaner, 24*time.Hour, nil, testMetrics())
	require.NoError(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
	assert.Equal(t, 24*time.Hour, cleaner.retention)

	cleaner.err = errors.New("timeout")
	require.Error(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
}

func TestNewTask(t *testing.T) {
	for _, name := range TaskNames() {
		task, err := NewTask(name, false)
		require.NoError(t, err)
		assert.Equal(t, name, task.Type())
	}
	_, err := NewTask("mail:send", false)
	require.ErrorIs(t, err, ErrUnknownTask)
}

type fakeEnqueuer struct{ names []string }

func (f *fakeEnqueuer) Enqueue(ctx context.Context, name string, repair bool) (*asynq.TaskInfo, error) {
	if _, err := NewTask(name, repair); err != nil {
		return nil, err
	}
	f.names = append(f.names, name)
	return &asynq.TaskInfo{ID: "t-1", Queue: QueueDefault, Type: name}, nil
}

func TestHandlerTriggerAndHealth(t *testing.T) {
	enq := &fakeEnqueuer{}
	r := chi.NewRouter()
	NewHandler(nil, enq, nil).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ledger:integrity?repair=true", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{TaskLedgerIntegrity}, enq.names)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mail:send", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0}`, rec.Body.String())
}
