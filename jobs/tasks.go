package jobs

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-wms/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskLedgerIntegrity scans the ledger for container rows booked at the
	// wrong location and for COUNTING locks no open count holds.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskCountsStaleScan reports inventory counts left open too long.
	TaskCountsStaleScan = "counts:stale-scan"
	// TaskIdempotencyCleanup drops expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ErrUnknownTask is returned by NewTask for names the worker does not handle.
var ErrUnknownTask = errors.New("jobs: unknown task")

// LedgerIntegrityPayload configures an integrity scan.
type LedgerIntegrityPayload struct {
	// Repair releases orphaned COUNTING locks instead of only reporting them.
	Repair bool `json:"repair"`
}

// NewLedgerIntegrityTask constructs an Asynq task for the integrity scan.
func NewLedgerIntegrityTask(repair bool) (*asynq.Task, error) {
	body, err := json.Marshal(LedgerIntegrityPayload{Repair: repair})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body, asynq.Queue(QueueDefault)), nil
}

// NewCountsStaleScanTask constructs an Asynq task for the stale count scan.
func NewCountsStaleScanTask() *asynq.Task {
	return asynq.NewTask(TaskCountsStaleScan, nil, asynq.Queue(QueueDefault))
}

// NewIdempotencyCleanupTask constructs an Asynq task for key expiry.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault))
}

// NewTask builds a task by type name, as used by the trigger CLI and endpoint.
func NewTask(name string, repair bool) (*asynq.Task, error) {
	switch name {
	case TaskLedgerIntegrity:
		return NewLedgerIntegrityTask(repair)
	case TaskCountsStaleScan:
		return NewCountsStaleScanTask(), nil
	case TaskIdempotencyCleanup:
		return NewIdempotencyCleanupTask(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
}

// TaskNames lists every task the worker handles.
func TaskNames() []string {
	return []string{TaskLedgerIntegrity, TaskCountsStaleScan, TaskIdempotencyCleanup}
}
