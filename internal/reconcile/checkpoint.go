package reconcile

import (
	"context"
	"fmt"
	"time"

	"sftsync/internal/model"
	"sftsync/internal/store"
)

// CheckpointStore derives the resume cursor from the event log table and
// prunes old run logs.
type CheckpointStore struct {
	store store.Store
}

func NewCheckpointStore(s store.Store) *CheckpointStore {
	return &CheckpointStore{store: s}
}

// Current returns the position of the latest event log row, or (0, 0).
func (c *CheckpointStore) Current(ctx context.Context) (model.Checkpoint, error) {
	record, ok, err := c.store.LatestEventLog(ctx)
	if err != nil {
		return model.Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}
	if !ok {
		return model.Checkpoint{}, nil
	}
	return model.CheckpointOf(record), nil
}

// PruneStaleRuns deletes run logs with trigger and status created before olderThan.
func (c *CheckpointStore) PruneStaleRuns(ctx context.Context, olderThan time.Time, trigger model.Trigger, status model.RunStatus) (int64, error) {
	deleted, err := c.store.DeleteRunLogs(ctx, store.RunLogFilter{
		Trigger: trigger,
		Status:  status,
		Before:  olderThan,
	})
	if err != nil {
		return 0, fmt.Errorf("prune run logs: %w", err)
	}
	return deleted, nil
}
