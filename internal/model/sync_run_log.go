package model

import "time"

// Trigger labels what started a sync run.
type Trigger string

const (
	TriggerManual  Trigger = "Manual"
	TriggerCronJob Trigger = "CronJob"
)

// RunStatus is the terminal state of a sync run.
type RunStatus string

const (
	RunStatusFulfilled RunStatus = "Fulfilled"
	RunStatusRejected  RunStatus = "Rejected"
)

// SyncRunLog is the single summary row written per sync invocation.
type SyncRunLog struct {
	ID                             int64     `json:"id"`
	Trigger                        Trigger   `json:"trigger"`
	Message                        string    `json:"message"`
	LatestTokenEventLogBlockNumber uint64    `json:"latest_token_event_log_block_number"`
	LatestTokenEventLogIndex       uint64    `json:"latest_token_event_log_index"`
	TotalSynced                    int       `json:"total_synced"`
	Status                         RunStatus `json:"status"`
	CreatedAt                      time.Time `json:"created_at"`
}
