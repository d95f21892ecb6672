// Package store defines the domain store the reconciliation engine writes to.
package store

import (
	"context"
	"errors"
	"time"

	"sftsync/internal/model"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// RunLogFilter selects sync run logs for pruning.
type RunLogFilter struct {
	Trigger model.Trigger
	Status  model.RunStatus
	Before  time.Time
}

// Store is the read side used outside a log's transaction plus the
// transaction entry point.
type Store interface {
	// ListFunds returns every fund with its default packages.
	ListFunds(ctx context.Context) ([]model.Fund, error)
	// LatestEventLog returns the event log row with the highest
	// (block number, log index, id). ok is false when none exist.
	LatestEventLog(ctx context.Context) (record model.EventLogRecord, ok bool, err error)
	// DeleteRunLogs removes run logs matching filter and reports how many.
	DeleteRunLogs(ctx context.Context, filter RunLogFilter) (int64, error)
	// CreateRunLog persists a run summary and fills its ID and CreatedAt.
	CreateRunLog(ctx context.Context, run *model.SyncRunLog) error
	// WithinTx runs fn in a transaction, committing when fn returns nil.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx holds the per-log read-then-write operations. Address and token id
// lookups compare case-insensitively.
type Tx interface {
	CreateEventLog(ctx context.Context, record *model.EventLogRecord) error
	FindToken(ctx context.Context, contractAddress, tokenID string) (model.Token, error)
	CreateToken(ctx context.Context, token *model.Token) error
	UpdateToken(ctx context.Context, token model.Token) error
	FindWalletByAddress(ctx context.Context, address string) (model.Wallet, error)
	FindReferralByUser(ctx context.Context, userID int64) (model.Referral, error)
	UpdateReferralStakedValue(ctx context.Context, referralID int64, stakedValue int64) error
	CreateClaimedReward(ctx context.Context, record *model.ClaimedRewardRecord) error
}

// EarningRecorder records user progression for awarded experience.
type EarningRecorder interface {
	LogEarningRecord(ctx context.Context, record model.EarningRecord) error
}

// Locker guards a named critical section across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
