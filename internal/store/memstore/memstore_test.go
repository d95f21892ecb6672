package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sftsync/internal/model"
	"sftsync/internal/store"
)

func TestWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.AddToken(model.Token{ContractAddress: "0xAA", TokenID: "0x01", TokenValue: "10"})

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.CreateEventLog(ctx, &model.EventLogRecord{Action: model.ActionBurn, BlockNumber: 5}))
		token, err := tx.FindToken(ctx, "0xaa", "0x01")
		require.NoError(t, err)
		token.Status = model.TokenStatusBurned
		require.NoError(t, tx.UpdateToken(ctx, token))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.Empty(t, s.EventLogs())
	token, ok := s.Token("0xaa", "0x01")
	require.True(t, ok)
	require.Empty(t, token.Status)
}

func TestWithinTxCommits(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.WithinTx(ctx, func(tx store.Tx) error {
		return tx.CreateEventLog(ctx, &model.EventLogRecord{Action: model.ActionMintPackage, BlockNumber: 7, LogIndex: 2})
	})
	require.NoError(t, err)

	latest, ok, err := s.LatestEventLog(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, model.Checkpoint{BlockNumber: 7, LogIndex: 2}, model.CheckpointOf(latest))
}

func TestLatestEventLogOrdersByPosition(t *testing.T) {
	ctx := context.Background()
	s := New()

	for _, pos := range []model.Checkpoint{{BlockNumber: 9, LogIndex: 4}, {BlockNumber: 12, LogIndex: 1}, {BlockNumber: 10, LogIndex: 8}} {
		pos := pos
		require.NoError(t, s.WithinTx(ctx, func(tx store.Tx) error {
			return tx.CreateEventLog(ctx, &model.EventLogRecord{BlockNumber: pos.BlockNumber, LogIndex: pos.LogIndex})
		}))
	}

	latest, ok, err := s.LatestEventLog(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(12), latest.BlockNumber)
}

func TestDeleteRunLogs(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	s.AddRunLog(model.SyncRunLog{Trigger: model.TriggerCronJob, Status: model.RunStatusFulfilled, CreatedAt: now.Add(-96 * time.Hour)})
	s.AddRunLog(model.SyncRunLog{Trigger: model.TriggerCronJob, Status: model.RunStatusRejected, CreatedAt: now.Add(-96 * time.Hour)})
	s.AddRunLog(model.SyncRunLog{Trigger: model.TriggerManual, Status: model.RunStatusFulfilled, CreatedAt: now.Add(-96 * time.Hour)})
	s.AddRunLog(model.SyncRunLog{Trigger: model.TriggerCronJob, Status: model.RunStatusFulfilled, CreatedAt: now.Add(-time.Hour)})

	deleted, err := s.DeleteRunLogs(ctx, store.RunLogFilter{
		Trigger: model.TriggerCronJob,
		Status:  model.RunStatusFulfilled,
		Before:  now.Add(-72 * time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)
	require.Len(t, s.RunLogs(), 3)
}

func TestLockerExclusive(t *testing.T) {
	ctx := context.Background()
	s := New()

	ok, err := s.Acquire(ctx, "sync", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Acquire(ctx, "sync", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Release(ctx, "sync"))
	ok, err = s.Acquire(ctx, "sync", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}
