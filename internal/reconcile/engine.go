// Package reconcile applies SFT and vault contract logs to the domain store.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"sftsync/internal/chain"
	"sftsync/internal/model"
	"sftsync/internal/sft"
	"sftsync/internal/store"
)

// Run log messages.
const (
	MessageFundNotInitialized = "Fund not initialized"
	MessageNoSFTContract      = "No SFT contract found"
	MessageNoVaultContract    = "No Vault contract found"
	MessageSynced             = "Sync event log successfully"
	MessageRunInProgress      = "Sync already in progress"
)

const (
	defaultRunRetention = 72 * time.Hour
	defaultLockKey      = "sftsync:sync-event-log"
	defaultLockTTL      = 10 * time.Minute
)

// ErrRunInProgress is returned by Engine.Run when another run holds the lock.
var ErrRunInProgress = errors.New("sync already in progress")

// Config holds runtime settings for the engine.
type Config struct {
	RunRetention time.Duration
	LockKey      string
	LockTTL      time.Duration
}

// LogFetcher reads the chain tip and contract logs.
type LogFetcher interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FetchLogs(ctx context.Context, query chain.LogQuery) ([]types.Log, error)
}

// Engine runs one reconciliation pass per Run call.
type Engine struct {
	cfg         Config
	store       store.Store
	fetcher     LogFetcher
	classifier  *sft.Classifier
	checkpoints *CheckpointStore
	earnings    store.EarningRecorder
	locker      store.Locker
	diag        *Diagnostics
	logger      *zap.Logger
	now         func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithEarningRecorder sets where awarded experience is sent.
func WithEarningRecorder(recorder store.EarningRecorder) Option {
	return func(e *Engine) { e.earnings = recorder }
}

// WithLocker guards Run with a named lock.
func WithLocker(locker store.Locker) Option {
	return func(e *Engine) { e.locker = locker }
}

func WithDiagnostics(diag *Diagnostics) Option {
	return func(e *Engine) { e.diag = diag }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds an Engine with its dependencies.
func NewEngine(cfg Config, st store.Store, fetcher LogFetcher, classifier *sft.Classifier, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("log fetcher is nil")
	}
	if classifier == nil {
		return nil, fmt.Errorf("classifier is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RunRetention <= 0 {
		cfg.RunRetention = defaultRunRetention
	}
	if cfg.LockKey == "" {
		cfg.LockKey = defaultLockKey
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}

	e := &Engine{
		cfg:         cfg,
		store:       st,
		fetcher:     fetcher,
		classifier:  classifier,
		checkpoints: NewCheckpointStore(st),
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.diag == nil {
		diag, err := NewDiagnostics(nil, logger)
		if err != nil {
			return nil, err
		}
		e.diag = diag
	}
	return e, nil
}

// Run performs one sync pass and persists exactly one run log describing it.
// The returned error is non-nil only when the run log itself could not be
// written or the lock was held by another run.
func (e *Engine) Run(ctx context.Context, trigger model.Trigger) (model.SyncRunLog, error) {
	if e.locker != nil {
		locked, err := e.locker.Acquire(ctx, e.cfg.LockKey, e.cfg.LockTTL)
		if err != nil {
			return e.report(ctx, rejected(trigger, fmt.Sprintf("acquire run lock: %v", err)))
		}
		if !locked {
			run, err := e.report(ctx, rejected(trigger, MessageRunInProgress))
			if err != nil {
				return run, err
			}
			return run, ErrRunInProgress
		}
		defer func() {
			if err := e.locker.Release(context.WithoutCancel(ctx), e.cfg.LockKey); err != nil {
				e.logger.Warn("release run lock failed", zap.Error(err), zap.String("key", e.cfg.LockKey))
			}
		}()
	}

	return e.report(ctx, e.run(ctx, trigger))
}

func (e *Engine) run(ctx context.Context, trigger model.Trigger) model.SyncRunLog {
	funds, err := e.store.ListFunds(ctx)
	if err != nil {
		return rejected(trigger, fmt.Sprintf("list funds: %v", err))
	}
	if len(funds) == 0 {
		return rejected(trigger, MessageFundNotInitialized)
	}

	watch := newWatchSet(funds)
	if len(watch.sft) == 0 {
		return rejected(trigger, MessageNoSFTContract)
	}
	if len(watch.vault) == 0 {
		return rejected(trigger, MessageNoVaultContract)
	}

	cp, err := e.checkpoints.Current(ctx)
	if err != nil {
		return rejected(trigger, err.Error())
	}

	pruned, err := e.checkpoints.PruneStaleRuns(ctx, e.now().Add(-e.cfg.RunRetention), model.TriggerCronJob, model.RunStatusFulfilled)
	if err != nil {
		e.logger.Warn("prune run logs failed", zap.Error(err))
	} else if pruned > 0 {
		e.logger.Debug("pruned run logs", zap.Int64("deleted", pruned))
	}

	synced, err := e.sync(ctx, watch, cp)
	if err != nil {
		e.logger.Error("sync failed", zap.Error(err), zap.Uint64("checkpoint_block", cp.BlockNumber), zap.Uint64("checkpoint_log_index", cp.LogIndex))
		return rejected(trigger, err.Error())
	}

	return model.SyncRunLog{
		Trigger:                        trigger,
		Message:                        MessageSynced,
		LatestTokenEventLogBlockNumber: cp.BlockNumber,
		LatestTokenEventLogIndex:       cp.LogIndex,
		TotalSynced:                    synced,
		Status:                         model.RunStatusFulfilled,
	}
}

func (e *Engine) sync(ctx context.Context, watch watchSet, cp model.Checkpoint) (int, error) {
	tip, err := e.fetcher.LatestBlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("get latest block: %w", err)
	}

	tokenLogs, err := e.fetcher.FetchLogs(ctx, chain.LogQuery{
		FromBlock: cp.BlockNumber,
		ToBlock:   tip,
		Addresses: watch.sft,
		Topics:    e.classifier.Topics(tokenStream.kinds...),
	})
	if err != nil {
		return 0, fmt.Errorf("fetch token logs: %w", err)
	}

	claimLogs, err := e.fetcher.FetchLogs(ctx, chain.LogQuery{
		FromBlock: cp.BlockNumber,
		ToBlock:   tip,
		Addresses: watch.vault,
		Topics:    e.classifier.Topics(claimStream.kinds...),
	})
	if err != nil {
		return 0, fmt.Errorf("fetch claim logs: %w", err)
	}

	e.logger.Info("fetched logs",
		zap.Uint64("from", cp.BlockNumber),
		zap.Uint64("to", tip),
		zap.Int("token_logs", len(tokenLogs)),
		zap.Int("claim_logs", len(claimLogs)),
	)

	tokenSynced, err := e.applyStream(ctx, tokenStream, tokenLogs, watch, cp)
	if err != nil {
		return 0, err
	}
	claimSynced, err := e.applyStream(ctx, claimStream, claimLogs, watch, cp)
	if err != nil {
		return 0, err
	}
	return tokenSynced + claimSynced, nil
}

// applyStream applies logs in order, one transaction per log. Logs at or
// before the checkpoint are skipped; every other log counts as synced even
// when its signature is not recognized.
func (e *Engine) applyStream(ctx context.Context, s stream, logs []types.Log, watch watchSet, cp model.Checkpoint) (int, error) {
	synced := 0
	for _, log := range logs {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if cp.Covers(log.BlockNumber, uint64(log.Index)) {
			e.diag.skipped(s.name)
			continue
		}
		synced++
		e.diag.synced(s.name)

		event, err := e.classifier.Decode(log)
		if err != nil {
			return synced, fmt.Errorf("decode log %s#%d: %w", log.TxHash.Hex(), log.Index, err)
		}
		if event == nil || !s.accepts(event.Kind()) {
			continue
		}

		lc := &logContext{log: log, fund: watch.fundFor(s, log.Address)}
		err = e.store.WithinTx(ctx, func(tx store.Tx) error {
			lc.tx = tx
			lc.earnings = lc.earnings[:0]
			return e.apply(ctx, lc, event)
		})
		if err != nil {
			return synced, fmt.Errorf("apply %s log %s#%d: %w", event.Kind(), log.TxHash.Hex(), log.Index, err)
		}
		e.diag.applied(string(lc.action))
		e.recordEarnings(ctx, lc.earnings)
	}
	return synced, nil
}

func (e *Engine) recordEarnings(ctx context.Context, records []model.EarningRecord) {
	if e.earnings == nil {
		return
	}
	for _, record := range records {
		if err := e.earnings.LogEarningRecord(ctx, record); err != nil {
			e.diag.earningFailed()
			e.logger.Warn("log earning record failed", zap.Error(err), zap.Int64("user_id", record.UserID), zap.Int64("exp", record.EarningExp))
		}
	}
}

// report persists run. It ignores cancellation of ctx so that an
// interrupted run still leaves its Rejected row.
func (e *Engine) report(ctx context.Context, run model.SyncRunLog) (model.SyncRunLog, error) {
	if err := e.store.CreateRunLog(context.WithoutCancel(ctx), &run); err != nil {
		e.logger.Error("write run log failed", zap.Error(err), zap.String("status", string(run.Status)), zap.String("message", run.Message))
		return run, fmt.Errorf("write run log: %w", err)
	}
	e.diag.finished(string(run.Status))

	fields := []zap.Field{
		zap.Int64("run_id", run.ID),
		zap.String("trigger", string(run.Trigger)),
		zap.String("status", string(run.Status)),
		zap.Int("total_synced", run.TotalSynced),
		zap.Uint64("checkpoint_block", run.LatestTokenEventLogBlockNumber),
		zap.Uint64("checkpoint_log_index", run.LatestTokenEventLogIndex),
	}
	if run.Status == model.RunStatusRejected {
		e.logger.Warn("sync rejected", append(fields, zap.String("message", run.Message))...)
	} else {
		e.logger.Info("sync complete", fields...)
	}
	return run, nil
}

func rejected(trigger model.Trigger, message string) model.SyncRunLog {
	return model.SyncRunLog{
		Trigger: trigger,
		Message: message,
		Status:  model.RunStatusRejected,
	}
}

// stream is one of the two log feeds a run consumes.
type stream struct {
	name  string
	kinds []sft.Kind
	vault bool
}

var (
	tokenStream = stream{name: "token", kinds: []sft.Kind{sft.KindTransferToken, sft.KindTransferValue, sft.KindSlotChanged}}
	claimStream = stream{name: "claim", kinds: []sft.Kind{sft.KindClaim}, vault: true}
)

func (s stream) accepts(kind sft.Kind) bool {
	for _, k := range s.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// watchSet is the set of contracts a run fetches from.
type watchSet struct {
	funds []model.Fund
	sft   []common.Address
	vault []common.Address
}

func newWatchSet(funds []model.Fund) watchSet {
	w := watchSet{funds: funds}
	seenSFT := make(map[common.Address]struct{})
	seenVault := make(map[common.Address]struct{})
	add := func(dst *[]common.Address, seen map[common.Address]struct{}, raw string) {
		raw = strings.TrimSpace(raw)
		if !common.IsHexAddress(raw) {
			return
		}
		addr := common.HexToAddress(raw)
		if _, ok := seen[addr]; ok {
			return
		}
		seen[addr] = struct{}{}
		*dst = append(*dst, addr)
	}
	for _, fund := range funds {
		if fund.HasSFT() {
			add(&w.sft, seenSFT, fund.SFTAddress)
		}
		if fund.HasVault() {
			add(&w.vault, seenVault, fund.VaultAddress)
		}
	}
	return w
}

// fundFor returns the fund whose contract for stream s emitted a log at addr.
func (w watchSet) fundFor(s stream, addr common.Address) *model.Fund {
	for i := range w.funds {
		configured := w.funds[i].SFTAddress
		if s.vault {
			configured = w.funds[i].VaultAddress
		}
		if strings.EqualFold(strings.TrimSpace(configured), addr.Hex()) {
			return &w.funds[i]
		}
	}
	return nil
}
