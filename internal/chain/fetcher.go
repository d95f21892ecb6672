package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// LogQuery selects logs emitted by Addresses whose topic0 is one of Topics,
// within the inclusive block range [FromBlock, ToBlock].
type LogQuery struct {
	FromBlock uint64
	ToBlock   uint64
	Addresses []common.Address
	Topics    []common.Hash
}

// LogSource is the RPC surface the fetcher needs.
type LogSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, blockRange BlockRange, query LogQuery) ([]types.Log, error)
}

// FetcherConfig controls batching and retries.
type FetcherConfig struct {
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// LogFetcher retrieves logs in block batches, retrying transient RPC errors.
// Results keep the node's (block, log index) order.
type LogFetcher struct {
	cfg    FetcherConfig
	source LogSource
	retry  retrier
	logger *zap.Logger
}

// NewLogFetcher builds a LogFetcher over source.
func NewLogFetcher(cfg FetcherConfig, source LogSource, logger *zap.Logger) *LogFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 2000
	}
	return &LogFetcher{
		cfg:    cfg,
		source: source,
		retry:  newRetrier(cfg.MaxRetries, cfg.RetryBackoff, logger),
		logger: logger,
	}
}

// LatestBlockNumber returns the chain tip.
func (f *LogFetcher) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var latest uint64
	err := f.retry.do(ctx, "latest block fetch", func(ctx context.Context) error {
		var err error
		latest, err = f.source.LatestBlockNumber(ctx)
		return err
	})
	return latest, err
}

// FetchLogs returns every matching log in the query range.
func (f *LogFetcher) FetchLogs(ctx context.Context, query LogQuery) ([]types.Log, error) {
	if f.source == nil {
		return nil, fmt.Errorf("log source is nil")
	}
	if len(query.Addresses) == 0 {
		return nil, nil
	}
	if query.ToBlock < query.FromBlock {
		f.logger.Info("nothing to fetch", zap.Uint64("from", query.FromBlock), zap.Uint64("to", query.ToBlock))
		return nil, nil
	}

	ranges, err := SplitRange(query.FromBlock, query.ToBlock, f.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	var out []types.Log
	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		logs, err := f.filterLogsWithRetry(ctx, blockRange, query)
		if err != nil {
			return nil, fmt.Errorf("filter logs %d-%d: %w", blockRange.From, blockRange.To, err)
		}
		f.logger.Debug("fetched logs",
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
			zap.Int("logs", len(logs)),
		)
		for _, log := range logs {
			if log.Removed {
				continue
			}
			out = append(out, log)
		}
	}

	return out, nil
}

func (f *LogFetcher) filterLogsWithRetry(ctx context.Context, blockRange BlockRange, query LogQuery) ([]types.Log, error) {
	var logs []types.Log
	err := f.retry.do(ctx, "filter logs", func(ctx context.Context) error {
		var err error
		logs, err = f.source.FilterLogs(ctx, blockRange, query)
		return err
	}, zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	return logs, err
}
