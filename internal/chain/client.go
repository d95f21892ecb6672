package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client is the JSON-RPC LogSource used by LogFetcher.
type Client struct {
	rpc *rpc.Client
	eth *ethclient.Client
}

// NewClient dials rpcURL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rc, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return &Client{rpc: rc, eth: ethclient.NewClient(rc)}, nil
}

func (c *Client) Close() {
	if c.rpc != nil {
		c.rpc.Close()
	}
}

// ChainID is logged at startup to identify the network being reconciled.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.eth.ChainID(ctx)
}

// LatestBlockNumber returns the node's current tip.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.eth.BlockNumber(ctx)
}

// FilterLogs runs eth_getLogs for one batch of query.
func (c *Client) FilterLogs(ctx context.Context, blockRange BlockRange, query LogQuery) ([]types.Log, error) {
	return c.eth.FilterLogs(ctx, filterQuery(blockRange, query))
}

// filterQuery maps a LogQuery batch onto eth_getLogs parameters. Topics is
// an OR-set on topic0; an empty set matches every event of the addresses.
func filterQuery(blockRange BlockRange, query LogQuery) ethereum.FilterQuery {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(blockRange.From),
		ToBlock:   new(big.Int).SetUint64(blockRange.To),
		Addresses: query.Addresses,
	}
	if len(query.Topics) > 0 {
		q.Topics = [][]common.Hash{query.Topics}
	}
	return q
}
