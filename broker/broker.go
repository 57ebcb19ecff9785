// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package broker implements the Query Broker: the public read (and the one
// write, sendTransaction) surface described in spec.md §4.8. It consults the
// Cache Layer first and falls back to the RPC Client Wrapper over the Node
// Pool, returning normalised results.
package broker

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/qtumproject/qtumd-node/cache"
	"github.com/qtumproject/qtumd-node/errs"
	"github.com/qtumproject/qtumd-node/internal/logging"
	"github.com/qtumproject/qtumd-node/nodepool"
	"github.com/qtumproject/qtumd-node/rpcclient"
	"github.com/qtumproject/qtumd-node/tip"
)

var log = logging.New("broker")

// Defaults from spec.md §4.8.3/§4.8.4/§9.
const (
	DefaultMaxAddressesQuery     = 10000
	DefaultMaxTransactionHistory = 50
	DefaultMaxTxids              = 1000

	SyncedThreshold = 99.50
)

// Broker is the Query Broker. It holds no mutable state of its own beyond
// configuration; height and cache state live in the injected Tip and Cache.
type Broker struct {
	pool    *nodepool.Pool
	caches  *cache.Registry
	tip     *tip.State
	network *chaincfg.Params

	maxAddressesQuery     int
	maxTransactionHistory int
	maxTxids              int

	stopping func() bool
}

// New constructs a Broker over the given pool, cache registry, and tip
// tracker.
func New(pool *nodepool.Pool, caches *cache.Registry, tipState *tip.State, network *chaincfg.Params, stopping func() bool) *Broker {
	return &Broker{
		pool:                  pool,
		caches:                caches,
		tip:                   tipState,
		network:               network,
		maxAddressesQuery:     DefaultMaxAddressesQuery,
		maxTransactionHistory: DefaultMaxTransactionHistory,
		maxTxids:              DefaultMaxTxids,
		stopping:              stopping,
	}
}

// call issues method against the node pool, retrying across endpoints per
// spec.md §4.3, decoding the result into out.
func (b *Broker) call(ctx context.Context, method string, params []any, out any) error {
	if b.stopping != nil && b.stopping() {
		return &errs.ShuttingDownError{}
	}
	_, err := b.pool.TryAllClients(ctx, func(ctx context.Context, c *rpcclient.Client) (any, error) {
		return nil, c.Call(ctx, method, params, out)
	})
	return err
}

// resolveHash resolves a getBlock/getRawBlock argument: a string that parses
// as a decimal integer is treated as a height and resolved via getblockhash;
// anything else is used as-is as the block hash.
func (b *Broker) resolveHash(ctx context.Context, hashOrHeight string) (string, error) {
	if height, err := strconv.ParseInt(hashOrHeight, 10, 64); err == nil {
		var hash string
		if err := b.call(ctx, "getblockhash", []any{height}, &hash); err != nil {
			return "", fmt.Errorf("broker: resolve height %d: %w", height, err)
		}
		return hash, nil
	}
	return hashOrHeight, nil
}

// IsSynced reports whether the daemon's sync percentage has crossed the
// synced threshold (spec.md §4.8).
func (b *Broker) IsSynced(ctx context.Context) (bool, error) {
	pct, err := b.SyncPercentage(ctx)
	if err != nil {
		return false, err
	}
	return pct >= SyncedThreshold, nil
}

type blockchainInfo struct {
	VerificationProgress float64 `json:"verificationprogress"`
	Blocks               int64   `json:"blocks"`
}

// SyncPercentage returns verificationprogress*100.
func (b *Broker) SyncPercentage(ctx context.Context) (float64, error) {
	var info blockchainInfo
	if err := b.call(ctx, "getblockchaininfo", nil, &info); err != nil {
		return 0, err
	}
	return info.VerificationProgress * 100, nil
}

// GetBestBlockHash is a thin pass-through.
func (b *Broker) GetBestBlockHash(ctx context.Context) (string, error) {
	var hash string
	err := b.call(ctx, "getbestblockhash", nil, &hash)
	return hash, err
}

// GetInfo is a thin pass-through. It is left uncached: getinfo changes with
// every transaction, not only with the tip.
func (b *Broker) GetInfo(ctx context.Context) (map[string]any, error) {
	var info map[string]any
	err := b.call(ctx, "getinfo", nil, &info)
	return info, err
}

// EstimateFee is a thin pass-through.
func (b *Broker) EstimateFee(ctx context.Context, blocks int) (float64, error) {
	var fee float64
	err := b.call(ctx, "estimatefee", []any{blocks}, &fee)
	return fee, err
}

// SendTransaction submits a raw transaction. opts.AllowAbsurdFees maps to
// the daemon's corresponding flag.
func (b *Broker) SendTransaction(ctx context.Context, rawHex string, opts Options) (string, error) {
	params := []any{rawHex}
	if opts.AllowAbsurdFees {
		params = append(params, true)
	}
	var txid string
	err := b.call(ctx, "sendrawtransaction", params, &txid)
	return txid, err
}

// GenerateBlock is a thin pass-through (regtest mining).
func (b *Broker) GenerateBlock(ctx context.Context, n int) ([]string, error) {
	var hashes []string
	err := b.call(ctx, "generate", []any{n}, &hashes)
	return hashes, err
}

// CallContract is a thin pass-through to the daemon's contract-call RPC.
func (b *Broker) CallContract(ctx context.Context, params map[string]any) (map[string]any, error) {
	var result map[string]any
	err := b.call(ctx, "callcontract", []any{params}, &result)
	return result, err
}

// ListUnspent is a thin pass-through.
func (b *Broker) ListUnspent(ctx context.Context, minConf, maxConf int, addrs []string) ([]map[string]any, error) {
	var result []map[string]any
	err := b.call(ctx, "listunspent", []any{minConf, maxConf, addrs}, &result)
	return result, err
}

// GetNewAddress is a thin pass-through.
func (b *Broker) GetNewAddress(ctx context.Context) (string, error) {
	var addr string
	err := b.call(ctx, "getnewaddress", nil, &addr)
	return addr, err
}

// GetSubsidy is cached per-height (tip-sensitive, since the subsidy schedule
// can change with consensus-level DGP governance parameters in Qtum).
func (b *Broker) GetSubsidy(ctx context.Context, height int64) (map[string]any, error) {
	key := strconv.FormatInt(height, 10)
	v, err := b.caches.Subsidy.GetOrFetch(key, func() (any, error) {
		var result map[string]any
		if err := b.call(ctx, "getsubsidy", []any{height}, &result); err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// GetAccountInfo is cached tip-sensitively by address.
func (b *Broker) GetAccountInfo(ctx context.Context, addr string) (map[string]any, error) {
	v, err := b.caches.AccountInfo.GetOrFetch(addr, func() (any, error) {
		var result map[string]any
		if err := b.call(ctx, "getaccountinfo", []any{addr}, &result); err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// GetTransactionReceipt is content-addressed by txid, never invalidated.
func (b *Broker) GetTransactionReceipt(ctx context.Context, txid string) (map[string]any, error) {
	v, err := b.caches.TxReceipt.GetOrFetch(txid, func() (any, error) {
		var result map[string]any
		if err := b.call(ctx, "gettransactionreceipt", []any{txid}, &result); err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// GetJsonRawTransaction is content-addressed by txid.
func (b *Broker) GetJsonRawTransaction(ctx context.Context, txid string) (map[string]any, error) {
	v, err := b.caches.JSONRawTx.GetOrFetch(txid, func() (any, error) {
		var result map[string]any
		if err := b.call(ctx, "getrawtransaction", []any{txid, true}, &result); err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// GetJsonBlock is content-addressed by hash.
func (b *Broker) GetJsonBlock(ctx context.Context, hashOrHeight string) (map[string]any, error) {
	hash, err := b.resolveHash(ctx, hashOrHeight)
	if err != nil {
		return nil, err
	}
	v, err := b.caches.JSONBlock.GetOrFetch(hash, func() (any, error) {
		var result map[string]any
		if err := b.call(ctx, "getblock", []any{hash, true}, &result); err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// GetDgpInfo, GetMiningInfo, GetStakingInfo are the tip-sensitive singleton
// pass-throughs of spec.md §4.8.
func (b *Broker) GetDgpInfo(ctx context.Context) (map[string]any, error) {
	return b.singleton(ctx, b.caches.DGPInfo, "getdgpinfo")
}

func (b *Broker) GetMiningInfo(ctx context.Context) (map[string]any, error) {
	return b.singleton(ctx, b.caches.MiningInfo, "getmininginfo")
}

func (b *Broker) GetStakingInfo(ctx context.Context) (map[string]any, error) {
	return b.singleton(ctx, b.caches.StakingInfo, "getstakinginfo")
}

func (b *Broker) singleton(ctx context.Context, c interface {
	GetOrFetch(string, cache.Fetch[any]) (any, error)
}, method string) (map[string]any, error) {
	v, err := c.GetOrFetch("singleton", func() (any, error) {
		var result map[string]any
		if err := b.call(ctx, method, nil, &result); err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// GetSpentInfo maps RPC code -5 (not found) to an empty object rather than
// an error (spec.md §4.8, §8 scenario 5).
func (b *Broker) GetSpentInfo(ctx context.Context, txid string, index int) (map[string]any, error) {
	var result map[string]any
	err := b.call(ctx, "getspentinfo", []any{map[string]any{"txid": txid, "index": index}}, &result)
	if err != nil {
		var rpcErr *errs.RPCError
		if errors.As(err, &rpcErr) && rpcErr.NotFound() {
			return map[string]any{}, nil
		}
		return nil, err
	}
	return result, nil
}

// GetBlockHashesByTimestamp passes through to the daemon.
func (b *Broker) GetBlockHashesByTimestamp(ctx context.Context, high, low int64) ([]string, error) {
	var hashes []string
	err := b.call(ctx, "getblockhashes", []any{high, low}, &hashes)
	return hashes, err
}
