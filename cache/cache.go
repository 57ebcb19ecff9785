// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cache is the injected cache registry the Query Broker consults
// before falling back to RPC (spec.md §4.7). Content-addressed caches are
// never invalidated, only LRU-evicted; tip-sensitive caches are cleared
// wholesale on every tip change. A singleflight group collapses concurrent
// fetches for the same key into one RPC call.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/qtumproject/qtumd-node/internal/metrics"
)

// Default capacities, one per logical cache named in spec.md §4.7.
const (
	sizeRawTx            = 20000
	sizeTx               = 20000
	sizeDetailedTx       = 10000
	sizeRawBlock         = 500
	sizeBlock            = 500
	sizeBlockHeader      = 2000
	sizeBlockOverview    = 2000
	sizeJSONRawTx        = 10000
	sizeJSONBlock        = 500
	sizeTxReceipt        = 10000
	sizeAddressUTXOs     = 5000
	sizeAddressTxids     = 5000
	sizeAddressBalance   = 5000
	sizeAddressSummary   = 5000
	sizeAccountInfo      = 5000
	sizeSubsidy          = 5000
)

// Fetch is the RPC fallback a cache miss delegates to.
type Fetch[V any] func() (V, error)

// typed is one logical LRU cache plus an in-flight dedup guard and a
// metrics label.
type typed[V any] struct {
	lru     *lru.Cache[string, V]
	group   singleflight.Group
	label   string
	metrics *metrics.Registry
}

func newTyped[V any](label string, size int, m *metrics.Registry) *typed[V] {
	c, _ := lru.New[string, V](size)
	return &typed[V]{lru: c, label: label, metrics: m}
}

// GetOrFetch returns the cached value for key if present; otherwise it calls
// fetch exactly once even if multiple callers race on the same key, stores
// the result on success, and returns it. A failed fetch is never cached, so
// the next call retries (spec.md §7: "cache misses that fail do not insert
// negative entries").
func (t *typed[V]) GetOrFetch(key string, fetch Fetch[V]) (V, error) {
	if v, ok := t.lru.Get(key); ok {
		if t.metrics != nil {
			t.metrics.CacheHits.WithLabelValues(t.label).Inc()
		}
		return v, nil
	}
	if t.metrics != nil {
		t.metrics.CacheMisses.WithLabelValues(t.label).Inc()
	}

	v, err, _ := t.group.Do(key, func() (any, error) {
		val, err := fetch()
		if err != nil {
			return val, err
		}
		t.lru.Add(key, val)
		return val, nil
	})
	val, _ := v.(V)
	return val, err
}

func (t *typed[V]) Purge() { t.lru.Purge() }

// Registry bundles every logical cache the broker uses. Content-addressed
// caches are listed first; the tip-sensitive caches follow and are also
// collected in tipSensitive so InvalidateTipSensitive can purge them all at
// once.
type Registry struct {
	RawTx         *typed[[]byte]
	Tx            *typed[any]
	DetailedTx    *typed[any]
	RawBlock      *typed[[]byte]
	Block         *typed[any]
	BlockHeader   *typed[any]
	BlockOverview *typed[any]
	JSONRawTx     *typed[any]
	JSONBlock     *typed[any]
	TxReceipt     *typed[any]

	tipSensitive []interface{ Purge() }

	AddressUTXOs   *typed[any]
	AddressTxids   *typed[any]
	AddressBalance *typed[any]
	AddressSummary *typed[any]
	AccountInfo    *typed[any]
	Subsidy        *typed[any]
	DGPInfo        *typed[any]
	MiningInfo     *typed[any]
	StakingInfo    *typed[any]
}

// New builds a Registry; m may be nil if no metrics wiring is desired.
func New(m *metrics.Registry) *Registry {
	r := &Registry{
		RawTx:         newTyped[[]byte]("raw_tx", sizeRawTx, m),
		Tx:            newTyped[any]("tx", sizeTx, m),
		DetailedTx:    newTyped[any]("detailed_tx", sizeDetailedTx, m),
		RawBlock:      newTyped[[]byte]("raw_block", sizeRawBlock, m),
		Block:         newTyped[any]("block", sizeBlock, m),
		BlockHeader:   newTyped[any]("block_header", sizeBlockHeader, m),
		BlockOverview: newTyped[any]("block_overview", sizeBlockOverview, m),
		JSONRawTx:     newTyped[any]("json_raw_tx", sizeJSONRawTx, m),
		JSONBlock:     newTyped[any]("json_block", sizeJSONBlock, m),
		TxReceipt:     newTyped[any]("tx_receipt", sizeTxReceipt, m),

		AddressUTXOs:   newTyped[any]("address_utxos", sizeAddressUTXOs, m),
		AddressTxids:   newTyped[any]("address_txids", sizeAddressTxids, m),
		AddressBalance: newTyped[any]("address_balance", sizeAddressBalance, m),
		AddressSummary: newTyped[any]("address_summary", sizeAddressSummary, m),
		AccountInfo:    newTyped[any]("account_info", sizeAccountInfo, m),
		Subsidy:        newTyped[any]("subsidy", sizeSubsidy, m),
		DGPInfo:        newTyped[any]("dgp_info", 1, m),
		MiningInfo:     newTyped[any]("mining_info", 1, m),
		StakingInfo:    newTyped[any]("staking_info", 1, m),
	}
	r.tipSensitive = []interface{ Purge() }{
		r.AddressUTXOs, r.AddressTxids, r.AddressBalance, r.AddressSummary,
		r.AccountInfo, r.Subsidy, r.DGPInfo, r.MiningInfo, r.StakingInfo,
	}
	return r
}

// InvalidateTipSensitive clears every tip-sensitive cache wholesale. It must
// be called before any subsequent cache miss can observe stale data
// (spec.md §5: "Cache invalidation on a tip change happens-before any
// subsequent cache miss").
func (r *Registry) InvalidateTipSensitive() {
	for _, c := range r.tipSensitive {
		c.Purge()
	}
}
