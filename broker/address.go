// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package broker

import (
	"context"
	"sort"
)

type addressRequest struct {
	Addresses []string `json:"addresses"`
}

type addressUTXORPC struct {
	Address     string `json:"address"`
	TxID        string `json:"txid"`
	OutputIndex int    `json:"outputIndex"`
	Script      string `json:"script"`
	Satoshis    int64  `json:"satoshis"`
	Height      int64  `json:"height"`
}

type addressDeltaRPC struct {
	Address   string `json:"address"`
	TxID      string `json:"txid"`
	Index     int    `json:"index"`
	Satoshis  int64  `json:"satoshis"`
	Timestamp int64  `json:"timestamp"`
	PrevTxID  string `json:"prevtxid"`
	PrevOut   int    `json:"prevout"`
	Height    int64  `json:"height"`
}

// outpoint identifies one transaction output.
type outpoint struct {
	txid  string
	index int
}

func (d addressDeltaRPC) spendsOutpoint() (outpoint, bool) {
	if d.PrevTxID == "" {
		return outpoint{}, false
	}
	return outpoint{d.PrevTxID, d.PrevOut}, true
}

func (d addressDeltaRPC) createsOutpoint() outpoint {
	return outpoint{d.TxID, d.Index}
}

func (b *Broker) mempoolDeltas(ctx context.Context, addrs []string) ([]addressDeltaRPC, error) {
	var deltas []addressDeltaRPC
	err := b.call(ctx, "getaddressmempool", []any{addressRequest{Addresses: addrs}}, &deltas)
	return deltas, err
}

// GetAddressUnspentOutputs implements spec.md §4.8.1: confirmed UTXOs are
// fetched and cached tip-sensitively; when opts.QueryMempool is set they are
// then overlaid with the mempool so that
// an output the mempool has already spent never appears, and an output the
// mempool itself created (and not yet re-spent within the mempool) is
// synthesised and placed ahead of the confirmed set.
func (b *Broker) GetAddressUnspentOutputs(ctx context.Context, addrs []string, opts Options) ([]UTXO, error) {
	confirmed, err := b.confirmedUTXOs(ctx, addrs)
	if err != nil {
		return nil, err
	}
	if !opts.QueryMempool {
		return confirmed, nil
	}

	deltas, err := b.mempoolDeltas(ctx, addrs)
	if err != nil {
		return nil, err
	}

	consumed := make(map[outpoint]bool)
	for _, d := range deltas {
		if op, spends := d.spendsOutpoint(); spends {
			consumed[op] = true
		}
	}

	filteredConfirmed := make([]UTXO, 0, len(confirmed))
	for _, u := range confirmed {
		if consumed[outpoint{u.TxID, u.OutputIndex}] {
			continue
		}
		filteredConfirmed = append(filteredConfirmed, u)
	}

	var mempoolCreations []UTXO
	for _, d := range deltas {
		if d.Satoshis <= 0 {
			continue
		}
		if consumed[d.createsOutpoint()] {
			continue
		}
		mempoolCreations = append(mempoolCreations, UTXO{
			Address:     d.Address,
			TxID:        d.TxID,
			OutputIndex: d.Index,
			Satoshis:    d.Satoshis,
			Timestamp:   d.Timestamp,
		})
	}
	sort.SliceStable(mempoolCreations, func(i, j int) bool {
		return mempoolCreations[i].Timestamp > mempoolCreations[j].Timestamp
	})

	return append(mempoolCreations, filteredConfirmed...), nil
}

func (b *Broker) confirmedUTXOs(ctx context.Context, addrs []string) ([]UTXO, error) {
	key := joinAddresses(addrs)
	v, err := b.caches.AddressUTXOs.GetOrFetch(key, func() (any, error) {
		var rpcResult []addressUTXORPC
		if err := b.call(ctx, "getaddressutxos", []any{addressRequest{Addresses: addrs}}, &rpcResult); err != nil {
			return nil, err
		}
		out := make([]UTXO, 0, len(rpcResult))
		for _, u := range rpcResult {
			out = append(out, UTXO{
				Address:     u.Address,
				TxID:        u.TxID,
				OutputIndex: u.OutputIndex,
				Script:      u.Script,
				Satoshis:    u.Satoshis,
				Height:      u.Height,
			})
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]UTXO), nil
}

// GetAddressTxids implements spec.md §4.8.2: a height range always bypasses
// the mempool and the cache, querying the daemon's confirmed-only index
// directly; queryMempoolOnly returns the mempool txids alone; otherwise the
// (cached) confirmed result is returned, with the mempool txids deduplicated
// ahead of it when QueryMempool is set.
func (b *Broker) GetAddressTxids(ctx context.Context, addrs []string, opts Options) ([]string, error) {
	if opts.HasHeightRange() {
		var txids []string
		err := b.call(ctx, "getaddresstxids", []any{addressRangeRequest(addrs, opts)}, &txids)
		return txids, err
	}

	if opts.QueryMempoolOnly {
		deltas, err := b.mempoolDeltas(ctx, addrs)
		if err != nil {
			return nil, err
		}
		return dedupTxids(mempoolTxidsDesc(deltas)), nil
	}

	confirmed, err := b.confirmedTxids(ctx, addrs)
	if err != nil {
		return nil, err
	}
	if !opts.QueryMempool {
		return confirmed, nil
	}

	deltas, err := b.mempoolDeltas(ctx, addrs)
	if err != nil {
		return nil, err
	}
	return dedupTxids(append(mempoolTxidsDesc(deltas), confirmed...)), nil
}

func (b *Broker) confirmedTxids(ctx context.Context, addrs []string) ([]string, error) {
	key := joinAddresses(addrs)
	v, err := b.caches.AddressTxids.GetOrFetch(key, func() (any, error) {
		var txids []string
		if err := b.call(ctx, "getaddresstxids", []any{addressRequest{Addresses: addrs}}, &txids); err != nil {
			return nil, err
		}
		return txids, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

type addressRangeOpts struct {
	Addresses []string `json:"addresses"`
	Start     int64    `json:"start"`
	End       int64    `json:"end"`
}

func addressRangeRequest(addrs []string, opts Options) addressRangeOpts {
	return addressRangeOpts{Addresses: addrs, Start: opts.Start, End: opts.End}
}

func mempoolTxidsDesc(deltas []addressDeltaRPC) []string {
	sorted := append([]addressDeltaRPC(nil), deltas...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp > sorted[j].Timestamp })
	out := make([]string, 0, len(sorted))
	for _, d := range sorted {
		out = append(out, d.TxID)
	}
	return out
}

func dedupTxids(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// GetAddressBalance returns the confirmed balance/received pair for addrs,
// cached tip-sensitively.
func (b *Broker) GetAddressBalance(ctx context.Context, addrs []string) (*AddressBalance, error) {
	key := joinAddresses(addrs)
	v, err := b.caches.AddressBalance.GetOrFetch(key, func() (any, error) {
		var bal AddressBalance
		if err := b.call(ctx, "getaddressbalance", []any{addressRequest{Addresses: addrs}}, &bal); err != nil {
			return nil, err
		}
		return &bal, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*AddressBalance), nil
}

// GetAddressesMempoolBalance sums mempool deltas across addrs; it is
// deliberately never cached since the mempool changes continuously.
func (b *Broker) GetAddressesMempoolBalance(ctx context.Context, addrs []string) (int64, error) {
	deltas, err := b.mempoolDeltas(ctx, addrs)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, d := range deltas {
		total += d.Satoshis
	}
	return total, nil
}

func joinAddresses(addrs []string) string {
	key := ""
	for i, a := range addrs {
		if i > 0 {
			key += ","
		}
		key += a
	}
	return key
}
