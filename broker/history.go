// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package broker

import (
	"context"

	"github.com/qtumproject/qtumd-node/errs"
)

// GetAddressHistory implements spec.md §4.8.3: validates the address count
// and pagination window, resolves the (optionally mempool-overlaid) txid
// list, and builds one DetailedAddressTransaction per txid in the requested
// page, recording which of the query addresses appear on which input/output
// index and the net satoshis delta those addresses experienced.
func (b *Broker) GetAddressHistory(ctx context.Context, addrs []string, opts Options) (*HistoryPage, error) {
	if len(addrs) > b.maxAddressesQuery {
		return nil, &errs.ValidationError{Reason: "too many addresses requested"}
	}
	if opts.From < 0 || opts.To <= opts.From || opts.To-opts.From > int64(b.maxTransactionHistory) {
		return nil, &errs.ValidationError{Reason: "invalid from/to pagination window"}
	}

	txids, err := b.GetAddressTxids(ctx, addrs, opts)
	if err != nil {
		return nil, err
	}

	total := len(txids)
	from, to := clampRange(opts.From, opts.To, int64(total))
	page := txids[from:to]

	addrSet := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		addrSet[a] = true
	}

	tipHeight := int64(b.tip.Height())
	items := make([]DetailedAddressTransaction, 0, len(page))
	for _, txid := range page {
		dtx, err := b.GetDetailedTransaction(ctx, txid)
		if err != nil {
			return nil, err
		}

		entry := DetailedAddressTransaction{DetailedTransaction: *dtx, Addresses: map[string]AddressIndexRef{}}
		var satoshis int64
		for i, in := range dtx.Inputs {
			if in.Address == "" || !addrSet[in.Address] {
				continue
			}
			ref := entry.Addresses[in.Address]
			ref.InputIndexes = append(ref.InputIndexes, i)
			entry.Addresses[in.Address] = ref
			satoshis -= in.Satoshis
		}
		for i, out := range dtx.Outputs {
			if out.Address == "" || !addrSet[out.Address] {
				continue
			}
			ref := entry.Addresses[out.Address]
			ref.OutputIndexes = append(ref.OutputIndexes, i)
			entry.Addresses[out.Address] = ref
			satoshis += out.Satoshis
		}
		entry.Satoshis = satoshis
		entry.Confirmations = Confirmations(dtx.Height, tipHeight, warnLog)

		items = append(items, entry)
	}

	return &HistoryPage{TotalCount: total, Items: items}, nil
}

// GetAddressSummary implements spec.md §4.8.4: the confirmed aggregate is
// cached tip-sensitively in full (unpaginated txid order), and the from/to
// window is applied to the cached txid list afterwards so a new page never
// triggers a fresh RPC round trip.
func (b *Broker) GetAddressSummary(ctx context.Context, addrs []string, opts Options) (*AddressSummary, error) {
	if len(addrs) > b.maxAddressesQuery {
		return nil, &errs.ValidationError{Reason: "too many addresses requested"}
	}
	if opts.To > 0 && opts.To-opts.From > int64(b.maxTxids) {
		return nil, &errs.ValidationError{Reason: "requested txid range exceeds the maximum"}
	}

	key := joinAddresses(addrs)
	v, err := b.caches.AddressSummary.GetOrFetch(key, func() (any, error) {
		bal, err := b.GetAddressBalance(ctx, addrs)
		if err != nil {
			return nil, err
		}
		confirmedTxids, err := b.confirmedTxids(ctx, addrs)
		if err != nil {
			return nil, err
		}
		deltas, err := b.mempoolDeltas(ctx, addrs)
		if err != nil {
			return nil, err
		}

		var unconfirmedBalance int64
		unconfirmedTxids := map[string]bool{}
		for _, d := range deltas {
			unconfirmedBalance += d.Satoshis
			unconfirmedTxids[d.TxID] = true
		}

		return &addressSummaryCache{
			Appearances:        int64(len(confirmedTxids)),
			TotalReceived:      bal.Received,
			TotalSpent:         bal.Received - bal.Balance,
			Balance:            bal.Balance,
			UnconfAppearances:  int64(len(unconfirmedTxids)),
			UnconfBalance:      unconfirmedBalance,
			Txids:              dedupTxids(append(mempoolTxidsDesc(deltas), confirmedTxids...)),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	cached := v.(*addressSummaryCache)

	summary := &AddressSummary{
		Appearances:            cached.Appearances,
		TotalReceived:          cached.TotalReceived,
		TotalSpent:             cached.TotalSpent,
		Balance:                cached.Balance,
		UnconfirmedAppearances: cached.UnconfAppearances,
		UnconfirmedBalance:     cached.UnconfBalance,
	}
	if !opts.NoTxList {
		if opts.To > 0 {
			from, to := clampRange(opts.From, opts.To, int64(len(cached.Txids)))
			summary.TxIDs = cached.Txids[from:to]
		} else {
			summary.TxIDs = cached.Txids
		}
	}
	return summary, nil
}

// addressSummaryCache is the tip-sensitive cache entry for GetAddressSummary,
// holding the full unpaginated txid list so pagination never needs a fresh
// round trip.
type addressSummaryCache struct {
	Appearances       int64
	TotalReceived     int64
	TotalSpent        int64
	Balance           int64
	UnconfAppearances int64
	UnconfBalance     int64
	Txids             []string
}

func clampRange(from, to, total int64) (int64, int64) {
	if from < 0 {
		from = 0
	}
	if from > total {
		from = total
	}
	if to > total {
		to = total
	}
	if to < from {
		to = from
	}
	return from, to
}

func warnLog(msg string) { log.Warn(msg) }
