// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package subscriptions implements the per-topic subscriber registry: plain
// topic subscriptions (hashblock, rawtransaction) and per-address topics
// (addresstxid, addressbalance), with idempotent subscribe and graceful
// unsubscribe (spec.md §4.9).
package subscriptions

import (
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/qtumproject/qtumd-node/internal/logging"
	"github.com/qtumproject/qtumd-node/internal/metrics"
)

var log = logging.New("subscriptions")

// Topic names the two plain (non-address) topics.
type Topic string

const (
	TopicHashBlock     Topic = "hashblock"
	TopicRawTransaction Topic = "rawtransaction"
)

// Registry holds every subscriber set described in spec.md §3.
type Registry[H comparable] struct {
	mu sync.Mutex

	hashBlock     []H
	rawTransaction []H

	addressTxid    map[string][]H
	addressBalance map[string][]H

	network *chaincfg.Params
	metrics *metrics.Registry
}

// New constructs an empty Registry. network is used to validate addresses
// passed to SubscribeAddress/SubscribeBalance.
func New[H comparable](network *chaincfg.Params, m *metrics.Registry) *Registry[H] {
	return &Registry[H]{
		addressTxid:    make(map[string][]H),
		addressBalance: make(map[string][]H),
		network:        network,
		metrics:        m,
	}
}

// Subscribe adds handle to topic's subscriber list, idempotently.
func (r *Registry[H]) Subscribe(topic Topic, handle H) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch topic {
	case TopicHashBlock:
		r.hashBlock = appendUnique(r.hashBlock, handle)
	case TopicRawTransaction:
		r.rawTransaction = appendUnique(r.rawTransaction, handle)
	}
	r.reportGauge(string(topic), r.topicLen(topic))
}

// Unsubscribe removes handle from topic's subscriber list; an unknown
// handle is a silent no-op.
func (r *Registry[H]) Unsubscribe(topic Topic, handle H) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch topic {
	case TopicHashBlock:
		r.hashBlock = remove(r.hashBlock, handle)
	case TopicRawTransaction:
		r.rawTransaction = remove(r.rawTransaction, handle)
	}
	r.reportGauge(string(topic), r.topicLen(topic))
}

func (r *Registry[H]) topicLen(topic Topic) int {
	switch topic {
	case TopicHashBlock:
		return len(r.hashBlock)
	case TopicRawTransaction:
		return len(r.rawTransaction)
	default:
		return 0
	}
}

// SubscribeAddress adds handle to the addresstxid bucket for every valid
// address in addrs; invalid addresses are logged and ignored.
func (r *Registry[H]) SubscribeAddress(handle H, addrs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.validAddresses(addrs) {
		r.addressTxid[a] = appendUnique(r.addressTxid[a], handle)
	}
	r.reportGauge(string(TopicAddressTxid), r.addressSubscriberCount(r.addressTxid))
}

// UnsubscribeAddress removes handle from the addresstxid bucket for each
// address in addrs; an empty/nil addrs removes handle from every bucket.
// Empty buckets are deleted.
func (r *Registry[H]) UnsubscribeAddress(handle H, addrs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribeFrom(r.addressTxid, handle, addrs)
	r.reportGauge(string(TopicAddressTxid), r.addressSubscriberCount(r.addressTxid))
}

// SubscribeBalance is the symmetric variant for addressbalance.
func (r *Registry[H]) SubscribeBalance(handle H, addrs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.validAddresses(addrs) {
		r.addressBalance[a] = appendUnique(r.addressBalance[a], handle)
	}
	r.reportGauge(string(TopicAddressBalance), r.addressSubscriberCount(r.addressBalance))
}

// UnsubscribeBalance is the symmetric variant for addressbalance.
func (r *Registry[H]) UnsubscribeBalance(handle H, addrs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribeFrom(r.addressBalance, handle, addrs)
	r.reportGauge(string(TopicAddressBalance), r.addressSubscriberCount(r.addressBalance))
}

func (r *Registry[H]) unsubscribeFrom(buckets map[string][]H, handle H, addrs []string) {
	if len(addrs) == 0 {
		for addr, handles := range buckets {
			remaining := remove(handles, handle)
			if len(remaining) == 0 {
				delete(buckets, addr)
			} else {
				buckets[addr] = remaining
			}
		}
		return
	}
	for _, a := range addrs {
		remaining := remove(buckets[a], handle)
		if len(remaining) == 0 {
			delete(buckets, a)
		} else {
			buckets[a] = remaining
		}
	}
}

// Subscribers returns the subscriber list for topic, in arrival order.
func (r *Registry[H]) Subscribers(topic Topic) []H {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch topic {
	case TopicHashBlock:
		return append([]H(nil), r.hashBlock...)
	case TopicRawTransaction:
		return append([]H(nil), r.rawTransaction...)
	default:
		return nil
	}
}

// AddressSubscribers returns the addresstxid subscriber list for addr.
func (r *Registry[H]) AddressSubscribers(addr string) []H {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]H(nil), r.addressTxid[addr]...)
}

// BalanceSubscribers returns the addressbalance subscriber list for addr.
func (r *Registry[H]) BalanceSubscribers(addr string) []H {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]H(nil), r.addressBalance[addr]...)
}

func (r *Registry[H]) validAddresses(addrs []string) []string {
	var valid []string
	for _, a := range addrs {
		if r.network == nil {
			valid = append(valid, a)
			continue
		}
		if _, err := btcutil.DecodeAddress(a, r.network); err != nil {
			log.Debug("ignoring invalid subscribe address", "address", a, "error", err)
			continue
		}
		valid = append(valid, a)
	}
	return valid
}

func (r *Registry[H]) addressSubscriberCount(buckets map[string][]H) int {
	total := 0
	for _, h := range buckets {
		total += len(h)
	}
	return total
}

func (r *Registry[H]) reportGauge(topic string, count int) {
	if r.metrics != nil {
		r.metrics.Subscribers.WithLabelValues(topic).Set(float64(count))
	}
}

// Extra topic name constants for per-address gauges.
const (
	TopicAddressTxid    Topic = "addresstxid"
	TopicAddressBalance Topic = "addressbalance"
)

func appendUnique[H comparable](list []H, h H) []H {
	for _, existing := range list {
		if existing == h {
			return list
		}
	}
	return append(list, h)
}

func remove[H comparable](list []H, h H) []H {
	for i, existing := range list {
		if existing == h {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
