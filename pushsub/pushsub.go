// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pushsub attaches to a daemon's ZMQ-style push channel, subscribes
// to the hashblock and rawtx topics, deduplicates repeated notifications,
// and drives tip updates and subscriber fan-out (spec.md §4.5). Before a
// daemon is close enough to synced, it polls the tip instead of attaching.
package pushsub

import (
	"bytes"
	"context"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/gozmq"

	"github.com/qtumproject/qtumd-node/internal/logging"
	"github.com/qtumproject/qtumd-node/internal/metrics"
)

var log = logging.New("pushsub")

const (
	topicHashBlock = "hashblock"
	topicRawTx     = "rawtx"

	recentBlockCapacity = 200
	recentTxCapacity    = 200

	// pollTimeout bounds how long a Receive() call blocks before returning
	// control to the goroutine so it can observe shutdown.
	pollTimeout = 500 * time.Millisecond
)

// Sink receives normalised events from the subscriber. The fields mirror the
// "Published events" of spec.md §6.
type Sink struct {
	// OnBlock fires once per distinct block hash, hex-encoded.
	OnBlock func(hashHex string)
	// OnTip fires whenever a new block notification should drive a tip
	// update (either from a live push message or from polling).
	OnTip func()
	// OnTx fires once per distinct raw transaction, hex-encoded, plus the
	// set of distinct addresses the transaction touches.
	OnTx func(rawHex string, addresses []string)
}

// BestBlockHashFn fetches the daemon's current best-block hash, used for
// tip polling before the daemon is synced enough to attach a push socket.
type BestBlockHashFn func(ctx context.Context) (string, error)

// Subscriber manages one daemon's push channel.
type Subscriber struct {
	addr    string
	network *chaincfg.Params
	sink    Sink
	metrics *metrics.Registry

	recentBlocks *boundedSet
	recentTxs    *boundedSet
}

// New constructs a Subscriber for the given ZMQ publisher address.
func New(addr string, network *chaincfg.Params, sink Sink, m *metrics.Registry) *Subscriber {
	return &Subscriber{
		addr:         addr,
		network:      network,
		sink:         sink,
		metrics:      m,
		recentBlocks: newBoundedSet(recentBlockCapacity),
		recentTxs:    newBoundedSet(recentTxCapacity),
	}
}

// PollUntilSynced polls getBestBlockHash every interval until isSynced
// reports true, invoking sink.OnTip whenever the hash changes, then returns
// so the caller can Attach the real push socket exactly once.
func (s *Subscriber) PollUntilSynced(ctx context.Context, interval time.Duration, getBestBlockHash BestBlockHashFn, isSynced func() bool) {
	var lastHash string
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if isSynced() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hash, err := getBestBlockHash(ctx)
			if err != nil {
				log.Debug("poll getBestBlockHash failed", "error", err)
				continue
			}
			if hash != lastHash {
				lastHash = hash
				s.sink.OnTip()
			}
		}
	}
}

// Attach opens the ZMQ subscription and runs the receive loop until ctx is
// cancelled. It must be called at most once per Subscriber.
func (s *Subscriber) Attach(ctx context.Context) error {
	sub, err := gozmq.NewSubscriber(s.addr, []string{topicHashBlock, topicRawTx}, 100, pollTimeout)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, err := sub.Receive()
		if err != nil {
			// Poll timeouts surface as errors from some gozmq versions;
			// treat any receive error as transient and keep looping.
			continue
		}
		if len(msg) < 2 {
			continue
		}
		s.handle(msg[0], msg[1])
	}
}

func (s *Subscriber) handle(topic, payload []byte) {
	switch string(topic) {
	case topicHashBlock:
		s.handleHashBlock(payload)
	case topicRawTx:
		s.handleRawTx(payload)
	default:
		// unknown topic: ignore
	}
}

func (s *Subscriber) handleHashBlock(payload []byte) {
	if len(payload) != 32 {
		return
	}
	key := string(payload)
	if s.recentBlocks.SeenOrInsert(key) {
		return
	}
	if s.metrics != nil {
		s.metrics.PushNotifications.WithLabelValues(topicHashBlock).Inc()
	}

	hex := reverseHex(payload)
	if s.sink.OnBlock != nil {
		s.sink.OnBlock(hex)
	}
	if s.sink.OnTip != nil {
		s.sink.OnTip()
	}
}

func (s *Subscriber) handleRawTx(payload []byte) {
	if len(payload) < 32 {
		return
	}
	key := string(payload[:32])
	if s.recentTxs.SeenOrInsert(key) {
		return
	}
	if s.metrics != nil {
		s.metrics.PushNotifications.WithLabelValues(topicRawTx).Inc()
	}

	rawHex := toHex(payload)
	addresses := s.extractAddresses(payload)

	if s.sink.OnTx != nil {
		s.sink.OnTx(rawHex, addresses)
	}
}

// extractAddresses parses the raw transaction and returns the distinct set
// of addresses referenced by its outputs (and, best-effort, its inputs'
// previous output scripts are not available without a UTXO lookup, so only
// output addresses are derived here per spec.md §4.5).
func (s *Subscriber) extractAddresses(raw []byte) []string {
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var addrs []string
	for _, out := range tx.TxOut {
		_, scriptAddrs, _, err := txscript.ExtractPkScriptAddrs(out.PkScript, s.network)
		if err != nil || len(scriptAddrs) != 1 {
			continue
		}
		a := scriptAddrs[0].EncodeAddress()
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		addrs = append(addrs, a)
	}
	return addrs
}
