// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tip owns the core's view of the best block height and genesis
// bytes, coalesces rapid successive block notifications into a single
// trailing update, and fans out tip/synced events (spec.md §4.6).
package tip

import (
	"context"
	"sync"
	"time"

	"github.com/qtumproject/qtumd-node/internal/logging"
	"github.com/qtumproject/qtumd-node/internal/metrics"
)

var log = logging.New("tip")

// coalesceWindow is the period during which repeated block notifications
// collapse into at most one trailing update (spec.md §9 open question:
// value left unspecified beyond the ≤2-updates-per-50-notifications bound).
const coalesceWindow = 50 * time.Millisecond

// BlockLookup resolves a block hash to its height and sync percentage.
type BlockLookup func(ctx context.Context, hashHex string) (height int32, syncPercentage float64, err error)

// State is the Tip Tracker: height and genesis, guarded by a mutex because
// it is read from multiple public-operation goroutines even though writes
// only ever originate from the single notification dispatcher.
type State struct {
	mu      sync.RWMutex
	height  int32
	hash    string
	genesis []byte
	set     bool

	lookup   BlockLookup
	onTip    func(height int32)
	onSynced func()
	metrics  *metrics.Registry

	coalesce sync.Mutex
	pending  bool
	lastHash string

	stopping func() bool
}

// New constructs a Tip Tracker. lookup resolves a hash to height/sync
// percentage; onTip/onSynced fire the corresponding published events;
// stopping reports the process-wide shutdown flag: while it reports true,
// update does not emit synced. The lookup, which also yields the sync
// percentage, still runs while stopping.
func New(lookup BlockLookup, onTip func(int32), onSynced func(), m *metrics.Registry, stopping func() bool) *State {
	return &State{lookup: lookup, onTip: onTip, onSynced: onSynced, metrics: m, stopping: stopping}
}

// SetGenesis records the genesis bytes exactly once at startup.
func (s *State) SetGenesis(genesis []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		s.genesis = genesis
		s.set = true
	}
}

// Genesis returns the recorded genesis bytes.
func (s *State) Genesis() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.genesis
}

// Height returns the current best height.
func (s *State) Height() int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height
}

// OnBlockNotification schedules a tip update for hashHex, coalescing with
// any update already pending within coalesceWindow. At most one trailing
// update is scheduled per window; after the tip resolves, the window
// resets (spec.md §4.6, §8 scenario 3: 50 rapid same-hash notifications
// yield ≤2 tip-update invocations).
func (s *State) OnBlockNotification(ctx context.Context, hashHex string) {
	s.coalesce.Lock()
	s.lastHash = hashHex
	if s.pending {
		s.coalesce.Unlock()
		return
	}
	s.pending = true
	s.coalesce.Unlock()

	go func() {
		time.Sleep(coalesceWindow)
		s.coalesce.Lock()
		hash := s.lastHash
		s.pending = false
		s.coalesce.Unlock()
		s.update(ctx, hash)
	}()
}

// update looks up hash, advances height, invalidates tip-sensitive caches
// via the caller-supplied invalidate hook, and emits tip/synced events. A
// second update for the same hash the height tracker already recorded is a
// no-op (dedup by hash).
func (s *State) update(ctx context.Context, hashHex string) {
	height, syncPct, err := s.lookup(ctx, hashHex)
	if err != nil {
		log.Debug("tip lookup failed", "hash", hashHex, "error", err)
		return
	}

	s.mu.Lock()
	if hashHex == s.hash {
		s.mu.Unlock()
		return
	}
	s.hash = hashHex
	s.height = height
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.TipHeight.Set(float64(height))
	}
	if s.onTip != nil {
		s.onTip(height)
	}

	if s.stopping != nil && s.stopping() {
		return
	}
	if syncPct >= 100 && s.onSynced != nil {
		s.onSynced()
	}
}
