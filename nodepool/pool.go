// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package nodepool maintains the ordered ring of ready daemon endpoints and
// implements the round-robin, try-every-endpoint failover semantics used by
// every RPC call the core issues (spec.md §4.3).
package nodepool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qtumproject/qtumd-node/internal/logging"
	"github.com/qtumproject/qtumd-node/internal/metrics"
	"github.com/qtumproject/qtumd-node/rpcclient"
)

var log = logging.New("nodepool")

// Endpoint is one daemon the supervisor has proved reachable.
type Endpoint struct {
	Name string
	RPC  *rpcclient.Client

	ReindexWait       bool
	TipUpdateInterval time.Duration
}

// Pool is the ordered sequence of endpoints plus a monotonically advancing
// round-robin cursor. It is empty until the first endpoint is appended and,
// once populated, is append-only for the process lifetime.
type Pool struct {
	mu        sync.RWMutex
	endpoints []*Endpoint
	cursor    uint32

	tryAllInterval time.Duration
	metrics        *metrics.Registry
}

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithTryAllInterval overrides the default 1s wait between failed attempts.
func WithTryAllInterval(d time.Duration) Option {
	return func(p *Pool) { p.tryAllInterval = d }
}

// WithMetrics attaches a metrics registry the pool reports attempts to.
func WithMetrics(m *metrics.Registry) Option {
	return func(p *Pool) { p.metrics = m }
}

// New constructs an empty pool.
func New(opts ...Option) *Pool {
	p := &Pool{tryAllInterval: time.Second}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Add appends a ready endpoint. Safe to call concurrently with TryAllClients.
func (p *Pool) Add(e *Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endpoints = append(p.endpoints, e)
}

// Len reports how many endpoints are currently in the pool.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.endpoints)
}

// Endpoints returns a snapshot of the current endpoint list.
func (p *Pool) Endpoints() []*Endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Endpoint, len(p.endpoints))
	copy(out, p.endpoints)
	return out
}

// Action is the operation TryAllClients invokes against each endpoint's RPC
// client in turn.
type Action func(ctx context.Context, client *rpcclient.Client) (any, error)

// TryAllClients starts at the current round-robin cursor and invokes action
// against each endpoint until one succeeds. On success the result is
// returned immediately and the cursor is left unchanged, so independent
// calls keep landing on the same endpoint. If every endpoint fails, the
// cursor advances by one, so the next call starts at the following endpoint,
// and the last error observed is returned. The cursor is never advanced on
// success (spec.md open question: "never" matches majority source
// behaviour).
func (p *Pool) TryAllClients(ctx context.Context, action Action) (any, error) {
	endpoints := p.Endpoints()
	if len(endpoints) == 0 {
		return nil, &rpcclient.NoEndpointsError{}
	}

	start := int(atomic.LoadUint32(&p.cursor)) % len(endpoints)

	var lastErr error
	for i := 0; i < len(endpoints); i++ {
		idx := (start + i) % len(endpoints)
		ep := endpoints[idx]

		if p.metrics != nil {
			p.metrics.EndpointAttempts.WithLabelValues(ep.Name).Inc()
		}

		result, err := action(ctx, ep.RPC)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if p.metrics != nil {
			p.metrics.EndpointFailures.WithLabelValues(ep.Name).Inc()
		}
		log.Debug("endpoint attempt failed", "endpoint", ep.Name, "error", err)

		if i < len(endpoints)-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.tryAllInterval):
			}
		}
	}
	atomic.AddUint32(&p.cursor, 1)
	return nil, lastErr
}
