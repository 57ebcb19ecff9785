// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command qtumd-node runs the core: it materialises the daemon's config,
// spawns (or connects to) the daemon, attaches the push-channel subscriber,
// builds the Query Broker, and serves Prometheus metrics until told to stop.
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/qtumproject/qtumd-node/broker"
	"github.com/qtumproject/qtumd-node/cache"
	"github.com/qtumproject/qtumd-node/config"
	"github.com/qtumproject/qtumd-node/internal/logging"
	"github.com/qtumproject/qtumd-node/internal/metrics"
	"github.com/qtumproject/qtumd-node/nodepool"
	"github.com/qtumproject/qtumd-node/pushsub"
	"github.com/qtumproject/qtumd-node/rpcclient"
	"github.com/qtumproject/qtumd-node/subscriptions"
	"github.com/qtumproject/qtumd-node/supervisor"
	"github.com/qtumproject/qtumd-node/tip"
)

var log = logging.New("main")

func main() {
	app := &cli.App{
		Name:  "qtumd-node",
		Usage: "supervise a qtumd daemon and serve the address/block query broker",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "datadir", Value: "./data", Usage: "daemon data directory"},
			&cli.StringFlag{Name: "network", Value: "livenet", Usage: "livenet, testnet, or regtest"},
			&cli.StringFlag{Name: "exec-path", Value: "qtumd", Usage: "path to the qtumd executable"},
			&cli.StringFlag{Name: "rpc-user", Value: "qtumuser"},
			&cli.StringFlag{Name: "rpc-password", Value: "qtumpass"},
			&cli.StringFlag{Name: "mode", Value: "spawn", Usage: "spawn, connect, or both"},
			&cli.StringSliceFlag{Name: "rpc-endpoint", Usage: "additional daemon RPC endpoints to pool (connect/both mode)"},
			&cli.StringFlag{Name: "metrics-addr", Value: ":9292", Usage: "Prometheus /metrics listen address"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Error("qtumd-node exited with error", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	network := config.Network(c.String("network"))
	chainParams := chainParamsFor(network)

	m := metrics.NewRegistry()
	m.MustRegister(prometheus.DefaultRegisterer)
	go serveMetrics(c.String("metrics-addr"))

	pool := nodepool.New(nodepool.WithMetrics(m))
	var stopped bool
	stopping := func() bool { return stopped }

	caches := cache.New(m)
	subs := subscriptions.New[chan []byte](chainParams, m)

	// b is assigned below, after tipState; the lookup closure only
	// dereferences it once invoked, by which time it is set.
	var b *broker.Broker
	tipState := tip.New(
		func(ctx context.Context, hashHex string) (int32, float64, error) {
			hdr, err := b.GetBlockHeader(ctx, hashHex)
			if err != nil {
				return 0, 0, err
			}
			pct, err := b.SyncPercentage(ctx)
			if err != nil {
				return int32(hdr.Height), 0, nil
			}
			return int32(hdr.Height), pct, nil
		},
		func(height int32) {
			caches.InvalidateTipSensitive()
			log.Info("tip advanced", "height", height)
		},
		func() { log.Info("daemon reported synced") },
		m,
		stopping,
	)
	b = broker.New(pool, caches, tipState, chainParams, stopping)

	for _, endpoint := range c.StringSlice("rpc-endpoint") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return fmt.Errorf("main: parse rpc-endpoint %q: %w", endpoint, err)
		}
		pool.Add(&nodepool.Endpoint{Name: endpoint, RPC: rpcclient.New(u, c.String("rpc-user"), c.String("rpc-password"), nil)})
	}

	mode := supervisor.ModeConnect
	switch c.String("mode") {
	case "spawn":
		mode = supervisor.ModeSpawn
	case "both":
		mode = supervisor.ModeBoth
	}

	if mode != supervisor.ModeConnect {
		cfg, err := config.Materialise(os.Args[0], c.String("datadir"), network, c.String("rpc-user"), c.String("rpc-password"))
		if err != nil {
			return fmt.Errorf("main: materialise config: %w", err)
		}

		var recMu sync.Mutex
		var activeRec *supervisor.ProcessRecord

		sup := supervisor.New(mode, func(rec *supervisor.ProcessRecord) {
			recMu.Lock()
			activeRec = rec
			recMu.Unlock()

			endpointURL := &url.URL{Scheme: "http", Host: "127.0.0.1:" + strconv.Itoa(cfg.RPCPort)}
			rpc := rpcclient.New(endpointURL, c.String("rpc-user"), c.String("rpc-password"), nil)
			pool.Add(&nodepool.Endpoint{Name: "local", RPC: rpc})

			sink := pushsub.Sink{
				OnBlock: func(hashHex string) { fanOutHashBlock(subs, hashHex) },
				OnTip: func() {
					best, err := b.GetBestBlockHash(ctx)
					if err == nil {
						tipState.OnBlockNotification(ctx, best)
					}
				},
				OnTx: func(rawHex string, addresses []string) { fanOutRawTx(subs, rawHex, addresses) },
			}
			sub := pushsub.New(cfg.ZMQPubHashBlock, chainParams, sink, m)
			go func() {
				sub.PollUntilSynced(ctx, 5*time.Second, b.GetBestBlockHash, func() bool {
					synced, _ := b.IsSynced(ctx)
					return synced
				})
				if ctx.Err() != nil {
					return
				}
				if err := sub.Attach(ctx); err != nil {
					log.Error("pushsub attach failed", "error", err)
				}
			}()
		}, func(err error) {
			log.Error("supervisor reported a fatal error", "error", err)
		})

		execPath := c.String("exec-path")
		pidPath := cfg.DataDir + "/qtumd.pid"
		sup.Spawn(ctx, execPath, cfg, string(network), pidPath, b.GetBestBlockHash, func(ctx context.Context) (float64, error) {
			pct, err := b.SyncPercentage(ctx)
			return pct / 100, err
		})

		defer func() {
			stopped = true
			sup.Stop()
			recMu.Lock()
			rec := activeRec
			recMu.Unlock()
			if rec != nil {
				if err := sup.GracefulStop(rec); err != nil {
					log.Error("graceful stop failed", "error", err)
				}
			}
		}()
	}

	<-ctx.Done()
	stopped = true
	log.Info("shutting down")
	return nil
}

func chainParamsFor(n config.Network) *chaincfg.Params {
	switch n {
	case config.Testnet:
		return &chaincfg.TestNet3Params
	case config.Regtest:
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server stopped", "error", err)
	}
}

// fanOutHashBlock delivers a hashblock notification payload to every plain
// hashblock subscriber channel, dropping it for any subscriber whose channel
// is not currently being drained rather than blocking the dispatcher.
func fanOutHashBlock(subs *subscriptions.Registry[chan []byte], hashHex string) {
	payload := []byte(hashHex)
	for _, ch := range subs.Subscribers(subscriptions.TopicHashBlock) {
		select {
		case ch <- payload:
		default:
			log.Debug("dropping hashblock notification for slow subscriber")
		}
	}
}

// fanOutRawTx delivers a rawtransaction notification to plain subscribers
// and, per address the transaction touches, to that address's addresstxid
// subscribers.
func fanOutRawTx(subs *subscriptions.Registry[chan []byte], rawHex string, addresses []string) {
	payload := []byte(rawHex)
	for _, ch := range subs.Subscribers(subscriptions.TopicRawTransaction) {
		select {
		case ch <- payload:
		default:
			log.Debug("dropping rawtransaction notification for slow subscriber")
		}
	}
	for _, addr := range addresses {
		for _, ch := range subs.AddressSubscribers(addr) {
			select {
			case ch <- payload:
			default:
				log.Debug("dropping addresstxid notification for slow subscriber", "address", addr)
			}
		}
		for _, ch := range subs.BalanceSubscribers(addr) {
			select {
			case ch <- payload:
			default:
				log.Debug("dropping addressbalance notification for slow subscriber", "address", addr)
			}
		}
	}
}
