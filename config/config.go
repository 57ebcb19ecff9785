// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config materialises the daemon's own config file: the core reads
// and writes it, verifies the index flags the broker depends on, and derives
// per-network paths and ports. This is distinct from the outer service's own
// configuration, which is out of the core's scope (spec.md §1).
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/qtumproject/qtumd-node/errs"
)

// Network identifies which chain parameters the daemon should run with.
type Network string

const (
	Livenet Network = "livenet"
	Testnet Network = "testnet"
	Regtest Network = "regtest"
)

// defaultRPCPort returns the daemon's default RPC port for the network.
func defaultRPCPort(n Network) int {
	switch n {
	case Testnet, Regtest:
		return 18332
	default:
		return 8332
	}
}

// subdir returns the network's relative data-directory component.
func subdir(n Network) string {
	switch n {
	case Testnet:
		return "testnet3/"
	case Regtest:
		return "regtest/"
	default:
		return ""
	}
}

// requiredFlags is the set of index options the broker cannot operate
// without; each must resolve to integer 1.
var requiredFlags = []string{"txindex", "addressindex", "spentindex", "server"}

// DaemonConfig is the parsed form of the daemon's key=value config file,
// plus the fields the Config Materialiser derives from it.
type DaemonConfig struct {
	Path    string
	Options map[string]string

	Network Network
	DataDir string

	RPCPort int

	ZMQPubHashBlock string
	ZMQPubRawTx     string

	Reindex bool
	// ReindexWait is the minimum interval between verificationprogress
	// polls while reindex=1 was recorded in the daemon's config.
	ReindexWait int
}

// Int returns the option as an integer, or 0 if unset/unparsable.
func (c *DaemonConfig) Int(key string) int {
	v, ok := c.Options[key]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// Materialise resolves, loads or creates, and validates the daemon config
// file at the network-specific location under dataDir. servicePath anchors
// a relative dataDir the way the outer service's own config path would.
func Materialise(servicePath, dataDir string, network Network, rpcUser, rpcPassword string) (*DaemonConfig, error) {
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(filepath.Dir(servicePath), dataDir)
	}
	netDir := filepath.Join(dataDir, strings.TrimSuffix(subdir(network), "/"))
	confPath := filepath.Join(netDir, "qtum.conf")

	if _, err := os.Stat(confPath); os.IsNotExist(err) {
		if err := os.MkdirAll(netDir, 0o755); err != nil {
			return nil, fmt.Errorf("config: create data dir: %w", err)
		}
		if err := writeDefaultTemplate(confPath, rpcUser, rpcPassword); err != nil {
			return nil, fmt.Errorf("config: write default template: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("config: stat %s: %w", confPath, err)
	}

	opts, err := parseFile(confPath)
	if err != nil {
		return nil, err
	}

	cfg := &DaemonConfig{
		Path:    confPath,
		Options: opts,
		Network: network,
		DataDir: dataDir,
	}

	for _, flag := range requiredFlags {
		if cfg.Int(flag) != 1 {
			return nil, &errs.ConfigurationError{
				Reason: fmt.Sprintf("required option %q is not set to 1", flag),
			}
		}
	}

	hashBlock := opts["zmqpubhashblock"]
	rawTx := opts["zmqpubrawtx"]
	if hashBlock == "" || rawTx == "" {
		return nil, &errs.ConfigurationError{Reason: "zmqpubhashblock and zmqpubrawtx must both be set"}
	}
	if hostPort(hashBlock) != hostPort(rawTx) {
		return nil, &errs.ConfigurationError{
			Reason: "zmqpubhashblock and zmqpubrawtx must resolve to the same host:port",
		}
	}
	cfg.ZMQPubHashBlock = hashBlock
	cfg.ZMQPubRawTx = rawTx

	if cfg.Int("reindex") == 1 {
		cfg.Reindex = true
		cfg.ReindexWait = 30
	}

	cfg.RPCPort = cfg.Int("rpcport")
	if cfg.RPCPort == 0 {
		cfg.RPCPort = defaultRPCPort(network)
	}

	return cfg, nil
}

// hostPort strips a scheme (e.g. "tcp://") from a zmq endpoint, leaving the
// bare host:port used for endpoint-equality comparisons.
func hostPort(endpoint string) string {
	if idx := strings.Index(endpoint, "://"); idx >= 0 {
		return endpoint[idx+3:]
	}
	return endpoint
}

// parseFile reads key=value lines, ignoring blanks and '#' comments, and
// coercing nothing beyond trimming: callers that want an int call Int().
func parseFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	opts := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		opts[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: scan %s: %w", path, err)
	}
	return opts, nil
}

func writeDefaultTemplate(path, rpcUser, rpcPassword string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	tmpl := defaultTemplate(rpcUser, rpcPassword)
	_, err = f.WriteString(tmpl)
	return err
}
