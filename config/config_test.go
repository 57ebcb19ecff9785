// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qtumproject/qtumd-node/errs"
)

func TestMaterialise_WritesDefaultTemplateOnFirstRun(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Materialise(filepath.Join(dir, "service"), "data", Livenet, "user", "pass")
	require.NoError(t, err)
	require.Equal(t, 1, cfg.Int("txindex"))
	require.Equal(t, 1, cfg.Int("addressindex"))
	require.Equal(t, 1, cfg.Int("spentindex"))
	require.Equal(t, "tcp://127.0.0.1:28332", cfg.ZMQPubHashBlock)
	require.Equal(t, cfg.ZMQPubHashBlock, cfg.ZMQPubRawTx)
	require.Equal(t, defaultRPCPort(Livenet), cfg.RPCPort)
}

func TestMaterialise_RejectsMissingRequiredFlag(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "qtum.conf"), []byte("server=1\n"), 0o600))

	_, err := Materialise(filepath.Join(dir, "service"), "data", Livenet, "user", "pass")
	var cfgErr *errs.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestMaterialise_RejectsMismatchedZMQEndpoints(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	contents := `server=1
txindex=1
addressindex=1
spentindex=1
zmqpubhashblock=tcp://127.0.0.1:28332
zmqpubrawtx=tcp://127.0.0.1:28333
`
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "qtum.conf"), []byte(contents), 0o600))

	_, err := Materialise(filepath.Join(dir, "service"), "data", Livenet, "user", "pass")
	var cfgErr *errs.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestMaterialise_ReindexSetsWaitInterval(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	contents := `server=1
txindex=1
addressindex=1
spentindex=1
zmqpubhashblock=tcp://127.0.0.1:28332
zmqpubrawtx=tcp://127.0.0.1:28332
reindex=1
`
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "qtum.conf"), []byte(contents), 0o600))

	cfg, err := Materialise(filepath.Join(dir, "service"), "data", Livenet, "user", "pass")
	require.NoError(t, err)
	require.True(t, cfg.Reindex)
	require.Equal(t, 30, cfg.ReindexWait)
}

func TestDefaultRPCPort_PerNetwork(t *testing.T) {
	require.Equal(t, 8332, defaultRPCPort(Livenet))
	require.Equal(t, 18332, defaultRPCPort(Testnet))
	require.Equal(t, 18332, defaultRPCPort(Regtest))
}
