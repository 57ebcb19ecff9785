// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/qtumproject/qtumd-node/cache"
	"github.com/qtumproject/qtumd-node/nodepool"
	"github.com/qtumproject/qtumd-node/rpcclient"
	"github.com/qtumproject/qtumd-node/tip"
)

type rpcHandler func(params json.RawMessage) (any, *rpcErrPayload)

type rpcErrPayload struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

func newFakeDaemon(t *testing.T, handlers map[string]rpcHandler) *Broker {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64          `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		h, ok := handlers[req.Method]
		if !ok {
			t.Fatalf("unexpected RPC method %q", req.Method)
		}
		result, rpcErr := h(req.Params)

		resp := struct {
			Result any            `json:"result"`
			Error  *rpcErrPayload `json:"error"`
			ID     uint64         `json:"id"`
		}{Result: result, Error: rpcErr, ID: req.ID}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	pool := nodepool.New()
	pool.Add(&nodepool.Endpoint{Name: "fake", RPC: rpcclient.New(u, "", "", nil)})

	tipState := tip.New(nil, nil, nil, nil, nil)
	return New(pool, cache.New(nil), tipState, &chaincfg.MainNetParams, func() bool { return false })
}

func TestGetAddressUnspentOutputs_MempoolOverlay(t *testing.T) {
	b := newFakeDaemon(t, map[string]rpcHandler{
		"getaddressutxos": func(params json.RawMessage) (any, *rpcErrPayload) {
			return []addressUTXORPC{
				{Address: "qAddr", TxID: "confirmed1", OutputIndex: 0, Satoshis: 1000, Height: 100},
				{Address: "qAddr", TxID: "confirmed2", OutputIndex: 0, Satoshis: 2000, Height: 101},
			}, nil
		},
		"getaddressmempool": func(params json.RawMessage) (any, *rpcErrPayload) {
			return []addressDeltaRPC{
				// spends confirmed1:0
				{Address: "qAddr", TxID: "spender", Index: 0, Satoshis: -1000, Timestamp: 10, PrevTxID: "confirmed1", PrevOut: 0},
				// creates a new unspent mempool output
				{Address: "qAddr", TxID: "mempool1", Index: 0, Satoshis: 500, Timestamp: 20},
			}, nil
		},
	})

	utxos, err := b.GetAddressUnspentOutputs(context.Background(), []string{"qAddr"}, Options{QueryMempool: true})
	require.NoError(t, err)

	require.Len(t, utxos, 2)
	require.Equal(t, "mempool1", utxos[0].TxID)
	require.Equal(t, int64(500), utxos[0].Satoshis)
	require.Equal(t, "confirmed2", utxos[1].TxID)
	require.Equal(t, int64(2000), utxos[1].Satoshis)
}

func TestGetAddressUnspentOutputs_WithoutMempoolReturnsConfirmedOnly(t *testing.T) {
	b := newFakeDaemon(t, map[string]rpcHandler{
		"getaddressutxos": func(params json.RawMessage) (any, *rpcErrPayload) {
			return []addressUTXORPC{
				{Address: "qAddr", TxID: "confirmed1", OutputIndex: 0, Satoshis: 1000, Height: 100},
			}, nil
		},
	})

	utxos, err := b.GetAddressUnspentOutputs(context.Background(), []string{"qAddr"}, Options{})
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	require.Equal(t, "confirmed1", utxos[0].TxID)
}

func TestGetAddressTxids_MempoolOnly(t *testing.T) {
	b := newFakeDaemon(t, map[string]rpcHandler{
		"getaddressmempool": func(params json.RawMessage) (any, *rpcErrPayload) {
			return []addressDeltaRPC{
				{Address: "qAddr", TxID: "mempoolTx", Index: 0, Satoshis: 100, Timestamp: 1},
			}, nil
		},
	})

	txids, err := b.GetAddressTxids(context.Background(), []string{"qAddr"}, Options{QueryMempoolOnly: true})
	require.NoError(t, err)
	require.Equal(t, []string{"mempoolTx"}, txids)
}

func TestGetAddressTxids_DefaultDedupsMempoolAndConfirmed(t *testing.T) {
	b := newFakeDaemon(t, map[string]rpcHandler{
		"getaddresstxids": func(params json.RawMessage) (any, *rpcErrPayload) {
			return []string{"confirmedTx", "sharedTx"}, nil
		},
		"getaddressmempool": func(params json.RawMessage) (any, *rpcErrPayload) {
			return []addressDeltaRPC{
				{Address: "qAddr", TxID: "sharedTx", Index: 0, Satoshis: 100, Timestamp: 5},
			}, nil
		},
	})

	txids, err := b.GetAddressTxids(context.Background(), []string{"qAddr"}, Options{QueryMempool: true})
	require.NoError(t, err)
	require.Equal(t, []string{"sharedTx", "confirmedTx"}, txids)
}

func TestGetAddressTxids_HeightRangeBypassesMempool(t *testing.T) {
	called := false
	b := newFakeDaemon(t, map[string]rpcHandler{
		"getaddresstxids": func(params json.RawMessage) (any, *rpcErrPayload) {
			called = true
			return []string{"rangeTx"}, nil
		},
	})

	txids, err := b.GetAddressTxids(context.Background(), []string{"qAddr"}, Options{QueryMempool: true, Start: 200, End: 100})
	require.NoError(t, err)
	require.True(t, called)
	require.Equal(t, []string{"rangeTx"}, txids)
}

func TestGetAddressSummary_NoTxListOmitsTxids(t *testing.T) {
	b := newFakeDaemon(t, map[string]rpcHandler{
		"getaddressbalance": func(params json.RawMessage) (any, *rpcErrPayload) {
			return AddressBalance{Balance: 500, Received: 1000}, nil
		},
		"getaddresstxids": func(params json.RawMessage) (any, *rpcErrPayload) {
			return []string{"confirmedTx"}, nil
		},
		"getaddressmempool": func(params json.RawMessage) (any, *rpcErrPayload) {
			return []addressDeltaRPC{}, nil
		},
	})

	summary, err := b.GetAddressSummary(context.Background(), []string{"qAddr"}, Options{NoTxList: true})
	require.NoError(t, err)
	require.Nil(t, summary.TxIDs)
	require.Equal(t, int64(1000), summary.TotalReceived)
	require.Equal(t, int64(500), summary.Balance)

	summaryWithTxids, err := b.GetAddressSummary(context.Background(), []string{"qAddr"}, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"confirmedTx"}, summaryWithTxids.TxIDs)
}

func TestGetDetailedTransaction_MempoolFallsBackToMempoolEntryTimestamp(t *testing.T) {
	b := newFakeDaemon(t, map[string]rpcHandler{
		"getrawtransaction": func(params json.RawMessage) (any, *rpcErrPayload) {
			return rawTransactionRPC{
				TxID: "unconfirmedTx",
				Vin:  []vinRPC{{Coinbase: "03deadbeef"}},
				Vout: []voutRPC{
					{Value: 1, N: 0, ScriptPubKey: scriptPubKey{Addresses: []string{"qA"}}},
				},
			}, nil
		},
		"getmempoolentry": func(params json.RawMessage) (any, *rpcErrPayload) {
			return mempoolEntryRPC{ReceivedTime: 1600000000}, nil
		},
	})

	dtx, err := b.GetDetailedTransaction(context.Background(), "unconfirmedTx")
	require.NoError(t, err)
	require.Equal(t, int64(-1), dtx.Height)
	require.Equal(t, int64(1600000000), dtx.BlockTimestamp)
}

func TestGetSpentInfo_NotFoundMapsToEmptyObject(t *testing.T) {
	b := newFakeDaemon(t, map[string]rpcHandler{
		"getspentinfo": func(params json.RawMessage) (any, *rpcErrPayload) {
			return nil, &rpcErrPayload{Code: -5, Message: "Unable to get spent info"}
		},
	})

	result, err := b.GetSpentInfo(context.Background(), "txid", 0)
	require.NoError(t, err)
	require.Empty(t, result)
}

func TestGetSpentInfo_OtherErrorsPropagate(t *testing.T) {
	b := newFakeDaemon(t, map[string]rpcHandler{
		"getspentinfo": func(params json.RawMessage) (any, *rpcErrPayload) {
			return nil, &rpcErrPayload{Code: -32600, Message: "invalid request"}
		},
	})

	_, err := b.GetSpentInfo(context.Background(), "txid", 0)
	require.Error(t, err)
}

func TestGetDetailedTransaction_CoinbaseHasZeroFeeAndNoInputValue(t *testing.T) {
	b := newFakeDaemon(t, map[string]rpcHandler{
		"getrawtransaction": func(params json.RawMessage) (any, *rpcErrPayload) {
			return rawTransactionRPC{
				TxID:    "coinbaseTx",
				Hex:     "abcd",
				Version: 1,
				Vin:     []vinRPC{{Coinbase: "03deadbeef"}},
				Vout: []voutRPC{
					{Value: 12.5, N: 0, ScriptPubKey: scriptPubKey{Hex: "abc", Addresses: []string{"qMiner"}}},
				},
			}, nil
		},
		"getmempoolentry": func(params json.RawMessage) (any, *rpcErrPayload) {
			return mempoolEntryRPC{Time: 1700000000}, nil
		},
	})

	dtx, err := b.GetDetailedTransaction(context.Background(), "coinbaseTx")
	require.NoError(t, err)
	require.True(t, dtx.Coinbase)
	require.Equal(t, int64(0), dtx.InputSatoshis)
	require.Equal(t, int64(0), dtx.FeeSatoshis)
	require.Equal(t, int64(1250000000), dtx.OutputSatoshis)
	require.Equal(t, "qMiner", dtx.Outputs[0].Address)
}

func TestGetDetailedTransaction_MultiAddressScriptNormalisesToNullAddress(t *testing.T) {
	b := newFakeDaemon(t, map[string]rpcHandler{
		"getrawtransaction": func(params json.RawMessage) (any, *rpcErrPayload) {
			return rawTransactionRPC{
				TxID: "multisigTx",
				Vin:  []vinRPC{{Coinbase: "03deadbeef"}},
				Vout: []voutRPC{
					{Value: 1, N: 0, ScriptPubKey: scriptPubKey{Addresses: []string{"qA", "qB"}}},
				},
			}, nil
		},
		"getmempoolentry": func(params json.RawMessage) (any, *rpcErrPayload) {
			return mempoolEntryRPC{Time: 1700000000}, nil
		},
	})

	dtx, err := b.GetDetailedTransaction(context.Background(), "multisigTx")
	require.NoError(t, err)
	require.Equal(t, "", dtx.Outputs[0].Address)
}

func TestSyncPercentage_MultipliesVerificationProgress(t *testing.T) {
	b := newFakeDaemon(t, map[string]rpcHandler{
		"getblockchaininfo": func(params json.RawMessage) (any, *rpcErrPayload) {
			return map[string]any{"verificationprogress": 0.9955, "blocks": 100}, nil
		},
	})

	pct, err := b.SyncPercentage(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 99.55, pct, 0.001)

	synced, err := b.IsSynced(context.Background())
	require.NoError(t, err)
	require.True(t, synced)
}
