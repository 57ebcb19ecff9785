// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pushsub

import (
	"bytes"
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// secp256k1 generator point and its double, both valid compressed public
// keys, used to build a real multisig script without depending on point
// validation internals.
const (
	generatorPubKeyHex = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	doubleGenPubKeyHex = "02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"
)

func TestBoundedSet_EvictsOldestOnceAtCapacity(t *testing.T) {
	s := newBoundedSet(2)
	require.False(t, s.SeenOrInsert("a"))
	require.False(t, s.SeenOrInsert("b"))
	require.True(t, s.SeenOrInsert("a"))

	require.False(t, s.SeenOrInsert("c")) // evicts "a"
	require.False(t, s.SeenOrInsert("a")) // "a" was evicted, so it's new again
}

func TestHandleHashBlock_DedupsSameHashAndFiresBothCallbacks(t *testing.T) {
	var blocks []string
	var tips int
	sink := Sink{
		OnBlock: func(hashHex string) { blocks = append(blocks, hashHex) },
		OnTip:   func() { tips++ },
	}
	s := New("", &chaincfg.MainNetParams, sink, nil)

	hash := bytes.Repeat([]byte{0xAB}, 32)
	s.handleHashBlock(hash)
	s.handleHashBlock(hash)

	require.Len(t, blocks, 1)
	require.Equal(t, 1, tips)
}

func TestHandleHashBlock_IgnoresWrongLengthPayload(t *testing.T) {
	called := false
	sink := Sink{OnBlock: func(string) { called = true }}
	s := New("", &chaincfg.MainNetParams, sink, nil)

	s.handleHashBlock([]byte{0x01, 0x02})
	require.False(t, called)
}

func buildTestTx(t *testing.T) []byte {
	t.Helper()

	hash160 := bytes.Repeat([]byte{0x11}, 20)
	addr, err := btcutil.NewAddressPubKeyHash(hash160, &chaincfg.MainNetParams)
	require.NoError(t, err)
	p2pkh, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	pub1, err := hex.DecodeString(generatorPubKeyHex)
	require.NoError(t, err)
	pub2, err := hex.DecodeString(doubleGenPubKeyHex)
	require.NoError(t, err)
	ecPub1, err := btcutil.NewAddressPubKey(pub1, &chaincfg.MainNetParams)
	require.NoError(t, err)
	ecPub2, err := btcutil.NewAddressPubKey(pub2, &chaincfg.MainNetParams)
	require.NoError(t, err)
	multisig, err := txscript.MultiSigScript([]*btcutil.AddressPubKey{ecPub1, ecPub2}, 2)
	require.NoError(t, err)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 0}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, p2pkh))
	tx.AddTxOut(wire.NewTxOut(2000, multisig))

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	return buf.Bytes()
}

func TestHandleRawTx_ExtractsSingleAddressOutputsOnlyAndDedupsByTxid(t *testing.T) {
	raw := buildTestTx(t)

	var calls int
	var gotAddrs []string
	sink := Sink{
		OnTx: func(rawHex string, addrs []string) {
			calls++
			gotAddrs = addrs
			require.NotEmpty(t, rawHex)
		},
	}
	s := New("", &chaincfg.MainNetParams, sink, nil)

	s.handleRawTx(raw)
	s.handleRawTx(raw)

	require.Equal(t, 1, calls)
	require.Len(t, gotAddrs, 1) // the multisig output's 2 addresses are excluded
}

func TestPollUntilSynced_FiresOnTipOnHashChangeAndStopsOnceSynced(t *testing.T) {
	var tips int
	s := New("", &chaincfg.MainNetParams, Sink{OnTip: func() { tips++ }}, nil)

	hashes := []string{"h1", "h1", "h2", "h3"}
	var calls int

	getHash := func(ctx context.Context) (string, error) {
		h := hashes[calls]
		if calls < len(hashes)-1 {
			calls++
		}
		return h, nil
	}
	isSynced := func() bool { return calls >= len(hashes)-1 }

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.PollUntilSynced(ctx, 5*time.Millisecond, getHash, isSynced)
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("PollUntilSynced did not return once synced")
	}
	require.GreaterOrEqual(t, tips, 2)
}
