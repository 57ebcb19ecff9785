// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package broker

import "context"

type scriptPubKey struct {
	Hex       string   `json:"hex"`
	Asm       string   `json:"asm"`
	Addresses []string `json:"addresses"`
	Type      string   `json:"type"`
}

type scriptSig struct {
	Hex string `json:"hex"`
	Asm string `json:"asm"`
}

type vinRPC struct {
	TxID      string    `json:"txid"`
	Vout      int       `json:"vout"`
	ScriptSig scriptSig `json:"scriptSig"`
	Coinbase  string    `json:"coinbase"`
	Sequence  uint32    `json:"sequence"`
}

func (v vinRPC) isCoinbase() bool { return v.Coinbase != "" }

type voutRPC struct {
	Value        float64      `json:"value"`
	N            int          `json:"n"`
	ScriptPubKey scriptPubKey `json:"scriptPubKey"`
}

// rawTransactionRPC mirrors a verbose getrawtransaction response.
type rawTransactionRPC struct {
	TxID          string    `json:"txid"`
	Hash          string    `json:"hash"`
	Hex           string    `json:"hex"`
	Version       int32     `json:"version"`
	Locktime      uint32    `json:"locktime"`
	Vin           []vinRPC  `json:"vin"`
	Vout          []voutRPC `json:"vout"`
	BlockHash     string    `json:"blockhash"`
	Confirmations int64     `json:"confirmations"`
	Time          int64     `json:"time"`
	BlockTime     int64     `json:"blocktime"`
}

// mempoolEntryRPC mirrors the fields of getmempoolentry this core reads:
// a transaction still sitting in the mempool has no blocktime, so its
// timestamp falls back to the entry's own time/receivedtime (spec.md §6).
type mempoolEntryRPC struct {
	Time         int64 `json:"time"`
	ReceivedTime int64 `json:"receivedtime"`
}

// GetRawTransaction returns the raw transaction bytes, content-addressed-
// cached by txid.
func (b *Broker) GetRawTransaction(ctx context.Context, txid string) ([]byte, error) {
	return b.caches.RawTx.GetOrFetch(txid, func() ([]byte, error) {
		var hex string
		if err := b.call(ctx, "getrawtransaction", []any{txid, false}, &hex); err != nil {
			return nil, err
		}
		return decodeHex(hex)
	})
}

// GetTransaction returns the daemon's verbose transaction view, content-
// addressed-cached by txid.
func (b *Broker) GetTransaction(ctx context.Context, txid string) (map[string]any, error) {
	v, err := b.caches.Tx.GetOrFetch(txid, func() (any, error) {
		var result map[string]any
		if err := b.call(ctx, "getrawtransaction", []any{txid, true}, &result); err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// GetDetailedTransaction synthesises the normalised verbose view of a
// transaction (spec.md §4.8): addresses whose scriptPubKey/scriptSig
// resolves to anything other than exactly one address become null, inputs
// with neither a scriptSig nor a coinbase marker get a null script, coinbase
// inputs contribute zero satoshis, and feeSatoshis is input minus output
// (zero for coinbase). Result is content-addressed-cached by txid.
func (b *Broker) GetDetailedTransaction(ctx context.Context, txid string) (*DetailedTransaction, error) {
	v, err := b.caches.DetailedTx.GetOrFetch(txid, func() (any, error) {
		var raw rawTransactionRPC
		if err := b.call(ctx, "getrawtransaction", []any{txid, true}, &raw); err != nil {
			return nil, err
		}
		return b.buildDetailedTransaction(ctx, raw)
	})
	if err != nil {
		return nil, err
	}
	return v.(*DetailedTransaction), nil
}

func (b *Broker) buildDetailedTransaction(ctx context.Context, raw rawTransactionRPC) (*DetailedTransaction, error) {
	coinbase := len(raw.Vin) > 0 && raw.Vin[0].isCoinbase()

	height := int64(-1)
	blockTimestamp := raw.BlockTime
	if raw.BlockHash != "" {
		hdr, err := b.GetBlockHeader(ctx, raw.BlockHash)
		if err == nil {
			height = hdr.Height
		}
	} else {
		blockTimestamp = b.mempoolEntryTimestamp(ctx, raw.TxID)
	}

	inputs := make([]DetailedInput, 0, len(raw.Vin))
	var inputSatoshis int64
	for _, vin := range raw.Vin {
		if vin.isCoinbase() {
			inputs = append(inputs, DetailedInput{
				Script:   vin.Coinbase,
				Satoshis: 0,
			})
			continue
		}

		in := DetailedInput{
			PrevTxID:    vin.TxID,
			OutputIndex: vin.Vout,
			Sequence:    vin.Sequence,
		}
		if vin.ScriptSig.Hex != "" {
			in.Script = vin.ScriptSig.Hex
			in.ScriptAsm = vin.ScriptSig.Asm
		}

		if prevOut, err := b.prevOut(ctx, vin.TxID, vin.Vout); err == nil {
			sats := toSatoshis(prevOut.Value)
			in.Satoshis = sats
			inputSatoshis += sats
			in.Address = singleAddress(prevOut.ScriptPubKey.Addresses)
		} else {
			log.Debug("detailed transaction: prevout lookup failed", "txid", vin.TxID, "vout", vin.Vout, "error", err)
		}

		inputs = append(inputs, in)
	}

	outputs := make([]DetailedOutput, 0, len(raw.Vout))
	var outputSatoshis int64
	for _, vout := range raw.Vout {
		sats := toSatoshis(vout.Value)
		outputSatoshis += sats
		outputs = append(outputs, DetailedOutput{
			Satoshis:  sats,
			Script:    vout.ScriptPubKey.Hex,
			ScriptAsm: vout.ScriptPubKey.Asm,
			Address:   singleAddress(vout.ScriptPubKey.Addresses),
		})
	}

	fee := int64(0)
	if !coinbase {
		fee = inputSatoshis - outputSatoshis
	}

	return &DetailedTransaction{
		Hash:           raw.TxID,
		Hex:            raw.Hex,
		BlockHash:      raw.BlockHash,
		Height:         height,
		BlockTimestamp: blockTimestamp,
		Version:        raw.Version,
		Locktime:       raw.Locktime,
		Coinbase:       coinbase,
		Inputs:         inputs,
		Outputs:        outputs,
		InputSatoshis:  inputSatoshis,
		OutputSatoshis: outputSatoshis,
		FeeSatoshis:    fee,
	}, nil
}

// mempoolEntryTimestamp fetches a still-unconfirmed transaction's mempool
// entry and returns its time, falling back to receivedtime when time is
// unset. A lookup failure (e.g. the transaction has since left the mempool)
// is logged and yields a zero timestamp rather than failing the whole
// detailed-transaction assembly.
func (b *Broker) mempoolEntryTimestamp(ctx context.Context, txid string) int64 {
	var entry mempoolEntryRPC
	if err := b.call(ctx, "getmempoolentry", []any{txid}, &entry); err != nil {
		log.Debug("detailed transaction: mempool entry lookup failed", "txid", txid, "error", err)
		return 0
	}
	if entry.Time != 0 {
		return entry.Time
	}
	return entry.ReceivedTime
}

// prevOut resolves the vout of a prior transaction, needed to attribute a
// value and address to a spending input (the daemon's verbose
// getrawtransaction does not echo this on the input side).
func (b *Broker) prevOut(ctx context.Context, prevTxID string, index int) (voutRPC, error) {
	var raw rawTransactionRPC
	if err := b.call(ctx, "getrawtransaction", []any{prevTxID, true}, &raw); err != nil {
		return voutRPC{}, err
	}
	for _, vout := range raw.Vout {
		if vout.N == index {
			return vout, nil
		}
	}
	return voutRPC{}, &errNotFoundLocal{prevTxID, index}
}

type errNotFoundLocal struct {
	txid  string
	index int
}

func (e *errNotFoundLocal) Error() string {
	return "broker: prevout not found for " + e.txid
}

// singleAddress returns addrs[0] when it is the only address, else "" per
// spec.md's "address lists of length != 1 normalise to null" rule.
func singleAddress(addrs []string) string {
	if len(addrs) == 1 {
		return addrs[0]
	}
	return ""
}

// toSatoshis converts a BTC-denominated RPC float to integer satoshis.
func toSatoshis(btc float64) int64 {
	return int64(btc*1e8 + 0.5)
}
