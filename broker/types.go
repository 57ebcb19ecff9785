// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package broker

// Options is the enumerated record every public broker operation accepts
// (spec.md §9): recognised keys only, everything else ignored.
type Options struct {
	QueryMempool     bool
	QueryMempoolOnly bool
	NoTxList         bool

	// Start/End is an inclusive height range in the bitcore/insight
	// descending convention: Start is the newer/higher block, End the
	// older/lower block being scanned down to (End <= Start). Start == 0
	// means "no range".
	Start int64
	End   int64

	// From/To is a half-open, 0-indexed pagination window.
	From int64
	To   int64

	AllowAbsurdFees bool
}

// HasHeightRange reports whether Start/End describe a real, descending
// inclusive height range per spec.md's "end <= start" convention (Start == 0
// means "no range").
func (o Options) HasHeightRange() bool {
	return o.Start > 0 && o.Start >= o.End
}

// BlockHeader is the normalised header+metadata view shared by
// getBlockOverview and getBlockHeader (spec.md §4.8).
type BlockHeader struct {
	Hash          string  `json:"hash"`
	Version       int32   `json:"version"`
	Confirmations int64   `json:"confirmations"`
	Height        int64   `json:"height"`
	ChainWork     string  `json:"chainWork"`
	PrevHash      string  `json:"prevHash,omitempty"`
	NextHash      string  `json:"nextHash,omitempty"`
	MerkleRoot    string  `json:"merkleRoot"`
	Time          int64   `json:"time"`
	MedianTime    int64   `json:"medianTime"`
	Nonce         uint32  `json:"nonce"`
	Bits          string  `json:"bits"`
	Difficulty    float64 `json:"difficulty"`
}

// Block is the parsed block object returned by getBlock, embedding the
// header fields plus the list of transaction ids it contains.
type Block struct {
	BlockHeader
	Tx   []string `json:"tx"`
	Size int64    `json:"size"`
}

// DetailedInput is one normalised input of a detailed transaction.
type DetailedInput struct {
	PrevTxID    string `json:"prevTxId"`
	OutputIndex int    `json:"outputIndex"`
	Sequence    uint32 `json:"sequence"`
	Script      string `json:"script"`
	ScriptAsm   string `json:"scriptAsm"`
	Address     string `json:"address"`
	Satoshis    int64  `json:"satoshis"`
}

// DetailedOutput is one normalised output of a detailed transaction.
type DetailedOutput struct {
	Satoshis     int64  `json:"satoshis"`
	Script       string `json:"script"`
	ScriptAsm    string `json:"scriptAsm"`
	Address      string `json:"address"`
	SpentTxID    string `json:"spentTxId,omitempty"`
	SpentIndex   int    `json:"spentIndex,omitempty"`
	SpentHeight  int64  `json:"spentHeight,omitempty"`
}

// DetailedTransaction is the synthesised verbose transaction view produced
// by getDetailedTransaction (spec.md §4.8).
type DetailedTransaction struct {
	Hash           string           `json:"hash"`
	Hex            string           `json:"hex"`
	BlockHash      string           `json:"blockHash,omitempty"`
	Height         int64            `json:"height"`
	BlockTimestamp int64            `json:"blockTimestamp"`
	Version        int32            `json:"version"`
	Locktime       uint32           `json:"locktime"`
	Coinbase       bool             `json:"coinbase"`
	Inputs         []DetailedInput  `json:"inputs"`
	Outputs        []DetailedOutput `json:"outputs"`
	InputSatoshis  int64            `json:"inputSatoshis"`
	OutputSatoshis int64            `json:"outputSatoshis"`
	FeeSatoshis    int64            `json:"feeSatoshis"`
}

// Confirmations computes spec.md §4.8.5: 0 for mempool (height < 0),
// otherwise 1 + tip - height, clamped to 0 with a caller-supplied warning.
func Confirmations(height int64, tip int64, warn func(string)) int64 {
	if height < 0 {
		return 0
	}
	c := 1 + tip - height
	if c < 0 {
		if warn != nil {
			warn("confirmations computed negative, clamping to 0")
		}
		return 0
	}
	return c
}

// UTXO is one unspent output as returned by getAddressUnspentOutputs.
type UTXO struct {
	Address     string `json:"address"`
	TxID        string `json:"txid"`
	OutputIndex int    `json:"outputIndex"`
	Script      string `json:"script"`
	Satoshis    int64  `json:"satoshis"`
	Height      int64  `json:"height,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}

// AddressDelta is one mempool entry for an address (spec.md §3).
type AddressDelta struct {
	Address      string `json:"address"`
	TxID         string `json:"txid"`
	Index        int    `json:"index"`
	Satoshis     int64  `json:"satoshis"`
	Timestamp    int64  `json:"timestamp"`
	PrevTxID     string `json:"prevtxid,omitempty"`
	PrevOut      int    `json:"prevout,omitempty"`
	HasPrevOut   bool   `json:"-"`
}

// AddressBalance is the result of getAddressBalance.
type AddressBalance struct {
	Balance  int64 `json:"balance"`
	Received int64 `json:"received"`
}

// AddressIndexRef records where a query address appears within a
// transaction (spec.md §4.8.3).
type AddressIndexRef struct {
	InputIndexes  []int `json:"inputIndexes"`
	OutputIndexes []int `json:"outputIndexes"`
}

// DetailedAddressTransaction is one page entry of getAddressHistory.
type DetailedAddressTransaction struct {
	DetailedTransaction
	Addresses     map[string]AddressIndexRef `json:"addresses"`
	Satoshis      int64                      `json:"satoshis"`
	Confirmations int64                      `json:"confirmations"`
}

// HistoryPage is the paginated result of getAddressHistory.
type HistoryPage struct {
	TotalCount int                          `json:"totalCount"`
	Items      []DetailedAddressTransaction `json:"items"`
}

// AddressSummary is the result of getAddressSummary (spec.md §4.8.4).
type AddressSummary struct {
	Appearances             int64    `json:"appearances"`
	TotalReceived           int64    `json:"totalReceived"`
	TotalSpent              int64    `json:"totalSpent"`
	Balance                 int64    `json:"balance"`
	UnconfirmedAppearances  int64    `json:"unconfirmedAppearances"`
	UnconfirmedBalance      int64    `json:"unconfirmedBalance"`
	TxIDs                   []string `json:"txids,omitempty"`
}
