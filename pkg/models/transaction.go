// Package models holds the domain structs shared across the ingestion,
// price-inference, and fan-out packages.
package models

import "github.com/btcsuite/btcd/btcutil"

// TxIn is a single parsed transaction input, prior to any filtering.
type TxIn struct {
	PrevTxid  string `json:"prevTxid"`
	PrevIndex uint32 `json:"prevIndex"`
	ScriptSig []byte `json:"-"`
	Sequence  uint32 `json:"sequence"`
	Witness   [][]byte `json:"-"`
}

// TxOut is a single parsed transaction output.
type TxOut struct {
	ValueSats    int64  `json:"valueSats"`
	ScriptPubKey []byte `json:"-"`
}

// BTC converts the output's satoshi amount to a BTC float via
// btcutil.Amount.ToBTC, the same conversion the rest of the btcsuite stack
// uses (the satoshi count divided by 1e8 as a float64).
func (o TxOut) BTC() float64 {
	return btcutil.Amount(o.ValueSats).ToBTC()
}

// RawTransaction is the wire-level view produced by the binary parser (C6),
// prior to C3 filtering. It belongs either to a specific block (BlockHeight
// and BlockTime set) or to the mempool (only ArrivalTime set).
type RawTransaction struct {
	Txid        string
	Version     int32
	LockTime    uint32
	Inputs      []TxIn
	Outputs     []TxOut
	IsCoinbase  bool
	IsSegwit    bool
	BlockHeight int64
	BlockTime   int64
	ArrivalTime float64
}

// ProcessedTransaction is the immutable, post-filter view consumed by C8/C9:
// the transaction identifier, the surviving output amounts in BTC, and the
// arrival timestamp. Created by C3 from a RawTransaction.
type ProcessedTransaction struct {
	Txid        string    `json:"txid"`
	Amounts     []float64 `json:"amounts"`
	Timestamp   float64   `json:"timestamp"`
	InputCount  int       `json:"inputCount"`
	OutputCount int       `json:"outputCount"`
}
