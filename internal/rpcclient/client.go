// Package rpcclient wraps btcsuite's Bitcoin Core RPC client down to the
// three calls the batch engine (C5) and baseline calculator (C9) startup
// path need: getblockcount, getblockhash, and getblock at verbosity 2.
package rpcclient

import (
	"encoding/hex"
	"fmt"
	"log"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"

	"github.com/gptprojectmanager/utxoracle-go/pkg/models"
)

// Config holds the node RPC connection parameters.
type Config struct {
	Host string
	User string
	Pass string
}

// Client is a thin, spec-scoped wrapper over btcsuite/btcd/rpcclient.
type Client struct {
	rpc *rpcclient.Client
}

// New connects to the node and verifies the connection with getblockcount.
func New(cfg Config) (*Client, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}

	log.Printf("rpcclient: connecting to %s", cfg.Host)
	raw, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: dial: %w", err)
	}

	height, err := raw.GetBlockCount()
	if err != nil {
		raw.Shutdown()
		return nil, fmt.Errorf("rpcclient: verify getblockcount: %w", err)
	}
	log.Printf("rpcclient: connected, tip height %d", height)

	return &Client{rpc: raw}, nil
}

// Shutdown releases the underlying RPC connection.
func (c *Client) Shutdown() {
	c.rpc.Shutdown()
}

// BlockCount returns the current chain tip height.
func (c *Client) BlockCount() (int64, error) {
	h, err := c.rpc.GetBlockCount()
	if err != nil {
		return 0, fmt.Errorf("rpcclient: getblockcount: %w", err)
	}
	return h, nil
}

// BlockHash returns the block hash at the given height.
func (c *Client) BlockHash(height int64) (*chainhash.Hash, error) {
	h, err := c.rpc.GetBlockHash(height)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: getblockhash(%d): %w", height, err)
	}
	return h, nil
}

// BlockVerbose fetches a block with full transaction decoding
// (getblock verbosity=2): height, time, and every transaction's
// vin/vout needed to build a RawTransaction per tx.
func (c *Client) BlockVerbose(hash *chainhash.Hash) (*btcjson.GetBlockVerboseTxResult, error) {
	blk, err := c.rpc.GetBlockVerboseTx(hash)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: getblock(verbosity=2) %s: %w", hash, err)
	}
	return blk, nil
}

// RawTransactionsFromBlock converts a verbosity=2 block result's decoded
// transactions into RawTransaction values ready for C3 filtering. Because
// getblock(verbosity=2) does not return raw bytes, the identifier and
// amounts come directly from the JSON decode rather than from C6. C6
// remains the authority for the streaming (binary) ingestion path.
func RawTransactionsFromBlock(blk *btcjson.GetBlockVerboseTxResult) []models.RawTransaction {
	out := make([]models.RawTransaction, 0, len(blk.Tx))
	for _, tx := range blk.Tx {
		rt := models.RawTransaction{
			Txid:        tx.Txid,
			Version:     tx.Version,
			LockTime:    tx.LockTime,
			BlockHeight: int64(blk.Height),
			BlockTime:   blk.Time,
		}
		for _, vin := range tx.Vin {
			if vin.IsCoinBase() {
				rt.IsCoinbase = true
				continue
			}
			rt.Inputs = append(rt.Inputs, models.TxIn{
				PrevTxid:  vin.Txid,
				PrevIndex: vin.Vout,
				Witness:   hexWitness(vin.Witness),
			})
		}
		for _, vout := range tx.Vout {
			sats := btcToSats(vout.Value)
			rt.Outputs = append(rt.Outputs, models.TxOut{
				ValueSats:    sats,
				ScriptPubKey: scriptPubKeyBytes(vout.ScriptPubKey.Asm),
			})
		}
		out = append(out, rt)
	}
	return out
}

// btcToSats converts a float64 BTC value to satoshis via btcutil.NewAmount,
// which performs correct IEEE-754 rounding instead of naive float
// multiplication.
func btcToSats(btc float64) int64 {
	amt, err := btcutil.NewAmount(btc)
	if err != nil {
		return 0
	}
	return int64(amt)
}

func hexWitness(items []string) [][]byte {
	if len(items) == 0 {
		return nil
	}
	out := make([][]byte, 0, len(items))
	for _, h := range items {
		b, err := hex.DecodeString(h)
		if err != nil {
			// Malformed witness hex from the node; keep the raw string so
			// the item still counts toward the byte budget conservatively.
			b = []byte(h)
		}
		out = append(out, b)
	}
	return out
}

// scriptPubKeyBytes produces a minimal byte view sufficient for the
// OP_RETURN check (C3 rule 4): a leading 0x6a byte when the asm disassembly
// starts with OP_RETURN, otherwise a single 0x00 byte as a non-OP_RETURN
// placeholder.
func scriptPubKeyBytes(asm string) []byte {
	const opReturnAsm = "OP_RETURN"
	if len(asm) >= len(opReturnAsm) && asm[:len(opReturnAsm)] == opReturnAsm {
		return []byte{0x6a}
	}
	return []byte{0x00}
}
