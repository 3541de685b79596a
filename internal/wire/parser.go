// Package wire decodes Bitcoin's standard transaction serialization (C6):
// version, optional segwit marker/flag, inputs, outputs, optional witness
// data, locktime, and the double-SHA256 transaction identifier.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/gptprojectmanager/utxoracle-go/pkg/models"
)

// ErrParse wraps every malformed-input failure from Parse; callers match it
// with errors.Is to route to the ParseError taxonomy entry of spec §7.
var ErrParse = errors.New("wire: parse error")

type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("%w: truncated at offset %d wanting %d bytes", ErrParse, r.off, n)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// varint reads a Bitcoin compact-size integer: 1, 3, 5, or 9 bytes
// depending on the first byte's value.
func (r *reader) varint() (uint64, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	switch first := b[0]; {
	case first < 0xfd:
		return uint64(first), nil
	case first == 0xfd:
		v, err := r.take(2)
		if err != nil {
			return 0, fmt.Errorf("%w: truncated varint (0xfd)", ErrParse)
		}
		return uint64(binary.LittleEndian.Uint16(v)), nil
	case first == 0xfe:
		v, err := r.take(4)
		if err != nil {
			return 0, fmt.Errorf("%w: truncated varint (0xfe)", ErrParse)
		}
		return uint64(binary.LittleEndian.Uint32(v)), nil
	default:
		v, err := r.take(8)
		if err != nil {
			return 0, fmt.Errorf("%w: truncated varint (0xff)", ErrParse)
		}
		return binary.LittleEndian.Uint64(v), nil
	}
}

func encodeVarint(n uint64) []byte {
	switch {
	case n < 0xfd:
		return []byte{byte(n)}
	case n <= 0xffff:
		b := make([]byte, 3)
		b[0] = 0xfd
		binary.LittleEndian.PutUint16(b[1:], uint16(n))
		return b
	case n <= 0xffffffff:
		b := make([]byte, 5)
		b[0] = 0xfe
		binary.LittleEndian.PutUint32(b[1:], uint32(n))
		return b
	default:
		b := make([]byte, 9)
		b[0] = 0xff
		binary.LittleEndian.PutUint64(b[1:], n)
		return b
	}
}

// Parse decodes raw as a Bitcoin transaction and computes its identifier.
// arrivalTime is stamped onto the result as ArrivalTime (mempool path);
// callers on the block path overwrite BlockHeight/BlockTime afterwards.
func Parse(raw []byte, arrivalTime float64) (*models.RawTransaction, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty transaction", ErrParse)
	}
	if len(raw) < 10 {
		return nil, fmt.Errorf("%w: transaction too short", ErrParse)
	}

	r := &reader{buf: raw}
	version, err := r.i32()
	if err != nil {
		return nil, err
	}

	isSegwit := false
	if r.remaining() >= 2 && r.buf[r.off] == 0x00 && r.buf[r.off+1] == 0x01 {
		isSegwit = true
		r.off += 2
	}

	inCount, err := r.varint()
	if err != nil {
		return nil, err
	}
	inputs := make([]models.TxIn, 0, inCount)
	for i := uint64(0); i < inCount; i++ {
		in, err := parseInput(r)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}

	outCount, err := r.varint()
	if err != nil {
		return nil, err
	}
	outputs := make([]models.TxOut, 0, outCount)
	for i := uint64(0); i < outCount; i++ {
		out, err := parseOutput(r)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}

	if isSegwit {
		for i := range inputs {
			witCount, err := r.varint()
			if err != nil {
				return nil, err
			}
			items := make([][]byte, 0, witCount)
			for j := uint64(0); j < witCount; j++ {
				itemLen, err := r.varint()
				if err != nil {
					return nil, err
				}
				item, err := r.take(int(itemLen))
				if err != nil {
					return nil, err
				}
				items = append(items, append([]byte(nil), item...))
			}
			inputs[i].Witness = items
		}
	}

	lockTime, err := r.u32()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated locktime", ErrParse)
	}

	isCoinbase := len(inputs) == 1 && inputs[0].PrevTxid == zeroHash && inputs[0].PrevIndex == 0xffffffff

	txid, err := computeTxid(version, inputs, outputs, lockTime)
	if err != nil {
		return nil, err
	}

	return &models.RawTransaction{
		Txid:        txid,
		Version:     version,
		LockTime:    lockTime,
		Inputs:      inputs,
		Outputs:     outputs,
		IsCoinbase:  isCoinbase,
		IsSegwit:    isSegwit,
		ArrivalTime: arrivalTime,
	}, nil
}

const zeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

func parseInput(r *reader) (models.TxIn, error) {
	prevHash, err := r.take(32)
	if err != nil {
		return models.TxIn{}, fmt.Errorf("%w: truncated prev hash", ErrParse)
	}
	prevIndex, err := r.u32()
	if err != nil {
		return models.TxIn{}, fmt.Errorf("%w: truncated prev index", ErrParse)
	}
	scriptLen, err := r.varint()
	if err != nil {
		return models.TxIn{}, err
	}
	script, err := r.take(int(scriptLen))
	if err != nil {
		return models.TxIn{}, fmt.Errorf("%w: truncated script sig", ErrParse)
	}
	sequence, err := r.u32()
	if err != nil {
		return models.TxIn{}, fmt.Errorf("%w: truncated sequence", ErrParse)
	}
	return models.TxIn{
		PrevTxid:  reverseHex(prevHash),
		PrevIndex: prevIndex,
		ScriptSig: append([]byte(nil), script...),
		Sequence:  sequence,
	}, nil
}

func parseOutput(r *reader) (models.TxOut, error) {
	value, err := r.u64()
	if err != nil {
		return models.TxOut{}, fmt.Errorf("%w: truncated value", ErrParse)
	}
	scriptLen, err := r.varint()
	if err != nil {
		return models.TxOut{}, err
	}
	script, err := r.take(int(scriptLen))
	if err != nil {
		return models.TxOut{}, fmt.Errorf("%w: truncated script pubkey", ErrParse)
	}
	return models.TxOut{
		ValueSats:    int64(value),
		ScriptPubKey: append([]byte(nil), script...),
	}, nil
}

// computeTxid re-serializes the transaction WITHOUT any segwit marker, flag,
// or witness data, double-SHA256es it via chainhash (the same primitive the
// teacher already depends on for every hash it computes), and returns the
// byte-reversed hex digest.
func computeTxid(version int32, inputs []models.TxIn, outputs []models.TxOut, lockTime uint32) (string, error) {
	buf := make([]byte, 0, 128)
	var tmp [8]byte

	binary.LittleEndian.PutUint32(tmp[:4], uint32(version))
	buf = append(buf, tmp[:4]...)

	buf = append(buf, encodeVarint(uint64(len(inputs)))...)
	for _, in := range inputs {
		prevHash, err := hexToBytes(in.PrevTxid)
		if err != nil {
			return "", fmt.Errorf("%w: bad prev txid", ErrParse)
		}
		// reverse back to on-wire order before serializing
		reversed := make([]byte, 32)
		for i, b := range prevHash {
			reversed[31-i] = b
		}
		buf = append(buf, reversed...)
		binary.LittleEndian.PutUint32(tmp[:4], in.PrevIndex)
		buf = append(buf, tmp[:4]...)
		buf = append(buf, encodeVarint(uint64(len(in.ScriptSig)))...)
		buf = append(buf, in.ScriptSig...)
		binary.LittleEndian.PutUint32(tmp[:4], in.Sequence)
		buf = append(buf, tmp[:4]...)
	}

	buf = append(buf, encodeVarint(uint64(len(outputs)))...)
	for _, out := range outputs {
		binary.LittleEndian.PutUint64(tmp[:8], uint64(out.ValueSats))
		buf = append(buf, tmp[:8]...)
		buf = append(buf, encodeVarint(uint64(len(out.ScriptPubKey)))...)
		buf = append(buf, out.ScriptPubKey...)
	}

	binary.LittleEndian.PutUint32(tmp[:4], lockTime)
	buf = append(buf, tmp[:4]...)

	digest := chainhash.DoubleHashH(buf)
	// chainhash.Hash holds the digest bytes as produced; .String() hex-encodes
	// them byte-reversed, which is the conventional txid display form.
	return digest.String(), nil
}

func reverseHex(b []byte) string {
	reversed := make([]byte, len(b))
	for i, v := range b {
		reversed[len(b)-1-i] = v
	}
	return fmt.Sprintf("%x", reversed)
}

func hexToBytes(s string) ([]byte, error) {
	if len(s) != 64 {
		return nil, ErrParse
	}
	out := make([]byte, 32)
	for i := 0; i < 32; i++ {
		hi, err := hexNibble(s[i*2])
		if err != nil {
			return nil, err
		}
		lo, err := hexNibble(s[i*2+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, ErrParse
	}
}
