package price

import (
	"testing"

	"github.com/gptprojectmanager/utxoracle-go/pkg/models"
)

func baseTx(txid string) *models.RawTransaction {
	return &models.RawTransaction{
		Txid: txid,
		Inputs: []models.TxIn{
			{PrevTxid: "prev1", PrevIndex: 0},
		},
		Outputs: []models.TxOut{
			{ValueSats: 5_000_000, ScriptPubKey: []byte{0x76, 0xa9}},  // 0.05 BTC
			{ValueSats: 10_000_000, ScriptPubKey: []byte{0x76, 0xa9}}, // 0.10 BTC
		},
	}
}

func TestApplyAcceptsOrdinaryTwoOutputTx(t *testing.T) {
	tx := baseTx("tx1")
	out := Apply(tx, NewAcceptedSet())
	if !out.Accepted {
		t.Fatalf("expected acceptance, got reject tag %q", out.Tag)
	}
	if len(out.Outputs) != 2 {
		t.Errorf("expected 2 surviving outputs, got %d", len(out.Outputs))
	}
}

func TestApplyRejectsTooManyInputs(t *testing.T) {
	tx := baseTx("tx1")
	for i := 0; i < 6; i++ {
		tx.Inputs = append(tx.Inputs, models.TxIn{PrevTxid: "x", PrevIndex: uint32(i)})
	}
	out := Apply(tx, NewAcceptedSet())
	if out.Accepted || out.Tag != RejectInputs {
		t.Errorf("expected RejectInputs, got accepted=%v tag=%q", out.Accepted, out.Tag)
	}
}

func TestApplyRejectsWrongOutputCount(t *testing.T) {
	tx := baseTx("tx1")
	tx.Outputs = tx.Outputs[:1]
	out := Apply(tx, NewAcceptedSet())
	if out.Accepted || out.Tag != RejectOutputs {
		t.Errorf("expected RejectOutputs, got accepted=%v tag=%q", out.Accepted, out.Tag)
	}
}

func TestApplyRejectsCoinbase(t *testing.T) {
	tx := baseTx("tx1")
	tx.IsCoinbase = true
	out := Apply(tx, NewAcceptedSet())
	if out.Accepted || out.Tag != RejectCoinbase {
		t.Errorf("expected RejectCoinbase, got accepted=%v tag=%q", out.Accepted, out.Tag)
	}
}

func TestApplyRejectsOPReturn(t *testing.T) {
	tx := baseTx("tx1")
	tx.Outputs[0].ScriptPubKey = []byte{0x6a, 0x04, 'd', 'a', 't', 'a'}
	out := Apply(tx, NewAcceptedSet())
	if out.Accepted || out.Tag != RejectOPReturn {
		t.Errorf("expected RejectOPReturn, got accepted=%v tag=%q", out.Accepted, out.Tag)
	}
}

func TestApplyRejectsWitnessBloat(t *testing.T) {
	tx := baseTx("tx1")
	tx.Inputs[0].Witness = [][]byte{make([]byte, 600)}
	out := Apply(tx, NewAcceptedSet())
	if out.Accepted || out.Tag != RejectWitness {
		t.Errorf("expected RejectWitness, got accepted=%v tag=%q", out.Accepted, out.Tag)
	}
}

func TestApplyRejectsSameBatchChaining(t *testing.T) {
	accepted := NewAcceptedSet()
	first := baseTx("parent")
	if out := Apply(first, accepted); !out.Accepted {
		t.Fatalf("expected parent tx to be accepted, got tag %q", out.Tag)
	}

	child := baseTx("child")
	child.Inputs[0].PrevTxid = "parent"
	out := Apply(child, accepted)
	if out.Accepted || out.Tag != RejectSameDay {
		t.Errorf("expected RejectSameDay, got accepted=%v tag=%q", out.Accepted, out.Tag)
	}
}

func TestApplyAddsTxidAfterChainingCheckRegardlessOfOutcome(t *testing.T) {
	accepted := NewAcceptedSet()
	tx := baseTx("rejected_tx")
	tx.IsCoinbase = true // guaranteed rejection, unrelated to chaining
	Apply(tx, accepted)

	if !accepted.has("rejected_tx") {
		t.Errorf("txid must be added to the accepted set even when the transaction itself is rejected")
	}
}

func TestApplyRejectsOutOfRangeAmounts(t *testing.T) {
	tx := baseTx("tx1")
	tx.Outputs[0].ValueSats = 1 // far below minAmountBTC
	tx.Outputs[1].ValueSats = 1
	out := Apply(tx, NewAcceptedSet())
	if out.Accepted || out.Tag != RejectRange {
		t.Errorf("expected RejectRange, got accepted=%v tag=%q", out.Accepted, out.Tag)
	}
}

func TestApplyKeepsSurvivingOutputWhenOneOutOfRange(t *testing.T) {
	tx := baseTx("tx1")
	tx.Outputs[0].ValueSats = 1 // out of range
	out := Apply(tx, NewAcceptedSet())
	if !out.Accepted {
		t.Fatalf("expected acceptance with one surviving output, got tag %q", out.Tag)
	}
	if len(out.Outputs) != 1 {
		t.Errorf("expected exactly 1 surviving output, got %d", len(out.Outputs))
	}
}
