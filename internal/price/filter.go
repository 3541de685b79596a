package price

import (
	"github.com/btcsuite/btcd/txscript"

	"github.com/gptprojectmanager/utxoracle-go/pkg/models"
)

// RejectTag identifies which filter rule rejected a transaction.
type RejectTag string

const (
	RejectInputs   RejectTag = "inputs"
	RejectOutputs  RejectTag = "outputs"
	RejectCoinbase RejectTag = "coinbase"
	RejectOPReturn RejectTag = "op_return"
	RejectWitness  RejectTag = "witness"
	RejectSameDay  RejectTag = "same_day"
	RejectRange    RejectTag = "range"
)

const (
	maxInputs       = 5
	wantOutputs     = 2
	maxWitnessBytes = 500
	minAmountBTC    = 1e-5
	maxAmountBTC    = 1e5
)

// Outcome is the tagged result of applying the filter to one transaction:
// either Accept with the surviving output amounts to bin, or Reject with a
// reason tag.
type Outcome struct {
	Accepted bool
	Outputs  []float64
	Tag      RejectTag
}

// AcceptedSet tracks the transaction identifiers already accepted within
// the current batch or window, for the same-batch-chaining rule (rule 6).
type AcceptedSet struct {
	ids map[string]struct{}
}

// NewAcceptedSet returns an empty accepted-identifier set.
func NewAcceptedSet() *AcceptedSet {
	return &AcceptedSet{ids: make(map[string]struct{})}
}

func (s *AcceptedSet) has(txid string) bool {
	_, ok := s.ids[txid]
	return ok
}

// Add records txid as accepted. Must be called exactly once per transaction,
// after the chaining check, regardless of the transaction's final outcome.
func (s *AcceptedSet) Add(txid string) {
	s.ids[txid] = struct{}{}
}

// Apply runs the seven ordered filter rules against tx. The same-batch
// chaining check (rule 6) consults accepted for inputs spending outputs of
// already-accepted transactions; tx's own txid is added to accepted AFTER
// that check regardless of the outcome. This tie-break is an observable
// contract, not an implementation detail.
func Apply(tx *models.RawTransaction, accepted *AcceptedSet) Outcome {
	defer accepted.Add(tx.Txid)

	if len(tx.Inputs) > maxInputs {
		return Outcome{Tag: RejectInputs}
	}
	if len(tx.Outputs) != wantOutputs {
		return Outcome{Tag: RejectOutputs}
	}
	if tx.IsCoinbase {
		return Outcome{Tag: RejectCoinbase}
	}
	for _, out := range tx.Outputs {
		if isOPReturn(out.ScriptPubKey) {
			return Outcome{Tag: RejectOPReturn}
		}
	}
	for _, in := range tx.Inputs {
		total := 0
		for _, item := range in.Witness {
			if len(item) > maxWitnessBytes {
				return Outcome{Tag: RejectWitness}
			}
			total += len(item)
		}
		if total > maxWitnessBytes {
			return Outcome{Tag: RejectWitness}
		}
	}
	for _, in := range tx.Inputs {
		if accepted.has(in.PrevTxid) {
			return Outcome{Tag: RejectSameDay}
		}
	}

	var surviving []float64
	for _, out := range tx.Outputs {
		amt := out.BTC()
		if amt > minAmountBTC && amt < maxAmountBTC {
			surviving = append(surviving, amt)
		}
	}
	if len(surviving) == 0 {
		return Outcome{Tag: RejectRange}
	}
	return Outcome{Accepted: true, Outputs: surviving}
}

func isOPReturn(script []byte) bool {
	return len(script) > 0 && script[0] == txscript.OP_RETURN
}
