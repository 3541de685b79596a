// Package analyzer implements the rolling analyzer (C8): a time-indexed
// window of accepted mempool transactions, the running sparse histogram
// those contributions sum to, and a snapshot operation that calls into the
// price estimator (C4).
package analyzer

import (
	"container/list"
	"sync"

	"github.com/gptprojectmanager/utxoracle-go/internal/price"
	"github.com/gptprojectmanager/utxoracle-go/pkg/models"
)

// DefaultWindowSeconds is the rolling window's default width (3 hours).
const DefaultWindowSeconds = 3 * 3600.0

type entry struct {
	tx   models.ProcessedTransaction
	bins []int
}

// Analyzer is the rolling 3-hour window over accepted mempool outputs. It
// is intended to be owned and mutated by a single goroutine (the pipeline
// orchestrator's scheduler); the mutex exists only to let SnapshotPrice be
// called safely from an HTTP handler without blocking the orchestrator for
// longer than a histogram copy.
type Analyzer struct {
	mu           sync.Mutex
	windowSecond float64
	deque        *list.List // of *entry, oldest at Front
	histogram    map[int]float64
	baseline     float64
}

// New returns an empty rolling analyzer with the given window width.
func New(windowSeconds float64) *Analyzer {
	if windowSeconds <= 0 {
		windowSeconds = DefaultWindowSeconds
	}
	return &Analyzer{
		windowSecond: windowSeconds,
		deque:        list.New(),
		histogram:    make(map[int]float64),
	}
}

// Ingest bins each surviving output amount of tx, adds its BTC value to
// that bin, and appends the record to the deque. tx must already have
// passed C3 filtering (its Amounts are the surviving outputs).
func (a *Analyzer) Ingest(tx models.ProcessedTransaction) {
	a.mu.Lock()
	defer a.mu.Unlock()

	bins := make([]int, 0, len(tx.Amounts))
	for _, amt := range tx.Amounts {
		idx, ok := price.BinOf(amt)
		if !ok {
			// keep bins aligned with tx.Amounts; -1 marks an unbinned amount
			bins = append(bins, -1)
			continue
		}
		bins = append(bins, idx)
		a.histogram[idx] += amt
	}
	a.deque.PushBack(&entry{tx: tx, bins: bins})
}

// EvictExpired removes every entry whose timestamp is older than
// now-window, subtracting its contributions from the histogram. Idempotent:
// calling it twice in a row with the same now is a no-op the second time.
func (a *Analyzer) EvictExpired(now float64) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := now - a.windowSecond
	removed := 0
	for {
		front := a.deque.Front()
		if front == nil {
			break
		}
		e := front.Value.(*entry)
		if e.tx.Timestamp >= cutoff {
			break
		}
		for i, idx := range e.bins {
			if idx < 0 {
				continue
			}
			a.histogram[idx] -= e.tx.Amounts[i]
			if a.histogram[idx] <= 0 {
				delete(a.histogram, idx)
			}
		}
		a.deque.Remove(front)
		removed++
	}
	return removed
}

// SetBaseline adopts an externally supplied baseline price, used as the
// rolling analyzer's reference when too few transactions are in the window.
func (a *Analyzer) SetBaseline(p float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.baseline = p
}

// Count returns the number of live (non-expired) transactions in the
// window.
func (a *Analyzer) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deque.Len()
}

// MinAcceptedForEstimate is the InsufficientData threshold from spec §7:
// fewer than 10 accepted transactions in window falls back to baseline.
const MinAcceptedForEstimate = 10

// SnapshotPrice builds a dense histogram from the current sparse map and
// the list of currently-live amounts, then calls the full C4 estimator.
func (a *Analyzer) SnapshotPrice(now float64) (price.Result, bool) {
	a.mu.Lock()
	n := a.deque.Len()
	if n < MinAcceptedForEstimate {
		baseline := a.baseline
		a.mu.Unlock()
		if baseline <= 0 {
			return price.Result{}, false
		}
		return price.Result{PriceUSD: baseline, Confidence: 0}, true
	}

	var dense [price.NumBins]float64
	for idx, v := range a.histogram {
		dense[idx] = v
	}
	var amounts []float64
	for e := a.deque.Front(); e != nil; e = e.Next() {
		amounts = append(amounts, e.Value.(*entry).tx.Amounts...)
	}
	a.mu.Unlock()

	if !price.Normalize(&dense) {
		return price.Result{}, false
	}
	return price.Estimate(&dense, amounts, 0, now)
}
