// Package baseline implements the baseline calculator (C9): a bounded FIFO
// of up to 144 confirmed blocks' accepted outputs, recomputed into a
// BaselineResult that is atomically published for the rolling analyzer and
// subscriber fan-out to read.
package baseline

import (
	"container/ring"
	"log"
	"sync/atomic"

	"github.com/gptprojectmanager/utxoracle-go/internal/price"
	"github.com/gptprojectmanager/utxoracle-go/internal/rpcclient"
)

// DefaultWindowBlocks is B, the default baseline window size.
const DefaultWindowBlocks = 144

// MinBlocksForBaseline is the threshold below which Recompute publishes a
// nil result. This is a block-count threshold only; it does not
// additionally require a minimum transaction count.
const MinBlocksForBaseline = 10

// blockRecord holds one confirmed block's already-filtered accepted output
// amounts and the block's own height/time.
type blockRecord struct {
	height  int64
	time    int64
	amounts []float64
}

// Result is the published baseline, read atomically by the rolling
// analyzer and subscriber fan-out.
type Result struct {
	Price           float64
	PriceMin        float64
	PriceMax        float64
	Confidence      float64
	BlockHeight     int64
	NumTransactions int
	IntradayPoints  []price.CloudPoint
}

// Calculator maintains the bounded FIFO of blocks and the currently
// published Result.
type Calculator struct {
	windowBlocks int
	ring         *ring.Ring // of *blockRecord
	filled       int
	current      atomic.Pointer[Result]
}

// New returns an empty baseline calculator with the given window size.
func New(windowBlocks int) *Calculator {
	if windowBlocks <= 0 {
		windowBlocks = DefaultWindowBlocks
	}
	return &Calculator{
		windowBlocks: windowBlocks,
		ring:         ring.New(windowBlocks),
	}
}

// AddBlock pushes a confirmed block's accepted amounts, evicting the oldest
// block if the FIFO is already full.
func (c *Calculator) AddBlock(height, blockTime int64, amounts []float64) {
	c.ring.Value = &blockRecord{height: height, time: blockTime, amounts: amounts}
	c.ring = c.ring.Next()
	if c.filled < c.windowBlocks {
		c.filled++
	}
}

// Recompute runs the full steps 7-11 price estimator over the concatenation
// of every block's accepted outputs currently in the FIFO, and atomically
// publishes the result. Always runs convergence (step 11); never returns
// the rough price (step 9) directly.
func (c *Calculator) Recompute() *Result {
	if c.filled < MinBlocksForBaseline {
		c.current.Store(nil)
		return nil
	}

	var dense [price.NumBins]float64
	var amounts []float64
	var maxHeight int64
	numTx := 0

	r := c.ring
	for i := 0; i < c.filled; i++ {
		r = r.Prev()
		rec, ok := r.Value.(*blockRecord)
		if !ok || rec == nil {
			continue
		}
		if rec.height > maxHeight {
			maxHeight = rec.height
		}
		numTx += len(rec.amounts)
		for _, amt := range rec.amounts {
			amounts = append(amounts, amt)
			if idx, ok := price.BinOf(amt); ok {
				dense[idx] += amt
			}
		}
	}

	if !price.Normalize(&dense) {
		c.current.Store(nil)
		return nil
	}
	est, ok := price.Estimate(&dense, amounts, float64(maxHeight), 0)
	if !ok {
		c.current.Store(nil)
		return nil
	}

	priceMin, priceMax := cloudRange(est.IntradayCloud, est.PriceUSD)
	result := &Result{
		Price:           est.PriceUSD,
		PriceMin:        priceMin,
		PriceMax:        priceMax,
		Confidence:      est.Confidence,
		BlockHeight:     maxHeight,
		NumTransactions: numTx,
		IntradayPoints:  est.IntradayCloud,
	}
	c.current.Store(result)
	return result
}

// Current returns the currently published baseline, or nil if none has
// ever been successfully computed.
func (c *Calculator) Current() *Result {
	return c.current.Load()
}

func cloudRange(cloud []price.CloudPoint, fallback float64) (min, max float64) {
	if len(cloud) == 0 {
		return fallback, fallback
	}
	min, max = cloud[0].PriceUSD, cloud[0].PriceUSD
	for _, p := range cloud[1:] {
		if p.PriceUSD < min {
			min = p.PriceUSD
		}
		if p.PriceUSD > max {
			max = p.PriceUSD
		}
	}
	return min, max
}

// Bootstrap ingests the most recent windowBlocks block heights from the
// node synchronously, producing the initial baseline before the streaming
// pipeline starts. A single block fetch failure is logged and skipped.
// Each block's transactions are run through a fresh C3 AcceptedSet (blocks
// do not share same-batch-chaining state across block boundaries).
func Bootstrap(rpc *rpcclient.Client, windowBlocks int) (*Calculator, error) {
	calc := New(windowBlocks)

	tip, err := rpc.BlockCount()
	if err != nil {
		return nil, err
	}
	start := tip - int64(windowBlocks) + 1
	if start < 0 {
		start = 0
	}

	for h := start; h <= tip; h++ {
		hash, err := rpc.BlockHash(h)
		if err != nil {
			log.Printf("baseline: bootstrap: skip block %d: %v", h, err)
			continue
		}
		blk, err := rpc.BlockVerbose(hash)
		if err != nil {
			log.Printf("baseline: bootstrap: skip block %d: %v", h, err)
			continue
		}
		txs := rpcclient.RawTransactionsFromBlock(blk)
		accepted := price.NewAcceptedSet()
		var amounts []float64
		for i := range txs {
			outcome := price.Apply(&txs[i], accepted)
			if outcome.Accepted {
				amounts = append(amounts, outcome.Outputs...)
			}
		}
		calc.AddBlock(h, blk.Time, amounts)
	}

	calc.Recompute()
	return calc, nil
}
