// Package batch implements the batch engine (C5): for a calendar date or
// explicit block range, resolve heights, fetch every block's transactions,
// and run them through the filter and estimator.
package batch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gptprojectmanager/utxoracle-go/internal/price"
	"github.com/gptprojectmanager/utxoracle-go/internal/rpcclient"
	"github.com/gptprojectmanager/utxoracle-go/internal/store"
	"github.com/gptprojectmanager/utxoracle-go/pkg/models"
)

const (
	retryAttempts = 3
	retryInitial  = 500 * time.Millisecond
)

// Engine runs the batch price-inference pipeline against a node RPC client.
type Engine struct {
	RPC *rpcclient.Client
	// Store, if set, persists each completed run via SaveBatchResult.
	Store *store.Store
}

// New returns a batch engine bound to the given RPC client.
func New(rpc *rpcclient.Client) *Engine {
	return &Engine{RPC: rpc}
}

// Range is an explicit [Start, End] inclusive block-height range.
type Range struct {
	Start int64
	End   int64
}

// ResolveDate resolves the block-height range for the UTC calendar day
// containing t: the first block with time >= the day's start through the
// last block with time < the next day's start. It binary-searches block
// heights from 0 to the chain tip, reading each probed block's time with
// a getblockhash + getblock (verbosity=2) lookup, since the node is the
// only source of block times.
func (e *Engine) ResolveDate(t time.Time) (Range, error) {
	dayStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix()
	dayEnd := dayStart + 86400

	tip, err := e.RPC.BlockCount()
	if err != nil {
		return Range{}, fmt.Errorf("batch: resolve date: %w", err)
	}

	// hi = tip+1 is never probed; it is returned when no block reaches the
	// target, so a day still in progress keeps the tip in its range.
	startHeight, err := e.firstHeightAtOrAfter(dayStart, 0, tip+1)
	if err != nil {
		return Range{}, err
	}
	endHeight, err := e.firstHeightAtOrAfter(dayEnd, startHeight, tip+1)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: startHeight, End: endHeight - 1}, nil
}

// firstHeightAtOrAfter binary-searches [lo,hi] for the first block height
// whose time is >= target.
func (e *Engine) firstHeightAtOrAfter(target, lo, hi int64) (int64, error) {
	for lo < hi {
		mid := lo + (hi-lo)/2
		blockTime, err := e.blockTime(mid)
		if err != nil {
			return 0, err
		}
		if blockTime < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}

func (e *Engine) blockTime(height int64) (int64, error) {
	hash, err := e.RPC.BlockHash(height)
	if err != nil {
		return 0, err
	}
	blk, err := e.RPC.BlockVerbose(hash)
	if err != nil {
		return 0, err
	}
	return blk.Time, nil
}

// Run fetches every block in r, filters its transactions, and estimates a
// single price from the combined accepted output set. A single missing
// block aborts the batch (fatal); an RPC error on a per-block fetch is
// retried with exponential backoff (0.5s, x2, 3 attempts) first.
func (e *Engine) Run(r Range) (price.Result, int, error) {
	accepted := price.NewAcceptedSet()
	var hist [price.NumBins]float64
	var amounts []float64
	acceptedCount := 0

	for h := r.Start; h <= r.End; h++ {
		txs, err := e.fetchBlockWithRetry(h)
		if err != nil {
			return price.Result{}, 0, fmt.Errorf("batch: fetch block %d: %w", h, err)
		}
		for i := range txs {
			outcome := price.Apply(&txs[i], accepted)
			if !outcome.Accepted {
				continue
			}
			acceptedCount++
			for _, amt := range outcome.Outputs {
				amounts = append(amounts, amt)
				if idx, ok := price.BinOf(amt); ok {
					hist[idx] += amt
				}
			}
		}
	}

	if !price.Normalize(&hist) {
		return price.Result{}, acceptedCount, nil
	}
	result, ok := price.Estimate(&hist, amounts, float64(r.End), 0)
	if !ok {
		return price.Result{}, acceptedCount, nil
	}
	if e.Store != nil {
		err := e.Store.SaveBatchResult(context.Background(), r.Start, r.End, result.PriceUSD, result.Confidence, acceptedCount)
		if err != nil {
			log.Printf("batch: failed to persist batch result: %v", err)
		}
	}
	return result, acceptedCount, nil
}

func (e *Engine) fetchBlockWithRetry(height int64) ([]models.RawTransaction, error) {
	var lastErr error
	wait := retryInitial
	for attempt := 0; attempt < retryAttempts; attempt++ {
		hash, err := e.RPC.BlockHash(height)
		if err == nil {
			blk, blkErr := e.RPC.BlockVerbose(hash)
			if blkErr == nil {
				return rpcclient.RawTransactionsFromBlock(blk), nil
			}
			err = blkErr
		}
		lastErr = err
		if attempt < retryAttempts-1 {
			time.Sleep(wait)
			wait *= 2
		}
	}
	return nil, lastErr
}
