// Package orchestrator implements the pipeline orchestrator (C10): a
// single-threaded cooperative scheduler that serializes mempool
// transaction ingestion, block-confirmation handling, periodic window
// eviction, and coalesced broadcast onto one goroutine, so that the
// rolling analyzer's histogram and the baseline calculator's FIFO are
// never touched concurrently from two different event sources.
package orchestrator

import (
	"context"
	"log"
	"time"

	"github.com/gptprojectmanager/utxoracle-go/internal/analyzer"
	"github.com/gptprojectmanager/utxoracle-go/internal/api"
	"github.com/gptprojectmanager/utxoracle-go/internal/baseline"
	"github.com/gptprojectmanager/utxoracle-go/internal/mempool"
	"github.com/gptprojectmanager/utxoracle-go/internal/price"
	"github.com/gptprojectmanager/utxoracle-go/internal/rpcclient"
	"github.com/gptprojectmanager/utxoracle-go/internal/store"
	"github.com/gptprojectmanager/utxoracle-go/internal/wire"
	"github.com/gptprojectmanager/utxoracle-go/pkg/models"
)

// DefaultGCInterval and DefaultBroadcastInterval are T-gc and T-bcast from
// spec §5: window eviction runs once a minute, broadcasts coalesce to
// twice a second.
const (
	DefaultGCInterval        = 60 * time.Second
	DefaultBroadcastInterval = 500 * time.Millisecond

	blockPollInterval = 5 * time.Second
)

// Config bundles the orchestrator's tunables; zero values fall back to the
// package defaults.
type Config struct {
	GCInterval        time.Duration
	BroadcastInterval time.Duration
}

// Orchestrator owns the single-threaded scheduler loop.
type Orchestrator struct {
	cfg        Config
	rpc        *rpcclient.Client
	listener   *mempool.Listener
	analyzer   *analyzer.Analyzer
	calculator *baseline.Calculator
	hub        *api.Hub
	store      *store.Store

	accepted  *price.AcceptedSet
	lastBlock int64
}

// New wires the collaborators into an orchestrator. calc is the already
// Bootstrap-ed baseline calculator (startup's synchronous historical load
// happens before the orchestrator starts, per spec §4.9). st may be nil,
// in which case snapshots are never persisted (dev mode, no DATABASE_URL).
func New(cfg Config, rpc *rpcclient.Client, listener *mempool.Listener, an *analyzer.Analyzer, calc *baseline.Calculator, hub *api.Hub, st *store.Store) *Orchestrator {
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = DefaultGCInterval
	}
	if cfg.BroadcastInterval <= 0 {
		cfg.BroadcastInterval = DefaultBroadcastInterval
	}
	return &Orchestrator{
		cfg:        cfg,
		rpc:        rpc,
		listener:   listener,
		analyzer:   an,
		calculator: calc,
		hub:        hub,
		store:      st,
		accepted:   price.NewAcceptedSet(),
	}
}

// Run starts the mempool listener and the scheduler loop. It blocks until
// ctx is cancelled or the listener's channel closes; on cancellation it
// returns at once, without waiting for the listener goroutines to exit.
func (o *Orchestrator) Run(ctx context.Context) {
	go o.listener.Run(ctx)

	gcTicker := time.NewTicker(o.cfg.GCInterval)
	defer gcTicker.Stop()
	bcastTicker := time.NewTicker(o.cfg.BroadcastInterval)
	defer bcastTicker.Stop()
	blockTicker := time.NewTicker(blockPollInterval)
	defer blockTicker.Stop()

	if o.rpc != nil {
		if tip, err := o.rpc.BlockCount(); err == nil {
			o.lastBlock = tip
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-o.listener.Messages():
			if !ok {
				return
			}
			o.handleMessage(ctx, msg)

		case <-blockTicker.C:
			o.pollNewBlocks(ctx)

		case <-gcTicker.C:
			now := nowSeconds()
			removed := o.analyzer.EvictExpired(now)
			if removed > 0 {
				log.Printf("orchestrator: evicted %d expired transactions", removed)
			}

		case <-bcastTicker.C:
			o.broadcast(ctx)
		}
	}
}

func (o *Orchestrator) handleMessage(ctx context.Context, msg mempool.Message) {
	switch msg.Topic {
	case "rawtx":
		o.handleRawTx(msg)
	case "rawblock":
		// Full block payloads are not parsed from the ZMQ stream; a
		// rawblock notification only triggers pollNewBlocks's RPC-based
		// confirmation handling, since C9's baseline needs RPC-sourced
		// amounts already run through a per-block AcceptedSet.
		o.pollNewBlocks(ctx)
	}
}

func (o *Orchestrator) handleRawTx(msg mempool.Message) {
	tx, err := wire.Parse(msg.Raw, msg.Arrived)
	if err != nil {
		log.Printf("orchestrator: parse error, dropping message: %v", err)
		return
	}
	outcome := price.Apply(tx, o.accepted)
	if !outcome.Accepted {
		return
	}
	o.analyzer.Ingest(models.ProcessedTransaction{
		Txid:        tx.Txid,
		Amounts:     outcome.Outputs,
		Timestamp:   msg.Arrived,
		InputCount:  len(tx.Inputs),
		OutputCount: len(tx.Outputs),
	})
}

// pollNewBlocks fetches any block confirmed since the last poll and feeds
// its accepted outputs into the baseline calculator. Each block's
// transactions are filtered against a fresh AcceptedSet, so the chaining
// rule is scoped within a single block; the mempool stream's own set
// (o.accepted) is separate and is not cleared here.
func (o *Orchestrator) pollNewBlocks(ctx context.Context) {
	if o.rpc == nil {
		return
	}
	tip, err := o.rpc.BlockCount()
	if err != nil {
		log.Printf("orchestrator: getblockcount failed: %v", err)
		return
	}
	for h := o.lastBlock + 1; h <= tip; h++ {
		if err := o.ingestBlock(ctx, h); err != nil {
			log.Printf("orchestrator: skip block %d: %v", h, err)
			continue
		}
		o.lastBlock = h
	}
}

func (o *Orchestrator) ingestBlock(ctx context.Context, height int64) error {
	hash, err := o.rpc.BlockHash(height)
	if err != nil {
		return err
	}
	blk, err := o.rpc.BlockVerbose(hash)
	if err != nil {
		return err
	}
	txs := rpcclient.RawTransactionsFromBlock(blk)

	blockAccepted := price.NewAcceptedSet()
	var amounts []float64
	for i := range txs {
		outcome := price.Apply(&txs[i], blockAccepted)
		if outcome.Accepted {
			amounts = append(amounts, outcome.Outputs...)
		}
	}
	o.calculator.AddBlock(height, blk.Time, amounts)
	o.calculator.Recompute()

	if result := o.calculator.Current(); result != nil {
		o.analyzer.SetBaseline(result.Price)
		if o.store != nil {
			err := o.store.SaveBaselineSnapshot(ctx, result.BlockHeight, result.Price, result.PriceMin, result.PriceMax, result.Confidence, result.NumTransactions)
			if err != nil {
				log.Printf("orchestrator: failed to persist baseline snapshot: %v", err)
			}
		}
	}
	return nil
}

func (o *Orchestrator) broadcast(ctx context.Context) {
	now := nowSeconds()
	result, ok := o.analyzer.SnapshotPrice(now)
	if !ok {
		return
	}

	update := api.UpdateMessage{
		Type:       api.TypeUpdate,
		Price:      result.PriceUSD,
		Confidence: result.Confidence,
		Stats: api.UpdateStats{
			ActiveTxCount: o.analyzer.Count(),
		},
	}
	if b := o.calculator.Current(); b != nil {
		update.Baseline = &api.BaselineView{
			Price:       b.Price,
			Confidence:  b.Confidence,
			BlockHeight: b.BlockHeight,
		}
	}
	o.hub.BroadcastUpdate(update)

	if o.store != nil {
		err := o.store.SavePriceSnapshot(ctx, now, result.PriceUSD, result.Confidence, o.analyzer.Count())
		if err != nil {
			log.Printf("orchestrator: failed to persist price snapshot: %v", err)
		}
	}
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
