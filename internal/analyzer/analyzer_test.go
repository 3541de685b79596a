package analyzer

import (
	"testing"

	"github.com/gptprojectmanager/utxoracle-go/pkg/models"
)

func TestIngestAddsToHistogramAndWindow(t *testing.T) {
	a := New(3600)
	a.Ingest(models.ProcessedTransaction{
		Txid:      "tx1",
		Amounts:   []float64{0.05, 0.1},
		Timestamp: 1000,
	})

	if a.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", a.Count())
	}
	if len(a.histogram) != 2 {
		t.Errorf("histogram has %d bins, want 2 (one per output)", len(a.histogram))
	}
}

func TestEvictExpiredRemovesOldEntriesAndContributions(t *testing.T) {
	a := New(100) // 100-second window

	a.Ingest(models.ProcessedTransaction{Txid: "old", Amounts: []float64{0.05}, Timestamp: 0})
	a.Ingest(models.ProcessedTransaction{Txid: "new", Amounts: []float64{0.1}, Timestamp: 150})

	removed := a.EvictExpired(150)
	if removed != 1 {
		t.Fatalf("EvictExpired removed %d, want 1", removed)
	}
	if a.Count() != 1 {
		t.Errorf("Count() after eviction = %d, want 1", a.Count())
	}
	if len(a.histogram) != 1 {
		t.Errorf("histogram has %d bins after eviction, want 1 (evicted bin removed)", len(a.histogram))
	}
}

func TestEvictExpiredIsIdempotent(t *testing.T) {
	a := New(100)
	a.Ingest(models.ProcessedTransaction{Txid: "old", Amounts: []float64{0.05}, Timestamp: 0})

	first := a.EvictExpired(1000)
	second := a.EvictExpired(1000)
	if first != 1 {
		t.Fatalf("first EvictExpired = %d, want 1", first)
	}
	if second != 0 {
		t.Errorf("second EvictExpired = %d, want 0 (idempotent)", second)
	}
}

func TestSnapshotPriceFallsBackToBaselineBelowThreshold(t *testing.T) {
	a := New(3600)
	a.SetBaseline(50000.0)

	for i := 0; i < MinAcceptedForEstimate-1; i++ {
		a.Ingest(models.ProcessedTransaction{Txid: string(rune('a' + i)), Amounts: []float64{0.01}, Timestamp: 0})
	}

	result, ok := a.SnapshotPrice(0)
	if !ok {
		t.Fatalf("expected baseline fallback to succeed")
	}
	if result.PriceUSD != 50000.0 {
		t.Errorf("PriceUSD = %v, want baseline 50000.0", result.PriceUSD)
	}
	if result.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0 for baseline fallback", result.Confidence)
	}
}

func TestSnapshotPriceFailsWithNoBaselineBelowThreshold(t *testing.T) {
	a := New(3600)
	_, ok := a.SnapshotPrice(0)
	if ok {
		t.Errorf("expected failure with no transactions and no baseline set")
	}
}
