package baseline

import (
	"testing"

	"github.com/gptprojectmanager/utxoracle-go/internal/price"
)

func TestCurrentIsNilBeforeAnyRecompute(t *testing.T) {
	c := New(DefaultWindowBlocks)
	if c.Current() != nil {
		t.Errorf("Current() on a fresh Calculator = %v, want nil", c.Current())
	}
}

func TestRecomputePublishesNilBelowMinBlocksThreshold(t *testing.T) {
	c := New(DefaultWindowBlocks)
	for h := int64(0); h < MinBlocksForBaseline-1; h++ {
		c.AddBlock(h, h*600, []float64{0.05, 0.1})
	}
	if got := c.Recompute(); got != nil {
		t.Errorf("Recompute() with %d blocks = %v, want nil (below MinBlocksForBaseline=%d)",
			MinBlocksForBaseline-1, got, MinBlocksForBaseline)
	}
	if c.Current() != nil {
		t.Errorf("Current() after a failed Recompute must also be nil")
	}
}

func TestAddBlockEvictsOldestBlockPastWindow(t *testing.T) {
	c := New(2)
	c.AddBlock(1, 100, []float64{0.05})
	c.AddBlock(2, 200, []float64{0.1})
	c.AddBlock(3, 300, []float64{0.2}) // evicts block 1

	if c.filled != 2 {
		t.Fatalf("filled = %d, want 2 (window size 2)", c.filled)
	}
	c.ring.Do(func(v any) {
		if rec, ok := v.(*blockRecord); ok && rec.height == 1 {
			t.Errorf("block 1 still in the FIFO after a third block was added")
		}
	})
}

func TestCloudRangeReturnsFallbackWhenEmpty(t *testing.T) {
	min, max := cloudRange(nil, 42.0)
	if min != 42.0 || max != 42.0 {
		t.Errorf("cloudRange(nil, 42.0) = (%v, %v), want (42.0, 42.0)", min, max)
	}
}

func TestCloudRangeFindsMinAndMax(t *testing.T) {
	cloud := []price.CloudPoint{
		{PriceUSD: 50000},
		{PriceUSD: 49000},
		{PriceUSD: 51500},
	}
	min, max := cloudRange(cloud, 0)
	if min != 49000 {
		t.Errorf("min = %v, want 49000", min)
	}
	if max != 51500 {
		t.Errorf("max = %v, want 51500", max)
	}
}
