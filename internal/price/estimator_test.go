package price

import "testing"

func TestNormalizeZeroesTailsAndClampsPeak(t *testing.T) {
	var hist [NumBins]float64
	hist[0] = 100   // below normLo, must be zeroed
	hist[1999] = 100 // above normHi, must be zeroed
	hist[600] = 1.0  // a single dominant non-round bin within [normLo, normHi]

	ok := Normalize(&hist)
	if !ok {
		t.Fatalf("Normalize returned false, want true")
	}
	if hist[0] != 0 {
		t.Errorf("hist[0] = %v, want 0 (below normLo)", hist[0])
	}
	if hist[1999] != 0 {
		t.Errorf("hist[1999] = %v, want 0 (above normHi)", hist[1999])
	}
	if hist[600] > normClamp {
		t.Errorf("hist[600] = %v, exceeds clamp %v", hist[600], normClamp)
	}
}

func TestNormalizeFailsOnEmptyRange(t *testing.T) {
	var hist [NumBins]float64
	if Normalize(&hist) {
		t.Errorf("Normalize on an all-zero histogram should report insufficient data")
	}
}

func TestNormalizeSmoothsRoundBins(t *testing.T) {
	var hist [NumBins]float64
	r := roundBinIndices[1] // 401, away from the normLo/normHi tail-zeroing boundary
	hist[r-1] = 0.4
	hist[r+1] = 0.6
	hist[r] = 999 // must be overwritten by the neighbour average before normalization

	Normalize(&hist)
	// After smoothing, hist[r] held (0.4+0.6)/2 = 0.5 prior to the sum-to-1
	// normalization pass, so it must no longer carry its original spike value.
	if hist[r] == 999 {
		t.Errorf("round bin %d was not smoothed", r)
	}
}

func TestConvergeReturnsRoughPriceWhenCloudEmpty(t *testing.T) {
	central, deviation := converge(nil, 50000.0)
	if central != 50000.0 {
		t.Errorf("central = %v, want roughPrice 50000.0 unchanged", central)
	}
	if deviation != 0 {
		t.Errorf("deviation = %v, want 0 for an empty cloud", deviation)
	}
}

func TestConvergeDiscardsOutliersOutsideFivePercentBand(t *testing.T) {
	roughPrice := 50000.0
	cloud := []CloudPoint{
		{PriceUSD: 49800},
		{PriceUSD: 50000},
		{PriceUSD: 50200},
		{PriceUSD: 100000}, // far outside the +-5% survivor band
	}
	central, _ := converge(cloud, roughPrice)
	if central > 51000 || central < 49000 {
		t.Errorf("central = %v, outlier at 100000 should have been discarded", central)
	}
}

func TestMedianAbsoluteDeviationOfIdenticalValuesIsZero(t *testing.T) {
	xs := []float64{100, 100, 100}
	if got := medianAbsoluteDeviation(xs, 100); got != 0 {
		t.Errorf("medianAbsoluteDeviation = %v, want 0", got)
	}
}
