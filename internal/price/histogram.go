// Package price implements the on-chain price inference core: the
// log-spaced histogram (C1), the stencil bank (C2), the transaction
// filter (C3), and the stencil-slide estimator (C4).
package price

import (
	"math"
	"sort"
)

// NumBins is the size of the histogram: bin 0 plus 12 decades of 200 bins.
const NumBins = 2401

const (
	firstDecade = -6
	lastDecade  = 5
	binsPerDec  = 200
)

// Bins holds the 2401 bin edges in BTC, shared read-only by every caller.
var Bins [NumBins]float64

func init() {
	Bins[0] = 0.0
	idx := 1
	for e := firstDecade; e <= lastDecade; e++ {
		for b := 0; b < binsPerDec; b++ {
			exp := float64(e) + float64(b)/float64(binsPerDec)
			Bins[idx] = math.Pow(10, exp)
			idx++
		}
	}
}

// BinOf maps a BTC amount to its histogram bin index, per spec: amounts at
// or below zero map to bin 0, amounts outside [bins[1], bins[2400]] have no
// bin, and otherwise the greatest i with bins[i] <= amount is returned via
// binary search.
func BinOf(amountBTC float64) (int, bool) {
	if amountBTC <= 0 {
		return 0, true
	}
	if amountBTC < Bins[1] {
		return 0, false
	}
	if amountBTC > Bins[NumBins-1] {
		return 0, false
	}
	// sort.Search finds the first index for which the predicate holds;
	// we want the greatest i with Bins[i] <= amount, i.e. the first index
	// whose successor exceeds amount, found by searching for the first
	// Bins[i] > amount and stepping back one.
	i := sort.Search(NumBins, func(i int) bool { return Bins[i] > amountBTC })
	return i - 1, true
}
