package price

import "math"

// StencilLen is the fixed length of both the smooth and spike stencils.
const StencilLen = 803

const (
	smoothMean   = 411.0
	smoothStdDev = 201.0
)

// SmoothStencil is the fixed smooth Gaussian weighting pattern:
// w[x] = 0.00150 * exp(-(x-411)^2 / (2*201^2)) + 5e-7 * x.
var SmoothStencil [StencilLen]float64

// SpikeStencil is zero everywhere except at 29 indices corresponding to
// round USD amounts.
var SpikeStencil [StencilLen]float64

// spikeWeights are the (index -> weight) pairs for round-USD amounts
// ($1, $5, $10, $15, $20, $30, $50, $100, $150, $200, $300, $500, $1000,
// $1500, $2000, $5000, $10000). This is the complete 29-entry table.
var spikeWeights = map[int]float64{
	40:  0.001300198324984352,
	141: 0.001676746949820743,
	201: 0.003468805546942046,
	202: 0.001991977522512513,
	236: 0.001905066647961839,
	261: 0.003341772718156079,
	262: 0.002588902624584287,
	296: 0.002577893841190244,
	297: 0.002733728814200412,
	340: 0.003076117748975647,
	341: 0.005613067550103145,
	342: 0.003088253178535568,
	400: 0.002918457489366139,
	401: 0.006174500465286022,
	402: 0.004417068070043504,
	403: 0.002628663628020371,
	436: 0.002858828161543839,
	461: 0.004097463611984264,
	462: 0.003345917406120509,
	496: 0.002521467726855856,
	497: 0.002784125730361008,
	541: 0.003792850444811335,
	601: 0.003688240815848247,
	602: 0.002392400117402263,
	636: 0.001280993059008106,
	661: 0.001654665137536031,
	662: 0.001395501347054946,
	741: 0.001154279140906312,
	801: 0.000832244504868709,
}

func init() {
	for x := 0; x < StencilLen; x++ {
		fx := float64(x)
		expPart := -((fx - smoothMean) * (fx - smoothMean)) / (2 * smoothStdDev * smoothStdDev)
		SmoothStencil[x] = 0.00150*math.Exp(expPart) + 0.0000005*fx
	}
	for idx, w := range spikeWeights {
		SpikeStencil[idx] = w
	}
}
