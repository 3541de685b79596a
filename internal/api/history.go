package api

import (
	"context"
	"errors"

	"github.com/gptprojectmanager/utxoracle-go/internal/store"
)

// errNoHistory is returned when a historical lookback is requested but no
// store is configured (dev mode, no DATABASE_URL set).
var errNoHistory = errors.New("api: historical snapshots require a configured store")

// queryHistory is the single lookback-query path shared by the GET
// /history REST endpoint and the WS historical_request message, so both
// surfaces answer from the same persisted snapshots.
func queryHistory(ctx context.Context, st *store.Store, since float64) ([]HistoryPoint, error) {
	if st == nil {
		return nil, errNoHistory
	}
	snaps, err := st.PriceSnapshotsSince(ctx, since)
	if err != nil {
		return nil, err
	}
	points := make([]HistoryPoint, len(snaps))
	for i, s := range snaps {
		points[i] = HistoryPoint{
			ObservedAt: s.ObservedAt,
			Price:      s.PriceUSD,
			Confidence: s.Confidence,
		}
	}
	return points, nil
}
