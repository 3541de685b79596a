// Package api implements the subscriber fan-out (C11): an authenticated,
// sequenced, heartbeated WebSocket hub broadcasting price updates, plus the
// gin HTTP surface (health, historical snapshots, WS upgrade).
package api

import "encoding/json"

// Inbound message types a subscriber may send. Tagged by Type.
const (
	TypeSubscribe         = "subscribe"
	TypeUnsubscribe       = "unsubscribe"
	TypePing              = "ping"
	TypeHistoricalRequest = "historical_request"
)

// Outbound message types the hub may send.
const (
	TypeAck     = "ack"
	TypePong    = "pong"
	TypeError   = "error"
	TypeUpdate  = "update"
	TypeHistory = "history"
)

// Envelope is the common fields every inbound message carries; Type
// discriminates how the remaining fields are interpreted.
type Envelope struct {
	Type     string   `json:"type"`
	Sequence uint64   `json:"sequence,omitempty"`
	Channels []string `json:"channels,omitempty"`
	DataType string   `json:"dataType,omitempty"`
	// Since is the lookback cutoff (unix seconds) for a historical_request.
	Since float64 `json:"since,omitempty"`
}

// AckMessage acknowledges a successful connect/subscribe/unsubscribe.
type AckMessage struct {
	Type                string   `json:"type"`
	Timestamp           int64    `json:"timestamp"`
	Sequence            uint64   `json:"sequence"`
	RequestSequence     uint64   `json:"requestSequence"`
	Status              string   `json:"status"`
	SubscribedChannels   []string `json:"subscribedChannels"`
	ServerTime          int64    `json:"serverTime"`
}

// PongMessage answers a ping.
type PongMessage struct {
	Type         string `json:"type"`
	Timestamp    int64  `json:"timestamp"`
	Sequence     uint64 `json:"sequence"`
	PingSequence uint64 `json:"pingSequence"`
	ServerTime   int64  `json:"serverTime"`
}

// ErrorMessage reports a structured, non-fatal protocol error.
type ErrorMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Sequence  uint64 `json:"sequence"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RetryAfter *int  `json:"retryAfter,omitempty"`
}

// UpdateMessage carries a live price snapshot to subscribers of "price".
type UpdateMessage struct {
	Type       string      `json:"type"`
	Timestamp  int64       `json:"timestamp"`
	Sequence   uint64      `json:"sequence"`
	Price      float64     `json:"price"`
	Confidence float64     `json:"confidence"`
	Stats      UpdateStats `json:"stats"`
	Baseline   *BaselineView `json:"baseline,omitempty"`
}

// UpdateStats summarizes the rolling window at broadcast time.
type UpdateStats struct {
	ActiveTxCount  int `json:"activeTxCount"`
	TotalReceived  int `json:"totalReceived"`
	TotalFiltered  int `json:"totalFiltered"`
}

// BaselineView is the subset of baseline.Result exposed to subscribers.
type BaselineView struct {
	Price       float64 `json:"price"`
	Confidence  float64 `json:"confidence"`
	BlockHeight int64   `json:"blockHeight"`
}

// HistoryPoint is one persisted price snapshot returned by a lookback query.
type HistoryPoint struct {
	ObservedAt float64 `json:"observedAt"`
	Price      float64 `json:"price"`
	Confidence float64 `json:"confidence"`
}

// HistoryMessage answers a historical_request with the store-backed
// lookback query result, the same data GET /history serves over REST.
type HistoryMessage struct {
	Type            string         `json:"type"`
	Timestamp       int64          `json:"timestamp"`
	Sequence        uint64         `json:"sequence"`
	RequestSequence uint64         `json:"requestSequence"`
	Points          []HistoryPoint `json:"points"`
}

func mustJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Every outbound message type here is a plain struct of JSON-safe
		// fields; a marshal failure would indicate a programming error.
		panic("api: marshal outbound message: " + err.Error())
	}
	return b
}
