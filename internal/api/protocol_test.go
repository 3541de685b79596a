package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvelopeUnmarshalsSubscribe(t *testing.T) {
	raw := []byte(`{"type":"subscribe","sequence":1,"channels":["price"]}`)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.Equal(t, TypeSubscribe, env.Type)
	require.Equal(t, []string{"price"}, env.Channels)
}

func TestUpdateMessageRoundTrip(t *testing.T) {
	msg := UpdateMessage{
		Type:       TypeUpdate,
		Sequence:   42,
		Price:      65000.5,
		Confidence: 0.8,
		Stats:      UpdateStats{ActiveTxCount: 10, TotalReceived: 20, TotalFiltered: 10},
	}

	encoded := mustJSON(msg)

	var decoded UpdateMessage
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.Equal(t, msg.Price, decoded.Price)
	require.Equal(t, msg.Confidence, decoded.Confidence)
	require.Nil(t, decoded.Baseline)
}

func TestUpdateMessageOmitsNilBaseline(t *testing.T) {
	msg := UpdateMessage{Type: TypeUpdate}
	encoded := mustJSON(msg)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(encoded, &raw))
	_, present := raw["baseline"]
	require.False(t, present, "nil Baseline must be omitted, not serialized as null")
}
