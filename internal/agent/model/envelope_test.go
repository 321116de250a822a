package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope_StampsVersionAndKind(t *testing.T) {
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.FixedZone("EST", -5*3600))
	env, err := NewEnvelope("market_agent", "farm-1", MarketRecord{CropName: "wheat", Unit: "bushel"}, now)
	require.NoError(t, err)

	assert.NotEmpty(t, env.ID)
	assert.Equal(t, KindMarket, env.Kind)
	assert.Equal(t, CurrentSchemaVersion, env.SchemaVersion)
	assert.Equal(t, "farm-1", env.FarmID)
	assert.Equal(t, time.UTC, env.SentAt.Location())
	assert.JSONEq(t, `{"crop_name":"wheat","unit":"bushel","price_records":null}`, string(env.Payload))
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := NewEnvelope("soil_agent", "", SoilRecord{PH: Float(6.5)}, time.Now())
	require.NoError(t, err)
	data, err := json.Marshal(env)
	require.NoError(t, err)

	got, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, env.ID, got.ID)
	assert.Equal(t, KindSoil, got.Kind)

	_, err = DecodeEnvelope([]byte(`{"id":"x","payload":{}}`))
	assert.Error(t, err, "kind is required")

	_, err = DecodeEnvelope([]byte(`{"id":"x","kind":"soil"}`))
	assert.Error(t, err, "payload is required")

	_, err = DecodeEnvelope([]byte(`not json`))
	assert.Error(t, err)
}

func TestSourceKind_Decode(t *testing.T) {
	var k SourceKind
	require.NoError(t, k.Decode("market"))
	assert.Equal(t, KindMarket, k)
	assert.Error(t, k.Decode("rainfall"))
}

func TestRAGRequest_LatestUserContent(t *testing.T) {
	req := RAGRequest{Messages: []ChatMessage{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "reply"},
		{Role: "user", Content: "second"},
		{Role: "assistant", Content: "reply again"},
	}}
	got, ok := req.LatestUserContent()
	require.True(t, ok)
	assert.Equal(t, "second", got)

	_, ok = RAGRequest{Messages: []ChatMessage{{Role: "system", Content: "x"}}}.LatestUserContent()
	assert.False(t, ok)
}
