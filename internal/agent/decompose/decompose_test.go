package decompose

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmsense/server/internal/metrics"
	"github.com/farmsense/server/internal/testutil"
)

func TestSplitPhrases(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"plain lines", "wheat irrigation timing\nsoil moisture", []string{"wheat irrigation timing", "soil moisture"}},
		{"blank and padded", "\n  a  \n\n\t b\n", []string{"a", "b"}},
		{"windows newlines", "a\r\nb\r\n", []string{"a", "b"}},
		{"bullets", "- a\n* b\n• c", []string{"a", "b", "c"}},
		{"numbering", "1. a\n2) b\n10. c", []string{"a", "b", "c"}},
		{"duplicates kept", "a\na", []string{"a", "a"}},
		{"hyphenated words untouched", "no-till wheat", []string{"no-till wheat"}},
		{"marker only", "-\n1.", []string{"-", "1."}},
		{"empty", "  \n ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitPhrases(tt.raw))
		})
	}
}

func TestDecompose_UsesModelOutput(t *testing.T) {
	chat := &testutil.ChatModel{Reply: "wheat irrigation timing\n\nsoil moisture fertilizer\n"}
	d := New(chat, 0, nil)

	got := d.Decompose(context.Background(), "When should I irrigate and fertilize?")
	assert.Equal(t, []string{"wheat irrigation timing", "soil moisture fertilizer"}, got)

	inputs := chat.Inputs()
	require.Len(t, inputs, 1)
	require.Len(t, inputs[0], 2)
	assert.Equal(t, schema.System, inputs[0][0].Role)
	assert.Equal(t, "When should I irrigate and fertilize?", inputs[0][1].Content)

	opts := chat.Options()
	require.NotNil(t, opts[0].Temperature)
	assert.Equal(t, DefaultTemperature, *opts[0].Temperature)
}

func TestDecompose_FallsBackToQuestion(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	tests := []struct {
		name string
		chat *testutil.ChatModel
	}{
		{"model error", &testutil.ChatModel{Err: errors.New("503 unavailable")}},
		{"empty output", &testutil.ChatModel{Reply: "\n \n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.chat, 0.3, m).Decompose(context.Background(), "Why are my leaves yellow?")
			assert.Equal(t, []string{"Why are my leaves yellow?"}, got)
		})
	}
	assert.Equal(t, 2.0, promtest.ToFloat64(m.DecompositionFallback))
}

func TestDecompose_NilModel(t *testing.T) {
	var d *Decomposer
	assert.Equal(t, []string{"q"}, d.Decompose(context.Background(), "q"))
}
