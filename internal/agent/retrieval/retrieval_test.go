package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmsense/server/internal/agent/model"
	"github.com/farmsense/server/internal/testutil"
)

func item(text, source string, distance float64) model.ContextItem {
	return model.ContextItem{Text: text, Distance: distance, Metadata: map[string]any{"source": source}}
}

func TestRetrieve_DedupesByTextFirstSeenWins(t *testing.T) {
	store := &testutil.DocumentStore{Results: map[string][]model.ContextItem{
		"irrigation": {item("Water at dawn.", "a.txt", 0.1), item("Mulch keeps moisture.", "b.txt", 0.2)},
		"moisture":   {item("Mulch keeps moisture.", "c.txt", 0.05), item("Check soil at 10cm.", "d.txt", 0.3)},
	}}

	got := New(store, nil).Retrieve(context.Background(), []string{"irrigation", "moisture"}, 3)

	require.Len(t, got, 3)
	assert.Equal(t, "Water at dawn.", got[0].Text)
	assert.Equal(t, "Mulch keeps moisture.", got[1].Text)
	assert.Equal(t, "b.txt", got[1].Source(), "first occurrence keeps its metadata")
	assert.Equal(t, 0.2, got[1].Distance, "first occurrence keeps its distance")
	assert.Equal(t, "Check soil at 10cm.", got[2].Text)
}

func TestRetrieve_TextIdentityIsExact(t *testing.T) {
	store := &testutil.DocumentStore{Results: map[string][]model.ContextItem{
		"p": {item("Rotate crops", "a", 0), item("rotate crops", "a", 0), item("Rotate crops ", "a", 0)},
	}}
	got := New(store, nil).Retrieve(context.Background(), []string{"p"}, 5)
	assert.Len(t, got, 3, "case and whitespace differences are distinct passages")
}

func TestRetrieve_SkipsFailingPhrase(t *testing.T) {
	store := &testutil.DocumentStore{
		Results: map[string][]model.ContextItem{"ok": {item("kept", "a", 0)}},
		Errors:  map[string]error{"bad": errors.New("collection unavailable")},
	}
	got := New(store, nil).Retrieve(context.Background(), []string{"bad", "ok"}, 3)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Text)
	assert.Equal(t, []string{"bad", "ok"}, store.Queries)
}

func TestRetrieve_EmptyStore(t *testing.T) {
	got := New(&testutil.DocumentStore{}, nil).Retrieve(context.Background(), []string{"anything"}, 3)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRetrieve_PassesLimit(t *testing.T) {
	store := &testutil.DocumentStore{Results: map[string][]model.ContextItem{
		"p": {item("1", "", 0), item("2", "", 0), item("3", "", 0)},
	}}
	got := New(store, nil).Retrieve(context.Background(), []string{"p"}, 2)
	assert.Len(t, got, 2)
}
