package streamer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/farmsense/server/internal/agent/model"
	errx "github.com/farmsense/server/internal/core/error"
	"github.com/farmsense/server/internal/testutil"
)

func prompt(items ...model.ContextItem) *model.PreparedPrompt {
	return &model.PreparedPrompt{
		Messages: []*schema.Message{schema.SystemMessage("sys"), schema.UserMessage("When should I irrigate?")},
		Context:  items,
	}
}

func ctxItem(text, source string) model.ContextItem {
	return model.ContextItem{Text: text, Metadata: map[string]any{"source": source}}
}

func drainEvents(t *testing.T, sr *schema.StreamReader[model.StreamEvent]) []model.StreamEvent {
	t.Helper()
	defer sr.Close()
	var events []model.StreamEvent
	for {
		ev, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func deltas(events []model.StreamEvent) string {
	var b strings.Builder
	for _, ev := range events {
		if ev.Kind == model.EventDelta {
			b.WriteString(ev.Text)
		}
	}
	return b.String()
}

func TestStream_StatusDeltasDone(t *testing.T) {
	defer goleak.VerifyNone(t)

	chat := &testutil.ChatModel{Chunks: []string{"Irrigate *", "*early** in", " the **morning*", "*."}}
	s := New(chat, "gemini-2.5-flash", nil)

	events := drainEvents(t, s.Stream(context.Background(), prompt(
		ctxItem("Water at dawn to limit evaporation.", "irrigation.txt"),
		ctxItem("Mulch.", "irrigation.txt"),
		ctxItem("Soil probes.", "soil.txt"),
		ctxItem("Other.", "third.txt"),
	)))

	require.GreaterOrEqual(t, len(events), 3)
	status := events[0]
	assert.Equal(t, model.EventStatus, status.Kind)
	assert.Equal(t, StageContext, status.Stage)
	assert.Equal(t, "Consulting irrigation.txt and soil.txt", status.Message)
	assert.Equal(t, "Water at dawn to limit evaporation.", status.Excerpt)

	assert.Equal(t, model.EventDone, events[len(events)-1].Kind)
	for _, ev := range events[1 : len(events)-1] {
		assert.Equal(t, model.EventDelta, ev.Kind)
	}
	assert.Equal(t, "Irrigate early in the morning.", deltas(events))
}

func TestStream_NoSourcesSkipsStatus(t *testing.T) {
	defer goleak.VerifyNone(t)

	chat := &testutil.ChatModel{Chunks: []string{"ok"}}
	events := drainEvents(t, New(chat, "m", nil).Stream(context.Background(), prompt()))

	require.Len(t, events, 2)
	assert.Equal(t, model.DeltaEvent("ok"), events[0])
	assert.Equal(t, model.DoneEvent(), events[1])
}

func TestStream_ModelUnavailableEmitsSingleError(t *testing.T) {
	defer goleak.VerifyNone(t)

	chat := &testutil.ChatModel{Err: errors.New("quota exceeded")}
	events := drainEvents(t, New(chat, "m", nil).Stream(context.Background(), prompt(ctxItem("t", "a.txt"))))

	require.Len(t, events, 2)
	assert.Equal(t, model.EventStatus, events[0].Kind)
	assert.Equal(t, model.EventError, events[1].Kind)
	assert.Contains(t, events[1].Message, "quota exceeded")
}

func TestStream_MidStreamErrorEndsWithoutDone(t *testing.T) {
	defer goleak.VerifyNone(t)

	chat := &testutil.ChatModel{Chunks: []string{"Start ", "then"}, StreamErr: errors.New("connection reset")}
	events := drainEvents(t, New(chat, "m", nil).Stream(context.Background(), prompt()))

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, model.EventError, last.Kind)
	for _, ev := range events {
		assert.NotEqual(t, model.EventDone, ev.Kind)
	}
	assert.Equal(t, "Start then", deltas(events))
}

func TestStream_ReaderCloseStopsProducers(t *testing.T) {
	defer goleak.VerifyNone(t)

	chunks := make([]string, 100)
	for i := range chunks {
		chunks[i] = "word "
	}
	chat := &testutil.ChatModel{Chunks: chunks}
	sr := New(chat, "m", nil).Stream(context.Background(), prompt())

	ev, err := sr.Recv()
	require.NoError(t, err)
	assert.Equal(t, model.EventDelta, ev.Kind)
	sr.Close()

	select {
	case <-chat.StreamDone():
	case <-time.After(2 * time.Second):
		t.Fatal("model stream was not closed after the reader went away")
	}
}

func TestStream_ContextCancelStopsBlockedModel(t *testing.T) {
	defer goleak.VerifyNone(t)

	gate := make(chan struct{})
	chat := &testutil.ChatModel{Chunks: []string{"a", "b", "c"}, Gate: gate}
	ctx, cancel := context.WithCancel(context.Background())
	sr := New(chat, "m", nil).Stream(ctx, prompt())

	gate <- struct{}{}
	ev, err := sr.Recv()
	require.NoError(t, err)
	assert.Equal(t, "a", ev.Text)

	// client disconnect: request context cancelled and reader closed
	cancel()
	sr.Close()

	select {
	case <-chat.StreamDone():
	case <-time.After(2 * time.Second):
		t.Fatal("model stream ignored cancellation")
	}
}

func TestAnswer_NormalizesAndEchoesContext(t *testing.T) {
	chat := &testutil.ChatModel{
		Reply: "**Irrigate** on **Thursday** morning.",
		Usage: &schema.TokenUsage{PromptTokens: 1200, CompletionTokens: 80, TotalTokens: 1280},
	}
	items := []model.ContextItem{ctxItem("Water at dawn.", "irrigation.txt")}

	got, err := New(chat, "gemini-2.5-flash", nil).Answer(context.Background(), prompt(items...))
	require.NoError(t, err)
	assert.Equal(t, "Irrigate on Thursday morning.", got.Text)
	assert.Equal(t, items, got.Context)
	assert.Equal(t, "gemini-2.5-flash", got.Model)
}

func TestAnswer_EmptyContextIsEmptySlice(t *testing.T) {
	got, err := New(&testutil.ChatModel{Reply: "ok"}, "m", nil).Answer(context.Background(), prompt())
	require.NoError(t, err)
	assert.NotNil(t, got.Context)
	assert.Empty(t, got.Context)
}

func TestAnswer_ModelError(t *testing.T) {
	boom := errors.New("503")
	_, err := New(&testutil.ChatModel{Err: boom}, "m", nil).Answer(context.Background(), prompt())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, http.StatusBadGateway, errx.StatusOf(err, http.StatusInternalServerError))
}

func TestAnswerAndStreamAgree(t *testing.T) {
	defer goleak.VerifyNone(t)

	text := "Use **split** applications of *nitrogen* and ***monitor***."
	chunks := []string{}
	for i := 0; i < len(text); i += 3 {
		chunks = append(chunks, text[i:min(i+3, len(text))])
	}
	chat := &testutil.ChatModel{Reply: text, Chunks: chunks}
	s := New(chat, "m", nil)

	answer, err := s.Answer(context.Background(), prompt())
	require.NoError(t, err)
	streamed := deltas(drainEvents(t, s.Stream(context.Background(), prompt())))

	assert.Equal(t, answer.Text, streamed)
	assert.NotContains(t, streamed, EmphasisMarker)
}
