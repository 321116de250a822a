package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/farmsense/server/internal/agent/model"
)

const doneFrame = "data: [DONE]\n\n"

// chunkFrame mirrors the incremental chat completion frame clients already
// parse: choices[0].delta.content.
type chunkFrame struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type chunkDelta struct {
	Content string `json:"content,omitempty"`
}

type statusFrame struct {
	Status  string `json:"status"`
	Stage   string `json:"stage"`
	Excerpt string `json:"excerpt,omitempty"`
}

type errorFrame struct {
	Error string `json:"error"`
}

// sseWriter frames stream events as server-sent events. Every write is
// flushed so deltas reach the client as they arrive.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	id      string
	model   string
	created int64
}

func newSSEWriter(w http.ResponseWriter, modelName string) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &sseWriter{
		w:       w,
		flusher: flusher,
		id:      "chatcmpl-" + uuid.NewString(),
		model:   modelName,
		created: time.Now().Unix(),
	}, true
}

func (s *sseWriter) start() {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.flusher.Flush()
}

// event writes the frame for ev. It reports terminal=true after Done or
// Error; a non-nil error means the client is gone.
func (s *sseWriter) event(ev model.StreamEvent) (terminal bool, err error) {
	switch ev.Kind {
	case model.EventStatus:
		return false, s.data(statusFrame{Status: ev.Message, Stage: ev.Stage, Excerpt: ev.Excerpt})
	case model.EventDelta:
		return false, s.data(s.chunk(chunkDelta{Content: ev.Text}, nil))
	case model.EventDone:
		stop := "stop"
		if err := s.data(s.chunk(chunkDelta{}, &stop)); err != nil {
			return true, err
		}
		return true, s.raw(doneFrame)
	case model.EventError:
		return true, s.data(errorFrame{Error: ev.Message})
	}
	return false, nil
}

func (s *sseWriter) chunk(delta chunkDelta, finish *string) chunkFrame {
	return chunkFrame{
		ID:      s.id,
		Object:  "chat.completion.chunk",
		Created: s.created,
		Model:   s.model,
		Choices: []chunkChoice{{Index: 0, Delta: delta, FinishReason: finish}},
	}
}

func (s *sseWriter) data(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal sse frame: %w", err)
	}
	return s.raw("data: " + string(b) + "\n\n")
}

func (s *sseWriter) raw(frame string) error {
	if _, err := s.w.Write([]byte(frame)); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
