package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ContextItem is one retrieved knowledge base passage. Identity is the exact text.
type ContextItem struct {
	Text     string         `json:"text"`
	Distance float64        `json:"distance"`
	Metadata map[string]any `json:"metadata"`
}

// Source returns the metadata "source" value, or "" when absent.
func (c ContextItem) Source() string {
	if c.Metadata == nil {
		return ""
	}
	s, _ := c.Metadata["source"].(string)
	return s
}

// DocumentStore is the nearest-neighbour text index queried by the retriever.
type DocumentStore interface {
	// Query returns up to limit items nearest to text. An empty store yields an empty slice.
	Query(ctx context.Context, text string, limit int) ([]ContextItem, error)
}

// ChatMessage is one turn of caller-supplied history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RAGRequest is the input of the query graph.
type RAGRequest struct {
	Messages []ChatMessage
	NResults int
	Crops    []string
}

// LatestUserContent returns the content of the last user-role message.
func (r RAGRequest) LatestUserContent() (string, bool) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == string(schema.User) {
			return r.Messages[i].Content, true
		}
	}
	return "", false
}

// QueryState flows between the lambda nodes of the query graph.
type QueryState struct {
	Request   RAGRequest
	Question  string
	Phrases   []string
	Context   []ContextItem
	Telemetry string
}

// PreparedPrompt is the output of the query graph and the input of the streamer.
type PreparedPrompt struct {
	Messages  []*schema.Message
	Context   []ContextItem
	Telemetry string
}

// Answer is the non-streaming response.
type Answer struct {
	Text    string        `json:"response"`
	Context []ContextItem `json:"context"`
	Model   string        `json:"model"`
}
