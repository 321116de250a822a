// Package retrieval gathers knowledge base passages for a set of search
// phrases and merges them into one de-duplicated list.
package retrieval

import (
	"context"

	"github.com/farmsense/server/internal/agent/model"
	"github.com/farmsense/server/internal/metrics"
	logx "github.com/farmsense/server/pkg/logger"
)

type Retriever struct {
	store   model.DocumentStore
	metrics *metrics.Metrics
}

func New(store model.DocumentStore, m *metrics.Metrics) *Retriever {
	return &Retriever{store: store, metrics: m}
}

// Retrieve queries the store for limit items per phrase. Results are appended
// in phrase order and each distinct text is kept once, with the distance and
// metadata of its first occurrence. A phrase whose query fails is skipped.
func (r *Retriever) Retrieve(ctx context.Context, phrases []string, limit int) []model.ContextItem {
	items := make([]model.ContextItem, 0, len(phrases)*limit)
	seen := make(map[string]struct{})

	for _, phrase := range phrases {
		if err := ctx.Err(); err != nil {
			logx.Warn().Err(err).Msg("retrieval cancelled")
			break
		}
		found, err := r.store.Query(ctx, phrase, limit)
		if err != nil {
			logx.Error().Err(err).Str("phrase", phrase).Msg("document store query failed, skipping phrase")
			r.metrics.ObserveRetrievalError()
			continue
		}
		for _, it := range found {
			if _, dup := seen[it.Text]; dup {
				continue
			}
			seen[it.Text] = struct{}{}
			items = append(items, it)
		}
	}

	logx.Debug().Int("phrases", len(phrases)).Int("items", len(items)).Msg("retrieved context")
	return items
}
