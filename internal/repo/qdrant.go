package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/farmsense/server/internal/agent/model"
	logx "github.com/farmsense/server/pkg/logger"
)

const (
	payloadText = "text"
	// upsertBatch bounds how many chunks are embedded and written per call.
	upsertBatch = 64
)

// pointNamespace derives stable point ids from a chunk's path and index, so
// re-ingesting a file overwrites its chunks.
var pointNamespace = uuid.MustParse("b8e2f4d1-7c3a-4e59-8f06-2a9d1c5e3b47")

// Document is one knowledge base chunk to index.
type Document struct {
	Text     string
	Metadata map[string]any
}

// QdrantStore implements model.DocumentStore over a Qdrant collection whose
// points carry the chunk text under "text" and the metadata alongside it.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dims       uint64
	embedder   Embedder
}

func NewQdrantStore(client *qdrant.Client, collection string, dims int32, embedder Embedder) *QdrantStore {
	return &QdrantStore{client: client, collection: collection, dims: uint64(dims), embedder: embedder}
}

// Query returns up to limit passages nearest to text. A missing or empty
// collection yields an empty slice. Distance is 1 - cosine similarity.
func (s *QdrantStore) Query(ctx context.Context, text string, limit int) ([]model.ContextItem, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("check collection %q: %w", s.collection, err)
	}
	if !exists {
		logx.Warn().Str("collection", s.collection).Msg("knowledge base collection does not exist")
		return []model.ContextItem{}, nil
	}
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return nil, fmt.Errorf("count collection %q: %w", s.collection, err)
	}
	if count == 0 {
		return []model.ContextItem{}, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{text}, TaskRetrievalQuery)
	if err != nil {
		return nil, err
	}

	fetch := uint64(limit)
	scored, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(vectors[0]),
		Limit:          &fetch,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	items := make([]model.ContextItem, 0, len(scored))
	for _, sp := range scored {
		item, ok := contextItem(sp.GetPayload(), sp.GetScore())
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// EnsureCollection creates the cosine collection when missing.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection %q: %w", s.collection, err)
	}
	if exists {
		return nil
	}
	if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.dims,
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("create collection %q: %w", s.collection, err)
	}
	logx.Info().Str("collection", s.collection).Uint64("dims", s.dims).Msg("created knowledge base collection")
	return nil
}

// Upsert embeds and writes docs in batches, returning how many were written.
func (s *QdrantStore) Upsert(ctx context.Context, docs []Document) (int, error) {
	written := 0
	for start := 0; start < len(docs); start += upsertBatch {
		end := min(start+upsertBatch, len(docs))
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Text
		}
		vectors, err := s.embedder.Embed(ctx, texts, TaskRetrievalDocument)
		if err != nil {
			return written, err
		}

		points := make([]*qdrant.PointStruct, len(batch))
		for i, d := range batch {
			payload := make(map[string]any, len(d.Metadata)+1)
			for k, v := range d.Metadata {
				payload[k] = v
			}
			payload[payloadText] = d.Text
			points[i] = &qdrant.PointStruct{
				Id:      qdrant.NewID(PointID(d).String()),
				Vectors: qdrant.NewVectorsDense(vectors[i]),
				Payload: qdrant.NewValueMap(payload),
			}
		}

		if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		}); err != nil {
			return written, fmt.Errorf("qdrant upsert %d points: %w", len(points), err)
		}
		written += len(points)
	}
	return written, nil
}

// PointID is stable for a chunk's path and index, falling back to its text.
func PointID(d Document) uuid.UUID {
	path, _ := d.Metadata["path"].(string)
	if path == "" {
		return uuid.NewSHA1(pointNamespace, []byte(d.Text))
	}
	return uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%s#%v", path, d.Metadata["chunk_index"])))
}

// contextItem converts a scored point. Points without text are skipped.
func contextItem(payload map[string]*qdrant.Value, score float32) (model.ContextItem, bool) {
	text := payload[payloadText].GetStringValue()
	if text == "" {
		return model.ContextItem{}, false
	}
	meta := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == payloadText {
			continue
		}
		meta[k] = valueToAny(v)
	}
	return model.ContextItem{Text: text, Distance: 1 - float64(score), Metadata: meta}, true
}

func valueToAny(v *qdrant.Value) any {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_ListValue:
		values := k.ListValue.GetValues()
		out := make([]any, len(values))
		for i, item := range values {
			out[i] = valueToAny(item)
		}
		return out
	case *qdrant.Value_StructValue:
		fields := k.StructValue.GetFields()
		out := make(map[string]any, len(fields))
		for name, item := range fields {
			out[name] = valueToAny(item)
		}
		return out
	default:
		return nil
	}
}

var _ model.DocumentStore = (*QdrantStore)(nil)
