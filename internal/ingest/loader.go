package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/farmsense/server/internal/repo"
	logx "github.com/farmsense/server/pkg/logger"
)

// LoadDir chunks every .txt file under dir. Each chunk carries its file name
// as "source", the file path, and its position among the file's chunks.
func LoadDir(dir string, c Chunker) ([]repo.Document, error) {
	var docs []repo.Document
	files := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".txt") {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		chunks := c.Split(strings.TrimSpace(string(raw)))
		if len(chunks) == 0 {
			logx.Warn().Str("path", path).Msg("skipping empty knowledge file")
			return nil
		}
		files++
		for i, chunk := range chunks {
			docs = append(docs, repo.Document{
				Text: chunk,
				Metadata: map[string]any{
					"source":       d.Name(),
					"path":         path,
					"chunk_index":  i,
					"total_chunks": len(chunks),
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logx.Info().Int("files", files).Int("chunks", len(docs)).Str("dir", dir).Msg("knowledge base loaded")
	return docs, nil
}
