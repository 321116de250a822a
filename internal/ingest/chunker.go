// Package ingest turns knowledge base text files into chunks for the
// document store.
package ingest

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// DefaultSeparators splits on paragraphs, then lines, then words, then
// characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Chunker splits text recursively: it uses the coarsest separator present and
// only descends to finer ones for pieces that are still longer than Size.
// Sizes count runes. Consecutive chunks share up to Overlap runes.
type Chunker struct {
	Size       int
	Overlap    int
	Separators []string
}

func NewChunker() Chunker {
	return Chunker{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap, Separators: DefaultSeparators}
}

// Split returns the chunks of text. Blank text yields no chunks.
func (c Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	seps := c.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	return c.split(text, seps)
}

func (c Chunker) split(text string, seps []string) []string {
	sep := seps[len(seps)-1]
	var finer []string
	for i, s := range seps {
		if s == "" {
			sep = ""
			break
		}
		if strings.Contains(text, s) {
			sep = s
			finer = seps[i+1:]
			break
		}
	}

	var out, fits []string
	for _, piece := range strings.Split(text, sep) {
		if piece == "" {
			continue
		}
		if runes(piece) <= c.Size {
			fits = append(fits, piece)
			continue
		}
		if len(fits) > 0 {
			out = append(out, c.merge(fits, sep)...)
			fits = nil
		}
		if len(finer) == 0 {
			out = append(out, piece)
		} else {
			out = append(out, c.split(piece, finer)...)
		}
	}
	if len(fits) > 0 {
		out = append(out, c.merge(fits, sep)...)
	}
	return out
}

// merge packs pieces into chunks of at most Size runes, carrying the tail of
// each chunk into the next up to Overlap runes.
func (c Chunker) merge(pieces []string, sep string) []string {
	sepLen := runes(sep)
	var (
		chunks []string
		window []string
		total  int
	)
	joined := func(extra int) int {
		if len(window) > 0 {
			return total + extra + sepLen
		}
		return total + extra
	}

	for _, p := range pieces {
		n := runes(p)
		if len(window) > 0 && joined(n) > c.Size {
			if chunk := strings.TrimSpace(strings.Join(window, sep)); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for len(window) > 0 && (total > c.Overlap || joined(n) > c.Size) {
				total -= runes(window[0])
				if len(window) > 1 {
					total -= sepLen
				}
				window = window[1:]
			}
		}
		total = joined(n)
		window = append(window, p)
	}
	if chunk := strings.TrimSpace(strings.Join(window, sep)); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func runes(s string) int { return utf8.RuneCountInString(s) }
