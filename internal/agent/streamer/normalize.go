package streamer

import "strings"

// EmphasisMarker is stripped from every model output.
const EmphasisMarker = "**"

// Normalize applies the output transform to a complete text.
func Normalize(text string) string {
	return strings.ReplaceAll(text, EmphasisMarker, "")
}

// Normalizer applies Normalize to a chunked stream. A chunk ending in a
// partial marker is held back until the next chunk decides it, so the
// concatenated output always equals Normalize of the concatenated input.
type Normalizer struct {
	pending string
}

// Push returns the text that is safe to emit after chunk.
func (n *Normalizer) Push(chunk string) string {
	s := Normalize(n.pending + chunk)
	keep := partialSuffix(s)
	n.pending = s[len(s)-keep:]
	return s[:len(s)-keep]
}

// Flush returns whatever was held back. Call it once the stream ends.
func (n *Normalizer) Flush() string {
	s := n.pending
	n.pending = ""
	return s
}

// partialSuffix is the length of the longest suffix of s that is a proper
// prefix of the marker.
func partialSuffix(s string) int {
	for l := min(len(EmphasisMarker)-1, len(s)); l > 0; l-- {
		if strings.HasSuffix(s, EmphasisMarker[:l]) {
			return l
		}
	}
	return 0
}
