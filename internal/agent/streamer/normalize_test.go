package streamer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func feed(chunks ...string) string {
	n := &Normalizer{}
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(n.Push(c))
	}
	b.WriteString(n.Flush())
	return b.String()
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "Irrigate early.", Normalize("**Irrigate** early."))
	assert.Equal(t, "*", Normalize("***"))
	assert.Equal(t, "", Normalize("****"))
	assert.Equal(t, "a * b", Normalize("a * b"))
}

func TestNormalizer_MarkerSplitAcrossChunks(t *testing.T) {
	assert.Equal(t, "Apply nitrogen now.", feed("Apply *", "*nitrogen*", "* now."))
	assert.Equal(t, "bold", feed("*", "*", "bold", "*", "*"))
	assert.Equal(t, "a*", feed("a*"), "a lone star is flushed at the end")
	assert.Equal(t, "x * y", feed("x *", " y"))
}

func TestNormalizer_HoldsOnlyPartialMarker(t *testing.T) {
	n := &Normalizer{}
	assert.Equal(t, "Water", n.Push("Water*"))
	assert.Equal(t, " deeply", n.Push("* deeply"))
	assert.Equal(t, "", n.Flush())
}

// Every way of cutting the text into up to three chunks must give the same
// output as normalizing the whole text.
func TestNormalizer_MatchesWholeTextForEverySplit(t *testing.T) {
	inputs := []string{
		"**Tip:** irrigate at **dawn**",
		"***bold italic***",
		"a*b**c***d****e",
		"ends with *",
		"**",
		"*",
		"",
		"no markers at all",
	}
	for _, in := range inputs {
		want := Normalize(in)
		assert.NotContains(t, want, EmphasisMarker)
		for i := 0; i <= len(in); i++ {
			for j := i; j <= len(in); j++ {
				got := feed(in[:i], in[i:j], in[j:])
				assert.Equal(t, want, got, "input %q split at %d,%d", in, i, j)
			}
		}
	}
}
