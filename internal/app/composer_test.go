package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Drdr1/Offline-LLM-RAG-System/internal/index"
)

func retrievedFixture(texts ...string) []index.Result {
	results := make([]index.Result, len(texts))
	for i, text := range texts {
		results[i] = index.Result{
			Entry: index.Entry{
				ChunkID:    "chunk-" + text,
				DocumentID: "doc-1",
				Filename:   "doc.pdf",
				PageNumber: i + 1,
				Text:       text,
			},
			Score: 1 - float64(i)*0.1,
		}
	}
	return results
}

func TestBuildPromptLayout(t *testing.T) {
	prompt := buildPrompt("What is Go?", retrievedFixture("alpha text", "beta text"))

	assert.True(t, strings.HasPrefix(prompt, "Based on the following context from documents"))
	assert.Contains(t, prompt, "[Source 1] alpha text")
	assert.Contains(t, prompt, "[Source 2] beta text")
	assert.Contains(t, prompt, "Question: What is Go?")
	assert.True(t, strings.HasSuffix(prompt, "Answer (cite sources using [Source N] notation):"))

	// Sources must appear before the question so the model reads
	// context first.
	assert.Less(t, strings.Index(prompt, "[Source 1]"), strings.Index(prompt, "Question:"))
}

func TestParseSourceMarkers(t *testing.T) {
	refs := parseSourceMarkers("See [Source 2] and also [Source 1].", 3)
	assert.Equal(t, []int{1, 0}, refs)
}

func TestParseSourceMarkersDeduplicates(t *testing.T) {
	refs := parseSourceMarkers("[Source 1] then [Source 1] again, plus [Source 2]", 2)
	assert.Equal(t, []int{0, 1}, refs)
}

func TestParseSourceMarkersDropsOutOfRange(t *testing.T) {
	refs := parseSourceMarkers("[Source 0] [Source 4] [Source 2]", 3)
	assert.Equal(t, []int{1}, refs)
}

func TestParseSourceMarkersIgnoresMalformed(t *testing.T) {
	refs := parseSourceMarkers("[Source one] [source 1] Source 2 [Source 2]", 3)
	assert.Equal(t, []int{1}, refs)
}

func TestParseSourceMarkersNone(t *testing.T) {
	assert.Empty(t, parseSourceMarkers("no markers here", 3))
}

func TestSnippetTruncatesLongText(t *testing.T) {
	long := strings.Repeat("x", 500)
	s := snippet(long)
	require.True(t, strings.HasSuffix(s, "..."))
	assert.Len(t, []rune(s), snippetMaxRunes+3)
}

func TestSnippetKeepsShortTextAndTrims(t *testing.T) {
	assert.Equal(t, "short text", snippet("  short text \n"))
}

func TestCitationForCarriesProvenance(t *testing.T) {
	c := citationFor(index.Entry{
		ChunkID:    "c1",
		DocumentID: "d1",
		Filename:   "report.pdf",
		PageNumber: 7,
		Text:       "the content",
	})
	assert.Equal(t, "d1", c.DocumentID)
	assert.Equal(t, "report.pdf", c.Filename)
	assert.Equal(t, 7, c.PageNumber)
	assert.Equal(t, "the content", c.Snippet)
}
