package app

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/Drdr1/Offline-LLM-RAG-System/internal/index"
)

// Answers returned without calling the generation backend. Both are
// valid, citation-empty results, not errors: the caller can tell an
// empty corpus from an unhelpful one.
const (
	answerNoDocuments = "No documents have been indexed yet. Upload a PDF before asking questions."
	answerNoContext   = "No relevant context was found in the indexed documents for this question."
)

const snippetMaxRunes = 200

var sourceMarkerPattern = regexp.MustCompile(`\[Source (\d+)\]`)

// buildPrompt embeds each retrieved chunk under a stable [Source N]
// marker followed by the question. Marker numbers are 1-based positions
// in retrieved, which is the mapping parseSourceMarkers inverts.
func buildPrompt(question string, retrieved []index.Result) string {
	var b strings.Builder
	b.WriteString("Based on the following context from documents, answer the question. ")
	b.WriteString("If the answer is not in the context, say so.\n\nContext:\n")
	for i, r := range retrieved {
		fmt.Fprintf(&b, "[Source %d] %s\n\n", i+1, r.Entry.Text)
	}
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	b.WriteString("Answer (cite sources using [Source N] notation):")
	return b.String()
}

// parseSourceMarkers extracts the [Source N] markers from generated
// text and returns the distinct referenced positions (0-based) in first
// appearance order. A marker outside [1, count] refers to a chunk that
// was never in the prompt; it is logged and dropped, never turned into a
// citation.
func parseSourceMarkers(text string, count int) []int {
	matches := sourceMarkerPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[int]struct{}, len(matches))
	refs := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > count {
			log.Printf("generated answer references invalid marker %q (have %d sources)", m[0], count)
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		refs = append(refs, n-1)
	}
	return refs
}

// citationFor derives a Citation from an index entry, truncating the
// chunk text to a readable snippet.
func citationFor(e index.Entry) Citation {
	return Citation{
		DocumentID: e.DocumentID,
		Filename:   e.Filename,
		PageNumber: e.PageNumber,
		Snippet:    snippet(e.Text),
	}
}

func snippet(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= snippetMaxRunes {
		return string(runes)
	}
	return string(runes[:snippetMaxRunes]) + "..."
}
