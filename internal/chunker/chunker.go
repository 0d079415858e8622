// Package chunker splits extracted document text into overlapping
// windows suitable for embedding. Windows are measured in words
// (whitespace-delimited tokens); offsets are byte offsets into the input
// text so a window can always be located in its source page.
package chunker

import (
	"fmt"
	"unicode"

	"github.com/Drdr1/Offline-LLM-RAG-System/internal/config"
)

// Window is a chunk candidate produced by Split.
type Window struct {
	Text        string
	StartOffset int
	EndOffset   int
}

type wordSpan struct {
	start int
	end   int
}

// Split cuts text into windows of size words, with consecutive windows
// sharing overlap words. Trailing windows shorter than size are retained.
// The output is deterministic: the same text and parameters always yield
// the same windows, which is what makes re-ingestion idempotent.
//
// overlap >= size would mean the window never advances; it is rejected
// here as well as at config validation so no caller can loop forever.
func Split(text string, size, overlap int) ([]Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", config.ErrConfiguration, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", config.ErrConfiguration, overlap, size)
	}

	words := splitWords(text)
	if len(words) == 0 {
		return nil, nil
	}

	step := size - overlap
	windows := make([]Window, 0, len(words)/step+1)
	for i := 0; i < len(words); i += step {
		last := i + size - 1
		if last >= len(words) {
			last = len(words) - 1
		}
		start := words[i].start
		end := words[last].end
		windows = append(windows, Window{
			Text:        text[start:end],
			StartOffset: start,
			EndOffset:   end,
		})
	}
	return windows, nil
}

// splitWords returns the byte spans of the whitespace-delimited words in
// text, in order.
func splitWords(text string) []wordSpan {
	var spans []wordSpan
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, wordSpan{start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, wordSpan{start: start, end: len(text)})
	}
	return spans
}
