package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Drdr1/Offline-LLM-RAG-System/internal/index"
)

// fakeEmbedder returns a fixed vector per known word and fails on
// anything else. Good enough to steer cosine ranking in tests.
type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for word, vec := range f.vectors {
		if strings.Contains(strings.ToLower(text), word) {
			return vec, nil
		}
	}
	return nil, fmt.Errorf("no fake vector for %q", text)
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

type fakeGenerator struct {
	answer string
	err    error
	calls  int
	prompt string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type memoryCache struct {
	entries map[string][]byte
	sets    int
}

func (m *memoryCache) Get(_ context.Context, question string, topK int) ([]byte, bool, error) {
	raw, ok := m.entries[fmt.Sprintf("%d:%s", topK, question)]
	return raw, ok, nil
}

func (m *memoryCache) Set(_ context.Context, question string, topK int, payload []byte) error {
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	m.entries[fmt.Sprintf("%d:%s", topK, question)] = payload
	m.sets++
	return nil
}

func populatedIndex(t *testing.T) *index.Index {
	t.Helper()
	ix, err := index.New(2)
	require.NoError(t, err)
	require.NoError(t, ix.Add([]index.Entry{
		{ChunkID: "c-go", DocumentID: "d1", Filename: "go.pdf", PageNumber: 1, Text: "Go is a compiled language.", Vector: []float32{1, 0}},
		{ChunkID: "c-py", DocumentID: "d2", Filename: "py.pdf", PageNumber: 1, Text: "Python is interpreted.", Vector: []float32{0, 1}},
	}))
	return ix
}

func newQueryService(t *testing.T, ix *index.Index, gen *fakeGenerator, cache AnswerCacher) *QueryService {
	t.Helper()
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"go":     {1, 0},
		"python": {0, 1},
	}}
	return NewQueryService(ix, emb, gen, cache, QueryConfig{TopK: 3})
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newQueryService(t, populatedIndex(t), gen, nil)

	_, err := svc.Ask(context.Background(), "   ", 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, gen.calls)
}

func TestAskEmptyIndexAnswersWithoutGeneration(t *testing.T) {
	ix, err := index.New(2)
	require.NoError(t, err)
	gen := &fakeGenerator{}
	svc := newQueryService(t, ix, gen, nil)

	result, err := svc.Ask(context.Background(), "what is go", 0)
	require.NoError(t, err)
	assert.Equal(t, answerNoDocuments, result.Answer)
	assert.Empty(t, result.Citations)
	assert.Zero(t, gen.calls)
}

func TestAskMinScoreFloorYieldsNoContextAnswer(t *testing.T) {
	ix, err := index.New(2)
	require.NoError(t, err)
	// Orthogonal to every query vector, so all scores are 0.
	require.NoError(t, ix.Add([]index.Entry{
		{ChunkID: "c1", DocumentID: "d1", Filename: "a.pdf", PageNumber: 1, Text: "unrelated", Vector: []float32{0, 1}},
	}))
	gen := &fakeGenerator{}
	emb := &fakeEmbedder{vectors: map[string][]float32{"go": {1, 0}}}
	svc := NewQueryService(ix, emb, gen, nil, QueryConfig{TopK: 3, MinScore: 0.5})

	result, err := svc.Ask(context.Background(), "what is go", 0)
	require.NoError(t, err)
	assert.Equal(t, answerNoContext, result.Answer)
	assert.Empty(t, result.Citations)
	assert.Zero(t, gen.calls)
}

func TestAskCitesMarkedSources(t *testing.T) {
	gen := &fakeGenerator{answer: "Go is compiled [Source 1]."}
	svc := newQueryService(t, populatedIndex(t), gen, nil)

	result, err := svc.Ask(context.Background(), "what is go", 0)
	require.NoError(t, err)
	assert.Equal(t, "Go is compiled [Source 1].", result.Answer)
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "go.pdf", result.Citations[0].Filename)
	assert.Contains(t, gen.prompt, "[Source 1] Go is a compiled language.")
}

func TestAskFallsBackToAllRetrievedWhenUncited(t *testing.T) {
	gen := &fakeGenerator{answer: "An answer without any markers."}
	svc := newQueryService(t, populatedIndex(t), gen, nil)

	result, err := svc.Ask(context.Background(), "what is go", 0)
	require.NoError(t, err)
	// Both retrieved chunks were in the prompt, both get cited.
	require.Len(t, result.Citations, 2)
	assert.Equal(t, "go.pdf", result.Citations[0].Filename)
	assert.Equal(t, "py.pdf", result.Citations[1].Filename)
}

func TestAskPropagatesGenerationError(t *testing.T) {
	genErr := errors.New("model backend down")
	gen := &fakeGenerator{err: genErr}
	svc := newQueryService(t, populatedIndex(t), gen, nil)

	_, err := svc.Ask(context.Background(), "what is go", 0)
	assert.ErrorIs(t, err, genErr)
}

func TestAskPropagatesEmbeddingError(t *testing.T) {
	embErr := errors.New("embedder down")
	emb := &fakeEmbedder{err: embErr}
	gen := &fakeGenerator{}
	svc := NewQueryService(populatedIndex(t), emb, gen, nil, QueryConfig{TopK: 3})

	_, err := svc.Ask(context.Background(), "what is go", 0)
	assert.ErrorIs(t, err, embErr)
	assert.Zero(t, gen.calls)
}

func TestAskDeduplicatesSamePage(t *testing.T) {
	ix, err := index.New(2)
	require.NoError(t, err)
	// Two chunks of the same page rank 1st and 2nd; only the better one
	// should survive retrieval.
	require.NoError(t, ix.Add([]index.Entry{
		{ChunkID: "c1", DocumentID: "d1", Filename: "go.pdf", PageNumber: 1, Text: "best", Vector: []float32{1, 0}},
		{ChunkID: "c2", DocumentID: "d1", Filename: "go.pdf", PageNumber: 1, Text: "second", Vector: []float32{0.9, 0.1}},
		{ChunkID: "c3", DocumentID: "d2", Filename: "py.pdf", PageNumber: 1, Text: "other", Vector: []float32{0, 1}},
	}))
	gen := &fakeGenerator{answer: "no markers"}
	svc := newQueryService(t, ix, gen, nil)

	result, err := svc.Ask(context.Background(), "what is go", 0)
	require.NoError(t, err)
	require.Len(t, result.Citations, 2)
	assert.Equal(t, "best", result.Citations[0].Snippet)
	assert.Equal(t, "other", result.Citations[1].Snippet)
}

func TestAskUsesCacheOnRepeat(t *testing.T) {
	gen := &fakeGenerator{answer: "Go is compiled [Source 1]."}
	cache := &memoryCache{}
	svc := newQueryService(t, populatedIndex(t), gen, cache)

	first, err := svc.Ask(context.Background(), "what is go", 0)
	require.NoError(t, err)
	require.Equal(t, 1, gen.calls)
	require.Equal(t, 1, cache.sets)

	second, err := svc.Ask(context.Background(), "what is go", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls, "second ask should be served from cache")
	assert.Equal(t, first, second)
}

func TestAskDistinctTopKBypassesCacheEntry(t *testing.T) {
	gen := &fakeGenerator{answer: "cached answer"}
	cache := &memoryCache{}
	svc := newQueryService(t, populatedIndex(t), gen, cache)

	_, err := svc.Ask(context.Background(), "what is go", 1)
	require.NoError(t, err)
	_, err = svc.Ask(context.Background(), "what is go", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls)
}
