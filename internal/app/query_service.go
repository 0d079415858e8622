package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/Drdr1/Offline-LLM-RAG-System/internal/index"
)

// Generator produces answer text from a grounded prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AnswerCacher caches marshalled QueryResults. Implementations are
// best-effort; the query service treats every cache error as a miss.
type AnswerCacher interface {
	Get(ctx context.Context, question string, topK int) ([]byte, bool, error)
	Set(ctx context.Context, question string, topK int, payload []byte) error
}

// Citation points part of an answer back to the chunk that supports it.
// Derived per answer, never stored.
type Citation struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	PageNumber int    `json:"page_number"`
	Snippet    string `json:"snippet"`
}

// QueryResult is the response to one question.
type QueryResult struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// QueryConfig carries the retrieval tunables, validated by the config
// package.
type QueryConfig struct {
	TopK     int
	MinScore float64
}

// QueryService owns the read path: embed the question, rank indexed
// chunks by cosine similarity, compose a grounded prompt and map the
// generated answer's markers back to citations. It never mutates the
// index, so an aborted request needs no cleanup.
type QueryService struct {
	idx       *index.Index
	embedder  Embedder
	generator Generator
	cache     AnswerCacher // nil disables caching
	cfg       QueryConfig
}

func NewQueryService(idx *index.Index, embedder Embedder, generator Generator, cache AnswerCacher, cfg QueryConfig) *QueryService {
	return &QueryService{
		idx:       idx,
		embedder:  embedder,
		generator: generator,
		cache:     cache,
		cfg:       cfg,
	}
}

// Ask answers one question. topK <= 0 uses the configured default. A
// question with no retrievable context yields an explicit no-context
// answer with zero citations; only backend failures are errors.
func (s *QueryService) Ask(ctx context.Context, question string, topK int) (*QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	if cached := s.cached(ctx, question, topK); cached != nil {
		return cached, nil
	}

	if s.idx.Len() == 0 {
		return &QueryResult{Answer: answerNoDocuments, Citations: []Citation{}}, nil
	}

	retrieved, err := s.retrieve(ctx, question, topK)
	if err != nil {
		return nil, err
	}
	if len(retrieved) == 0 {
		return &QueryResult{Answer: answerNoContext, Citations: []Citation{}}, nil
	}

	answer, err := s.generator.Generate(ctx, buildPrompt(question, retrieved))
	if err != nil {
		return nil, err
	}

	result := &QueryResult{
		Answer:    answer,
		Citations: s.citations(answer, retrieved),
	}
	s.store(ctx, question, topK, result)
	return result, nil
}

// retrieve embeds the question and returns the top-k index hits, with
// the relevance floor applied and at most one chunk per document page.
// When several chunks of one page rank together, the highest-scoring one
// represents the page; the rest would only repeat the same citation.
func (s *QueryService) retrieve(ctx context.Context, question string, topK int) ([]index.Result, error) {
	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	results, err := s.idx.Search(vector, topK)
	if err != nil {
		return nil, err
	}

	type pageKey struct {
		documentID string
		page       int
	}
	seen := make(map[pageKey]struct{}, len(results))
	kept := results[:0]
	for _, r := range results {
		if s.cfg.MinScore != 0 && r.Score < s.cfg.MinScore {
			continue
		}
		key := pageKey{r.Entry.DocumentID, r.Entry.PageNumber}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, r)
	}
	return kept, nil
}

// citations maps the answer's source markers back to the retrieved
// chunks. An answer that cites nothing falls back to citing everything
// that was in the prompt, which is what the retrieval actually grounded
// the answer on.
func (s *QueryService) citations(answer string, retrieved []index.Result) []Citation {
	refs := parseSourceMarkers(answer, len(retrieved))
	if len(refs) == 0 {
		refs = make([]int, len(retrieved))
		for i := range retrieved {
			refs[i] = i
		}
	}
	citations := make([]Citation, len(refs))
	for i, ref := range refs {
		citations[i] = citationFor(retrieved[ref].Entry)
	}
	return citations
}

func (s *QueryService) cached(ctx context.Context, question string, topK int) *QueryResult {
	if s.cache == nil {
		return nil
	}
	raw, ok, err := s.cache.Get(ctx, question, topK)
	if err != nil {
		log.Printf("answer cache get failed: %v", err)
		return nil
	}
	if !ok {
		return nil
	}
	var result QueryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		log.Printf("answer cache decode failed: %v", err)
		return nil
	}
	return &result
}

func (s *QueryService) store(ctx context.Context, question string, topK int, result *QueryResult) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, question, topK, payload); err != nil {
		log.Printf("answer cache set failed: %v", err)
	}
}
