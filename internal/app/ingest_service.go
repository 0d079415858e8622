package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Drdr1/Offline-LLM-RAG-System/internal/chunker"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/index"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/model"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/pkg/pdfextract"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/repository"
)

// Embedder maps text to a fixed-dimension vector. The same embedder must
// serve ingestion and retrieval or search results are meaningless.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// IngestQueue hands ingestion jobs to the background worker.
type IngestQueue interface {
	PublishIngest(ctx context.Context, documentID string) error
}

// PDFExtractor turns a stored upload into per-page text. Production uses
// pdfextract.File.
type PDFExtractor func(path string) ([]pdfextract.Page, error)

// IngestConfig carries the chunking policy and storage location for
// uploads. Values come validated from the config package.
type IngestConfig struct {
	ChunkSize int
	Overlap   int
	UploadDir string
}

// IngestService owns the write path: accepting uploads and driving each
// document through extracting -> chunking -> embedding -> indexed. A
// document's chunks become searchable only after the whole pipeline
// succeeded; a failure at any step leaves nothing behind in the index.
type IngestService struct {
	docRepo   *repository.DocumentRepository
	chunkRepo *repository.ChunkRepository
	idx       *index.Index
	embedder  Embedder
	queue     IngestQueue
	extract   PDFExtractor
	cfg       IngestConfig

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewIngestService(
	docRepo *repository.DocumentRepository,
	chunkRepo *repository.ChunkRepository,
	idx *index.Index,
	embedder Embedder,
	queue IngestQueue,
	extract PDFExtractor,
	cfg IngestConfig,
) *IngestService {
	return &IngestService{
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		idx:       idx,
		embedder:  embedder,
		queue:     queue,
		extract:   extract,
		cfg:       cfg,
		inflight:  make(map[string]struct{}),
	}
}

// Upload stores the PDF bytes, registers the document and enqueues its
// ingestion. Uploading a filename that is already indexed replaces the
// old document: its chunks and index entries are removed before the new
// ingestion starts. An upload racing an unfinished ingestion of the same
// filename is rejected.
func (s *IngestService) Upload(ctx context.Context, filename string, r io.Reader) (*model.Document, error) {
	filename = strings.TrimSpace(filepath.Base(filename))
	if filename == "" || filename == "." {
		return nil, fmt.Errorf("%w: missing filename", ErrInvalidInput)
	}

	existing, err := s.docRepo.GetByFilename(filename)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !existing.Terminal() {
			return nil, fmt.Errorf("%w: %s", ErrIngestInProgress, filename)
		}
		if err := s.remove(existing.ID); err != nil {
			return nil, fmt.Errorf("replace document %s failed: %w", filename, err)
		}
	}

	doc := &model.Document{
		ID:       uuid.NewString(),
		Filename: filename,
		Status:   model.StatusUploaded,
	}
	if err := s.saveUpload(doc.ID, r); err != nil {
		return nil, err
	}
	if err := s.docRepo.Create(doc); err != nil {
		_ = os.Remove(s.uploadPath(doc.ID))
		return nil, err
	}
	if err := s.queue.PublishIngest(ctx, doc.ID); err != nil {
		_ = s.docRepo.MarkFailed(doc.ID, "enqueue ingest job failed: "+err.Error())
		return nil, fmt.Errorf("enqueue ingest job failed: %w", err)
	}
	return doc, nil
}

// Run executes the ingestion pipeline for one document. Extraction reads
// the stored upload exactly once; every later step works on the previous
// step's output. Failures are recorded on the document row and returned.
func (s *IngestService) Run(ctx context.Context, documentID string) error {
	if !s.begin(documentID) {
		return fmt.Errorf("%w: %s", ErrIngestInProgress, documentID)
	}
	defer s.end(documentID)

	doc, err := s.docRepo.GetByID(documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}
	if doc.Terminal() {
		// Duplicate delivery of an already settled job.
		return nil
	}

	if err := s.docRepo.UpdateStatus(documentID, model.StatusExtracting); err != nil {
		return err
	}
	pages, err := s.extract(s.uploadPath(documentID))
	if err != nil {
		return s.fail(documentID, fmt.Errorf("%w: %v", ErrExtraction, err))
	}
	if len(pages) == 0 {
		return s.fail(documentID, ErrEmptyDocument)
	}
	pageCount := pages[len(pages)-1].Number

	if err := s.docRepo.UpdateStatus(documentID, model.StatusChunking); err != nil {
		return err
	}
	var chunks []model.Chunk
	for _, page := range pages {
		windows, err := chunker.Split(page.Text, s.cfg.ChunkSize, s.cfg.Overlap)
		if err != nil {
			return s.fail(documentID, err)
		}
		for _, w := range windows {
			chunks = append(chunks, model.Chunk{
				ID:            uuid.NewString(),
				DocumentID:    documentID,
				SequenceIndex: len(chunks),
				PageNumber:    page.Number,
				StartOffset:   w.StartOffset,
				EndOffset:     w.EndOffset,
				Text:          w.Text,
			})
		}
	}
	if len(chunks) == 0 {
		return s.fail(documentID, ErrEmptyDocument)
	}

	if err := s.docRepo.UpdateStatus(documentID, model.StatusEmbedding); err != nil {
		return err
	}
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return s.fail(documentID, err)
	}
	if len(vectors) != len(chunks) {
		return s.fail(documentID, fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vectors)))
	}

	entries := make([]index.Entry, len(chunks))
	for i := range chunks {
		chunks[i].SetEmbedding(vectors[i])
		entries[i] = index.Entry{
			ChunkID:    chunks[i].ID,
			DocumentID: documentID,
			Filename:   doc.Filename,
			PageNumber: chunks[i].PageNumber,
			Text:       chunks[i].Text,
			Vector:     vectors[i],
		}
	}

	// Persist first, then expose to queries. A failure between the two
	// is rolled back so store and index never disagree.
	if err := s.chunkRepo.CreateBatch(chunks); err != nil {
		return s.fail(documentID, err)
	}
	if err := s.idx.Add(entries); err != nil {
		_ = s.chunkRepo.DeleteByDocumentID(documentID)
		return s.fail(documentID, err)
	}
	if err := s.docRepo.MarkIndexed(documentID, pageCount); err != nil {
		s.idx.Remove(documentID)
		_ = s.chunkRepo.DeleteByDocumentID(documentID)
		return s.fail(documentID, err)
	}

	log.Printf("document %s (%s) indexed: %d pages, %d chunks", documentID, doc.Filename, pageCount, len(chunks))
	return nil
}

// Recover reconciles persisted state at startup. Documents caught
// mid-ingestion are failed (no resumption); indexed documents are loaded
// back into the vector index, and a document whose stored chunks violate
// the index invariants is dropped while the rest keep serving.
func (s *IngestService) Recover(ctx context.Context) error {
	stale, err := s.docRepo.ListNonTerminal()
	if err != nil {
		return err
	}
	for _, doc := range stale {
		if err := s.chunkRepo.DeleteByDocumentID(doc.ID); err != nil {
			return err
		}
		if err := s.docRepo.MarkFailed(doc.ID, "ingestion interrupted by restart"); err != nil {
			return err
		}
		log.Printf("document %s (%s) failed on recovery: ingestion was interrupted", doc.ID, doc.Filename)
	}

	indexed, err := s.docRepo.ListByStatus(model.StatusIndexed)
	if err != nil {
		return err
	}
	for _, doc := range indexed {
		chunks, err := s.chunkRepo.ListByDocumentID(doc.ID)
		if err != nil {
			return err
		}
		corrupt := s.restoreDocument(doc, chunks)
		if corrupt != nil {
			s.idx.Remove(doc.ID)
			_ = s.chunkRepo.DeleteByDocumentID(doc.ID)
			_ = s.docRepo.MarkFailed(doc.ID, corrupt.Error())
			log.Printf("document %s (%s) dropped on recovery: %v", doc.ID, doc.Filename, corrupt)
		}
	}
	return nil
}

func (s *IngestService) restoreDocument(doc model.Document, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return fmt.Errorf("%w: indexed document has no stored chunks", ErrIndexCorruption)
	}
	entries := make([]index.Entry, len(chunks))
	for i, c := range chunks {
		vec := c.EmbeddingVector()
		if len(vec) != s.idx.Dimension() {
			return fmt.Errorf("%w: chunk %s stores a %d-dimension vector, index wants %d",
				ErrIndexCorruption, c.ID, len(vec), s.idx.Dimension())
		}
		entries[i] = index.Entry{
			ChunkID:    c.ID,
			DocumentID: doc.ID,
			Filename:   doc.Filename,
			PageNumber: c.PageNumber,
			Text:       c.Text,
			Vector:     vec,
		}
	}
	if err := s.idx.Add(entries); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexCorruption, err)
	}
	return nil
}

// Delete removes a document, its chunks and its index entries.
func (s *IngestService) Delete(documentID string) error {
	doc, err := s.docRepo.GetByID(documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}
	if !doc.Terminal() {
		return fmt.Errorf("%w: %s", ErrIngestInProgress, documentID)
	}
	return s.remove(documentID)
}

// Reset wipes every document, chunk, index entry and stored upload.
func (s *IngestService) Reset() error {
	docs, err := s.docRepo.List()
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if !doc.Terminal() {
			return fmt.Errorf("%w: %s", ErrIngestInProgress, doc.Filename)
		}
	}
	if err := s.chunkRepo.DeleteAll(); err != nil {
		return err
	}
	if err := s.docRepo.DeleteAll(); err != nil {
		return err
	}
	s.idx.Clear()
	for _, doc := range docs {
		_ = os.Remove(s.uploadPath(doc.ID))
	}
	return nil
}

// Status returns the document's current ingestion state.
func (s *IngestService) Status(documentID string) (*model.Document, error) {
	doc, err := s.docRepo.GetByID(documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}
	return doc, nil
}

// ListDocuments returns all documents, newest first.
func (s *IngestService) ListDocuments() ([]model.Document, error) {
	return s.docRepo.List()
}

// fail records the failure reason on the document row and hands the
// error back to the worker.
func (s *IngestService) fail(documentID string, cause error) error {
	if err := s.docRepo.MarkFailed(documentID, cause.Error()); err != nil {
		log.Printf("mark document %s failed errored: %v", documentID, err)
	}
	return cause
}

func (s *IngestService) remove(documentID string) error {
	s.idx.Remove(documentID)
	if err := s.chunkRepo.DeleteByDocumentID(documentID); err != nil {
		return err
	}
	if err := s.docRepo.Delete(documentID); err != nil {
		return err
	}
	_ = os.Remove(s.uploadPath(documentID))
	return nil
}

func (s *IngestService) saveUpload(documentID string, r io.Reader) error {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload directory failed: %w", err)
	}
	f, err := os.Create(s.uploadPath(documentID))
	if err != nil {
		return fmt.Errorf("create upload file failed: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(s.uploadPath(documentID))
		return fmt.Errorf("write upload file failed: %w", err)
	}
	return nil
}

func (s *IngestService) uploadPath(documentID string) string {
	return filepath.Join(s.cfg.UploadDir, documentID+".pdf")
}

func (s *IngestService) begin(documentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.inflight[documentID]; running {
		return false
	}
	s.inflight[documentID] = struct{}{}
	return true
}

func (s *IngestService) end(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, documentID)
}
