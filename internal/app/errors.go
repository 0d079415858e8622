package app

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")

	// ErrExtraction marks a PDF that could not be read at all.
	ErrExtraction = errors.New("pdf text extraction failed")

	// ErrEmptyDocument marks a readable PDF that produced no chunks.
	// Such a document is failed, never indexed as present-but-empty.
	ErrEmptyDocument = errors.New("document has no extractable text")

	ErrDocumentNotFound = errors.New("document not found")

	// ErrIngestInProgress guards against two ingestions of the same
	// document running at once.
	ErrIngestInProgress = errors.New("document ingestion already in progress")

	// ErrIndexCorruption marks persisted chunk data that no longer
	// matches the index invariants (missing or wrong-width vectors).
	ErrIndexCorruption = errors.New("index corruption")
)
