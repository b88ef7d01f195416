package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates no segmenter or renderer handles a format.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Reviews still run without retrieved context.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrIndexBuildInProgress indicates another build holds the index writer.
	ErrIndexBuildInProgress = errors.New("index build in progress")

	// Checklist Errors.

	// ErrUnknownProcessType indicates no checklist is defined for a process.
	ErrUnknownProcessType = errors.New("unknown process type")

	// ErrInvalidChecklist indicates a checklist definition is misconfigured.
	ErrInvalidChecklist = errors.New("invalid checklist definition")

	// ErrAmbiguousClassification indicates a document matched several categories.
	ErrAmbiguousClassification = errors.New("ambiguous classification")

	// Review Errors.

	// ErrMalformedDocument indicates an upload could not be segmented.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrIndexStale indicates the index no longer matches the corpus.
	ErrIndexStale = errors.New("knowledge index is stale")

	// ErrOracle indicates the findings oracle failed after all retries.
	ErrOracle = errors.New("findings oracle failed")

	// ErrOracleMalformed indicates the oracle returned an unparseable payload.
	ErrOracleMalformed = errors.New("malformed oracle response")

	// ErrCandidateRejected indicates an issue candidate failed validation.
	ErrCandidateRejected = errors.New("issue candidate rejected")

	// ErrReviewTimeout indicates a document exceeded its review deadline.
	ErrReviewTimeout = errors.New("document review timed out")

	// ErrBatchCancelled indicates a review batch was cancelled before completion.
	ErrBatchCancelled = errors.New("review batch cancelled")

	// Annotation Errors.

	// ErrAnnotationOutOfRange indicates a highlight outside its paragraph.
	ErrAnnotationOutOfRange = errors.New("annotation out of range")

	// ErrAnnotationOverlap indicates a highlight overlapping an existing one.
	ErrAnnotationOverlap = errors.New("annotation overlaps existing annotation")

	// ErrAnnotationConflict indicates an overlap that merging could not resolve.
	ErrAnnotationConflict = errors.New("annotation conflict")
)

// MalformedDocumentError reports an upload that cannot be parsed.
type MalformedDocumentError struct {
	Name   string
	Reason string
	Err    error
}

func (e *MalformedDocumentError) Error() string {
	msg := fmt.Sprintf("malformed document %q: %s", e.Name, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *MalformedDocumentError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedDocument}
	}
	return []error{ErrMalformedDocument, e.Err}
}

// AmbiguousClassificationError reports a document matching several categories.
type AmbiguousClassificationError struct {
	DocumentID   string
	DocumentName string
	Categories   []Category
}

func (e *AmbiguousClassificationError) Error() string {
	names := make([]string, len(e.Categories))
	for i, c := range e.Categories {
		names[i] = string(c)
	}
	return fmt.Sprintf("document %q matches multiple categories: %s",
		e.DocumentName, strings.Join(names, ", "))
}

// Unwrap returns ErrAmbiguousClassification.
func (e *AmbiguousClassificationError) Unwrap() error {
	return ErrAmbiguousClassification
}

// IndexStaleError reports an index built from a different corpus or model.
type IndexStaleError struct {
	IndexSnapshot  string
	CorpusSnapshot string
	IndexModel     string
	CurrentModel   string
}

func (e *IndexStaleError) Error() string {
	if e.IndexModel != e.CurrentModel {
		return fmt.Sprintf("knowledge index built with model %q, current model is %q", e.IndexModel, e.CurrentModel)
	}
	return fmt.Sprintf("knowledge index snapshot %s does not match corpus snapshot %s",
		shortID(e.IndexSnapshot), shortID(e.CorpusSnapshot))
}

// Unwrap returns ErrIndexStale.
func (e *IndexStaleError) Unwrap() error {
	return ErrIndexStale
}

// OracleError reports oracle failure after retries were exhausted.
type OracleError struct {
	Attempts int
	Err      error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("findings oracle failed after %d attempt(s): %v", e.Attempts, e.Err)
}

// Unwrap returns ErrOracle and the last underlying error.
func (e *OracleError) Unwrap() []error {
	return []error{ErrOracle, e.Err}
}

// CandidateValidationError reports why one candidate was dropped.
type CandidateValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *CandidateValidationError) Error() string {
	return fmt.Sprintf("candidate %d: %s: %s", e.Index, e.Field, e.Reason)
}

// Unwrap returns ErrCandidateRejected.
func (e *CandidateValidationError) Unwrap() error {
	return ErrCandidateRejected
}

// AnnotationConflictError reports findings that could not be anchored.
type AnnotationConflictError struct {
	ParagraphIndex int
	Err            error
}

func (e *AnnotationConflictError) Error() string {
	return fmt.Sprintf("annotation conflict in paragraph %d: %v", e.ParagraphIndex, e.Err)
}

// Unwrap returns ErrAnnotationConflict and the underlying error.
func (e *AnnotationConflictError) Unwrap() []error {
	return []error{ErrAnnotationConflict, e.Err}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
