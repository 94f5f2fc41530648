package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"health-docs-platform/internal/blob"
	"health-docs-platform/internal/logger"
	"health-docs-platform/internal/ocr"
	"health-docs-platform/internal/searchindex"
	"health-docs-platform/internal/telemetry"
	"health-docs-platform/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrInvalidFileType rejects uploads whose extension is not allowed.
	ErrInvalidFileType = errors.New("file type not allowed")
	// ErrOCRExtractionFailed means extraction yielded zero pages; the blob
	// has been removed.
	ErrOCRExtractionFailed = errors.New("no text could be extracted from the document")
	// ErrNoTextContent means every extracted page was empty after trimming;
	// the blob has been removed.
	ErrNoTextContent = errors.New("all pages in the document were empty")
)

// IngestInput is one upload to run through the ingestion pipeline.
type IngestInput struct {
	FileName    string
	ContentType string
	UserID      string
	Data        []byte
}

// IngestResult reports what the pipeline persisted. IndexingFailed marks the
// deliberately weaker partial state where the blob is stored but no index
// entries or metadata exist.
type IngestResult struct {
	DocumentID          string
	ReportID            string
	BlobName            string
	BlobURI             string
	BlobContainer       string
	PagesIndexed        int
	ExtractedTextLength int
	OCRMethod           string
	IndexingFailed      bool
	IndexingError       string
	MetadataPersisted   bool
}

// IngestionService orchestrates: validate upload, persist blob, extract
// text, index pages, persist document metadata. It owns every
// partial-failure and rollback decision in that sequence.
type IngestionService struct {
	blobs       blob.Store
	signer      *blob.Signer
	index       searchindex.Index
	extractor   TextExtractor
	docs        DocumentStore
	allowed     map[string]bool
	inlineLimit int64
	metrics     *telemetry.Metrics
}

func NewIngestionService(
	blobs blob.Store,
	signer *blob.Signer,
	index searchindex.Index,
	extractor TextExtractor,
	docs DocumentStore,
	allowedTypes []string,
	inlineLimit int64,
) *IngestionService {
	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &IngestionService{
		blobs:       blobs,
		signer:      signer,
		index:       index,
		extractor:   extractor,
		docs:        docs,
		allowed:     allowed,
		inlineLimit: inlineLimit,
	}
}

// SetMetrics attaches the application metrics.
func (s *IngestionService) SetMetrics(m *telemetry.Metrics) {
	s.metrics = m
}

// Ingest runs the full pipeline for one upload. Steps are strictly
// sequential; each step's input depends on the previous step's output.
func (s *IngestionService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	tracer := otel.Tracer("ingestion-pipeline")
	ctx, span := tracer.Start(ctx, "ingestion.ingest")
	defer span.End()

	span.SetAttributes(
		attribute.String("ingestion.file_name", input.FileName),
		attribute.Int("ingestion.file_size", len(input.Data)),
	)

	// Step 1: validate the file type before touching any external store.
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(input.FileName), "."))
	if ext == "" || !s.allowed[ext] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFileType, ext)
	}

	// Step 2: persist the blob under a collision-resistant name.
	blobName := blob.MakeBlobName(input.FileName)
	blobStart := time.Now()
	info, err := s.blobs.Put(ctx, blobName, bytes.NewReader(input.Data), input.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	blobUploadMs := time.Since(blobStart).Milliseconds()

	// Step 3: choose the OCR transport by size. Large documents go to the
	// extractor as a short-lived signed URL instead of inline bytes.
	ocrInput := ocr.Input{
		FileName:    input.FileName,
		ContentType: input.ContentType,
		Size:        int64(len(input.Data)),
	}
	if int64(len(input.Data)) > s.inlineLimit {
		signedURL, signErr := s.signer.SignedURL(info.URI, blobName, input.UserID)
		if signErr != nil {
			logger.Warn("Failed to sign OCR source URL, falling back to inline content",
				"blob", blobName, "error", signErr)
			ocrInput.Bytes = input.Data
		} else {
			ocrInput.SourceURL = signedURL
		}
	} else {
		ocrInput.Bytes = input.Data
	}

	// Step 4: extract per-page text.
	ocrStart := time.Now()
	extraction, err := s.extractor.Extract(ctx, ocrInput)
	if err != nil {
		s.cleanupBlob(ctx, blobName, "extraction failure")
		if errors.Is(err, ocr.ErrUnsupportedFileType) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFileType, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrOCRExtractionFailed, err)
	}
	s.metrics.RecordOCRDuration(ctx, time.Since(ocrStart).Seconds(), extraction.Method)

	// Step 5: the two compensating-transaction branches. A blob must never
	// remain in storage without any indexed text.
	if len(extraction.Pages) == 0 {
		s.cleanupBlob(ctx, blobName, "zero pages extracted")
		return nil, ErrOCRExtractionFailed
	}

	// Step 6: build one index entry per non-empty page.
	reportID := uuid.NewString()
	uploadedAt := models.Timestamp(time.Now())
	entries := make([]models.PageEntry, 0, len(extraction.Pages))
	totalTextLength := 0
	for _, page := range extraction.Pages {
		text := strings.TrimSpace(page.Text)
		if text == "" {
			continue
		}
		totalTextLength += len(text)
		entries = append(entries, models.PageEntry{
			ID:            uuid.NewString(),
			UserID:        input.UserID,
			DocumentID:    "", // set below once the document id exists
			ReportID:      reportID,
			PageNumber:    page.Number,
			ExtractedText: text,
			BlobURI:       info.URI,
			ContentType:   input.ContentType,
			FileName:      input.FileName,
			UploadedAt:    uploadedAt,
		})
	}

	if len(entries) == 0 {
		s.cleanupBlob(ctx, blobName, "all pages empty")
		return nil, ErrNoTextContent
	}

	documentID := models.NewDocumentID()
	for i := range entries {
		entries[i].DocumentID = documentID
	}

	result := &IngestResult{
		DocumentID:          documentID,
		ReportID:            reportID,
		BlobName:            blobName,
		BlobURI:             info.URI,
		BlobContainer:       s.blobs.Container(),
		ExtractedTextLength: totalTextLength,
		OCRMethod:           extraction.Method,
	}

	// Step 7: one batch call to the index. If it fails the blob is kept:
	// the text is verified non-empty and the stored artifact may still be
	// needed, so this is a reported partial state, not a rollback.
	indexStart := time.Now()
	if err := s.index.UpsertBatch(ctx, entries); err != nil {
		logger.Error("Search indexing failed after successful extraction; blob retained",
			"blob", blobName, "pages", len(entries), "error", err)
		span.SetAttributes(attribute.Bool("ingestion.indexing_failed", true))
		result.IndexingFailed = true
		result.IndexingError = err.Error()
		return result, nil
	}
	searchUploadMs := time.Since(indexStart).Milliseconds()
	result.PagesIndexed = len(entries)
	s.metrics.RecordPagesIndexed(ctx, len(entries))

	span.SetAttributes(
		attribute.Int("ingestion.pages_indexed", len(entries)),
		attribute.String("ingestion.ocr_method", extraction.Method),
	)

	// Step 8: persist document metadata. A failure here leaves blob and
	// index entries without a metadata row; that inconsistency window is
	// accepted and logged rather than rolled back, because deleting
	// already-indexed text is worse for durability.
	entryIDs := make([]string, len(entries))
	for i, e := range entries {
		entryIDs[i] = e.ID
	}

	doc := &models.Document{
		ID:                     documentID,
		UserID:                 input.UserID,
		DocumentID:             documentID,
		ReportID:               reportID,
		SchemaVersion:          models.SchemaVersion,
		OriginalFileName:       input.FileName,
		DisplayName:            models.DisplayNameFor(input.FileName),
		ContentType:            input.ContentType,
		FileSize:               int64(len(input.Data)),
		BlobURI:                info.URI,
		BlobName:               blobName,
		BlobContainer:          s.blobs.Container(),
		BlobUploadDurationMs:   blobUploadMs,
		SearchDocumentIDs:      entryIDs,
		TotalPages:             len(entries),
		SearchUploadDurationMs: searchUploadMs,
		UploadedAt:             uploadedAt,
		Status:                 models.DocumentStatusActive,
		Type:                   models.TypeDocument,
	}

	result.MetadataPersisted = true
	if err := s.docs.Create(ctx, doc); err != nil {
		logger.Error("Document metadata persist failed after blob and index succeeded",
			"document_id", documentID, "blob", blobName, "error", err)
		span.SetAttributes(attribute.Bool("ingestion.metadata_failed", true))
		result.MetadataPersisted = false
	}

	return result, nil
}

// cleanupBlob removes a just-uploaded blob after an extraction failure.
// Best-effort: a cleanup failure is logged but never masks the original
// error.
func (s *IngestionService) cleanupBlob(ctx context.Context, name, reason string) {
	if err := s.blobs.Delete(ctx, name); err != nil {
		logger.Warn("Failed to delete blob during cleanup", "blob", name, "reason", reason, "error", err)
		return
	}
	logger.Info("Deleted blob after failed ingestion", "blob", name, "reason", reason)
}
