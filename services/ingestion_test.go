package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"health-docs-platform/internal/blob"
	"health-docs-platform/internal/ocr"
	"health-docs-platform/internal/telemetry"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestIngestion(blobs *fakeBlobStore, index *fakeIndex, extractor *fakeExtractor, docs *fakeDocStore, inlineLimit int64) *IngestionService {
	signer := blob.NewSigner("test-secret", time.Hour)
	return NewIngestionService(blobs, signer, index, extractor, docs,
		[]string{"pdf", "txt", "jpg"}, inlineLimit)
}

func TestIngestHappyPath(t *testing.T) {
	blobs := newFakeBlobStore()
	index := newFakeIndex()
	docs := newFakeDocStore()
	extractor := &fakeExtractor{pages: []ocr.Page{
		{Number: 1, Text: "Ferritin 85 ng/mL"},
		{Number: 2, Text: "Hemoglobin 14.1 g/dL"},
	}}

	svc := newTestIngestion(blobs, index, extractor, docs, 4*1024*1024)

	result, err := svc.Ingest(context.Background(), IngestInput{
		FileName:    "labs.pdf",
		ContentType: "application/pdf",
		UserID:      "user-1",
		Data:        []byte("%PDF-1.4 fake"),
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if result.PagesIndexed != 2 {
		t.Errorf("pages indexed = %d, want 2", result.PagesIndexed)
	}
	if !strings.HasPrefix(result.DocumentID, "doc-") {
		t.Errorf("document id %q missing doc- prefix", result.DocumentID)
	}
	if result.ReportID == "" {
		t.Error("report id is empty")
	}
	if result.IndexingFailed {
		t.Error("indexing reported as failed")
	}
	if !result.MetadataPersisted {
		t.Error("metadata not persisted")
	}
	if blobs.count() != 1 {
		t.Errorf("blob count = %d, want 1", blobs.count())
	}

	// Every index entry must carry the same report and document ids.
	for id, entry := range index.entries {
		if entry.ReportID != result.ReportID {
			t.Errorf("entry %s report id = %q, want %q", id, entry.ReportID, result.ReportID)
		}
		if entry.DocumentID != result.DocumentID {
			t.Errorf("entry %s document id = %q, want %q", id, entry.DocumentID, result.DocumentID)
		}
		if entry.UserID != "user-1" {
			t.Errorf("entry %s user id = %q", id, entry.UserID)
		}
	}

	doc, err := docs.Get(context.Background(), result.DocumentID)
	if err != nil {
		t.Fatalf("document metadata missing: %v", err)
	}
	if doc.TotalPages != 2 {
		t.Errorf("total pages = %d, want 2", doc.TotalPages)
	}
	if len(doc.SearchDocumentIDs) != 2 {
		t.Errorf("search document ids = %d, want 2", len(doc.SearchDocumentIDs))
	}
	if doc.DisplayName != "labs" {
		t.Errorf("display name = %q, want %q", doc.DisplayName, "labs")
	}
	if doc.Status != "active" {
		t.Errorf("status = %q, want active", doc.Status)
	}
}

func TestIngestRejectsDisallowedType(t *testing.T) {
	blobs := newFakeBlobStore()
	svc := newTestIngestion(blobs, newFakeIndex(), &fakeExtractor{}, newFakeDocStore(), 4*1024*1024)

	_, err := svc.Ingest(context.Background(), IngestInput{
		FileName: "script.exe",
		UserID:   "user-1",
		Data:     []byte("MZ"),
	})
	if !errors.Is(err, ErrInvalidFileType) {
		t.Fatalf("err = %v, want ErrInvalidFileType", err)
	}
	if blobs.count() != 0 {
		t.Errorf("blob stored despite rejected type")
	}
}

func TestIngestCleansUpBlobOnExtractionFailure(t *testing.T) {
	blobs := newFakeBlobStore()
	extractor := &fakeExtractor{err: errors.New("engine exploded")}
	svc := newTestIngestion(blobs, newFakeIndex(), extractor, newFakeDocStore(), 4*1024*1024)

	_, err := svc.Ingest(context.Background(), IngestInput{
		FileName: "labs.pdf",
		UserID:   "user-1",
		Data:     []byte("data"),
	})
	if !errors.Is(err, ErrOCRExtractionFailed) {
		t.Fatalf("err = %v, want ErrOCRExtractionFailed", err)
	}
	if blobs.count() != 0 {
		t.Errorf("blob not cleaned up after extraction failure")
	}
}

func TestIngestCleansUpBlobWhenAllPagesEmpty(t *testing.T) {
	blobs := newFakeBlobStore()
	extractor := &fakeExtractor{pages: []ocr.Page{
		{Number: 1, Text: "   "},
		{Number: 2, Text: "\n\t"},
	}}
	svc := newTestIngestion(blobs, newFakeIndex(), extractor, newFakeDocStore(), 4*1024*1024)

	_, err := svc.Ingest(context.Background(), IngestInput{
		FileName: "blank.pdf",
		UserID:   "user-1",
		Data:     []byte("data"),
	})
	if !errors.Is(err, ErrNoTextContent) {
		t.Fatalf("err = %v, want ErrNoTextContent", err)
	}
	if blobs.count() != 0 {
		t.Errorf("blob not cleaned up when every page was empty")
	}
}

func TestIngestSkipsEmptyPagesButKeepsRest(t *testing.T) {
	index := newFakeIndex()
	extractor := &fakeExtractor{pages: []ocr.Page{
		{Number: 1, Text: "TSH 2.1 mIU/L"},
		{Number: 2, Text: ""},
		{Number: 3, Text: "Free T4 1.2 ng/dL"},
	}}
	svc := newTestIngestion(newFakeBlobStore(), index, extractor, newFakeDocStore(), 4*1024*1024)

	result, err := svc.Ingest(context.Background(), IngestInput{
		FileName: "thyroid.pdf",
		UserID:   "user-1",
		Data:     []byte("data"),
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if result.PagesIndexed != 2 {
		t.Errorf("pages indexed = %d, want 2", result.PagesIndexed)
	}
}

func TestIngestIndexingFailureKeepsBlobReportsPartial(t *testing.T) {
	blobs := newFakeBlobStore()
	index := newFakeIndex()
	index.upsertErr = errors.New("cluster red")
	docs := newFakeDocStore()
	extractor := &fakeExtractor{pages: []ocr.Page{{Number: 1, Text: "Glucose 92 mg/dL"}}}
	svc := newTestIngestion(blobs, index, extractor, docs, 4*1024*1024)

	result, err := svc.Ingest(context.Background(), IngestInput{
		FileName: "glucose.pdf",
		UserID:   "user-1",
		Data:     []byte("data"),
	})
	if err != nil {
		t.Fatalf("indexing failure must not surface as an error: %v", err)
	}
	if !result.IndexingFailed {
		t.Error("IndexingFailed not set")
	}
	if result.PagesIndexed != 0 {
		t.Errorf("pages indexed = %d, want 0", result.PagesIndexed)
	}
	if blobs.count() != 1 {
		t.Errorf("blob removed after indexing failure; it must be retained")
	}
	if len(docs.docs) != 0 {
		t.Errorf("metadata written despite indexing failure")
	}
}

func TestIngestMetadataFailureStillSucceeds(t *testing.T) {
	docs := newFakeDocStore()
	docs.createErr = errors.New("write conflict")
	extractor := &fakeExtractor{pages: []ocr.Page{{Number: 1, Text: "CRP 0.4 mg/L"}}}
	index := newFakeIndex()
	svc := newTestIngestion(newFakeBlobStore(), index, extractor, docs, 4*1024*1024)

	result, err := svc.Ingest(context.Background(), IngestInput{
		FileName: "crp.pdf",
		UserID:   "user-1",
		Data:     []byte("data"),
	})
	if err != nil {
		t.Fatalf("metadata failure must not surface as an error: %v", err)
	}
	if result.MetadataPersisted {
		t.Error("MetadataPersisted = true, want false")
	}
	if result.PagesIndexed != 1 {
		t.Errorf("pages indexed = %d, want 1", result.PagesIndexed)
	}
}

func TestIngestLargeFileRoutesViaSignedURL(t *testing.T) {
	extractor := &fakeExtractor{pages: []ocr.Page{{Number: 1, Text: "text"}}}
	svc := newTestIngestion(newFakeBlobStore(), newFakeIndex(), extractor, newFakeDocStore(), 10)

	result, err := svc.Ingest(context.Background(), IngestInput{
		FileName: "big.pdf",
		UserID:   "user-1",
		Data:     []byte("this payload is larger than ten bytes"),
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if extractor.lastInput.SourceURL == "" {
		t.Error("large file not routed through a source URL")
	}
	if !strings.Contains(extractor.lastInput.SourceURL, "token=") {
		t.Errorf("source URL %q carries no token", extractor.lastInput.SourceURL)
	}
	if len(extractor.lastInput.Bytes) != 0 {
		t.Error("inline bytes sent alongside source URL")
	}
	if result.OCRMethod != ocr.MethodBlobURL {
		t.Errorf("ocr method = %q, want %q", result.OCRMethod, ocr.MethodBlobURL)
	}
}

func TestIngestSmallFileStaysInline(t *testing.T) {
	extractor := &fakeExtractor{pages: []ocr.Page{{Number: 1, Text: "text"}}}
	svc := newTestIngestion(newFakeBlobStore(), newFakeIndex(), extractor, newFakeDocStore(), 4*1024*1024)

	result, err := svc.Ingest(context.Background(), IngestInput{
		FileName: "small.pdf",
		UserID:   "user-1",
		Data:     []byte("tiny"),
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if extractor.lastInput.SourceURL != "" {
		t.Error("small file routed through a source URL")
	}
	if result.OCRMethod != ocr.MethodDirectContent {
		t.Errorf("ocr method = %q, want %q", result.OCRMethod, ocr.MethodDirectContent)
	}
}

func TestIngestUnsupportedTypeFromEngineMapsToInvalidFile(t *testing.T) {
	extractor := &fakeExtractor{err: ocr.ErrUnsupportedFileType}
	blobs := newFakeBlobStore()
	svc := newTestIngestion(blobs, newFakeIndex(), extractor, newFakeDocStore(), 4*1024*1024)

	_, err := svc.Ingest(context.Background(), IngestInput{
		FileName: "weird.pdf",
		UserID:   "user-1",
		Data:     []byte("data"),
	})
	if !errors.Is(err, ErrInvalidFileType) {
		t.Fatalf("err = %v, want ErrInvalidFileType", err)
	}
	if blobs.count() != 0 {
		t.Errorf("blob not cleaned up")
	}
}

func TestIngestRecordsIndexedPagesMetric(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		t.Fatalf("init metrics: %v", err)
	}

	extractor := &fakeExtractor{pages: []ocr.Page{{Number: 1, Text: "Ferritin 85 ng/mL"}}}
	svc := newTestIngestion(newFakeBlobStore(), newFakeIndex(), extractor, newFakeDocStore(), 4*1024*1024)
	svc.SetMetrics(metrics)

	if _, err := svc.Ingest(context.Background(), IngestInput{
		FileName:    "labs.pdf",
		ContentType: "application/pdf",
		UserID:      "user-1",
		Data:        []byte("%PDF-1.4 fake"),
	}); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	var pages int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "ingestion.pages.indexed" {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					pages += dp.Value
				}
			}
		}
	}
	if pages != 1 {
		t.Errorf("pages indexed metric = %d, want 1", pages)
	}
}
