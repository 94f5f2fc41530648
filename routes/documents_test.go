package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"health-docs-platform/internal/blob"
	"health-docs-platform/internal/config"
	"health-docs-platform/internal/ocr"
	"health-docs-platform/models"
	"health-docs-platform/services"

	"github.com/gin-gonic/gin"
)

func newDeleteRouter(deletion *services.DeletionService) *gin.Engine {
	r := gin.New()
	r.DELETE("/api/v1/documents/:id", HandleDocumentDelete(deletion))
	return r
}

func seedDeletableDocument(t *testing.T, blobs *stubBlobStore, index *stubIndex, docs *stubDocStore) {
	t.Helper()
	ctx := context.Background()

	if _, err := blobs.Put(ctx, "abc_labs.pdf", bytes.NewReader([]byte("pdf bytes")), "application/pdf"); err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	if err := index.UpsertBatch(ctx, []models.PageEntry{{ID: "entry-1", DocumentID: "doc-1"}}); err != nil {
		t.Fatalf("seed index: %v", err)
	}
	if err := docs.Create(ctx, &models.Document{
		ID:                "doc-1",
		BlobName:          "abc_labs.pdf",
		SearchDocumentIDs: []string{"entry-1"},
		Type:              models.TypeDocument,
	}); err != nil {
		t.Fatalf("seed document: %v", err)
	}
}

func doDelete(t *testing.T, r *gin.Engine, id string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+id, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestDocumentDeleteSuccessReturns200(t *testing.T) {
	blobs := newStubBlobStore()
	index := newStubIndex()
	docs := newStubDocStore()
	seedDeletableDocument(t, blobs, index, docs)

	w := doDelete(t, newDeleteRouter(services.NewDeletionService(docs, blobs, index)), "doc-1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestDocumentDeletePartialFailureReturns207(t *testing.T) {
	blobs := newStubBlobStore()
	index := newStubIndex()
	docs := newStubDocStore()
	seedDeletableDocument(t, blobs, index, docs)
	blobs.delErr = errors.New("blob store down")

	w := doDelete(t, newDeleteRouter(services.NewDeletionService(docs, blobs, index)), "doc-1")
	if w.Code != http.StatusMultiStatus {
		t.Fatalf("status = %d, want 207", w.Code)
	}
}

func TestDocumentDeleteTotalFailureReturns500(t *testing.T) {
	blobs := newStubBlobStore()
	index := newStubIndex()
	docs := newStubDocStore()
	seedDeletableDocument(t, blobs, index, docs)
	docs.purgeErr = errors.New("record store down")
	blobs.delErr = errors.New("blob store down")
	index.deleteErr = errors.New("search down")

	w := doDelete(t, newDeleteRouter(services.NewDeletionService(docs, blobs, index)), "doc-1")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 when no store deleted anything", w.Code)
	}

	var body struct {
		Result services.DeletionResult `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Result.CosmosDeleted || body.Result.BlobDeleted || body.Result.SearchDeletedCount != 0 {
		t.Errorf("result reports deletions despite total failure: %+v", body.Result)
	}
	if len(body.Result.Errors) == 0 {
		t.Error("result carries no per-store errors")
	}
}

func TestDocumentDeleteUnknownReturns404(t *testing.T) {
	deletion := services.NewDeletionService(newStubDocStore(), newStubBlobStore(), newStubIndex())
	w := doDelete(t, newDeleteRouter(deletion), "doc-missing")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestDocumentDeleteStoreOutageReturns500(t *testing.T) {
	docs := newStubDocStore()
	docs.getErr = errors.New("connection reset")

	deletion := services.NewDeletionService(docs, newStubBlobStore(), newStubIndex())
	w := doDelete(t, newDeleteRouter(deletion), "doc-1")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 when the metadata lookup fails", w.Code)
	}
}

func TestDocumentUploadResponseContract(t *testing.T) {
	blobs := newStubBlobStore()
	ingestion := services.NewIngestionService(
		blobs,
		blob.NewSigner("secret", time.Hour),
		newStubIndex(),
		&stubExtractor{pages: []ocr.Page{{Number: 1, Text: "Ferritin 85 ng/mL"}}},
		newStubDocStore(),
		[]string{"pdf"},
		4<<20,
	)

	r := gin.New()
	r.POST("/api/v1/documents", HandleDocumentUpload(&config.Config{MaxFileSize: 10 << 20}, ingestion))

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "labs.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("pdf bytes")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	for _, key := range []string{"documentId", "reportId", "blobUri", "pagesUploaded", "extractedTextLength", "ocrMethod"} {
		if _, ok := resp[key]; !ok {
			t.Errorf("response missing %q", key)
		}
	}
	for _, key := range []string{"pagesIndexed", "textLength"} {
		if _, ok := resp[key]; ok {
			t.Errorf("response carries stray key %q", key)
		}
	}
}
