package routes

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"health-docs-platform/internal/blob"
	"health-docs-platform/internal/ocr"
	"health-docs-platform/internal/searchindex"
	"health-docs-platform/internal/store"
	"health-docs-platform/models"

	"github.com/gin-gonic/gin"
)

func init() { gin.SetMode(gin.TestMode) }

// Stubs for the stores behind the handlers, sized to what the route tests
// exercise.

type stubBlobStore struct {
	blobs  map[string][]byte
	delErr error
}

func newStubBlobStore() *stubBlobStore { return &stubBlobStore{blobs: map[string][]byte{}} }

func (s *stubBlobStore) Put(ctx context.Context, name string, r io.Reader, contentType string) (*blob.Info, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s.blobs[name] = data
	return &blob.Info{
		Name:        name,
		Container:   "raw",
		URI:         s.URL(name),
		Size:        int64(len(data)),
		ContentType: contentType,
		ModifiedAt:  time.Now().UTC(),
	}, nil
}

func (s *stubBlobStore) Open(ctx context.Context, name string) (io.ReadCloser, *blob.Info, error) {
	data, ok := s.blobs[name]
	if !ok {
		return nil, nil, blob.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), &blob.Info{Name: name, URI: s.URL(name), Size: int64(len(data))}, nil
}

func (s *stubBlobStore) Delete(ctx context.Context, name string) error {
	if s.delErr != nil {
		return s.delErr
	}
	if _, ok := s.blobs[name]; !ok {
		return blob.ErrNotFound
	}
	delete(s.blobs, name)
	return nil
}

func (s *stubBlobStore) Exists(ctx context.Context, name string) (bool, error) {
	_, ok := s.blobs[name]
	return ok, nil
}

func (s *stubBlobStore) List(ctx context.Context) ([]blob.Info, error) {
	infos := make([]blob.Info, 0, len(s.blobs))
	for name := range s.blobs {
		infos = append(infos, blob.Info{Name: name, URI: s.URL(name)})
	}
	return infos, nil
}

func (s *stubBlobStore) URL(name string) string { return "http://localhost:8080/files/" + name }

func (s *stubBlobStore) Container() string { return "raw" }

type stubIndex struct {
	entries   map[string]models.PageEntry
	hits      []searchindex.Hit
	deleteErr error
}

func newStubIndex() *stubIndex { return &stubIndex{entries: map[string]models.PageEntry{}} }

func (s *stubIndex) UpsertBatch(ctx context.Context, entries []models.PageEntry) error {
	for _, e := range entries {
		s.entries[e.ID] = e
	}
	return nil
}

func (s *stubIndex) Search(ctx context.Context, q searchindex.Query) ([]searchindex.Hit, error) {
	return s.hits, nil
}

func (s *stubIndex) DeleteBatch(ctx context.Context, ids []string) (*searchindex.BatchResult, error) {
	if s.deleteErr != nil {
		return nil, s.deleteErr
	}
	res := &searchindex.BatchResult{}
	for _, id := range ids {
		delete(s.entries, id)
		res.Deleted = append(res.Deleted, id)
	}
	return res, nil
}

func (s *stubIndex) DeleteByUser(ctx context.Context, userID string) (int, error) { return 0, nil }

type stubExtractor struct {
	pages []ocr.Page
}

func (s *stubExtractor) Extract(ctx context.Context, in ocr.Input) (*ocr.Result, error) {
	return &ocr.Result{Pages: s.pages, Method: ocr.MethodDirectContent}, nil
}

type stubDocStore struct {
	docs     map[string]*models.Document
	getErr   error
	purgeErr error
}

func newStubDocStore() *stubDocStore { return &stubDocStore{docs: map[string]*models.Document{}} }

func (s *stubDocStore) Create(ctx context.Context, doc *models.Document) error {
	s.docs[doc.ID] = doc
	return nil
}

func (s *stubDocStore) Get(ctx context.Context, id string) (*models.Document, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	doc, ok := s.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (s *stubDocStore) Purge(ctx context.Context, id string) error {
	if s.purgeErr != nil {
		return s.purgeErr
	}
	if _, ok := s.docs[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

type stubActivityStore struct {
	records map[string]*models.SearchActivity
}

func newStubActivityStore() *stubActivityStore {
	return &stubActivityStore{records: map[string]*models.SearchActivity{}}
}

func (s *stubActivityStore) Create(ctx context.Context, activity *models.SearchActivity) error {
	s.records[activity.ID] = activity
	return nil
}

func (s *stubActivityStore) Get(ctx context.Context, id string) (*models.SearchActivity, error) {
	record, ok := s.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return record, nil
}

func (s *stubActivityStore) UpdateInteraction(ctx context.Context, id string, update models.SearchActivityUpdate) (*models.SearchActivity, error) {
	record, ok := s.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	record.ApplyUpdate(update)
	return record, nil
}

// stubLLM returns canned responses keyed by a substring of the system prompt.
type stubLLM struct {
	expansion string
	synthesis string
}

func (s *stubLLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if strings.Contains(systemPrompt, "query-expansion") {
		return s.expansion, nil
	}
	return s.synthesis, nil
}
