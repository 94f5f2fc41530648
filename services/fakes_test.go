package services

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"health-docs-platform/internal/blob"
	"health-docs-platform/internal/ocr"
	"health-docs-platform/internal/searchindex"
	"health-docs-platform/internal/store"
	"health-docs-platform/models"
)

// In-memory fakes for the external stores. Each records calls and supports
// forced failures so partial-failure paths can be driven deterministically.

type fakeBlobStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	putErr  error
	delErr  error
	deleted []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: map[string][]byte{}}
}

func (f *fakeBlobStore) Put(ctx context.Context, name string, r io.Reader, contentType string) (*blob.Info, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[name] = data
	return &blob.Info{
		Name:        name,
		Container:   "raw",
		URI:         f.URL(name),
		Size:        int64(len(data)),
		ContentType: contentType,
		ModifiedAt:  time.Now().UTC(),
	}, nil
}

func (f *fakeBlobStore) Open(ctx context.Context, name string) (io.ReadCloser, *blob.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[name]
	if !ok {
		return nil, nil, blob.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), &blob.Info{Name: name, URI: f.URL(name), Size: int64(len(data))}, nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, name string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blobs[name]; !ok {
		return blob.ErrNotFound
	}
	delete(f.blobs, name)
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeBlobStore) Exists(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[name]
	return ok, nil
}

func (f *fakeBlobStore) List(ctx context.Context) ([]blob.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	infos := make([]blob.Info, 0, len(f.blobs))
	for name, data := range f.blobs {
		infos = append(infos, blob.Info{Name: name, URI: f.URL(name), Size: int64(len(data))})
	}
	return infos, nil
}

func (f *fakeBlobStore) URL(name string) string {
	return "http://localhost:8080/files/" + name
}

func (f *fakeBlobStore) Container() string { return "raw" }

func (f *fakeBlobStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.blobs)
}

type fakeIndex struct {
	mu          sync.Mutex
	entries     map[string]models.PageEntry
	upsertErr   error
	searchErr   error
	deleteErr   error
	failDeletes map[string]bool
	searchHits  []searchindex.Hit
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{entries: map[string]models.PageEntry{}}
}

func (f *fakeIndex) UpsertBatch(ctx context.Context, entries []models.PageEntry) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entries {
		f.entries[e.ID] = e
	}
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, q searchindex.Query) ([]searchindex.Hit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchHits, nil
}

func (f *fakeIndex) DeleteBatch(ctx context.Context, ids []string) (*searchindex.BatchResult, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	res := &searchindex.BatchResult{}
	for _, id := range ids {
		if f.failDeletes[id] {
			res.Failed = append(res.Failed, id)
			continue
		}
		delete(f.entries, id)
		res.Deleted = append(res.Deleted, id)
	}
	return res, nil
}

func (f *fakeIndex) DeleteByUser(ctx context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, e := range f.entries {
		if e.UserID == userID {
			delete(f.entries, id)
			n++
		}
	}
	return n, nil
}

type fakeExtractor struct {
	pages     []ocr.Page
	err       error
	lastInput ocr.Input
}

func (f *fakeExtractor) Extract(ctx context.Context, in ocr.Input) (*ocr.Result, error) {
	f.lastInput = in
	if f.err != nil {
		return nil, f.err
	}
	method := ocr.MethodDirectContent
	if in.SourceURL != "" {
		method = ocr.MethodBlobURL
	}
	return &ocr.Result{Pages: f.pages, Method: method}, nil
}

type fakeDocStore struct {
	mu        sync.Mutex
	docs      map[string]*models.Document
	createErr error
	getErr    error
	purgeErr  error
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{docs: map[string]*models.Document{}}
}

func (f *fakeDocStore) Create(ctx context.Context, doc *models.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeDocStore) Get(ctx context.Context, id string) (*models.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (f *fakeDocStore) Purge(ctx context.Context, id string) error {
	if f.purgeErr != nil {
		return f.purgeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.docs, id)
	return nil
}

type fakeActivityStore struct {
	mu        sync.Mutex
	records   map[string]*models.SearchActivity
	createErr error
}

func newFakeActivityStore() *fakeActivityStore {
	return &fakeActivityStore{records: map[string]*models.SearchActivity{}}
}

func (f *fakeActivityStore) Create(ctx context.Context, activity *models.SearchActivity) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[activity.ID] = activity
	return nil
}

func (f *fakeActivityStore) Get(ctx context.Context, id string) (*models.SearchActivity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (f *fakeActivityStore) UpdateInteraction(ctx context.Context, id string, update models.SearchActivityUpdate) (*models.SearchActivity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	record.ApplyUpdate(update)
	copied := *record
	return &copied, nil
}

func (f *fakeActivityStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// fakeLLM returns canned responses keyed by a substring of the system prompt.
type fakeLLM struct {
	expansionResponse string
	synthesisResponse string
	err               error
	calls             int
}

func (f *fakeLLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if bytes.Contains([]byte(systemPrompt), []byte("query-expansion")) {
		return f.expansionResponse, nil
	}
	return f.synthesisResponse, nil
}
