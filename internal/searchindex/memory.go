package searchindex

import (
	"context"
	"fmt"
	"sync"

	"health-docs-platform/models"

	"github.com/blevesearch/bleve"
)

// Compile-time check to ensure Memory implements Index.
var _ Index = (*Memory)(nil)

type bleveDoc struct {
	ExtractedText string
}

// Memory is an Index implementation backed by an in-memory bleve instance.
// Selected with SEARCH_BACKEND=memory; also the backend the tests run on.
type Memory struct {
	mu   sync.Mutex
	docs map[string]models.PageEntry
	idx  bleve.Index
}

func NewMemory() (*Memory, error) {
	mapping := bleve.NewIndexMapping()

	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, err
	}

	return &Memory{
		idx:  idx,
		docs: make(map[string]models.PageEntry),
	}, nil
}

// Close the index and release any allocated resources.
func (m *Memory) Close() error {
	return m.idx.Close()
}

func (m *Memory) UpsertBatch(ctx context.Context, entries []models.PageEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	batch := m.idx.NewBatch()
	for _, entry := range entries {
		if entry.ID == "" {
			return fmt.Errorf("upsert batch: entry with empty id")
		}
		if err := batch.Index(entry.ID, bleveDoc{ExtractedText: entry.ExtractedText}); err != nil {
			return fmt.Errorf("upsert batch: %w", err)
		}
	}
	if err := m.idx.Batch(batch); err != nil {
		return fmt.Errorf("upsert batch: %w", err)
	}

	for _, entry := range entries {
		m.docs[entry.ID] = entry
	}
	return nil
}

func (m *Memory) Search(ctx context.Context, q Query) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	top := q.Top
	if top <= 0 {
		top = 1
	}

	searchReq := bleve.NewSearchRequest(bleve.NewMatchQuery(q.Text))
	// Over-fetch so the user filter applied below still fills the page.
	searchReq.Size = top * 10

	sr, err := m.idx.Search(searchReq)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	hits := make([]Hit, 0, top)
	for _, match := range sr.Hits {
		entry, ok := m.docs[match.ID]
		if !ok {
			continue
		}
		if q.UserID != "" && entry.UserID != q.UserID {
			continue
		}
		hits = append(hits, Hit{Entry: entry, Score: match.Score})
		if len(hits) == top {
			break
		}
	}
	return hits, nil
}

func (m *Memory) DeleteBatch(ctx context.Context, ids []string) (*BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	result := &BatchResult{}
	for _, id := range ids {
		if _, ok := m.docs[id]; !ok {
			result.Failed = append(result.Failed, id)
			continue
		}
		if err := m.idx.Delete(id); err != nil {
			result.Failed = append(result.Failed, id)
			continue
		}
		delete(m.docs, id)
		result.Deleted = append(result.Deleted, id)
	}
	return result, nil
}

func (m *Memory) DeleteByUser(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for id, entry := range m.docs {
		if entry.UserID != userID {
			continue
		}
		if err := m.idx.Delete(id); err != nil {
			return deleted, fmt.Errorf("delete by user: %w", err)
		}
		delete(m.docs, id)
		deleted++
	}
	return deleted, nil
}
