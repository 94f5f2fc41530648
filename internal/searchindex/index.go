// Package searchindex provides the full-text retrieval store for extracted
// page text. Two backends implement the same contract: an Elasticsearch index
// for deployments and an in-memory bleve index for development and tests.
package searchindex

import (
	"context"
	"errors"

	"health-docs-platform/models"
)

// ErrNotFound is returned when a lookup matches no index entry.
var ErrNotFound = errors.New("index entry not found")

// Query selects the best-matching page entries for a free-text search,
// optionally restricted to one user's documents.
type Query struct {
	Text   string
	UserID string
	Top    int
}

// Hit is one ranked search result.
type Hit struct {
	Entry models.PageEntry
	Score float64
}

// BatchResult reports per-id outcomes of a batch delete.
type BatchResult struct {
	Deleted []string
	Failed  []string
}

// Index is the search index adapter consumed by the pipelines.
type Index interface {
	// UpsertBatch writes all entries in one batch call. Entries are never
	// partially updated; re-upserting an id replaces the whole entry.
	UpsertBatch(ctx context.Context, entries []models.PageEntry) error

	// Search returns up to q.Top ranked matches. An empty result is not an
	// error.
	Search(ctx context.Context, q Query) ([]Hit, error)

	// DeleteBatch removes the given entry ids in one batch call, reporting
	// which ids were deleted and which were rejected.
	DeleteBatch(ctx context.Context, ids []string) (*BatchResult, error)

	// DeleteByUser removes every entry owned by the user and returns the
	// number removed. Used by admin bulk purge.
	DeleteByUser(ctx context.Context, userID string) (int, error)
}
