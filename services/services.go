// Package services contains the ingestion, query, and deletion pipelines
// plus their supporting services. Each pipeline invocation is stateless and
// request-scoped; all shared state lives in the external stores.
package services

import (
	"context"

	"health-docs-platform/internal/ocr"
	"health-docs-platform/models"
)

// TextExtractor converts a file's bytes (or a pointer to them) into ordered
// per-page text. Implemented by ocr.Extractor.
type TextExtractor interface {
	Extract(ctx context.Context, in ocr.Input) (*ocr.Result, error)
}

// DocumentStore is the slice of the record store the pipelines need for
// document metadata. Implemented by store.Documents.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, id string) (*models.Document, error)
	Purge(ctx context.Context, id string) error
}

// DocumentLister lists a user's document metadata records. Implemented by
// store.Documents; used by the bulk purge to enumerate blobs.
type DocumentLister interface {
	ListByUser(ctx context.Context, userID, status string, limit int64) ([]models.Document, error)
}

// ActivityStore is the slice of the record store for search activity
// records. Implemented by store.Activities.
type ActivityStore interface {
	Create(ctx context.Context, activity *models.SearchActivity) error
	Get(ctx context.Context, id string) (*models.SearchActivity, error)
	UpdateInteraction(ctx context.Context, id string, update models.SearchActivityUpdate) (*models.SearchActivity, error)
}
