package services

import (
	"context"
	"errors"
	"fmt"

	"health-docs-platform/internal/blob"
	"health-docs-platform/internal/logger"
	"health-docs-platform/internal/searchindex"
	"health-docs-platform/internal/store"
	"health-docs-platform/internal/telemetry"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ErrDocumentNotFound means no metadata record exists for the requested id,
// so there is nothing to fan deletion out to.
var ErrDocumentNotFound = errors.New("document not found")

// DeletionResult reports the per-store outcome of one deletion. Each store is
// attempted independently; Success is the aggregate verdict.
type DeletionResult struct {
	DocumentID            string   `json:"documentId"`
	CosmosDeleted         bool     `json:"cosmosDeleted"`
	BlobDeleted           bool     `json:"blobDeleted"`
	SearchDeletedCount    int      `json:"searchDeletedCount"`
	SearchDeleteFailedIDs []string `json:"searchDeleteFailedIds,omitempty"`
	Errors                []string `json:"errors,omitempty"`
	Success               bool     `json:"success"`
}

// DeletionService removes a document from all three stores: the record
// store, blob storage, and the search index. One store failing never stops
// the attempts against the others.
type DeletionService struct {
	docs    DocumentStore
	blobs   blob.Store
	index   searchindex.Index
	metrics *telemetry.Metrics
}

func NewDeletionService(docs DocumentStore, blobs blob.Store, index searchindex.Index) *DeletionService {
	return &DeletionService{docs: docs, blobs: blobs, index: index}
}

// SetMetrics attaches the application metrics. A nil receiver on the
// instruments is a no-op, so services without metrics skip recording.
func (s *DeletionService) SetMetrics(m *telemetry.Metrics) {
	s.metrics = m
}

// Delete fans the deletion out to every store the document touches. The
// metadata record is read first to learn the blob name and index entry ids;
// after that, each store is attempted regardless of the others' outcomes and
// every failure lands in the aggregate.
func (s *DeletionService) Delete(ctx context.Context, userID, documentID string) (*DeletionResult, error) {
	tracer := otel.Tracer("deletion-pipeline")
	ctx, span := tracer.Start(ctx, "deletion.delete")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", documentID))

	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
		}
		// A store outage is not "the document does not exist".
		return nil, fmt.Errorf("failed to load document metadata: %w", err)
	}
	if userID != "" && doc.UserID != userID {
		// Ownership mismatch is reported as not-found so ids cannot be probed.
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}

	result := &DeletionResult{DocumentID: documentID}
	var errs *multierror.Error

	// Record store first: once the metadata row is gone the document stops
	// appearing in listings even if the other stores lag behind.
	if err := s.docs.Purge(ctx, documentID); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("record store: %w", err))
		logger.Error("Failed to delete document metadata", "document_id", documentID, "error", err)
	} else {
		result.CosmosDeleted = true
	}

	blobName := doc.BlobName
	if blobName == "" {
		blobName = blob.BlobNameFromURI(doc.BlobURI)
	}
	if err := s.blobs.Delete(ctx, blobName); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			// Already gone counts as deleted; the goal is absence.
			result.BlobDeleted = true
		} else {
			errs = multierror.Append(errs, fmt.Errorf("blob store: %w", err))
			logger.Error("Failed to delete blob", "document_id", documentID, "blob", blobName, "error", err)
		}
	} else {
		result.BlobDeleted = true
	}

	if len(doc.SearchDocumentIDs) > 0 {
		batch, err := s.index.DeleteBatch(ctx, doc.SearchDocumentIDs)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("search index: %w", err))
			logger.Error("Failed to delete search entries", "document_id", documentID, "error", err)
		} else {
			result.SearchDeletedCount = len(batch.Deleted)
			result.SearchDeleteFailedIDs = batch.Failed
			if len(batch.Failed) > 0 {
				errs = multierror.Append(errs, fmt.Errorf("search index: %d of %d entries not deleted",
					len(batch.Failed), len(doc.SearchDocumentIDs)))
			}
		}
	}

	if errs != nil {
		for _, e := range errs.Errors {
			result.Errors = append(result.Errors, e.Error())
		}
	}

	searchOK := len(doc.SearchDocumentIDs) == 0 || result.SearchDeletedCount > 0
	result.Success = result.CosmosDeleted && result.BlobDeleted && searchOK

	span.SetAttributes(
		attribute.Bool("deletion.success", result.Success),
		attribute.Int("deletion.search_deleted", result.SearchDeletedCount),
	)
	if !result.Success {
		s.metrics.RecordPartialDeletion(ctx)
		logger.Warn("Document deletion completed partially",
			"document_id", documentID,
			"cosmos_deleted", result.CosmosDeleted,
			"blob_deleted", result.BlobDeleted,
			"search_deleted", result.SearchDeletedCount,
		)
	}

	return result, nil
}

// PurgeUserResult reports the outcome of an admin bulk purge across all of
// one user's data.
type PurgeUserResult struct {
	UserID            string   `json:"userId"`
	DocumentsDeleted  int      `json:"documentsDeleted"`
	ActivitiesDeleted int64    `json:"activitiesDeleted"`
	SearchDeleted     int      `json:"searchDeleted"`
	BlobsDeleted      int      `json:"blobsDeleted"`
	Errors            []string `json:"errors,omitempty"`
}

// UserDataStore is the wider record-store surface the bulk purge needs.
type UserDataStore interface {
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

// PurgeUser removes every document, blob, index entry, and activity record
// belonging to one user. Same independence rule as single-document deletion:
// failures accumulate, nothing short-circuits.
func (s *DeletionService) PurgeUser(ctx context.Context, userID string, docStore UserDataStore, activities UserDataStore, docLister DocumentLister) (*PurgeUserResult, error) {
	result := &PurgeUserResult{UserID: userID}
	var errs *multierror.Error

	docs, err := docLister.ListByUser(ctx, userID, "", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list user documents: %w", err)
	}

	for _, doc := range docs {
		blobName := doc.BlobName
		if blobName == "" {
			blobName = blob.BlobNameFromURI(doc.BlobURI)
		}
		if err := s.blobs.Delete(ctx, blobName); err != nil && !errors.Is(err, blob.ErrNotFound) {
			errs = multierror.Append(errs, fmt.Errorf("blob %s: %w", blobName, err))
		} else {
			result.BlobsDeleted++
		}
	}

	deleted, err := s.index.DeleteByUser(ctx, userID)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("search index: %w", err))
	} else {
		result.SearchDeleted = deleted
	}

	docsDeleted, err := docStore.DeleteByUser(ctx, userID)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("record store documents: %w", err))
	} else {
		result.DocumentsDeleted = int(docsDeleted)
	}

	actsDeleted, err := activities.DeleteByUser(ctx, userID)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("record store activities: %w", err))
	} else {
		result.ActivitiesDeleted = actsDeleted
	}

	if errs != nil {
		for _, e := range errs.Errors {
			result.Errors = append(result.Errors, e.Error())
		}
	}
	return result, nil
}
