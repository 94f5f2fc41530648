package store

import (
	"context"
	"fmt"

	"health-docs-platform/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Documents is the repository for document metadata records.
//
// A document row is mutated by exactly three call paths: create at ingest,
// the display-name/status patch, and hard delete. Patches read-then-write
// with last-writer-wins semantics; concurrent patches to the same document
// may lose one writer's change.
type Documents struct {
	col *mongo.Collection
}

func NewDocuments(db *mongo.Database) *Documents {
	return &Documents{col: db.Collection("documents")}
}

func (r *Documents) Create(ctx context.Context, doc *models.Document) error {
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *Documents) Get(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := r.col.FindOne(ctx, bson.M{"_id": id, "type": models.TypeDocument}).Decode(&doc)
	if err != nil {
		return nil, mapMongoErr(err)
	}
	return &doc, nil
}

func (r *Documents) GetByReportID(ctx context.Context, reportID string) (*models.Document, error) {
	var doc models.Document
	err := r.col.FindOne(ctx, bson.M{"reportId": reportID, "type": models.TypeDocument}).Decode(&doc)
	if err != nil {
		return nil, mapMongoErr(err)
	}
	return &doc, nil
}

// ListByUser returns the user's documents newest-first. An empty status
// matches every lifecycle state.
func (r *Documents) ListByUser(ctx context.Context, userID, status string, limit int64) ([]models.Document, error) {
	filter := bson.M{"userId": userID, "type": models.TypeDocument}
	if status != "" {
		filter["status"] = status
	}

	opts := options.Find().SetSort(bson.D{{Key: "uploadedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}
	return docs, nil
}

// ListAll returns every document record regardless of owner. Used by the
// consistency audit sweep.
func (r *Documents) ListAll(ctx context.Context) ([]models.Document, error) {
	cursor, err := r.col.Find(ctx, bson.M{"type": models.TypeDocument})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}
	return docs, nil
}

// Patch updates the display name and/or lifecycle status, the only fields
// mutable after ingestion, and returns the updated record.
func (r *Documents) Patch(ctx context.Context, id string, displayName, status *string) (*models.Document, error) {
	set := bson.M{}
	if displayName != nil {
		set["displayName"] = *displayName
	}
	if status != nil {
		set["status"] = *status
	}
	if len(set) == 0 {
		return r.Get(ctx, id)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc models.Document
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "type": models.TypeDocument},
		bson.M{"$set": set},
		opts,
	).Decode(&doc)
	if err != nil {
		return nil, mapMongoErr(err)
	}
	return &doc, nil
}

// MarkDeleted flips the document to the deleted status (logical delete).
// The blob and index entries remain until a later purge.
func (r *Documents) MarkDeleted(ctx context.Context, id string) error {
	status := models.DocumentStatusDeleted
	_, err := r.Patch(ctx, id, nil, &status)
	return err
}

// Purge permanently removes the metadata row. Returns ErrNotFound when no
// row with the id exists.
func (r *Documents) Purge(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "type": models.TypeDocument})
	if err != nil {
		return fmt.Errorf("failed to purge document: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByUser removes all of the user's document rows and returns how many
// were deleted. Used by admin bulk purge.
func (r *Documents) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"userId": userID, "type": models.TypeDocument})
	if err != nil {
		return 0, fmt.Errorf("failed to delete user documents: %w", err)
	}
	return res.DeletedCount, nil
}
