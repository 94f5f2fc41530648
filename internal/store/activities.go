package store

import (
	"context"
	"fmt"

	"health-docs-platform/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Activities is the repository for search activity records.
type Activities struct {
	col *mongo.Collection
}

func NewActivities(db *mongo.Database) *Activities {
	return &Activities{col: db.Collection("search_activities")}
}

func (r *Activities) Create(ctx context.Context, activity *models.SearchActivity) error {
	if _, err := r.col.InsertOne(ctx, activity); err != nil {
		return fmt.Errorf("failed to create search activity: %w", err)
	}
	return nil
}

func (r *Activities) Get(ctx context.Context, id string) (*models.SearchActivity, error) {
	var activity models.SearchActivity
	err := r.col.FindOne(ctx, bson.M{"_id": id, "type": models.TypeSearchActivity}).Decode(&activity)
	if err != nil {
		return nil, mapMongoErr(err)
	}
	return &activity, nil
}

// UpdateInteraction applies the interaction-tail fields to an existing
// activity. The merge happens through a read-then-replace so only non-nil
// fields change; applying the same update twice is a no-op the second time.
func (r *Activities) UpdateInteraction(ctx context.Context, id string, update models.SearchActivityUpdate) (*models.SearchActivity, error) {
	activity, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	activity.ApplyUpdate(update)

	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": id, "type": models.TypeSearchActivity}, activity)
	if err != nil {
		return nil, fmt.Errorf("failed to update search activity: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return activity, nil
}

// List returns activities newest-first, across all users when userID is
// empty. Used by the analytics export.
func (r *Activities) List(ctx context.Context, userID string, limit int64) ([]models.SearchActivity, error) {
	filter := bson.M{"type": models.TypeSearchActivity}
	if userID != "" {
		filter["userId"] = userID
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list search activities: %w", err)
	}
	defer cursor.Close(ctx)

	var activities []models.SearchActivity
	if err := cursor.All(ctx, &activities); err != nil {
		return nil, fmt.Errorf("failed to decode search activities: %w", err)
	}
	return activities, nil
}

// DeleteByUser removes all of the user's activity records. Used by admin
// bulk purge; individual activities are never deleted.
func (r *Activities) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"userId": userID, "type": models.TypeSearchActivity})
	if err != nil {
		return 0, fmt.Errorf("failed to delete user search activities: %w", err)
	}
	return res.DeletedCount, nil
}
