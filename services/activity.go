package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"health-docs-platform/models"
)

// ErrInvalidActivity rejects activity records missing a required field.
var ErrInvalidActivity = errors.New("invalid search activity")

// ActivityService validates and stores client-submitted search activity
// records, and applies interaction-tail updates. The query pipeline writes
// its own activities directly; this service backs the explicit activity API.
type ActivityService struct {
	activities ActivityStore
}

func NewActivityService(activities ActivityStore) *ActivityService {
	return &ActivityService{activities: activities}
}

// Record validates and persists one activity. Missing identity fields are
// rejected; missing bookkeeping fields get defaults.
func (s *ActivityService) Record(ctx context.Context, activity *models.SearchActivity) error {
	if strings.TrimSpace(activity.UserID) == "" {
		return errors.Join(ErrInvalidActivity, errors.New("userId is required"))
	}
	if strings.TrimSpace(activity.SearchID) == "" {
		return errors.Join(ErrInvalidActivity, errors.New("searchId is required"))
	}
	if strings.TrimSpace(activity.OriginalQuery) == "" {
		return errors.Join(ErrInvalidActivity, errors.New("originalQuery is required"))
	}

	if activity.ID == "" {
		activity.ID = models.NewSearchActivityID()
	}
	if activity.SchemaVersion == "" {
		activity.SchemaVersion = models.SchemaVersion
	}
	if activity.Timestamp == "" {
		activity.Timestamp = models.Timestamp(time.Now())
	}
	if activity.ResultsDocumentIDs == nil {
		activity.ResultsDocumentIDs = []string{}
	}
	if activity.DocumentOpenedIDs == nil {
		activity.DocumentOpenedIDs = []string{}
	}
	activity.Type = models.TypeSearchActivity

	return s.activities.Create(ctx, activity)
}

func (s *ActivityService) Get(ctx context.Context, id string) (*models.SearchActivity, error) {
	return s.activities.Get(ctx, id)
}

// PatchInteraction merges client-reported interaction fields into an
// existing activity. Safe to retry: a repeated patch is a no-op.
func (s *ActivityService) PatchInteraction(ctx context.Context, id string, update models.SearchActivityUpdate) (*models.SearchActivity, error) {
	return s.activities.UpdateInteraction(ctx, id, update)
}
