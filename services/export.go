package services

import (
	"context"
	"fmt"
	"strings"

	"health-docs-platform/models"

	"github.com/xuri/excelize/v2"
)

// ActivityLister is the record-store surface the export needs.
type ActivityLister interface {
	List(ctx context.Context, userID string, limit int64) ([]models.SearchActivity, error)
}

// ExportService renders search activity records into an xlsx workbook for
// offline analysis: one row per activity plus a summary sheet.
type ExportService struct {
	activities ActivityLister
}

func NewExportService(activities ActivityLister) *ExportService {
	return &ExportService{activities: activities}
}

var activityExportHeader = []string{
	"Search ID", "User ID", "Timestamp", "Original Query", "Refined Phrases",
	"Results Found", "Documents Returned", "Top Score", "Opened Document",
	"Helpful", "Device", "App Version", "Duration (ms)",
}

// ActivitiesWorkbook builds the workbook. An empty userID exports activity
// for every user. The caller owns closing the returned file.
func (s *ExportService) ActivitiesWorkbook(ctx context.Context, userID string, limit int64) (*excelize.File, error) {
	activities, err := s.activities.List(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load activities for export: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Search Activity"
	f.SetSheetName("Sheet1", sheet)

	for i, h := range activityExportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write export header: %w", err)
		}
	}

	found := 0
	opened := 0
	helpful := 0
	var totalDurationMs int64

	for i, a := range activities {
		row := i + 2
		values := []any{
			a.SearchID,
			a.UserID,
			a.Timestamp,
			a.OriginalQuery,
			strings.Join(a.RefinedQuery.SearchPhrases, ", "),
			a.ResultsFound,
			a.ResultNumDocuments,
			derefFloat(a.TopResultScore),
			derefBool(a.UserOpenedDocument),
			derefBool(a.WasAnswerHelpful),
			a.DeviceType,
			a.AppVersion,
			a.SearchDurationMs,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write export row %d: %w", row, err)
			}
		}

		if a.ResultsFound {
			found++
		}
		if a.UserOpenedDocument != nil && *a.UserOpenedDocument {
			opened++
		}
		if a.WasAnswerHelpful != nil && *a.WasAnswerHelpful {
			helpful++
		}
		totalDurationMs += a.SearchDurationMs
	}

	const summary = "Summary"
	if _, err := f.NewSheet(summary); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}

	avgDuration := int64(0)
	if len(activities) > 0 {
		avgDuration = totalDurationMs / int64(len(activities))
	}
	summaryRows := [][]any{
		{"Total searches", len(activities)},
		{"Searches with results", found},
		{"Documents opened", opened},
		{"Marked helpful", helpful},
		{"Average duration (ms)", avgDuration},
	}
	for i, pair := range summaryRows {
		keyCell, _ := excelize.CoordinatesToCellName(1, i+1)
		valCell, _ := excelize.CoordinatesToCellName(2, i+1)
		if err := f.SetCellValue(summary, keyCell, pair[0]); err != nil {
			return nil, fmt.Errorf("failed to write summary: %w", err)
		}
		if err := f.SetCellValue(summary, valCell, pair[1]); err != nil {
			return nil, fmt.Errorf("failed to write summary: %w", err)
		}
	}

	return f, nil
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefBool(v *bool) any {
	if v == nil {
		return ""
	}
	return *v
}
