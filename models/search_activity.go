package models

import (
	"fmt"

	"github.com/google/uuid"
)

// RefinedQuery is the LLM-expanded form of a user's free-text question:
// a ranked list of search phrases plus optional structured filters.
type RefinedQuery struct {
	SearchPhrases []string       `bson:"search_phrases" json:"search_phrases"`
	SearchFilters map[string]any `bson:"search_filters" json:"search_filters"`
}

// SearchActivity records one query-answer interaction. The interaction-tail
// fields (userOpenedDocument and friends) are pointers because they arrive
// later via PATCH and only non-nil values are applied.
type SearchActivity struct {
	ID                         string       `bson:"_id" json:"id"`
	UserID                     string       `bson:"userId" json:"userId"`
	SearchID                   string       `bson:"searchId" json:"searchId"`
	SchemaVersion              string       `bson:"schemaVersion" json:"schemaVersion"`
	OriginalQuery              string       `bson:"originalQuery" json:"originalQuery"`
	RefinedQuery               RefinedQuery `bson:"refinedQuery" json:"refinedQuery"`
	Timestamp                  string       `bson:"timestamp" json:"timestamp"`
	ResultsFound               bool         `bson:"resultsFound" json:"resultsFound"`
	ResultsDocumentIDs         []string     `bson:"resultsDocumentIds" json:"resultsDocumentIds"`
	ResultNumDocuments         int          `bson:"resultNumDocuments" json:"resultNumDocuments"`
	TopResultScore             *float64     `bson:"topResultScore,omitempty" json:"topResultScore,omitempty"`
	TotalResultsReturned       int          `bson:"totalResultsReturned" json:"totalResultsReturned"`
	UserOpenedDocument         *bool        `bson:"userOpenedDocument,omitempty" json:"userOpenedDocument,omitempty"`
	DocumentOpenedIDs          []string     `bson:"documentOpenedIds" json:"documentOpenedIds"`
	TimeToClickFirstDocumentMs *int64       `bson:"timeToClickFirstDocumentMs,omitempty" json:"timeToClickFirstDocumentMs,omitempty"`
	WasAnswerHelpful           *bool        `bson:"wasAnswerHelpful,omitempty" json:"wasAnswerHelpful,omitempty"`
	DeviceType                 string       `bson:"deviceType,omitempty" json:"deviceType,omitempty"`
	AppVersion                 string       `bson:"appVersion,omitempty" json:"appVersion,omitempty"`
	SearchDurationMs           int64        `bson:"searchDurationMs" json:"searchDurationMs"`
	Type                       string       `bson:"type" json:"type"`
}

// SearchActivityUpdate carries the interaction-tail fields a client may
// report after the search response was delivered.
type SearchActivityUpdate struct {
	UserOpenedDocument         *bool    `json:"userOpenedDocument,omitempty"`
	DocumentOpenedIDs          []string `json:"documentOpenedIds,omitempty"`
	TimeToClickFirstDocumentMs *int64   `json:"timeToClickFirstDocumentMs,omitempty"`
	WasAnswerHelpful           *bool    `json:"wasAnswerHelpful,omitempty"`
}

// ApplyUpdate merges the non-nil fields of u into the activity. Applying the
// same update twice leaves the record unchanged after the first application.
func (a *SearchActivity) ApplyUpdate(u SearchActivityUpdate) {
	if u.UserOpenedDocument != nil {
		a.UserOpenedDocument = u.UserOpenedDocument
	}
	if u.DocumentOpenedIDs != nil {
		a.DocumentOpenedIDs = u.DocumentOpenedIDs
	}
	if u.TimeToClickFirstDocumentMs != nil {
		a.TimeToClickFirstDocumentMs = u.TimeToClickFirstDocumentMs
	}
	if u.WasAnswerHelpful != nil {
		a.WasAnswerHelpful = u.WasAnswerHelpful
	}
}

// NewSearchActivityID returns a fresh "search-<uuid>" identifier.
func NewSearchActivityID() string {
	return fmt.Sprintf("search-%s", uuid.NewString())
}
