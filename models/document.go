package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersion is stamped on every persisted record for forward compatibility.
	SchemaVersion = "1.0"

	TypeDocument       = "document"
	TypeSearchActivity = "search_activity"
	TypeUser           = "user"

	DocumentStatusActive  = "active"
	DocumentStatusDeleted = "deleted"
)

// Document is the metadata record for one uploaded file. It references the
// stored blob and the per-page search index entries created during ingestion.
type Document struct {
	ID                     string   `bson:"_id" json:"id"`
	UserID                 string   `bson:"userId" json:"userId"`
	DocumentID             string   `bson:"documentId" json:"documentId"`
	ReportID               string   `bson:"reportId" json:"reportId"`
	SchemaVersion          string   `bson:"schemaVersion" json:"schemaVersion"`
	OriginalFileName       string   `bson:"originalFileName" json:"originalFileName"`
	DisplayName            string   `bson:"displayName" json:"displayName"`
	ContentType            string   `bson:"contentType" json:"contentType"`
	FileSize               int64    `bson:"fileSize" json:"fileSize"`
	BlobURI                string   `bson:"blobUri" json:"blobUri"`
	BlobName               string   `bson:"blobName" json:"blobName"`
	BlobContainer          string   `bson:"blobContainer" json:"blobContainer"`
	ThumbnailURI           string   `bson:"thumbnailUri,omitempty" json:"thumbnailUri,omitempty"`
	BlobUploadDurationMs   int64    `bson:"blobUploadDurationMs" json:"blobUploadDurationMs"`
	SearchDocumentIDs      []string `bson:"searchDocumentIds" json:"searchDocumentIds"`
	TotalPages             int      `bson:"totalPages" json:"totalPages"`
	SearchUploadDurationMs int64    `bson:"searchUploadDurationMs" json:"searchUploadDurationMs"`
	UploadedAt             string   `bson:"uploadedAt" json:"uploadedAt"`
	Status                 string   `bson:"status" json:"status"`
	Type                   string   `bson:"type" json:"type"`
}

// NewDocumentID returns a fresh "doc-<uuid>" identifier.
func NewDocumentID() string {
	return fmt.Sprintf("doc-%s", uuid.NewString())
}

// DisplayNameFor derives the default display name from the original
// filename by stripping its extension.
func DisplayNameFor(fileName string) string {
	ext := filepath.Ext(fileName)
	return strings.TrimSuffix(fileName, ext)
}

// Timestamp formats t the way every persisted record stores times:
// RFC 3339 UTC with a trailing Z.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
