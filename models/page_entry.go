package models

// PageEntry is one page of extracted text, indexed as an independently
// searchable unit. The capitalized field names are the existing index wire
// contract and must not be renamed.
type PageEntry struct {
	ID            string `json:"id"`
	UserID        string `json:"UserId"`
	DocumentID    string `json:"DocumentId"`
	ReportID      string `json:"ReportId"`
	PageNumber    int    `json:"PageNumber"`
	ExtractedText string `json:"ExtractedText"`
	BlobURI       string `json:"BlobUri"`
	ContentType   string `json:"ContentType"`
	FileName      string `json:"FileName"`
	UploadedAt    string `json:"UploadedAt"`
}
