// Package ocr converts uploaded file bytes (or a pointer to them) into an
// ordered sequence of per-page extracted text, routing by file type and size
// to different backing extraction engines.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// OCR method labels reported for observability.
const (
	MethodBlobURL       = "blob_url"
	MethodDirectContent = "direct_content"
)

var (
	// ErrUnsupportedFileType means no engine handles the file's type.
	ErrUnsupportedFileType = errors.New("unsupported file type for text extraction")
	// ErrFileTooLarge means the file exceeds the engine's size cap.
	ErrFileTooLarge = errors.New("file exceeds extraction engine size limit")
)

// ExtractionError wraps a failure inside a backing engine.
type ExtractionError struct {
	Engine string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s extraction failed: %v", e.Engine, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Page is one page's worth of extracted text.
type Page struct {
	Number int
	Text   string
}

// Result is the outcome of one extraction run.
type Result struct {
	Pages  []Page
	Method string
}

// Input is either inline file bytes or a time-limited URL the engine fetches
// the bytes from. The caller chooses which based on file size; large
// multi-page documents are unreliable to transmit inline.
type Input struct {
	Bytes       []byte
	SourceURL   string
	FileName    string
	ContentType string
	Size        int64
}

func (in Input) size() int64 {
	if in.Size > 0 {
		return in.Size
	}
	return int64(len(in.Bytes))
}

// Engine analyzes a file and returns its pages in order. Page-unaware
// engines return a single page 1.
type Engine interface {
	Analyze(ctx context.Context, in Input) ([]Page, error)
}

var documentExtensions = map[string]bool{
	"pdf": true, "doc": true, "docx": true,
}

var textExtensions = map[string]bool{
	"txt": true,
}

var imageExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "bmp": true, "tiff": true,
}

// Extractor routes extraction requests to the document or image engine by
// extension and content type, enforcing per-engine size caps first.
type Extractor struct {
	document    Engine
	image       Engine
	documentMax int64
	imageMax    int64
}

func NewExtractor(document, image Engine, documentMax, imageMax int64) *Extractor {
	return &Extractor{
		document:    document,
		image:       image,
		documentMax: documentMax,
		imageMax:    imageMax,
	}
}

// Extract runs the appropriate engine for the input's file type.
func (e *Extractor) Extract(ctx context.Context, in Input) (*Result, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(in.FileName), "."))
	ct := strings.ToLower(in.ContentType)

	method := MethodDirectContent
	if in.SourceURL != "" {
		method = MethodBlobURL
	}

	switch {
	case documentExtensions[ext] || strings.Contains(ct, "pdf"):
		if e.document == nil {
			return nil, ErrUnsupportedFileType
		}
		if e.documentMax > 0 && in.size() > e.documentMax {
			return nil, ErrFileTooLarge
		}
		pages, err := e.document.Analyze(ctx, in)
		if err != nil {
			return nil, &ExtractionError{Engine: "document", Err: err}
		}
		return &Result{Pages: pages, Method: method}, nil

	case imageExtensions[ext] || strings.Contains(ct, "image"):
		if e.image == nil {
			return nil, ErrUnsupportedFileType
		}
		if e.imageMax > 0 && in.size() > e.imageMax {
			return nil, ErrFileTooLarge
		}
		pages, err := e.image.Analyze(ctx, in)
		if err != nil {
			return nil, &ExtractionError{Engine: "image", Err: err}
		}
		return &Result{Pages: pages, Method: method}, nil

	case textExtensions[ext] || strings.HasPrefix(ct, "text/"):
		pages, err := analyzePlainText(ctx, in)
		if err != nil {
			return nil, &ExtractionError{Engine: "text", Err: err}
		}
		return &Result{Pages: pages, Method: method}, nil

	default:
		return nil, ErrUnsupportedFileType
	}
}

// analyzePlainText needs no engine: the file bytes are the text. The whole
// file becomes page 1.
func analyzePlainText(ctx context.Context, in Input) ([]Page, error) {
	data := in.Bytes
	if len(data) == 0 && in.SourceURL != "" {
		fetched, err := fetchURL(ctx, &http.Client{Timeout: 30 * time.Second}, in.SourceURL)
		if err != nil {
			return nil, err
		}
		data = fetched
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return []Page{{Number: 1, Text: text}}, nil
}
