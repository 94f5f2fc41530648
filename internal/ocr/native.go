package ocr

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// NativeEngine extracts the embedded text layer of PDF files in-process.
// It stands in for the remote document engine when that engine is not
// configured; scanned PDFs without a text layer yield zero pages.
type NativeEngine struct {
	httpClient *http.Client
}

func NewNativeEngine() *NativeEngine {
	return &NativeEngine{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (e *NativeEngine) Analyze(ctx context.Context, in Input) ([]Page, error) {
	data := in.Bytes
	if len(data) == 0 && in.SourceURL != "" {
		fetched, err := fetchURL(ctx, e.httpClient, in.SourceURL)
		if err != nil {
			return nil, err
		}
		data = fetched
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no content to extract")
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []Page
	for num := 1; num <= reader.NumPage(); num++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(num)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: num, Text: text})
	}

	return pages, nil
}
