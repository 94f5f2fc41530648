package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// DocumentEngine is the HTTP client for the remote page-aware document
// extraction service. It accepts either inline bytes (multipart) or a source
// URL the service fetches itself.
type DocumentEngine struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

type documentAnalyzeRequest struct {
	URLSource string `json:"url_source"`
}

type documentAnalyzeResponse struct {
	Content string `json:"content"`
	Pages   []struct {
		PageNumber int `json:"page_number"`
		Lines      []struct {
			Content string `json:"content"`
		} `json:"lines"`
	} `json:"pages"`
	Error string `json:"error,omitempty"`
}

func NewDocumentEngine(endpoint, apiKey string, timeout time.Duration) *DocumentEngine {
	return &DocumentEngine{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout, // extraction of long documents can take minutes
		},
	}
}

func (e *DocumentEngine) Analyze(ctx context.Context, in Input) ([]Page, error) {
	var (
		req *http.Request
		err error
	)

	if in.SourceURL != "" {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(documentAnalyzeRequest{URLSource: in.SourceURL}); err != nil {
			return nil, fmt.Errorf("failed to encode analyze request: %w", err)
		}
		req, err = http.NewRequestWithContext(ctx, "POST", e.endpoint+"/analyze", &buf)
		if err != nil {
			return nil, fmt.Errorf("failed to create analyze request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
	} else {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		fileWriter, err := writer.CreateFormFile("file", in.FileName)
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := fileWriter.Write(in.Bytes); err != nil {
			return nil, fmt.Errorf("failed to copy file data: %w", err)
		}
		writer.Close()

		req, err = http.NewRequestWithContext(ctx, "POST", e.endpoint+"/analyze", &buf)
		if err != nil {
			return nil, fmt.Errorf("failed to create analyze request: %w", err)
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
	}
	if e.apiKey != "" {
		req.Header.Set("Api-Key", e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("analyze request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var analyzeResp documentAnalyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&analyzeResp); err != nil {
		return nil, fmt.Errorf("failed to decode analyze response: %w", err)
	}
	if analyzeResp.Error != "" {
		return nil, fmt.Errorf("analyze failed: %s", analyzeResp.Error)
	}

	pages := make([]Page, 0, len(analyzeResp.Pages))
	for _, p := range analyzeResp.Pages {
		var sb strings.Builder
		for _, line := range p.Lines {
			sb.WriteString(line.Content)
			sb.WriteByte('\n')
		}
		text := strings.TrimSpace(sb.String())
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: p.PageNumber, Text: text})
	}

	// Page-level extraction can come back empty while the body text is
	// present; fall back to the whole document as page 1.
	if len(pages) == 0 && strings.TrimSpace(analyzeResp.Content) != "" {
		pages = append(pages, Page{Number: 1, Text: strings.TrimSpace(analyzeResp.Content)})
	}

	return pages, nil
}

// ImageEngine is the HTTP client for the remote image OCR service. Images
// have no page concept; a successful read yields a single page 1.
type ImageEngine struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

type imageAnalyzeResponse struct {
	Blocks []struct {
		Lines []struct {
			Text string `json:"text"`
		} `json:"lines"`
	} `json:"blocks"`
	Error string `json:"error,omitempty"`
}

func NewImageEngine(endpoint, apiKey string, timeout time.Duration) *ImageEngine {
	return &ImageEngine{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (e *ImageEngine) Analyze(ctx context.Context, in Input) ([]Page, error) {
	data := in.Bytes
	if len(data) == 0 && in.SourceURL != "" {
		fetched, err := fetchURL(ctx, e.httpClient, in.SourceURL)
		if err != nil {
			return nil, err
		}
		data = fetched
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.endpoint+"/ocr", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR request: %w", err)
	}
	if in.ContentType != "" {
		req.Header.Set("Content-Type", in.ContentType)
	} else {
		req.Header.Set("Content-Type", "application/octet-stream")
	}
	if e.apiKey != "" {
		req.Header.Set("Api-Key", e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("OCR request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var ocrResp imageAnalyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&ocrResp); err != nil {
		return nil, fmt.Errorf("failed to decode OCR response: %w", err)
	}
	if ocrResp.Error != "" {
		return nil, fmt.Errorf("OCR failed: %s", ocrResp.Error)
	}

	var sb strings.Builder
	for _, block := range ocrResp.Blocks {
		for _, line := range block.Lines {
			sb.WriteString(line.Text)
			sb.WriteByte('\n')
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, nil
	}
	return []Page{{Number: 1, Text: text}}, nil
}

func fetchURL(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create source fetch request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source fetch failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
