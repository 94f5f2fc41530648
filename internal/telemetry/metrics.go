package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter    metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	PagesIndexed      metric.Int64Counter
	OCRDuration       metric.Float64Histogram
	SearchDuration    metric.Float64Histogram
	DeletionsPartial  metric.Int64Counter
	ActivityWriteDrop metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("health-docs-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	pagesIndexed, err := meter.Int64Counter(
		"ingestion.pages.indexed",
		metric.WithDescription("Total pages written to the search index"),
	)
	if err != nil {
		return nil, err
	}

	ocrDuration, err := meter.Float64Histogram(
		"ocr.extraction.duration",
		metric.WithDescription("OCR extraction duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram(
		"search.pipeline.duration",
		metric.WithDescription("End-to-end search pipeline duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	deletionsPartial, err := meter.Int64Counter(
		"deletion.partial.total",
		metric.WithDescription("Deletions that left at least one resource behind"),
	)
	if err != nil {
		return nil, err
	}

	activityWriteDrop, err := meter.Int64Counter(
		"search_activity.writes.dropped",
		metric.WithDescription("Best-effort search activity writes that failed"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:    requestCounter,
		RequestDuration:   requestDuration,
		PagesIndexed:      pagesIndexed,
		OCRDuration:       ocrDuration,
		SearchDuration:    searchDuration,
		DeletionsPartial:  deletionsPartial,
		ActivityWriteDrop: activityWriteDrop,
	}, nil
}

// RecordRequest records a completed HTTP request.
func (m *Metrics) RecordRequest(ctx context.Context, method, path, status string, duration float64) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.String("status", status),
	)
	m.RequestCounter.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, duration, attrs)
}

// The domain recorders below tolerate a nil receiver so services constructed
// without metrics (tests, tools) can call them unconditionally.

// RecordPagesIndexed counts pages written to the search index.
func (m *Metrics) RecordPagesIndexed(ctx context.Context, pages int) {
	if m == nil {
		return
	}
	m.PagesIndexed.Add(ctx, int64(pages))
}

// RecordOCRDuration records one extraction, labeled by the method used.
func (m *Metrics) RecordOCRDuration(ctx context.Context, seconds float64, method string) {
	if m == nil {
		return
	}
	m.OCRDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("method", method),
	))
}

// RecordSearchDuration records one end-to-end query pipeline run.
func (m *Metrics) RecordSearchDuration(ctx context.Context, seconds float64, found bool) {
	if m == nil {
		return
	}
	m.SearchDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.Bool("results_found", found),
	))
}

// RecordPartialDeletion counts deletions that left at least one resource
// behind.
func (m *Metrics) RecordPartialDeletion(ctx context.Context) {
	if m == nil {
		return
	}
	m.DeletionsPartial.Add(ctx, 1)
}

// RecordActivityDrop counts best-effort search-activity writes that failed.
func (m *Metrics) RecordActivityDrop(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActivityWriteDrop.Add(ctx, 1)
}
