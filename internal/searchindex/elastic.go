package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"health-docs-platform/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Compile-time check to ensure Elastic implements Index.
var _ Index = (*Elastic)(nil)

// Explicit mapping over the capitalized wire fields. ExtractedText is the
// only analyzed field; everything else is filtered or returned verbatim.
var esMappings = `
{
	"mappings": {
		"properties": {
			"UserId": {"type": "keyword"},
			"DocumentId": {"type": "keyword"},
			"ReportId": {"type": "keyword"},
			"PageNumber": {"type": "integer"},
			"ExtractedText": {"type": "text"},
			"BlobUri": {"type": "keyword"},
			"ContentType": {"type": "keyword"},
			"FileName": {"type": "keyword"},
			"UploadedAt": {"type": "date"}
		}
	}
}`

type esSearchRes struct {
	Hits esSearchResHits `json:"hits"`
}

type esSearchResHits struct {
	HitList []esHitWrapper `json:"hits"`
}

type esHitWrapper struct {
	ID        string           `json:"_id"`
	Score     float64          `json:"_score"`
	DocSource models.PageEntry `json:"_source"`
}

type esBulkRes struct {
	Errors bool         `json:"errors"`
	Items  []esBulkItem `json:"items"`
}

type esBulkItem struct {
	Index  *esBulkItemDetail `json:"index"`
	Delete *esBulkItemDetail `json:"delete"`
}

type esBulkItemDetail struct {
	ID     string   `json:"_id"`
	Status int      `json:"status"`
	Result string   `json:"result"`
	Error  *esError `json:"error"`
}

type esDeleteByQueryRes struct {
	Deleted int `json:"deleted"`
}

type esErrorRes struct {
	Error esError `json:"error"`
}

type esError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func (e esError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Reason)
}

// Elastic indexes page entries in an Elasticsearch cluster.
type Elastic struct {
	es        *elasticsearch.Client
	indexName string
}

func NewElastic(addresses []string, indexName string) (*Elastic, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addresses})
	if err != nil {
		return nil, err
	}

	idx := &Elastic{es: es, indexName: indexName}
	if err := idx.createIndex(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (i *Elastic) createIndex() error {
	res, err := i.es.Indices.Create(
		i.indexName,
		i.es.Indices.Create.WithBody(strings.NewReader(esMappings)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		var errRes esErrorRes
		if err := json.NewDecoder(res.Body).Decode(&errRes); err != nil {
			return fmt.Errorf("create index: status %s", res.Status())
		}
		// The index surviving restarts is the normal case.
		if errRes.Error.Type == "resource_already_exists_exception" {
			return nil
		}
		return fmt.Errorf("create index: %w", errRes.Error)
	}
	return nil
}

func (i *Elastic) UpsertBatch(ctx context.Context, entries []models.PageEntry) error {
	if len(entries) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, entry := range entries {
		meta := fmt.Sprintf(`{"index":{"_id":%q}}`, entry.ID)
		buf.WriteString(meta)
		buf.WriteByte('\n')
		if err := json.NewEncoder(&buf).Encode(entry); err != nil {
			return fmt.Errorf("upsert batch: %w", err)
		}
	}

	bulkRes, err := i.bulk(ctx, &buf)
	if err != nil {
		return fmt.Errorf("upsert batch: %w", err)
	}

	if bulkRes.Errors {
		for _, item := range bulkRes.Items {
			if item.Index != nil && item.Index.Error != nil {
				return fmt.Errorf("upsert batch: entry %s: %w", item.Index.ID, *item.Index.Error)
			}
		}
		return fmt.Errorf("upsert batch: bulk request reported errors")
	}
	return nil
}

func (i *Elastic) Search(ctx context.Context, q Query) ([]Hit, error) {
	top := q.Top
	if top <= 0 {
		top = 1
	}

	must := []map[string]interface{}{
		{
			"match": map[string]interface{}{
				"ExtractedText": q.Text,
			},
		},
	}
	boolQuery := map[string]interface{}{"must": must}
	if q.UserID != "" {
		boolQuery["filter"] = []map[string]interface{}{
			{"term": map[string]interface{}{"UserId": q.UserID}},
		}
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"size":  top,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(i.indexName),
		i.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var searchRes esSearchRes
	if err := unmarshalResponse(res, &searchRes); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]Hit, 0, len(searchRes.Hits.HitList))
	for _, h := range searchRes.Hits.HitList {
		entry := h.DocSource
		entry.ID = h.ID
		hits = append(hits, Hit{Entry: entry, Score: h.Score})
	}
	return hits, nil
}

func (i *Elastic) DeleteBatch(ctx context.Context, ids []string) (*BatchResult, error) {
	result := &BatchResult{}
	if len(ids) == 0 {
		return result, nil
	}

	var buf bytes.Buffer
	for _, id := range ids {
		buf.WriteString(fmt.Sprintf(`{"delete":{"_id":%q}}`, id))
		buf.WriteByte('\n')
	}

	bulkRes, err := i.bulk(ctx, &buf)
	if err != nil {
		result.Failed = append(result.Failed, ids...)
		return result, fmt.Errorf("delete batch: %w", err)
	}

	for _, item := range bulkRes.Items {
		if item.Delete == nil {
			continue
		}
		switch {
		case item.Delete.Error != nil:
			result.Failed = append(result.Failed, item.Delete.ID)
		case item.Delete.Result == "not_found":
			result.Failed = append(result.Failed, item.Delete.ID)
		default:
			result.Deleted = append(result.Deleted, item.Delete.ID)
		}
	}
	return result, nil
}

func (i *Elastic) DeleteByUser(ctx context.Context, userID string) (int, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"UserId": userID},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return 0, fmt.Errorf("delete by user: %w", err)
	}

	res, err := i.es.DeleteByQuery(
		[]string{i.indexName},
		&buf,
		i.es.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return 0, fmt.Errorf("delete by user: %w", err)
	}

	var delRes esDeleteByQueryRes
	if err := unmarshalResponse(res, &delRes); err != nil {
		return 0, fmt.Errorf("delete by user: %w", err)
	}
	return delRes.Deleted, nil
}

func (i *Elastic) bulk(ctx context.Context, body io.Reader) (*esBulkRes, error) {
	res, err := i.es.Bulk(
		body,
		i.es.Bulk.WithContext(ctx),
		i.es.Bulk.WithIndex(i.indexName),
		i.es.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return nil, err
	}

	var bulkRes esBulkRes
	if err := unmarshalResponse(res, &bulkRes); err != nil {
		return nil, err
	}
	return &bulkRes, nil
}

func unmarshalResponse(res *esapi.Response, v interface{}) error {
	defer res.Body.Close()

	if res.IsError() {
		var errRes esErrorRes
		if err := json.NewDecoder(res.Body).Decode(&errRes); err != nil {
			return fmt.Errorf("status %s", res.Status())
		}
		return errRes.Error
	}
	return json.NewDecoder(res.Body).Decode(v)
}
