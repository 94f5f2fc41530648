package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"health-docs-platform/internal/blob"
	"health-docs-platform/internal/llm"
	"health-docs-platform/internal/logger"
	"health-docs-platform/internal/searchindex"
	"health-docs-platform/internal/telemetry"
	"health-docs-platform/models"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrEmptyQuery rejects blank search requests before any external call.
	ErrEmptyQuery = errors.New("query cannot be empty")
	// ErrAnswerSynthesis means the model's answer was not the expected JSON.
	ErrAnswerSynthesis = errors.New("failed to parse synthesized answer")
)

// Expansion compensates for vocabulary mismatch between lay questions and
// clinical report terminology; synthesis is constrained to the retrieved
// passage so answers stay grounded. Keeping them as two separate model calls
// is the core correctness property of the search feature.
const queryExpansionPrompt = `You are a query-expansion assistant. Input: a user's question. Output: a JSON with two fields:
- "search_phrases": [list of concise search phrases and synonyms to use, prioritized]
- "search_filters": { optional filters like "lab", "date_range" }
Example:
Input: "What are my iron levels?"
Output:
{
"search_phrases": ["ferritin", "serum ferritin", "iron", "transferrin saturation", "Fe", "ferritin level"],
"search_filters": {}
}`

const answerSynthesisPrompt = `You are a medical information extraction assistant. You will be given:
1. A user's question.
2. A set of text passages extracted from medical reports.

Your job is to return the single value from the passages that best answers the user's question.

Rules:
- Use only the information provided in the passages.
- If the value for the exact lab test the user asked for is not present, return the closest clinically related marker.
- For iron-related questions:
    - Ferritin, Transferrin Saturation (TSAT), TIBC, and Serum Iron are all acceptable substitutes.
- Do NOT hallucinate values that are not explicitly present.
- Return null fields if no clinically related value is present at all.
- Provide the name of the analyte you used, its value, its unit, and the best document reference.
- Always return JSON ONLY following this schema:

{
"analyte_used": string | null,
"value": string | null,
"unit": string | null,
"answer_text": string | null,
"document_link": string | null
}`

const noAnswerMessage = "No answer could be generated from the documents."

// SearchInput is one natural-language query to run through the pipeline.
type SearchInput struct {
	Query      string
	UserID     string
	DeviceType string
	AppVersion string
}

// SearchResult is the pipeline's answer plus the observability fields the
// HTTP surface exposes.
type SearchResult struct {
	Message          string
	SASURL           string
	Query            string
	RefinedQuery     models.RefinedQuery
	SearchID         string
	SearchDurationMs int64
	DocumentID       string
	SearchActivityID string
	AnalyteUsed      string
	Value            string
	Unit             string
}

type synthesizedAnswer struct {
	AnalyteUsed  *string `json:"analyte_used"`
	Value        *string `json:"value"`
	Unit         *string `json:"unit"`
	AnswerText   *string `json:"answer_text"`
	DocumentLink *string `json:"document_link"`
}

// QueryService orchestrates: expand query, retrieve the best-matching page,
// synthesize a grounded answer, mint a scoped access URL, and record search
// activity. The activity write is best-effort and never fails the search.
type QueryService struct {
	llm        llm.Client
	index      searchindex.Index
	signer     *blob.Signer
	activities ActivityStore
	cache      *redis.Client
	cacheTTL   time.Duration
	metrics    *telemetry.Metrics

	// activityHook, when set, runs before the activity write; returning an
	// error simulates a store failure. Test seam only.
	activityHook func(*models.SearchActivity) error
}

func NewQueryService(
	llmClient llm.Client,
	index searchindex.Index,
	signer *blob.Signer,
	activities ActivityStore,
	cache *redis.Client,
	cacheTTL time.Duration,
) *QueryService {
	return &QueryService{
		llm:        llmClient,
		index:      index,
		signer:     signer,
		activities: activities,
		cache:      cache,
		cacheTTL:   cacheTTL,
	}
}

// SetMetrics attaches the application metrics.
func (s *QueryService) SetMetrics(m *telemetry.Metrics) {
	s.metrics = m
}

// SetActivityHook installs a failure hook for the best-effort activity write.
func (s *QueryService) SetActivityHook(hook func(*models.SearchActivity) error) {
	s.activityHook = hook
}

// Search runs the full query pipeline. The returned duration covers
// expansion through URL minting; the activity write happens after the clock
// stops and never affects the outcome.
func (s *QueryService) Search(ctx context.Context, input SearchInput) (*SearchResult, error) {
	tracer := otel.Tracer("query-pipeline")
	ctx, span := tracer.Start(ctx, "query.search")
	defer span.End()

	// Step 1: reject empty queries before any external call.
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	searchID := models.NewSearchActivityID()
	span.SetAttributes(attribute.String("search.id", searchID))

	start := time.Now()

	// Step 2: expand the query into clinical-term phrases.
	refined, err := s.expandQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query expansion failed: %w", err)
	}

	searchText := strings.TrimSpace(strings.Join(refined.SearchPhrases, " "))
	if searchText == "" {
		searchText = query
	}

	// Step 3: retrieve the single top-ranked page. No match is not an
	// error; empty text flows forward into synthesis.
	hits, err := s.index.Search(ctx, searchindex.Query{
		Text:   searchText,
		UserID: input.UserID,
		Top:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}

	var (
		extractedText  string
		blobURI        string
		documentID     string
		topResultScore *float64
	)
	if len(hits) > 0 {
		extractedText = hits[0].Entry.ExtractedText
		blobURI = hits[0].Entry.BlobURI
		documentID = hits[0].Entry.DocumentID
		score := hits[0].Score
		topResultScore = &score
	}
	span.SetAttributes(attribute.Bool("search.hit", len(hits) > 0))

	// Step 4: synthesize a grounded answer from the retrieved passage.
	answer, err := s.synthesizeAnswer(ctx, query, extractedText, blobURI)
	if err != nil {
		return nil, err
	}

	answerText := noAnswerMessage
	if answer.AnswerText != nil && strings.TrimSpace(*answer.AnswerText) != "" {
		answerText = *answer.AnswerText
	}

	// Step 5: mint a time-limited access URL for the source document. A
	// signing failure degrades to the unsigned URI rather than failing the
	// search.
	sasURL := ""
	if answer.DocumentLink != nil && *answer.DocumentLink != "" {
		link := *answer.DocumentLink
		blobName := blob.BlobNameFromURI(link)
		signed, signErr := s.signer.SignedURL(link, blobName, input.UserID)
		if signErr != nil {
			logger.Warn("Failed to sign document URL, returning unsigned URI",
				"blob", blobName, "error", signErr)
			sasURL = link
		} else {
			sasURL = signed
		}
	}

	message := answerText
	if sasURL != "" {
		message += fmt.Sprintf("\n\n**Document Reference: %s**", sasURL)
	}

	durationMs := time.Since(start).Milliseconds()
	span.SetAttributes(attribute.Int64("search.duration_ms", durationMs))

	result := &SearchResult{
		Message:          message,
		SASURL:           sasURL,
		Query:            query,
		RefinedQuery:     refined,
		SearchID:         searchID,
		SearchDurationMs: durationMs,
		DocumentID:       documentID,
	}
	if answer.AnalyteUsed != nil {
		result.AnalyteUsed = *answer.AnalyteUsed
	}
	if answer.Value != nil {
		result.Value = *answer.Value
	}
	if answer.Unit != nil {
		result.Unit = *answer.Unit
	}

	// Step 6: record the activity. Best-effort: any failure is logged and
	// the response still succeeds with a null activity id.
	resultsFound := extractedText != "" && documentID != ""
	s.metrics.RecordSearchDuration(ctx, time.Since(start).Seconds(), resultsFound)
	resultDocIDs := []string{}
	resultCount := 0
	if resultsFound {
		resultDocIDs = append(resultDocIDs, documentID)
		resultCount = 1
	}

	activity := &models.SearchActivity{
		ID:                   models.NewSearchActivityID(),
		UserID:               input.UserID,
		SearchID:             searchID,
		SchemaVersion:        models.SchemaVersion,
		OriginalQuery:        query,
		RefinedQuery:         refined,
		Timestamp:            models.Timestamp(time.Now()),
		ResultsFound:         resultsFound,
		ResultsDocumentIDs:   resultDocIDs,
		ResultNumDocuments:   resultCount,
		TopResultScore:       topResultScore,
		TotalResultsReturned: resultCount,
		DocumentOpenedIDs:    []string{},
		DeviceType:           input.DeviceType,
		AppVersion:           input.AppVersion,
		SearchDurationMs:     durationMs,
		Type:                 models.TypeSearchActivity,
	}

	if err := s.recordActivity(ctx, activity); err != nil {
		logger.Warn("Failed to record search activity", "search_id", searchID, "error", err)
		span.SetAttributes(attribute.Bool("search.activity_dropped", true))
		s.metrics.RecordActivityDrop(ctx)
	} else {
		result.SearchActivityID = activity.ID
	}

	return result, nil
}

// expandQuery asks the model for clinical-term search phrases, with a
// short-TTL cache keyed by the normalized query. A malformed expansion falls
// back to the user's literal words rather than failing the search.
func (s *QueryService) expandQuery(ctx context.Context, query string) (models.RefinedQuery, error) {
	cacheKey := "qexp:" + strings.ToLower(query)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var refined models.RefinedQuery
			if err := json.Unmarshal([]byte(cached), &refined); err == nil {
				return refined, nil
			}
		}
	}

	raw, err := s.llm.Complete(ctx, queryExpansionPrompt, query)
	if err != nil {
		return models.RefinedQuery{}, err
	}

	var refined models.RefinedQuery
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &refined); err != nil {
		logger.Warn("Query expansion returned malformed JSON, using literal query", "error", err)
		return models.RefinedQuery{
			SearchPhrases: []string{query},
			SearchFilters: map[string]any{},
		}, nil
	}
	if refined.SearchFilters == nil {
		refined.SearchFilters = map[string]any{}
	}

	if s.cache != nil {
		if data, err := json.Marshal(refined); err == nil {
			// Cache write failures only cost us the cache.
			s.cache.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}

	return refined, nil
}

func (s *QueryService) synthesizeAnswer(ctx context.Context, query, extractedText, blobURI string) (*synthesizedAnswer, error) {
	extracts, err := json.Marshal(map[string]string{
		"Text":          extractedText,
		"Document link": blobURI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode extracts: %w", err)
	}

	userPrompt := fmt.Sprintf("Question: %s\nExtracts: %s", query, extracts)

	raw, err := s.llm.Complete(ctx, answerSynthesisPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("answer synthesis failed: %w", err)
	}

	var answer synthesizedAnswer
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &answer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnswerSynthesis, err)
	}
	return &answer, nil
}

func (s *QueryService) recordActivity(ctx context.Context, activity *models.SearchActivity) error {
	if s.activityHook != nil {
		if err := s.activityHook(activity); err != nil {
			return err
		}
	}
	return s.activities.Create(ctx, activity)
}

// stripCodeFence removes a markdown code fence the model sometimes wraps
// JSON responses in.
func stripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	return strings.TrimSpace(raw)
}
