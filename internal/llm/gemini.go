package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"health-docs-platform/internal/logger"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("language model temporarily unavailable")

// Gemini is a Client backed by the Gemini API, guarded by a circuit breaker
// and a client-side rate limiter.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
}

var _ Client = (*Gemini)(nil)

func NewGemini(apiKey, model string, temperature float64) (*Gemini, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	// Stay under the provider's requests-per-minute quota with some buffer.
	rateLimiter := rate.NewLimiter(rate.Limit(10.0*0.9/60.0), 2)

	return &Gemini{
		client:      client,
		model:       model,
		temperature: float32(temperature),
		breaker:     breaker,
		rateLimiter: rateLimiter,
	}, nil
}

// Complete sends one system+user prompt pair and returns the model's text.
// Responses are requested as JSON since both pipeline prompts demand strict
// JSON output.
func (g *Gemini) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	tracer := otel.Tracer("llm-client")
	ctx, span := tracer.Start(ctx, "llm.complete")
	defer span.End()

	span.SetAttributes(
		attribute.String("llm.model", g.model),
		attribute.Int("llm.system_prompt_bytes", len(systemPrompt)),
		attribute.Int("llm.user_prompt_bytes", len(userPrompt)),
	)

	if err := g.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("llm.rate_limited", true))
		return "", err
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		model := g.client.GenerativeModel(g.model)
		model.SetTemperature(g.temperature)
		model.SetMaxOutputTokens(2048)
		model.ResponseMIMEType = "application/json"
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}

		resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
		if err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			span.SetAttributes(attribute.Bool("llm.circuit_breaker_open", true))
			return "", ErrUnavailable
		}
		span.SetAttributes(attribute.Bool("llm.error", true))
		return "", err
	}

	text := extractText(result.(*genai.GenerateContentResponse))
	if text == "" {
		span.SetAttributes(attribute.Bool("llm.empty_response", true))
		return "", fmt.Errorf("model returned no text")
	}

	span.SetAttributes(attribute.Int("llm.response_bytes", len(text)))
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

// Close the underlying API client.
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
