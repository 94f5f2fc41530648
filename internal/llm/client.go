// Package llm provides stateless request/response access to a hosted
// language model.
package llm

import "context"

// Client completes a user prompt under a fixed system instruction and
// returns the raw model text. Callers own prompt construction and response
// parsing.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
