// Package llmpool implements the weighted, health-scored multi-provider
// LLM pool used by stage 2 (Discovery reasoning) and stage 4 (Profile
// extraction). Every provider gets its own rate limiter, concurrency
// semaphore, and running health score; callers pick a provider (or let
// the pool pick one by weight) and the pool tracks latency, failures,
// and rate-limit hits to steer future selection away from unhealthy
// backends.
package llmpool

import "errors"

// Priority distinguishes calls that must jump ahead of routine traffic
// (Discovery, which unblocks the rest of the pipeline) from calls that can
// wait (Profile extraction, which runs after scraping already completed).
type Priority int

const (
	PriorityHigh   Priority = 1
	PriorityNormal Priority = 2
)

// FailureType classifies a call failure for health scoring.
type FailureType string

const (
	FailureTimeout   FailureType = "timeout"
	FailureRateLimit FailureType = "rate_limit"
	FailureBadInput  FailureType = "bad_request"
	FailureOther     FailureType = "error"
)

var (
	ErrProviderNotFound  = errors.New("llmpool: provider not found")
	ErrRateLimited       = errors.New("llmpool: rate limit exceeded")
	ErrProviderTimeout   = errors.New("llmpool: request timed out")
	ErrBadRequest        = errors.New("llmpool: bad request")
	ErrEmptyCompletion   = errors.New("llmpool: provider returned an empty completion")
	ErrNoHealthyProvider = errors.New("llmpool: no healthy provider available")
)

// Message is one OpenAI-chat-completions-style message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CallOptions customizes a single Call beyond its messages.
type CallOptions struct {
	Temperature    float64
	Timeout        float64 // seconds; zero uses the provider's configured default
	ResponseFormat map[string]string
	Priority       Priority
}

// CallResult is what a successful Call returns.
type CallResult struct {
	Content   string
	LatencyMS float64
	Provider  string
}

type chatCompletionRequest struct {
	Model          string             `json:"model"`
	Messages       []Message          `json:"messages"`
	Temperature    float64            `json:"temperature"`
	ResponseFormat map[string]string  `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}
