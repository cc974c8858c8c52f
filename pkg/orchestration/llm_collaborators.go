package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/llmpool"
	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/search"
)

// DefaultDiscoveryAnalyzer asks the LLM pool's best available provider to
// pick the official website out of a set of filtered search results.
// Prompt content itself is out of scope (spec.md §1); this is a minimal,
// clearly-labeled default, not a tuned production prompt.
type DefaultDiscoveryAnalyzer struct {
	Pool *llmpool.Pool
}

type discoveryLLMResponse struct {
	WebsiteURL string  `json:"website_url"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// FindWebsite calls the LLM pool with high priority — discovery never
// waits behind in-flight profile extraction calls, per the pool's
// priority gate.
func (a *DefaultDiscoveryAnalyzer) FindWebsite(ctx context.Context, meta RegistryMetadata, results []search.Result) (*DiscoveryResult, error) {
	if a.Pool == nil || len(results) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Company: %s (%s), city: %s\n\nSearch results:\n", meta.TradeName, meta.CorporateName, meta.Municipality)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s — %s — %s\n", i+1, r.Title, r.Link, r.Snippet)
	}
	sb.WriteString("\nRespond with JSON: {\"website_url\": \"...\", \"confidence\": 0-1, \"reasoning\": \"...\"}. If none is the official site, set website_url to \"\".")

	messages := []llmpool.Message{
		{Role: "system", Content: "You identify which search result, if any, is a company's official website."},
		{Role: "user", Content: sb.String()},
	}

	provider := a.Pool.BestProvider()
	if provider == "" {
		return nil, llmpool.ErrNoHealthyProvider
	}

	result, err := a.Pool.CallWithRetry(ctx, provider, messages, llmpool.CallOptions{
		Priority:       llmpool.PriorityHigh,
		ResponseFormat: map[string]string{"type": "json_object"},
	}, 2, 0)
	if err != nil {
		return nil, fmt.Errorf("discovery llm call: %w", err)
	}

	var parsed discoveryLLMResponse
	if err := json.Unmarshal([]byte(result.Content), &parsed); err != nil {
		return nil, fmt.Errorf("parsing discovery llm response: %w", err)
	}
	if parsed.WebsiteURL == "" {
		return nil, nil
	}
	return &DiscoveryResult{WebsiteURL: parsed.WebsiteURL, Confidence: parsed.Confidence, Reasoning: parsed.Reasoning}, nil
}

// DefaultProfileExtractor asks the LLM pool to extract a partial company
// profile from one content chunk. Like DefaultDiscoveryAnalyzer, the
// prompt itself is a minimal stand-in, not tuned production content.
type DefaultProfileExtractor struct {
	Pool *llmpool.Pool
}

// ExtractProfile calls the LLM pool with normal priority — profile
// extraction defers to any in-flight discovery call via the priority
// gate. Unlike discovery, which always wants the single best-health
// provider, profile extraction is the pool's steady-state, high-volume
// workload, so it spreads load across providers by configured weight
// instead of concentrating every call on one provider.
func (e *DefaultProfileExtractor) ExtractProfile(ctx context.Context, companyID string, chunkIndex int, content string) (CompanyProfile, error) {
	if e.Pool == nil {
		return CompanyProfile{}, nil
	}

	messages := []llmpool.Message{
		{Role: "system", Content: "You extract structured company profile facts from website content. Leave fields empty when the content doesn't mention them."},
		{Role: "user", Content: content},
	}

	weighted := e.Pool.GetWeightedProviderList(1)
	if len(weighted) == 0 {
		return CompanyProfile{}, llmpool.ErrNoHealthyProvider
	}
	provider := weighted[0]

	result, err := e.Pool.CallWithRetry(ctx, provider, messages, llmpool.CallOptions{
		Priority:       llmpool.PriorityNormal,
		ResponseFormat: map[string]string{"type": "json_object"},
	}, 2, 0)
	if err != nil {
		return CompanyProfile{}, fmt.Errorf("profile extraction llm call for %s chunk %d: %w", companyID, chunkIndex, err)
	}

	var profile CompanyProfile
	if err := json.Unmarshal([]byte(result.Content), &profile); err != nil {
		return CompanyProfile{}, fmt.Errorf("parsing profile llm response for %s chunk %d: %w", companyID, chunkIndex, err)
	}
	profile.CompanyID = companyID
	return profile, nil
}
