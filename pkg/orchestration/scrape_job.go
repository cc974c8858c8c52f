package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// scrapeRepository is the slice of Repository RunScrapeJob needs,
// narrowed so tests can substitute an in-memory fake.
type scrapeRepository interface {
	GetDiscovery(ctx context.Context, companyID string) (*DiscoveryRow, error)
	SaveChunksBatch(ctx context.Context, companyID, websiteURL string, discoveryID *int64, chunks []Chunk) (int, error)
}

// ScrapeResult summarizes one scrape job's outcome for the ingress
// response: how much content was saved and how many distinct pages it
// came from.
type ScrapeResult struct {
	ChunksSaved  int
	TotalTokens  int
	PagesScraped int
}

// RunScrapeJob executes stage 3 (Scrape) for one company: it fetches the
// discovered website and persists the resulting content chunks. Like
// Search, it is invoked synchronously from the ingress handler rather
// than from a queue (spec.md §2).
//
// Linking a scrape to the discovery row that produced websiteURL is
// best-effort: GetDiscovery is a lookup by company id, not by the exact
// URL passed in, so a missing or failed lookup never blocks the scrape
// itself — chunks.discovery_id is simply left NULL.
func RunScrapeJob(ctx context.Context, repo scrapeRepository, scraper Scraper, companyID, websiteURL string) (ScrapeResult, error) {
	chunks, err := scraper.Scrape(ctx, websiteURL)
	if err != nil {
		return ScrapeResult{}, fmt.Errorf("scrape job for %s: %w", companyID, err)
	}
	if len(chunks) == 0 {
		return ScrapeResult{}, nil
	}

	var discoveryID *int64
	discovery, err := repo.GetDiscovery(ctx, companyID)
	switch {
	case err == nil:
		discoveryID = &discovery.ID
	case errors.Is(err, ErrNotFound):
		// No discovery row yet (e.g. website supplied directly); chunks
		// are still saved, just without the link.
	default:
		slog.Warn("scrape job: discovery lookup failed, saving chunks without a link", "company_id", companyID, "error", err)
	}

	count, err := repo.SaveChunksBatch(ctx, companyID, websiteURL, discoveryID, chunks)
	if err != nil {
		return ScrapeResult{}, fmt.Errorf("scrape job for %s: %w", companyID, err)
	}

	result := ScrapeResult{ChunksSaved: count}
	pages := make(map[string]struct{})
	for _, c := range chunks {
		result.TotalTokens += c.TokenCount
		for _, u := range c.SourceURLs {
			pages[u] = struct{}{}
		}
	}
	if len(pages) == 0 {
		pages[websiteURL] = struct{}{}
	}
	result.PagesScraped = len(pages)

	return result, nil
}
