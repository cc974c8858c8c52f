// Package orchestration implements the per-company job runners that tie
// the search client, LLM provider pool, and durable queues into the four
// pipeline stages: Search, Discovery, Scrape, and Profile.
//
// Each stage's runner is a plain function rather than a type with its own
// lifecycle, so the same runner serves both the synchronous ingress
// handler and the queue worker's executor — there is exactly one code
// path per stage, not one per caller.
package orchestration

import (
	"context"
	"time"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/search"
)

// RegistryMetadata is the subset of company registry data a discovery or
// search job needs: enough to build search queries and cross-check the
// LLM's website choice.
type RegistryMetadata struct {
	CompanyID     string
	CorporateName string
	TradeName     string
	Municipality  string
	Email         string
	CNAEs         []string
}

// ProfileService is one line item under a profile's offered services.
type ProfileService struct {
	Name        string
	Description string
}

// ProductCategory groups named products under a category label.
type ProductCategory struct {
	Category string
	Products []string
}

// CompanyProfile is the structured business profile assembled from one or
// more scraped-content chunks. Field population is best-effort: any stage
// may leave fields empty when the source content doesn't mention them.
type CompanyProfile struct {
	CompanyID           string
	CompanyName         string
	Description         string
	FoundingYear        *int
	EmployeeRange       string
	Industry            string
	BusinessModel       string
	TargetAudience      string
	GeographicCoverage  string
	Emails              []string
	Phones              []string
	LinkedInURL         string
	WebsiteURL          string
	HeadquartersAddress string
	SourceURLs          []string
	AcceptsEmail        bool

	Locations         []string
	Services          []ProfileService
	ProductCategories []ProductCategory
	Certifications    []string
	Awards            []string
	Partnerships      []string
}

// IsEmpty reports whether the profile carries no usable identity or
// classification signal — the same bar run_profile_job.py used to decide
// whether an extracted chunk profile is worth keeping (a name or an
// industry, at minimum).
func (p CompanyProfile) IsEmpty() bool {
	return p.CompanyName == "" && p.Industry == ""
}

// Chunk is one ordered slice of a scraped website's content, the unit
// stage 4 extracts a partial profile from.
type Chunk struct {
	CompanyID    string
	WebsiteURL   string
	DiscoveryID  *int64
	ChunkIndex   int
	TotalChunks  int
	ChunkContent string
	TokenCount   int
	SourceURLs   []string
	CreatedAt    time.Time
}

// DiscoveryResult is what stage 2 produces for one company: either a
// chosen website with the LLM's confidence and reasoning, or none.
type DiscoveryResult struct {
	WebsiteURL string
	Confidence float64
	Reasoning  string
}

// DiscoveryAnalyzer picks the official website out of a set of filtered
// search results. The production implementation (DefaultDiscoveryAnalyzer)
// delegates to the LLM pool; callers may substitute a fake for tests.
type DiscoveryAnalyzer interface {
	FindWebsite(ctx context.Context, meta RegistryMetadata, results []search.Result) (*DiscoveryResult, error)
}

// ProfileExtractor pulls a partial CompanyProfile out of one content
// chunk. The production implementation (DefaultProfileExtractor)
// delegates to the LLM pool; callers may substitute a fake for tests.
type ProfileExtractor interface {
	ExtractProfile(ctx context.Context, companyID string, chunkIndex int, content string) (CompanyProfile, error)
}

// Scraper fetches a website and returns its content split into ordered
// chunks. spec.md treats the crawling engine and chunking heuristics as
// external collaborators; DefaultScraper is a minimal, clearly-labeled
// stand-in, not a general-purpose crawler.
type Scraper interface {
	Scrape(ctx context.Context, websiteURL string) ([]Chunk, error)
}
