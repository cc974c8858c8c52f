package orchestration

import (
	"context"
	"fmt"
	"log/slog"
)

// discoveryRepository is the slice of Repository RunDiscoveryJob needs,
// narrowed so tests can substitute an in-memory fake.
type discoveryRepository interface {
	GetLatestSearchResults(ctx context.Context, companyID string) (*SearchResultRow, error)
	SaveDiscovery(ctx context.Context, companyID string, websiteURL *string, status string, searchID *int64, confidence *float64, reasoning *string) (int64, error)
}

const (
	discoveryStatusFound    = "found"
	discoveryStatusNotFound = "not_found"
	discoveryStatusError    = "error"
)

// confidenceFound is the confidence score recorded when a website is
// found and the analyzer reports no positive confidence of its own; a
// positive analyzer-reported confidence is recorded as is.
const confidenceFound = 0.9

// RunDiscoveryJob executes stage 2 (Discovery) for one company: it reads
// the most recent search results, filters out blacklisted/duplicate
// links, and asks the DiscoveryAnalyzer to pick the official website.
// Every outcome — no search results, nothing left after filtering, no
// site found, or a site found — is persisted to website_discovery. Only
// an unexpected failure (a repository or analyzer error outside those
// expected branches) is returned to the caller, so the queue worker's
// Fail() path fires; every "nothing to discover" branch is a normal,
// non-error outcome, matching run_discovery_job.py.
func RunDiscoveryJob(ctx context.Context, repo discoveryRepository, analyzer DiscoveryAnalyzer, companyID string) error {
	meta, searchRow, err := loadDiscoveryInputs(ctx, repo, companyID)
	if err != nil {
		if _, saveErr := repo.SaveDiscovery(ctx, companyID, nil, discoveryStatusError, nil, nil, strPtr(err.Error())); saveErr != nil {
			slog.Error("discovery job: best-effort error save failed", "company_id", companyID, "error", saveErr)
		}
		return fmt.Errorf("discovery job for %s: %w", companyID, err)
	}

	if searchRow == nil {
		slog.Warn("discovery job: no search results", "company_id", companyID)
		_, err := repo.SaveDiscovery(ctx, companyID, nil, discoveryStatusNotFound, nil, nil, strPtr("no search results available"))
		return err
	}

	filtered := FilterSearchResults(searchRow.Results)
	if len(filtered) == 0 {
		slog.Warn("discovery job: all results filtered", "company_id", companyID)
		_, err := repo.SaveDiscovery(ctx, companyID, nil, discoveryStatusNotFound, &searchRow.ID, nil, strPtr("all results were filtered (blacklist)"))
		return err
	}

	result, err := analyzer.FindWebsite(ctx, meta, filtered)
	if err != nil {
		slog.Error("discovery job: analyzer error", "company_id", companyID, "error", err)
		_, saveErr := repo.SaveDiscovery(ctx, companyID, nil, discoveryStatusNotFound, &searchRow.ID, nil, strPtr("analyzer error: "+err.Error()))
		return saveErr
	}

	if result == nil || result.WebsiteURL == "" {
		slog.Info("discovery job: no website found", "company_id", companyID)
		_, err := repo.SaveDiscovery(ctx, companyID, nil, discoveryStatusNotFound, &searchRow.ID, nil, nil)
		return err
	}

	confidence := confidenceFound
	if result.Confidence > 0 {
		confidence = result.Confidence
	}
	_, err = repo.SaveDiscovery(ctx, companyID, &result.WebsiteURL, discoveryStatusFound, &searchRow.ID, &confidence, &result.Reasoning)
	return err
}

// loadDiscoveryInputs loads the registry metadata and latest search
// results for a company. A missing search_results row is not an error —
// it returns a nil row so the caller can persist a not_found discovery.
func loadDiscoveryInputs(ctx context.Context, repo discoveryRepository, companyID string) (RegistryMetadata, *SearchResultRow, error) {
	row, err := repo.GetLatestSearchResults(ctx, companyID)
	if err == ErrNotFound {
		return RegistryMetadata{CompanyID: companyID}, nil, nil
	}
	if err != nil {
		return RegistryMetadata{}, nil, err
	}
	meta := RegistryMetadata{
		CompanyID:     companyID,
		CorporateName: row.CorporateName,
		TradeName:     row.TradeName,
		Municipality:  row.Municipality,
	}
	return meta, row, nil
}

func strPtr(s string) *string { return &s }
