package orchestration

import (
	"context"
	"fmt"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/search"
)

// searchRepository is the slice of Repository RunSearchJob needs,
// narrowed so tests can substitute an in-memory fake.
type searchRepository interface {
	SaveSearchResults(ctx context.Context, companyID, corporateName, tradeName, municipality, queryUsed string, results []search.Result) (int64, error)
}

// searchNumResults is the page size requested for every query a search
// job issues.
const searchNumResults = 30

// RunSearchJob executes stage 1 (Search) for one company: builds up to
// two queries from its registry metadata, issues them as a single batch
// request, and persists the combined results. It is invoked synchronously
// from the ingress handler (spec.md §2's "Triggered by: synchronous API
// call" for Search), not from a queue.
//
// A search artifact row is always written, even when there is no usable
// corporate/trade name to build a query from, or the upstream search
// fails after exhausting retries: in both cases RunSearchJob still calls
// SaveSearchResults with zero results (queryUsed is empty when there was
// no name to query, and the first query when the search failed), so the
// company is recorded as searched rather than silently skipped.
func RunSearchJob(ctx context.Context, repo searchRepository, client *search.Client, meta RegistryMetadata) (*SearchResultRow, error) {
	queries := BuildSearchQueries(meta.CorporateName, meta.TradeName, meta.Municipality)

	var results []search.Result
	var queryUsed string
	if len(queries) > 0 {
		queryUsed = queries[0]
		rowsPerQuery, _, _ := client.SearchBatch(ctx, queries, searchNumResults)
		for _, rows := range rowsPerQuery {
			results = append(results, rows...)
		}
	}

	id, err := repo.SaveSearchResults(ctx, meta.CompanyID, meta.CorporateName, meta.TradeName, meta.Municipality, queryUsed, results)
	if err != nil {
		return nil, fmt.Errorf("search job for %s: %w", meta.CompanyID, err)
	}

	return &SearchResultRow{
		ID: id, CompanyID: meta.CompanyID, CorporateName: meta.CorporateName,
		TradeName: meta.TradeName, Municipality: meta.Municipality,
		Results: results, ResultsCount: len(results), QueryUsed: queryUsed,
	}, nil
}
