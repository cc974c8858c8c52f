package orchestration

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// minChunkContentLength skips chunks too short to carry any extractable
// signal, avoiding a wasted LLM call — ported from run_profile_job.py's
// extract_chunk length check.
const minChunkContentLength = 100

// profileRepository is the slice of Repository RunProfileJob needs,
// narrowed so tests can substitute an in-memory fake.
type profileRepository interface {
	GetChunks(ctx context.Context, companyID string) ([]Chunk, error)
	SaveProfile(ctx context.Context, profile CompanyProfile) (int64, error)
}

// RunProfileJob executes stage 4 (Profile) for one company: every chunk
// is extracted concurrently, valid partial profiles are merged, and the
// result is saved. chunksData lets a caller that already holds the
// chunks (the ingress profile handler) pass them in rather than
// re-fetching them; when nil, as the queue worker's ProfileExecutor
// passes it, RunProfileJob loads them itself — this is the single job runner
// consolidating what the original source split across the in-process
// ingress handler and the queue worker (spec.md §9's Open Question).
//
// RunProfileJob returns nil — not an error — when there are no chunks or
// no valid extracted profiles, matching run_profile_job.py: those are
// expected outcomes, not failures, so the queue worker's Fail() path
// must not fire for them. Only a failure loading the chunks (when
// chunksData is nil) or in the final save propagates.
func RunProfileJob(ctx context.Context, repo profileRepository, extractor ProfileExtractor, companyID string, chunksData []Chunk) error {
	if chunksData == nil {
		loaded, err := repo.GetChunks(ctx, companyID)
		if err != nil {
			return err
		}
		chunksData = loaded
	}

	if len(chunksData) == 0 {
		slog.Warn("profile job: no chunks found", "company_id", companyID)
		return nil
	}

	profiles := extractChunksConcurrently(ctx, extractor, companyID, chunksData)

	var valid []CompanyProfile
	for _, p := range profiles {
		if !p.IsEmpty() {
			valid = append(valid, p)
		}
	}

	if len(valid) == 0 {
		slog.Warn("profile job: no valid profiles extracted", "company_id", companyID, "chunks", len(chunksData))
		return nil
	}

	merged := MergeProfiles(valid)
	merged.CompanyID = companyID

	if _, err := repo.SaveProfile(ctx, merged); err != nil {
		return err
	}
	slog.Info("profile job: completed", "company_id", companyID, "valid_profiles", len(valid), "chunks", len(chunksData))
	return nil
}

// extractChunksConcurrently runs one extraction per chunk in parallel,
// substituting an empty profile for any chunk whose extraction fails or
// panics rather than aborting the whole job — the Go equivalent of
// asyncio.gather(..., return_exceptions=True) followed by a per-result
// exception check.
func extractChunksConcurrently(ctx context.Context, extractor ProfileExtractor, companyID string, chunks []Chunk) []CompanyProfile {
	profiles := make([]CompanyProfile, len(chunks))

	g, gctx := errgroup.WithContext(ctx)

	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Warn("profile job: chunk extraction panicked", "company_id", companyID, "chunk_index", chunk.ChunkIndex, "panic", r)
					profiles[i] = CompanyProfile{}
				}
			}()

			content := chunk.ChunkContent
			if len(content) < minChunkContentLength {
				profiles[i] = CompanyProfile{}
				return nil
			}

			profile, extractErr := extractor.ExtractProfile(gctx, companyID, chunk.ChunkIndex, content)
			if extractErr != nil {
				slog.Warn("profile job: chunk extraction failed", "company_id", companyID, "chunk_index", chunk.ChunkIndex, "error", extractErr)
				profiles[i] = CompanyProfile{}
				return nil
			}
			profiles[i] = profile
			return nil
		})
	}

	// Every goroutine above always returns nil — per-chunk failures are
	// substituted, not propagated — so this error is always nil; Wait is
	// still required to block until every chunk finishes.
	_ = g.Wait()
	return profiles
}
