package orchestration

import (
	"context"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/queue"
)

// DiscoveryExecutor adapts RunDiscoveryJob to queue.Executor for the
// discovery worker pool. It is RunDiscoveryJob's only caller: the ingress
// discovery routes enqueue jobs rather than running them synchronously.
type DiscoveryExecutor struct {
	Repo     *Repository
	Analyzer DiscoveryAnalyzer
}

func (e *DiscoveryExecutor) Execute(ctx context.Context, job *queue.Job) error {
	return RunDiscoveryJob(ctx, e.Repo, e.Analyzer, job.CompanyID)
}

// ProfileExecutor adapts RunProfileJob to queue.Executor for the profile
// worker pool. chunksData is always nil here: the worker loads chunks
// itself via the repository rather than the ingress handler passing them
// along, since a queued job runs long after the originating request.
type ProfileExecutor struct {
	Repo      *Repository
	Extractor ProfileExtractor
}

func (e *ProfileExecutor) Execute(ctx context.Context, job *queue.Job) error {
	return RunProfileJob(ctx, e.Repo, e.Extractor, job.CompanyID, nil)
}
