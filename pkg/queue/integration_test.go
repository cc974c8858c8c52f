package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/database"
)

// newTestStore starts a disposable Postgres container, applies migrations
// via database.NewClient, and returns a Store bound to the discovery queue.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	client, err := database.NewClient(ctx, database.Config{
		Host: host, Port: port.Int(), User: "test", Password: "test",
		Database: "test", SSLMode: "disable", MaxOpenConns: 10, MaxIdleConns: 5,
		ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 15 * time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewStore(client.DB(), "sitescout.queue_discovery")
}

func TestClaimSkipsLockedRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inserted, err := store.Enqueue(ctx, "11222333000181")
	require.NoError(t, err)
	require.True(t, inserted)

	jobs, err := store.Claim(ctx, "worker-0", 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "11222333000181", jobs[0].CompanyID)
	assert.Equal(t, StatusProcessing, jobs[0].Status)

	// A second claim against the now-empty queue returns ErrNoJobsAvailable.
	_, err = store.Claim(ctx, "worker-1", 1)
	assert.ErrorIs(t, err, ErrNoJobsAvailable)
}

func TestEnqueueRejectsDuplicateActiveJob(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inserted, err := store.Enqueue(ctx, "11222333000181")
	require.NoError(t, err)
	require.True(t, inserted)

	// Still queued — a second enqueue for the same company is a no-op.
	inserted, err = store.Enqueue(ctx, "11222333000181")
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestConcurrentClaimsDoNotDoubleAssign(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const numJobs = 10
	for i := 0; i < numJobs; i++ {
		_, err := store.Enqueue(ctx, fmt.Sprintf("companhia-%02d", i))
		require.NoError(t, err)
	}

	var mu sync.Mutex
	claimedIDs := make(map[int64]struct{})
	var wg sync.WaitGroup
	for i := 0; i < numJobs; i++ {
		wg.Add(1)
		go func(workerIdx int) {
			defer wg.Done()
			jobs, err := store.Claim(ctx, fmt.Sprintf("worker-%d", workerIdx), 1)
			if err != nil {
				return
			}
			mu.Lock()
			for _, j := range jobs {
				claimedIDs[j.ID] = struct{}{}
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Len(t, claimedIDs, numJobs, "every job should be claimed exactly once")
}

func TestFailAppliesLinearBackoffThenFails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Enqueue(ctx, "11222333000181")
	require.NoError(t, err)
	jobs, err := store.Claim(ctx, "worker-0", 1)
	require.NoError(t, err)
	job := jobs[0]

	require.NoError(t, store.Fail(ctx, job.ID, "transient scrape error"))

	metrics, err := store.GetMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.QueuedCount, "job should be requeued, not failed, after one attempt")

	// The backoff keeps the requeued job out of reach of an immediate claim.
	_, err = store.Claim(ctx, "worker-0", 1)
	assert.ErrorIs(t, err, ErrNoJobsAvailable)

	// Drive it to max_attempts via repeated claim/fail, moving available_at
	// back to now before each claim so the backoff does not stall the loop.
	for i := 0; i < 10; i++ {
		_, err := store.db.ExecContext(ctx, "UPDATE sitescout.queue_discovery SET available_at = now() WHERE id = $1", job.ID)
		require.NoError(t, err)
		jobs, err := store.Claim(ctx, "worker-0", 1)
		if err != nil {
			break
		}
		require.NoError(t, store.Fail(ctx, jobs[0].ID, "still failing"))
	}

	metrics, err = store.GetMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.FailedCount, "job should be permanently failed after max_attempts")
}

func TestRequeueStaleRecoversOrphanedJobs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Enqueue(ctx, "11222333000181")
	require.NoError(t, err)
	jobs, err := store.Claim(ctx, "dead-worker", 1)
	require.NoError(t, err)
	job := jobs[0]

	// RequeueStale with a zero threshold treats every processing row as
	// stale immediately, simulating a crashed worker's lock going unrefreshed.
	ids, err := store.RequeueStale(ctx, 0, "orphaned: simulated crash")
	require.NoError(t, err)
	require.Contains(t, ids, job.ID)

	metrics, err := store.GetMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.QueuedCount)
	assert.Equal(t, 0, metrics.ProcessingCount)
}
