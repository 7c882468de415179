//go:build integration

package provisioning

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Jainayushgit/store-provisioner/cluster"
	"github.com/Jainayushgit/store-provisioner/db"
	"github.com/Jainayushgit/store-provisioner/errors"
)

// newTestPool starts a disposable Postgres container, applies migrations,
// and returns a pool the caller owns for the life of the test.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("provisioner_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := db.OpenWithMigrations(ctx, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

// TestLeaseNextJobExcludesLeasedRows checks that a job leased by one worker
// is not handed to a second LeaseNextJob call. The two calls run one after
// the other, so the second is excluded by the QUEUED status filter; row-lock
// skipping between concurrent leasers is not exercised here.
func TestLeaseNextJobExcludesLeasedRows(t *testing.T) {
	pool := newTestPool(t)
	repo := NewRepo(pool)
	ctx := context.Background()

	store, err := repo.InsertStore(ctx, "aaaaaaa1-aaaa-4aaa-8aaa-aaaaaaaaaaa1", EngineWooCommerce, nil, "ns-lease-1", "rel-lease-1")
	require.NoError(t, err)
	_, err = repo.InsertJob(ctx, store.ID, ActionProvision, 3)
	require.NoError(t, err)

	first, err := repo.LeaseNextJob(ctx, "worker-a")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := repo.LeaseNextJob(ctx, "worker-b")
	require.NoError(t, err)
	require.Nil(t, second, "a leased job must not be handed to a second worker")
}

// TestRecoverStaleLeasesRequeuesExpiredJob exercises the crash-recovery
// path: a lease older than leaseDuration is returned to QUEUED and becomes
// leasable again.
func TestRecoverStaleLeasesRequeuesExpiredJob(t *testing.T) {
	pool := newTestPool(t)
	repo := NewRepo(pool)
	ctx := context.Background()

	store, err := repo.InsertStore(ctx, "aaaaaaa2-aaaa-4aaa-8aaa-aaaaaaaaaaa2", EngineWooCommerce, nil, "ns-lease-2", "rel-lease-2")
	require.NoError(t, err)
	_, err = repo.InsertJob(ctx, store.ID, ActionProvision, 3)
	require.NoError(t, err)

	leased, err := repo.LeaseNextJob(ctx, "worker-a")
	require.NoError(t, err)
	require.NotNil(t, leased)

	recovered, err := repo.RecoverStaleLeases(ctx, -time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), recovered)

	requeued, err := repo.GetJob(ctx, leased.ID)
	require.NoError(t, err)
	require.Equal(t, JobQueued, requeued.Status)
	require.Equal(t, leased.Attempt, requeued.Attempt, "recovery must not reset the attempt counter")
	require.Nil(t, requeued.LockedBy)
	require.Nil(t, requeued.LockedAt)

	again, err := repo.LeaseNextJob(ctx, "worker-b")
	require.NoError(t, err)
	require.NotNil(t, again, "a recovered lease must be leasable again")
	require.Equal(t, leased.Attempt+1, again.Attempt, "the next lease increments attempt again")
}

// TestAdmissionDeleteIsIdempotent exercises the delete idempotence
// property: calling Delete twice on the same store produces exactly one
// new DELETE job, and the second call returns that same job id.
func TestAdmissionDeleteIsIdempotent(t *testing.T) {
	pool := newTestPool(t)
	repo := NewRepo(pool)
	limiter := NewRateLimiter(pool, time.Minute, 1000)
	admission := NewAdmission(repo, limiter, AdmissionConfig{MaxActiveStores: 10, MaxAttempts: 3})
	ctx := context.Background()

	created, err := admission.Create(ctx, EngineWooCommerce, nil, "caller-1")
	require.NoError(t, err)

	first, err := admission.Delete(ctx, created.StoreID, "caller-1")
	require.NoError(t, err)

	second, err := admission.Delete(ctx, created.StoreID, "caller-1")
	require.NoError(t, err)

	require.Equal(t, first.QueuedJobID, second.QueuedJobID, "replaying delete must return the same job id")
}

// TestRateLimiterDeniesOverCapacity exercises the limiter boundary:
// exactly max requests are permitted within a window, and the (max+1)-th
// is denied.
func TestRateLimiterDeniesOverCapacity(t *testing.T) {
	pool := newTestPool(t)
	limiter := NewRateLimiter(pool, time.Minute, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		permitted, _, err := limiter.Allow(ctx, "caller-x")
		require.NoError(t, err)
		require.True(t, permitted)
	}

	permitted, remaining, err := limiter.Allow(ctx, "caller-x")
	require.NoError(t, err)
	require.False(t, permitted)
	require.Equal(t, 0, remaining)
}

// Fakes for the three external collaborators, so engine scenarios run
// end-to-end against real Postgres without a cluster.

type fakePackageManager struct {
	installErr   error
	uninstallErr error
	installs     int
	uninstalls   int
}

func (f *fakePackageManager) UpgradeInstall(ctx context.Context, release, namespace, chartPath string, values map[string]interface{}, timeout int) error {
	f.installs++
	return f.installErr
}

func (f *fakePackageManager) Uninstall(ctx context.Context, release, namespace string, timeout int) error {
	f.uninstalls++
	return f.uninstallErr
}

type fakeClusterCLI struct {
	deleteErr error
	deletes   int
}

func (f *fakeClusterCLI) DeleteNamespace(ctx context.Context, namespace string, timeout int) error {
	f.deletes++
	return f.deleteErr
}

type fakeReadiness struct {
	err error
}

func (f *fakeReadiness) WaitForHTTPOK(ctx context.Context, url string, timeout, poll int) error {
	return f.err
}

func newTestEngine(repo *Repo, pkg *fakePackageManager, cli *fakeClusterCLI, ready *fakeReadiness) *Engine {
	handlers := NewHandlers(repo, pkg, cli, ready, HandlerConfig{
		ChartPath:                   "./charts/woocommerce",
		HelmTimeoutSeconds:          5,
		KubectlDeleteTimeoutSeconds: 5,
		ReadinessTimeoutSeconds:     1,
		ReadinessPollSeconds:        1,
		LocalDomain:                 "localtest.me",
	})
	return NewEngine(repo, handlers, EngineConfig{
		WorkerID:       "worker-test",
		PollInterval:   50 * time.Millisecond,
		LeaseDuration:  time.Minute,
		MaxConcurrency: 2,
	})
}

func eventTypes(t *testing.T, repo *Repo, storeID string) []string {
	t.Helper()
	events, err := repo.ListEvents(context.Background(), storeID, 50)
	require.NoError(t, err)
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.EventType
	}
	return types
}

// TestHappyProvision drives a freshly admitted store through a full
// PROVISION cycle: QUEUED -> PROVISIONING -> READY, url derived from the
// store id, events appended in order.
func TestHappyProvision(t *testing.T) {
	pool := newTestPool(t)
	repo := NewRepo(pool)
	limiter := NewRateLimiter(pool, time.Minute, 1000)
	admission := NewAdmission(repo, limiter, AdmissionConfig{MaxActiveStores: 10, MaxAttempts: 3})
	engine := newTestEngine(repo, &fakePackageManager{}, &fakeClusterCLI{}, &fakeReadiness{})
	ctx := context.Background()

	created, err := admission.Create(ctx, EngineWooCommerce, nil, "caller-hp")
	require.NoError(t, err)

	leased, err := repo.LeaseNextJob(ctx, "worker-test")
	require.NoError(t, err)
	require.NotNil(t, leased)
	require.Equal(t, 1, leased.Attempt)

	require.NoError(t, engine.processJob(ctx, leased.ID))

	store, err := repo.GetStore(ctx, created.StoreID)
	require.NoError(t, err)
	require.Equal(t, StatusReady, store.Status)
	require.NotNil(t, store.URL)
	require.Equal(t, "http://store-"+store.ID+".localtest.me", *store.URL)

	job, err := repo.GetJob(ctx, leased.ID)
	require.NoError(t, err)
	require.Equal(t, JobSucceeded, job.Status)
	require.NotNil(t, job.CompletedAt)

	// Newest first.
	require.Equal(t, []string{EventReady, EventInstallStarted, EventQueued}, eventTypes(t, repo, store.ID))
}

// TestDeleteCancelsPendingProvision: a delete issued before the engine
// leases the PROVISION job fails that job in place and queues teardown.
func TestDeleteCancelsPendingProvision(t *testing.T) {
	pool := newTestPool(t)
	repo := NewRepo(pool)
	limiter := NewRateLimiter(pool, time.Minute, 1000)
	admission := NewAdmission(repo, limiter, AdmissionConfig{MaxActiveStores: 10, MaxAttempts: 3})
	ctx := context.Background()

	created, err := admission.Create(ctx, EngineWooCommerce, nil, "caller-dc")
	require.NoError(t, err)

	deleted, err := admission.Delete(ctx, created.StoreID, "caller-dc")
	require.NoError(t, err)
	require.Equal(t, StatusDeleting, deleted.Status)
	require.NotEqual(t, created.QueuedJobID, deleted.QueuedJobID)

	provisionJob, err := repo.GetJob(ctx, created.QueuedJobID)
	require.NoError(t, err)
	require.Equal(t, JobFailed, provisionJob.Status)
	require.NotNil(t, provisionJob.ErrorMessage)
	require.Equal(t, MsgProvisionCancelledDeleteRequested, *provisionJob.ErrorMessage)
	require.NotNil(t, provisionJob.CompletedAt)

	deleteJob, err := repo.GetJob(ctx, deleted.QueuedJobID)
	require.NoError(t, err)
	require.Equal(t, ActionDelete, deleteJob.Action)
	require.Equal(t, JobQueued, deleteJob.Status)
}

// TestRetryExhaustion: a package manager that always fails drives the job
// through max_attempts leases, then FAILED job + FAILED store + one
// "failed" event per attempt.
func TestRetryExhaustion(t *testing.T) {
	pool := newTestPool(t)
	repo := NewRepo(pool)
	limiter := NewRateLimiter(pool, time.Minute, 1000)
	admission := NewAdmission(repo, limiter, AdmissionConfig{MaxActiveStores: 10, MaxAttempts: 3})
	pkg := &fakePackageManager{installErr: errors.New("helm exploded")}
	engine := newTestEngine(repo, pkg, &fakeClusterCLI{}, &fakeReadiness{})
	ctx := context.Background()

	created, err := admission.Create(ctx, EngineWooCommerce, nil, "caller-rx")
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		leased, err := repo.LeaseNextJob(ctx, "worker-test")
		require.NoError(t, err)
		require.NotNil(t, leased, "attempt %d should lease", i)
		require.Equal(t, i, leased.Attempt)
		require.NoError(t, engine.processJob(ctx, leased.ID))
	}

	leased, err := repo.LeaseNextJob(ctx, "worker-test")
	require.NoError(t, err)
	require.Nil(t, leased, "an exhausted job must not be leasable")

	job, err := repo.GetJob(ctx, created.QueuedJobID)
	require.NoError(t, err)
	require.Equal(t, JobFailed, job.Status)

	store, err := repo.GetStore(ctx, created.StoreID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, store.Status)
	require.NotNil(t, store.LastError)

	failed := 0
	for _, et := range eventTypes(t, repo, store.ID) {
		if et == EventFailed {
			failed++
		}
	}
	require.Equal(t, 3, failed)
	require.Equal(t, 3, pkg.installs)
}

// TestReadinessTimeoutIsNonFatal: install succeeds, the probe times out,
// and the store still lands READY with a readiness_warning event.
func TestReadinessTimeoutIsNonFatal(t *testing.T) {
	pool := newTestPool(t)
	repo := NewRepo(pool)
	limiter := NewRateLimiter(pool, time.Minute, 1000)
	admission := NewAdmission(repo, limiter, AdmissionConfig{MaxActiveStores: 10, MaxAttempts: 3})
	ready := &fakeReadiness{err: &cluster.ReadinessTimeoutError{URL: "http://x", Timeout: 1}}
	engine := newTestEngine(repo, &fakePackageManager{}, &fakeClusterCLI{}, ready)
	ctx := context.Background()

	created, err := admission.Create(ctx, EngineWooCommerce, nil, "caller-rt")
	require.NoError(t, err)

	leased, err := repo.LeaseNextJob(ctx, "worker-test")
	require.NoError(t, err)
	require.NotNil(t, leased)
	require.NoError(t, engine.processJob(ctx, leased.ID))

	store, err := repo.GetStore(ctx, created.StoreID)
	require.NoError(t, err)
	require.Equal(t, StatusReady, store.Status)
	require.Contains(t, eventTypes(t, repo, store.ID), EventReadinessWarning)
}

// TestDeleteHandlerTearsDownStore: the DELETE job uninstalls, deletes the
// namespace, and tombstones the store. A failed uninstall is swallowed.
func TestDeleteHandlerTearsDownStore(t *testing.T) {
	pool := newTestPool(t)
	repo := NewRepo(pool)
	limiter := NewRateLimiter(pool, time.Minute, 1000)
	admission := NewAdmission(repo, limiter, AdmissionConfig{MaxActiveStores: 10, MaxAttempts: 3})
	pkg := &fakePackageManager{uninstallErr: errors.New("release already gone")}
	cli := &fakeClusterCLI{}
	engine := newTestEngine(repo, pkg, cli, &fakeReadiness{})
	ctx := context.Background()

	created, err := admission.Create(ctx, EngineWooCommerce, nil, "caller-dh")
	require.NoError(t, err)

	deleted, err := admission.Delete(ctx, created.StoreID, "caller-dh")
	require.NoError(t, err)

	// The cancelled PROVISION job is FAILED, so the only QUEUED job is DELETE.
	leased, err := repo.LeaseNextJob(ctx, "worker-test")
	require.NoError(t, err)
	require.NotNil(t, leased)
	require.Equal(t, deleted.QueuedJobID, leased.ID)
	require.NoError(t, engine.processJob(ctx, leased.ID))

	store, err := repo.GetStore(ctx, created.StoreID)
	require.NoError(t, err)
	require.Equal(t, StatusDeleted, store.Status)
	require.Nil(t, store.URL)
	require.Equal(t, 1, cli.deletes)
}

// TestProvisionShortCircuitsAfterTeardownRequested: a PROVISION job leased
// after its store moved to DELETING completes as a no-op success.
func TestProvisionShortCircuitsAfterTeardownRequested(t *testing.T) {
	pool := newTestPool(t)
	repo := NewRepo(pool)
	pkg := &fakePackageManager{}
	engine := newTestEngine(repo, pkg, &fakeClusterCLI{}, &fakeReadiness{})
	ctx := context.Background()

	store, err := repo.InsertStore(ctx, "11111111-1111-4111-8111-111111111111", EngineWooCommerce, nil, "ns-sc-1", "rel-sc-1")
	require.NoError(t, err)
	job, err := repo.InsertJob(ctx, store.ID, ActionProvision, 3)
	require.NoError(t, err)
	require.NoError(t, repo.SetStoreStatus(ctx, store.ID, StatusDeleting))

	leased, err := repo.LeaseNextJob(ctx, "worker-test")
	require.NoError(t, err)
	require.NotNil(t, leased)
	require.NoError(t, engine.processJob(ctx, leased.ID))

	got, err := repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, JobSucceeded, got.Status)
	require.NotNil(t, got.ErrorMessage)
	require.Equal(t, MsgProvisionSkippedStoreTeardown, *got.ErrorMessage)
	require.Equal(t, 0, pkg.installs, "a short-circuited provision must not touch the cluster")
}

// TestRecoverStaleLeaseOnFinalAttemptFailsTerminally: a lease that expires
// with no attempts left is not requeued (a re-lease would overrun the
// attempt cap) but failed in place, store transitioned to match.
func TestRecoverStaleLeaseOnFinalAttemptFailsTerminally(t *testing.T) {
	pool := newTestPool(t)
	repo := NewRepo(pool)
	engine := newTestEngine(repo, &fakePackageManager{}, &fakeClusterCLI{}, &fakeReadiness{})
	ctx := context.Background()

	store, err := repo.InsertStore(ctx, "22222222-2222-4222-8222-222222222222", EngineWooCommerce, nil, "ns-fx-1", "rel-fx-1")
	require.NoError(t, err)
	job, err := repo.InsertJob(ctx, store.ID, ActionProvision, 3)
	require.NoError(t, err)

	_, err = pool.Exec(ctx,
		`UPDATE provisioning_jobs
		 SET status = 'IN_PROGRESS', attempt = 3, locked_by = 'worker-dead', locked_at = now() - interval '1 hour'
		 WHERE id = $1`, job.ID)
	require.NoError(t, err)

	require.NoError(t, engine.recoverStale(ctx))

	got, err := repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, JobFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	require.Equal(t, MsgLeaseExpiredFinalAttempt, *got.ErrorMessage)
	require.NotNil(t, got.CompletedAt)

	gotStore, err := repo.GetStore(ctx, store.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, gotStore.Status)

	leased, err := repo.LeaseNextJob(ctx, "worker-test")
	require.NoError(t, err)
	require.Nil(t, leased, "a terminally failed job must not be leasable")
}
