package provisioning

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Jainayushgit/store-provisioner/db"
	"github.com/Jainayushgit/store-provisioner/errors"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so Repo methods
// work identically whether called standalone or inside RunTx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Repo is the persistence layer for the stores, provisioning_jobs, and
// store_events tables (rate_limit_buckets belongs to RateLimiter). All mutation
// happens through short transactions (admission, progress writes, terminal
// writes) or the single leasing transaction; Repo itself holds no
// transaction state — RunTx hands a transaction-bound Repo to its callback.
type Repo struct {
	pool *pgxpool.Pool
	q    Querier
}

// NewRepo creates a Repo backed by pool for standalone (non-transactional) calls.
func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool, q: pool}
}

// RunTx runs fn inside a single transaction, committing on nil error and
// rolling back otherwise. fn receives a Repo bound to the transaction so
// that every read and write inside fn participates in the same commit.
func (r *Repo) RunTx(ctx context.Context, fn func(tx *Repo) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&Repo{pool: r.pool, q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

const storeColumns = `id, engine, display_name, namespace, release_name, status, url, last_error, created_at, updated_at`

func scanStore(row pgx.Row) (*Store, error) {
	var s Store
	if err := row.Scan(
		&s.ID, &s.Engine, &s.DisplayName, &s.Namespace, &s.ReleaseName,
		&s.Status, &s.URL, &s.LastError, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

// InsertStore creates a Store row in QUEUED status under a caller-supplied
// id, so namespace/release_name (which are derived from the id) can
// be computed before the row exists.
func (r *Repo) InsertStore(ctx context.Context, id string, engine StoreEngine, displayName *string, namespace, releaseName string) (*Store, error) {
	row := r.q.QueryRow(ctx,
		`INSERT INTO stores (id, engine, display_name, namespace, release_name, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+storeColumns,
		id, engine, displayName, namespace, releaseName, StatusQueued,
	)
	s, err := scanStore(row)
	if err != nil {
		return nil, errors.Wrap(err, "insert store")
	}
	return s, nil
}

// GetStore loads a Store by id. Returns ErrNotFound if absent.
func (r *Repo) GetStore(ctx context.Context, id string) (*Store, error) {
	row := r.q.QueryRow(ctx, `SELECT `+storeColumns+` FROM stores WHERE id = $1`, id)
	s, err := scanStore(row)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get store")
	}
	return s, nil
}

// GetStoreForUpdate loads a Store by id with a row lock, for use inside a
// transaction that is about to mutate it (admission's delete path).
func (r *Repo) GetStoreForUpdate(ctx context.Context, id string) (*Store, error) {
	row := r.q.QueryRow(ctx, `SELECT `+storeColumns+` FROM stores WHERE id = $1 FOR UPDATE`, id)
	s, err := scanStore(row)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get store for update")
	}
	return s, nil
}

// ListStores returns every store, newest first.
func (r *Repo) ListStores(ctx context.Context) ([]*Store, error) {
	rows, err := r.q.Query(ctx, `SELECT `+storeColumns+` FROM stores ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list stores")
	}
	defer rows.Close()

	var out []*Store
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan store")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountActiveStores counts stores in {QUEUED, PROVISIONING, READY, DELETING},
// the cap enforced against max_active_stores at admission.
func (r *Repo) CountActiveStores(ctx context.Context) (int, error) {
	var count int
	err := r.q.QueryRow(ctx,
		`SELECT count(*) FROM stores WHERE status IN ($1, $2, $3, $4)`,
		StatusQueued, StatusProvisioning, StatusReady, StatusDeleting,
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "count active stores")
	}
	return count, nil
}

// SetStoreStatus updates a store's status alone; url and last_error are
// touched only by SetStoreReady/SetStoreDeleted/SetStoreLastError.
func (r *Repo) SetStoreStatus(ctx context.Context, id string, status Status) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE stores SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return errors.Wrap(err, "set store status")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStoreReady sets a store's terminal-happy-path fields in one statement:
// status=READY, url, and last_error cleared.
func (r *Repo) SetStoreReady(ctx context.Context, id string, url string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE stores SET status = $2, url = $3, last_error = NULL, updated_at = now() WHERE id = $1`,
		id, StatusReady, url,
	)
	if err != nil {
		return errors.Wrap(err, "set store ready")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStoreDeleted sets status=DELETED and clears url.
func (r *Repo) SetStoreDeleted(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE stores SET status = $2, url = NULL, updated_at = now() WHERE id = $1`,
		id, StatusDeleted,
	)
	if err != nil {
		return errors.Wrap(err, "set store deleted")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStoreLastError records the most recent failure message on a store
// without changing its status.
func (r *Repo) SetStoreLastError(ctx context.Context, id, message string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE stores SET last_error = $2, updated_at = now() WHERE id = $1`,
		id, message,
	)
	if err != nil {
		return errors.Wrap(err, "set store last error")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const jobColumns = `id, store_id, action, status, attempt, max_attempts, locked_by, locked_at, error_message, created_at, updated_at, completed_at`

func scanJob(row pgx.Row) (*ProvisioningJob, error) {
	var j ProvisioningJob
	if err := row.Scan(
		&j.ID, &j.StoreID, &j.Action, &j.Status, &j.Attempt, &j.MaxAttempts,
		&j.LockedBy, &j.LockedAt, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt,
	); err != nil {
		return nil, err
	}
	return &j, nil
}

// InsertJob creates a QUEUED ProvisioningJob against storeID.
func (r *Repo) InsertJob(ctx context.Context, storeID string, action Action, maxAttempts int) (*ProvisioningJob, error) {
	row := r.q.QueryRow(ctx,
		`INSERT INTO provisioning_jobs (store_id, action, status, max_attempts)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+jobColumns,
		storeID, action, JobQueued, maxAttempts,
	)
	j, err := scanJob(row)
	if err != nil {
		return nil, errors.Wrap(err, "insert job")
	}
	return j, nil
}

// GetJob loads a ProvisioningJob by id.
func (r *Repo) GetJob(ctx context.Context, id string) (*ProvisioningJob, error) {
	row := r.q.QueryRow(ctx, `SELECT `+jobColumns+` FROM provisioning_jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get job")
	}
	return j, nil
}

// LatestDeleteJob returns the most recent DELETE job for a store, or nil if
// none exists. Used by the idempotent delete path.
func (r *Repo) LatestDeleteJob(ctx context.Context, storeID string) (*ProvisioningJob, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM provisioning_jobs
		 WHERE store_id = $1 AND action = $2
		 ORDER BY created_at DESC LIMIT 1`,
		storeID, ActionDelete,
	)
	j, err := scanJob(row)
	if db.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "latest delete job")
	}
	return j, nil
}

// QueuedProvisionJobs returns every QUEUED PROVISION job for a store, locked
// for update — used by delete() to cancel pending provisions atomically.
func (r *Repo) QueuedProvisionJobs(ctx context.Context, storeID string) ([]*ProvisioningJob, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+jobColumns+` FROM provisioning_jobs
		 WHERE store_id = $1 AND action = $2 AND status = $3
		 FOR UPDATE`,
		storeID, ActionProvision, JobQueued,
	)
	if err != nil {
		return nil, errors.Wrap(err, "queued provision jobs")
	}
	defer rows.Close()

	var out []*ProvisioningJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan job")
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// CancelJob fails a QUEUED job with message, stamping completed_at.
func (r *Repo) CancelJob(ctx context.Context, id, message string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE provisioning_jobs
		 SET status = $2, error_message = $3, completed_at = now(), updated_at = now()
		 WHERE id = $1`,
		id, JobFailed, message,
	)
	if err != nil {
		return errors.Wrap(err, "cancel job")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LeaseNextJob atomically selects the oldest QUEUED job,
// skipping rows locked by a concurrent leaser, marks it IN_PROGRESS under
// workerID, and increments attempt. Returns nil, nil if no job is queued.
func (r *Repo) LeaseNextJob(ctx context.Context, workerID string) (*ProvisioningJob, error) {
	row := r.q.QueryRow(ctx,
		`UPDATE provisioning_jobs SET
			status = $1,
			locked_by = $2,
			locked_at = now(),
			attempt = attempt + 1,
			updated_at = now()
		 WHERE id = (
			SELECT id FROM provisioning_jobs
			WHERE status = $3
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+jobColumns,
		JobInProgress, workerID, JobQueued,
	)
	j, err := scanJob(row)
	if db.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "lease next job")
	}
	return j, nil
}

// RecoverStaleLeases is the startup sweep: every IN_PROGRESS job whose lease
// has no timestamp or has expired, and which still has attempts left, is
// requeued with its attempt counter untouched. Returns the number of jobs
// recovered. Jobs whose expired lease was their final attempt are handled
// by StaleExhaustedJobs instead, so a re-lease can never push attempt past
// max_attempts.
func (r *Repo) RecoverStaleLeases(ctx context.Context, leaseDuration time.Duration) (int64, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE provisioning_jobs SET
			status = $1,
			locked_by = NULL,
			locked_at = NULL,
			updated_at = now()
		 WHERE status = $2
		   AND attempt < max_attempts
		   AND (locked_at IS NULL OR locked_at < now() - ($3 * interval '1 second'))`,
		JobQueued, JobInProgress, leaseDuration.Seconds(),
	)
	if err != nil {
		return 0, errors.Wrap(err, "recover stale leases")
	}
	return tag.RowsAffected(), nil
}

// StaleExhaustedJobs returns IN_PROGRESS jobs whose lease has expired with
// no attempts left. The engine fails these terminally instead of requeuing.
func (r *Repo) StaleExhaustedJobs(ctx context.Context, leaseDuration time.Duration) ([]*ProvisioningJob, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+jobColumns+` FROM provisioning_jobs
		 WHERE status = $1
		   AND attempt >= max_attempts
		   AND (locked_at IS NULL OR locked_at < now() - ($2 * interval '1 second'))`,
		JobInProgress, leaseDuration.Seconds(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "stale exhausted jobs")
	}
	defer rows.Close()

	var out []*ProvisioningJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan job")
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// RequeueJob re-queues a job after a retryable handler failure, clearing its
// lease so the next LeaseNextJob call increments attempt again.
func (r *Repo) RequeueJob(ctx context.Context, id, errMsg string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE provisioning_jobs SET
			status = $2,
			locked_by = NULL,
			locked_at = NULL,
			error_message = $3,
			updated_at = now()
		 WHERE id = $1`,
		id, JobQueued, errMsg,
	)
	if err != nil {
		return errors.Wrap(err, "requeue job")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteJobFailed marks a job permanently FAILED after attempts exhaust,
// or after a non-retryable error (StoreNotFound, UnknownAction).
func (r *Repo) CompleteJobFailed(ctx context.Context, id, errMsg string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE provisioning_jobs SET
			status = $2,
			error_message = $3,
			completed_at = now(),
			updated_at = now()
		 WHERE id = $1`,
		id, JobFailed, errMsg,
	)
	if err != nil {
		return errors.Wrap(err, "complete job failed")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteJobSucceeded marks a job SUCCEEDED, optionally recording a
// non-fatal note in error_message (used by the PROVISION short-circuit
// when teardown was already requested).
func (r *Repo) CompleteJobSucceeded(ctx context.Context, id string, note *string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE provisioning_jobs SET
			status = $2,
			error_message = $3,
			completed_at = now(),
			updated_at = now()
		 WHERE id = $1`,
		id, JobSucceeded, note,
	)
	if err != nil {
		return errors.Wrap(err, "complete job succeeded")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertEvent appends a StoreEvent.
func (r *Repo) InsertEvent(ctx context.Context, storeID, eventType, message string) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO store_events (store_id, event_type, message) VALUES ($1, $2, $3)`,
		storeID, eventType, message,
	)
	if err != nil {
		return errors.Wrap(err, "insert event")
	}
	return nil
}

// ListEvents returns the latest limit events for a store, newest first.
func (r *Repo) ListEvents(ctx context.Context, storeID string, limit int) ([]*StoreEvent, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, store_id, event_type, message, created_at
		 FROM store_events WHERE store_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`,
		storeID, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list events")
	}
	defer rows.Close()

	var out []*StoreEvent
	for rows.Next() {
		var e StoreEvent
		if err := rows.Scan(&e.ID, &e.StoreID, &e.EventType, &e.Message, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
