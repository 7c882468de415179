package provisioning

import (
	"context"
	"sync"
	"time"

	"github.com/Jainayushgit/store-provisioner/errors"
	"github.com/Jainayushgit/store-provisioner/internal/util"
	"github.com/Jainayushgit/store-provisioner/logger"
)

// EngineConfig configures the polling loop.
type EngineConfig struct {
	WorkerID       string
	PollInterval   time.Duration
	LeaseDuration  time.Duration
	MaxConcurrency int
}

// Engine is the long-running component driving all async work: it
// recovers stale leases on startup, then polls for QUEUED jobs and dispatches
// them to bounded concurrent workers until its context is cancelled.
type Engine struct {
	repo     *Repo
	handlers *Handlers
	cfg      EngineConfig

	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup
}

// NewEngine constructs an Engine. cfg.MaxConcurrency and cfg.PollInterval
// must be positive; callers typically derive cfg from config.WorkerConfig.
func NewEngine(repo *Repo, handlers *Handlers, cfg EngineConfig) *Engine {
	return &Engine{
		repo:     repo,
		handlers: handlers,
		cfg:      cfg,
		inFlight: make(map[string]struct{}),
	}
}

// Run recovers stale leases, then polls until ctx is cancelled. On
// cancellation it drains outstanding workers before returning — an engine
// process that is killed instead leaves its leases to expire and be
// recovered by the next process's startup sweep.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.recoverStale(ctx); err != nil {
		return errors.Wrap(err, "recover stale leases")
	}

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	// First pass before the first tick, so recovered or pre-queued work
	// doesn't sit idle for a full poll interval.
	e.dispatchAvailable(ctx)

	for {
		select {
		case <-ctx.Done():
			e.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			e.dispatchAvailable(ctx)
		}
	}
}

// recoverStale is the startup sweep. Expired leases with attempts left are
// requeued (attempt untouched); a lease that expired on its final attempt is
// failed terminally here, with the same store transition a handler failure
// would have produced, since re-leasing it would push attempt past the cap.
func (e *Engine) recoverStale(ctx context.Context) error {
	exhausted, err := e.repo.StaleExhaustedJobs(ctx, e.cfg.LeaseDuration)
	if err != nil {
		return err
	}
	for _, job := range exhausted {
		_, storeStatus := failureOutcome(job.Action, job.Attempt, job.MaxAttempts, false)
		err := e.repo.RunTx(ctx, func(tx *Repo) error {
			if err := tx.CompleteJobFailed(ctx, job.ID, MsgLeaseExpiredFinalAttempt); err != nil {
				return err
			}
			if err := tx.SetStoreStatus(ctx, job.StoreID, storeStatus); err != nil {
				return err
			}
			if err := tx.SetStoreLastError(ctx, job.StoreID, MsgLeaseExpiredFinalAttempt); err != nil {
				return err
			}
			return tx.InsertEvent(ctx, job.StoreID, EventFailed, MsgLeaseExpiredFinalAttempt)
		})
		if err != nil {
			return err
		}
		logger.EngineWarnw("failed job with expired final-attempt lease",
			logger.FieldJobID, job.ID, logger.FieldStoreID, job.StoreID)
	}

	recovered, err := e.repo.RecoverStaleLeases(ctx, e.cfg.LeaseDuration)
	if err != nil {
		return err
	}
	if recovered > 0 {
		logger.EngineOpenInfow("recovered stale leases", logger.FieldCount, recovered)
	}
	return nil
}

// dispatchAvailable leases jobs to fill any free worker slots.
func (e *Engine) dispatchAvailable(ctx context.Context) {
	e.mu.Lock()
	free := e.cfg.MaxConcurrency - len(e.inFlight)
	e.mu.Unlock()

	for i := 0; i < free; i++ {
		job, err := e.repo.LeaseNextJob(ctx, e.cfg.WorkerID)
		if err != nil {
			logger.EngineErrorw("lease failed", logger.FieldError, err)
			return
		}
		if job == nil {
			return
		}
		logger.EngineDebugw("leased job",
			logger.FieldJobID, job.ID,
			logger.FieldAction, job.Action,
			logger.FieldAttempt, job.Attempt,
			logger.FieldWorkerID, e.cfg.WorkerID)
		e.spawn(ctx, job)
	}
}

// spawn runs processJob for job on its own goroutine, tracked in inFlight
// so dispatchAvailable's slot accounting stays correct.
func (e *Engine) spawn(ctx context.Context, job *ProvisioningJob) {
	e.mu.Lock()
	e.inFlight[job.ID] = struct{}{}
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.inFlight, job.ID)
			e.mu.Unlock()
		}()

		if err := e.processJob(ctx, job.ID); err != nil {
			logger.EngineErrorw("job processing failed", logger.FieldJobID, job.ID, logger.FieldError, err)
		}
	}()
}

// processJob reloads the job, short-circuits teardown races, runs
// the handler, and commits the outcome to job+store+event rows.
func (e *Engine) processJob(ctx context.Context, jobID string) error {
	job, err := e.repo.GetJob(ctx, jobID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "reload job")
	}

	store, err := e.repo.GetStore(ctx, job.StoreID)
	if errors.Is(err, ErrNotFound) {
		return e.repo.CompleteJobFailed(ctx, job.ID, MsgStoreNotFound)
	}
	if err != nil {
		return errors.Wrap(err, "reload store")
	}

	switch {
	case job.Action == ActionProvision && (store.Status == StatusDeleting || store.Status == StatusDeleted):
		return e.repo.CompleteJobSucceeded(ctx, job.ID, util.Ptr(MsgProvisionSkippedStoreTeardown))
	case job.Action == ActionDelete && store.Status == StatusDeleted:
		return e.repo.CompleteJobSucceeded(ctx, job.ID, nil)
	}

	handlerErr := e.handlers.Dispatch(ctx, job, store)
	if handlerErr == nil {
		logger.EngineInfow("job succeeded",
			logger.FieldJobID, job.ID,
			logger.FieldAction, job.Action,
			logger.FieldStoreID, store.ID)
		return e.repo.CompleteJobSucceeded(ctx, job.ID, nil)
	}

	return e.recordFailure(ctx, job, store, handlerErr)
}

// failureOutcome is the pure decision behind failure handling: given
// the job's action, its attempt/max_attempts counters, and whether the
// raised error is retryable, decide whether the job is exhausted and what
// store status the outcome should set. Kept free of I/O so it can be
// exercised without a database.
func failureOutcome(action Action, attempt, maxAttempts int, retryable bool) (exhausted bool, storeStatus Status) {
	exhausted = !retryable || attempt >= maxAttempts

	switch {
	case action == ActionProvision && exhausted:
		return exhausted, StatusFailed
	case action == ActionProvision:
		return exhausted, StatusQueued
	default:
		// DELETE never surfaces FAILED: teardown remains the terminal intent
		// whether the job is retried or exhausted.
		return exhausted, StatusDeleting
	}
}

// recordFailure classifies the error, decides
// retry-vs-exhaust, and commits job/store/event state in one transaction.
func (e *Engine) recordFailure(ctx context.Context, job *ProvisioningJob, store *Store, handlerErr error) error {
	message := handlerErr.Error()
	retryable := true
	if he, ok := IsHandlerError(handlerErr); ok {
		retryable = he.Retryable
	}
	exhausted, storeStatus := failureOutcome(job.Action, job.Attempt, job.MaxAttempts, retryable)

	return e.repo.RunTx(ctx, func(tx *Repo) error {
		if err := tx.SetStoreLastError(ctx, store.ID, message); err != nil {
			return err
		}

		if exhausted {
			if err := tx.CompleteJobFailed(ctx, job.ID, message); err != nil {
				return err
			}
		} else {
			if err := tx.RequeueJob(ctx, job.ID, message); err != nil {
				return err
			}
		}

		if err := tx.SetStoreStatus(ctx, store.ID, storeStatus); err != nil {
			return err
		}

		return tx.InsertEvent(ctx, store.ID, EventFailed, message)
	})
}
