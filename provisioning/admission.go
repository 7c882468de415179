package provisioning

import (
	"context"

	"github.com/google/uuid"

	"github.com/Jainayushgit/store-provisioner/errors"
)

// AdmissionConfig carries the policy knobs admission enforces.
type AdmissionConfig struct {
	MaxActiveStores int
	MaxAttempts     int
}

// Admission translates external create/delete requests into atomic
// insertions (or idempotent lookups) against the durable store.
// It never performs side effects itself — those belong to the engine.
type Admission struct {
	repo    *Repo
	limiter *RateLimiter
	cfg     AdmissionConfig
}

// NewAdmission wires the admission shim against its collaborators.
func NewAdmission(repo *Repo, limiter *RateLimiter, cfg AdmissionConfig) *Admission {
	return &Admission{repo: repo, limiter: limiter, cfg: cfg}
}

// CreateResult is the response envelope for a successful create.
type CreateResult struct {
	StoreID     string
	Status      Status
	Namespace   string
	QueuedJobID string
}

// Create admits a new store: rate limit, engine gate, capacity cap, then one
// transaction inserting the store, its PROVISION job, and the first event.
func (a *Admission) Create(ctx context.Context, engine StoreEngine, displayName *string, callerIdentity string) (*CreateResult, error) {
	permitted, _, err := a.limiter.Allow(ctx, "create:"+callerIdentity)
	if err != nil {
		return nil, errors.Wrap(err, "create: rate limit check")
	}
	if !permitted {
		return nil, ErrRateLimited
	}

	if !engine.IsKnown() {
		return nil, errors.Wrapf(ErrBadRequest, "unknown engine %q", engine)
	}
	if engine == EngineMedusa {
		return nil, ErrUnsupportedEngine
	}

	var result *CreateResult
	err = a.repo.RunTx(ctx, func(tx *Repo) error {
		active, err := tx.CountActiveStores(ctx)
		if err != nil {
			return err
		}
		if active >= a.cfg.MaxActiveStores {
			return ErrCapacityExhausted
		}

		id := uuid.NewString()
		name := "store-" + id

		store, err := tx.InsertStore(ctx, id, engine, displayName, name, name)
		if err != nil {
			return err
		}

		job, err := tx.InsertJob(ctx, store.ID, ActionProvision, a.cfg.MaxAttempts)
		if err != nil {
			return err
		}

		if err := tx.InsertEvent(ctx, store.ID, EventQueued, "queued"); err != nil {
			return err
		}

		result = &CreateResult{
			StoreID:     store.ID,
			Status:      store.Status,
			Namespace:   store.Namespace,
			QueuedJobID: job.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteResult is the response envelope for delete, shared with the
// idempotent-replay path.
type DeleteResult struct {
	StoreID     string
	Status      Status
	Namespace   string
	QueuedJobID string
}

// Delete queues teardown for a store, including the idempotent replay
// when a store is already DELETING/DELETED with a prior DELETE job.
func (a *Admission) Delete(ctx context.Context, storeID, callerIdentity string) (*DeleteResult, error) {
	permitted, _, err := a.limiter.Allow(ctx, "delete:"+callerIdentity)
	if err != nil {
		return nil, errors.Wrap(err, "delete: rate limit check")
	}
	if !permitted {
		return nil, ErrRateLimited
	}

	var result *DeleteResult
	err = a.repo.RunTx(ctx, func(tx *Repo) error {
		store, err := tx.GetStoreForUpdate(ctx, storeID)
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if store.Status == StatusDeleting || store.Status == StatusDeleted {
			prior, err := tx.LatestDeleteJob(ctx, store.ID)
			if err != nil {
				return err
			}
			if prior != nil {
				// Replay returns the same envelope shape as the first call,
				// status DELETING included, even if teardown has since finished.
				result = &DeleteResult{
					StoreID:     store.ID,
					Status:      StatusDeleting,
					Namespace:   store.Namespace,
					QueuedJobID: prior.ID,
				}
				return nil
			}
		}

		queued, err := tx.QueuedProvisionJobs(ctx, store.ID)
		if err != nil {
			return err
		}
		for _, job := range queued {
			if err := tx.CancelJob(ctx, job.ID, MsgProvisionCancelledDeleteRequested); err != nil {
				return err
			}
		}

		if err := tx.SetStoreStatus(ctx, store.ID, StatusDeleting); err != nil {
			return err
		}

		job, err := tx.InsertJob(ctx, store.ID, ActionDelete, a.cfg.MaxAttempts)
		if err != nil {
			return err
		}

		if err := tx.InsertEvent(ctx, store.ID, EventDeleteQueued, "delete_queued"); err != nil {
			return err
		}

		result = &DeleteResult{
			StoreID:     store.ID,
			Status:      StatusDeleting,
			Namespace:   store.Namespace,
			QueuedJobID: job.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
