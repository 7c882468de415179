package provisioning

import (
	"context"
	"fmt"

	"github.com/Jainayushgit/store-provisioner/cluster"
	"github.com/Jainayushgit/store-provisioner/errors"
	"github.com/Jainayushgit/store-provisioner/logger"
)

// HandlerConfig carries the external-collaborator parameters a handler needs
// that aren't stored on the Store/ProvisioningJob rows themselves.
type HandlerConfig struct {
	ChartPath                   string
	HelmTimeoutSeconds          int
	KubectlDeleteTimeoutSeconds int
	ReadinessTimeoutSeconds     int
	ReadinessPollSeconds        int
	LocalDomain                 string
}

// Handlers implements the PROVISION and DELETE job bodies,
// dispatched by the engine's processJob.
type Handlers struct {
	repo       *Repo
	pkgMgr     cluster.PackageManager
	clusterCLI cluster.ClusterCLI
	readiness  cluster.Readiness
	cfg        HandlerConfig
}

// NewHandlers wires the handler set against its collaborators.
func NewHandlers(repo *Repo, pkgMgr cluster.PackageManager, clusterCLI cluster.ClusterCLI, readiness cluster.Readiness, cfg HandlerConfig) *Handlers {
	return &Handlers{repo: repo, pkgMgr: pkgMgr, clusterCLI: clusterCLI, readiness: readiness, cfg: cfg}
}

// Dispatch runs the handler for job.Action against store, returning a
// *HandlerError with code=ErrUnknownAction for any action this engine
// version doesn't recognize.
func (h *Handlers) Dispatch(ctx context.Context, job *ProvisioningJob, store *Store) error {
	switch job.Action {
	case ActionProvision:
		return h.provision(ctx, store)
	case ActionDelete:
		return h.delete(ctx, store)
	default:
		return NewHandlerError(ErrUnknownAction, errors.Newf("unknown job action %q", job.Action))
	}
}

// storeValues builds the chart values blob for a WooCommerce/Medusa
// installation: identity fields plus the ingress shape the chart needs to
// route the store's own host through the shared ingress controller with a
// short-TTL cache policy, since every tenant store shares one controller.
func storeValues(store *Store, host string) map[string]interface{} {
	return map[string]interface{}{
		"storeId":     store.ID,
		"releaseName": store.ReleaseName,
		"namespace":   store.Namespace,
		"ingress": map[string]interface{}{
			"host":      host,
			"className": "nginx",
			"annotations": map[string]interface{}{
				"nginx.ingress.kubernetes.io/proxy-cache-valid": "200 5m",
				"nginx.ingress.kubernetes.io/configuration-snippet": "add_header Cache-Control \"public, max-age=300\";",
			},
		},
	}
}

// provision installs the store release and drives it to READY.
func (h *Handlers) provision(ctx context.Context, store *Store) error {
	if store.Engine == EngineMedusa {
		// Defensive: admission already refuses medusa.
		return NewHandlerError(ErrExternalCommandFailed, errors.New("Medusa is not enabled"))
	}

	if err := h.repo.RunTx(ctx, func(tx *Repo) error {
		if err := tx.SetStoreStatus(ctx, store.ID, StatusProvisioning); err != nil {
			return err
		}
		return tx.InsertEvent(ctx, store.ID, EventInstallStarted, "installation started")
	}); err != nil {
		return errors.Wrap(err, "provision: mark provisioning")
	}

	host := fmt.Sprintf("store-%s.%s", store.ID, h.cfg.LocalDomain)
	url := "http://" + host

	values := storeValues(store, host)
	if err := h.pkgMgr.UpgradeInstall(ctx, store.ReleaseName, store.Namespace, h.cfg.ChartPath, values, h.cfg.HelmTimeoutSeconds); err != nil {
		return NewHandlerError(ErrExternalCommandFailed, err)
	}

	if err := h.readiness.WaitForHTTPOK(ctx, url, h.cfg.ReadinessTimeoutSeconds, h.cfg.ReadinessPollSeconds); err != nil {
		var rte *cluster.ReadinessTimeoutError
		if errors.As(err, &rte) {
			// Non-fatal: install success is authoritative.
			logger.EngineWarnw("readiness probe timed out, continuing", logger.FieldStoreID, store.ID, "url", url)
			if evErr := h.repo.InsertEvent(ctx, store.ID, EventReadinessWarning, err.Error()); evErr != nil {
				return errors.Wrap(evErr, "provision: record readiness warning")
			}
		} else {
			return errors.Wrap(err, "provision: readiness probe")
		}
	}

	if err := h.repo.RunTx(ctx, func(tx *Repo) error {
		if err := tx.SetStoreReady(ctx, store.ID, url); err != nil {
			return err
		}
		return tx.InsertEvent(ctx, store.ID, EventReady, "store ready")
	}); err != nil {
		return errors.Wrap(err, "provision: mark ready")
	}

	return nil
}

// delete tears the store down and drives it to DELETED.
func (h *Handlers) delete(ctx context.Context, store *Store) error {
	if err := h.repo.RunTx(ctx, func(tx *Repo) error {
		if err := tx.SetStoreStatus(ctx, store.ID, StatusDeleting); err != nil {
			return err
		}
		return tx.InsertEvent(ctx, store.ID, EventDeleteStarted, "teardown started")
	}); err != nil {
		return errors.Wrap(err, "delete: mark deleting")
	}

	if err := h.pkgMgr.Uninstall(ctx, store.ReleaseName, store.Namespace, h.cfg.HelmTimeoutSeconds); err != nil {
		// Swallowed intentionally: namespace delete below is authoritative.
		logger.EngineWarnw("helm uninstall failed, proceeding to namespace delete", logger.FieldStoreID, store.ID, logger.FieldError, err)
	}

	if err := h.clusterCLI.DeleteNamespace(ctx, store.Namespace, h.cfg.KubectlDeleteTimeoutSeconds); err != nil {
		return NewHandlerError(ErrExternalCommandFailed, err)
	}

	if err := h.repo.RunTx(ctx, func(tx *Repo) error {
		if err := tx.SetStoreDeleted(ctx, store.ID); err != nil {
			return err
		}
		return tx.InsertEvent(ctx, store.ID, EventDeleted, "store deleted")
	}); err != nil {
		return errors.Wrap(err, "delete: mark deleted")
	}

	return nil
}
