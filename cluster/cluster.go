// Package cluster wraps the external collaborators the job engine calls
// into: a package-manager binary (helm) for install/uninstall, a cluster
// CLI (kubectl) for namespace teardown, and an HTTP readiness probe. All
// three are process-exec or network adapters with no state of their own;
// the engine's job handlers are the only caller. A readiness timeout and a
// failed uninstall are not fatal to a job; other failures are.
package cluster

import (
	"context"
)

// PackageManager installs and removes chart releases.
type PackageManager interface {
	// UpgradeInstall creates namespace if missing and blocks until the
	// release is ready or timeout elapses.
	UpgradeInstall(ctx context.Context, release, namespace, chartPath string, values map[string]interface{}, timeout int) error
	// Uninstall removes a release, blocking until removal or timeout.
	Uninstall(ctx context.Context, release, namespace string, timeout int) error
}

// ClusterCLI performs namespace-level operations outside the package manager's reach.
type ClusterCLI interface {
	// DeleteNamespace is idempotent: it must succeed if the namespace is
	// already absent.
	DeleteNamespace(ctx context.Context, namespace string, timeout int) error
}

// Readiness probes an HTTP endpoint until it responds or times out.
type Readiness interface {
	// WaitForHTTPOK returns nil on the first response with status < 500,
	// or a *ReadinessTimeoutError once timeout elapses.
	WaitForHTTPOK(ctx context.Context, url string, timeout, poll int) error
}
