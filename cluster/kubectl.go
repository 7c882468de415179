package cluster

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/Jainayushgit/store-provisioner/errors"
)

// Kubectl shells out to the cluster CLI for namespace-level teardown.
type Kubectl struct {
	// Binary is the kubectl executable path or name (looked up on PATH).
	Binary string
}

// NewKubectl returns a Kubectl adapter using the given binary (defaults to
// "kubectl" if empty).
func NewKubectl(binary string) *Kubectl {
	if binary == "" {
		binary = "kubectl"
	}
	return &Kubectl{Binary: binary}
}

// DeleteNamespace runs `kubectl delete namespace`. Idempotent: an already-absent
// namespace is treated as success.
func (k *Kubectl) DeleteNamespace(ctx context.Context, namespace string, timeout int) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, k.Binary, "delete", "namespace", namespace, "--ignore-not-found", "--wait")
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		return errors.Wrapf(err, "kubectl delete namespace timed out after %ds: %s", timeout, out)
	}
	if strings.Contains(string(out), "not found") {
		return nil
	}
	return errors.Wrapf(err, "kubectl delete namespace failed: %s", out)
}
