package cluster

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Jainayushgit/store-provisioner/errors"
)

// execGrace pads the process-exec deadline past the tool's own timeout.
const execGrace = 15 * time.Second

// Helm shells out to the helm binary to install and remove chart releases.
type Helm struct {
	// Binary is the helm executable path or name (looked up on PATH).
	Binary string
}

// NewHelm returns a Helm adapter using the given binary (defaults to "helm"
// if empty).
func NewHelm(binary string) *Helm {
	if binary == "" {
		binary = "helm"
	}
	return &Helm{Binary: binary}
}

// UpgradeInstall runs `helm upgrade --install --create-namespace -f <values>`,
// serializing values to a temp YAML file in the tool's input format.
func (h *Helm) UpgradeInstall(ctx context.Context, release, namespace, chartPath string, values map[string]interface{}, timeout int) error {
	valuesPath, err := writeValuesFile(values)
	if err != nil {
		return errors.Wrap(err, "write helm values file")
	}
	defer os.Remove(valuesPath)

	// The exec deadline sits slightly past helm's own --timeout so helm
	// gets to report its failure instead of being killed mid-flight.
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second+execGrace)
	defer cancel()

	cmd := exec.CommandContext(ctx, h.Binary, "upgrade", release, chartPath,
		"--install",
		"--create-namespace",
		"--namespace", namespace,
		"--values", valuesPath,
		"--wait",
		"--timeout", fmt.Sprintf("%ds", timeout),
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.Wrapf(err, "helm upgrade --install timed out after %ds: %s", timeout, out)
		}
		return errors.Wrapf(err, "helm upgrade --install failed: %s", out)
	}
	return nil
}

// Uninstall runs `helm uninstall`, blocking until removal or timeout.
func (h *Helm) Uninstall(ctx context.Context, release, namespace string, timeout int) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second+execGrace)
	defer cancel()

	cmd := exec.CommandContext(ctx, h.Binary, "uninstall", release,
		"--namespace", namespace,
		"--wait",
		"--timeout", fmt.Sprintf("%ds", timeout),
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.Wrapf(err, "helm uninstall timed out after %ds: %s", timeout, out)
		}
		return errors.Wrapf(err, "helm uninstall failed: %s", out)
	}
	return nil
}

// writeValuesFile serializes values to a temp YAML file for `helm -f`.
func writeValuesFile(values map[string]interface{}) (string, error) {
	data, err := yaml.Marshal(values)
	if err != nil {
		return "", errors.Wrap(err, "marshal helm values")
	}

	f, err := os.CreateTemp("", "provisioner-values-*.yaml")
	if err != nil {
		return "", errors.Wrap(err, "create values temp file")
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return "", errors.Wrap(err, "write values temp file")
	}
	return f.Name(), nil
}
