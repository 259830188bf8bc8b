package handlers

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/setforge/setforge/pkg/engine"
	"github.com/setforge/setforge/pkg/telemetry"
)

// packageManager describes one supported package manager backend.
type packageManager struct {
	name       string
	binary     string
	checkArgs  func(pkg string) []string
	installArg func(pkg string) []string
}

var packageManagers = []packageManager{
	{
		name:       "apt",
		binary:     "apt-get",
		checkArgs:  func(pkg string) []string { return []string{"dpkg", "-s", pkg} },
		installArg: func(pkg string) []string { return []string{"apt-get", "install", "-y", pkg} },
	},
	{
		name:       "dnf",
		binary:     "dnf",
		checkArgs:  func(pkg string) []string { return []string{"rpm", "-q", pkg} },
		installArg: func(pkg string) []string { return []string{"dnf", "install", "-y", pkg} },
	},
	{
		name:       "brew",
		binary:     "brew",
		checkArgs:  func(pkg string) []string { return []string{"brew", "list", pkg} },
		installArg: func(pkg string) []string { return []string{"brew", "install", pkg} },
	},
}

// commandRunner executes one external command and reports whether it
// succeeded. Swappable in tests.
type commandRunner func(ctx context.Context, args []string) error

// lookPathFn resolves a binary on PATH. Swappable in tests.
type lookPathFn func(binary string) (string, error)

func execRunner(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// PackageHandler converges package resources through whichever supported
// package manager is present on the host. The "source" property can pin a
// specific manager; "system" (the default) picks the first one found.
type PackageHandler struct {
	log      *telemetry.Logger
	run      commandRunner
	lookPath lookPathFn
}

// NewPackageHandler creates the package handler.
func NewPackageHandler(log *telemetry.Logger) *PackageHandler {
	return &PackageHandler{
		log:      log.NewComponentLogger("handler.package"),
		run:      execRunner,
		lookPath: exec.LookPath,
	}
}

// Type implements engine.Handler.
func (h *PackageHandler) Type() string { return engine.TypePackage }

// packageID resolves the package identifier, falling back to the resource
// name.
func packageID(r *engine.Resource) string {
	return r.Properties.StringOr("package_id", r.Name)
}

// manager picks the backend for a resource.
func (h *PackageHandler) manager(r *engine.Resource) (*packageManager, error) {
	source := r.Properties.StringOr("source", "system")
	for i := range packageManagers {
		pm := &packageManagers[i]
		if source != "system" && pm.name != source {
			continue
		}
		if _, err := h.lookPath(pm.binary); err == nil {
			return pm, nil
		}
	}
	if source == "system" {
		return nil, fmt.Errorf("no supported package manager found on this host")
	}
	return nil, fmt.Errorf("package manager %q not available on this host", source)
}

// Test implements engine.Handler. An unreachable package manager answers
// false so the apply path decides.
func (h *PackageHandler) Test(ctx context.Context, r *engine.Resource) (bool, error) {
	pm, err := h.manager(r)
	if err != nil {
		return false, err
	}
	if err := h.run(ctx, pm.checkArgs(packageID(r))); err != nil {
		return false, nil
	}
	return true, nil
}

// Apply implements engine.Handler.
func (h *PackageHandler) Apply(ctx context.Context, r *engine.Resource) (engine.ApplyOutcome, error) {
	pm, err := h.manager(r)
	if err != nil {
		return engine.ApplyOutcome{}, engine.NewApplyError("package manager unavailable", err).WithResource(r.Name)
	}

	pkg := packageID(r)
	if err := h.run(ctx, pm.checkArgs(pkg)); err == nil {
		return engine.ApplyOutcome{Changed: false, Message: "already installed"}, nil
	}

	h.log.WithItem(r.Name, r.Type).Infof("installing %s via %s", pkg, pm.name)
	if err := h.run(ctx, pm.installArg(pkg)); err != nil {
		return engine.ApplyOutcome{}, engine.NewApplyError(
			fmt.Sprintf("failed to install %s via %s", pkg, pm.name), err).WithResource(r.Name)
	}
	return engine.ApplyOutcome{Changed: true, Message: fmt.Sprintf("installed %s", pkg)}, nil
}

// CurrentState implements engine.Handler.
func (h *PackageHandler) CurrentState(ctx context.Context, r *engine.Resource) (engine.StateSnapshot, error) {
	pm, err := h.manager(r)
	if err != nil {
		return engine.AbsentSnapshot(), nil
	}
	pkg := packageID(r)
	if err := h.run(ctx, pm.checkArgs(pkg)); err != nil {
		return engine.AbsentSnapshot(), nil
	}
	return engine.StateSnapshot{
		"present": true,
		"package": pkg,
		"manager": pm.name,
	}, nil
}
