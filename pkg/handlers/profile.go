package handlers

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/setforge/setforge/pkg/engine"
	"github.com/setforge/setforge/pkg/telemetry"
)

// ProfileHandler converges shell profile lines: the "line" property must be
// present verbatim in the file named by "path". Lines are appended, never
// reordered, so user edits around them survive.
type ProfileHandler struct {
	log *telemetry.Logger

	// home overrides ~ expansion in tests.
	home string
}

// NewProfileHandler creates the profile handler.
func NewProfileHandler(log *telemetry.Logger) *ProfileHandler {
	return &ProfileHandler{log: log.NewComponentLogger("handler.profile")}
}

// Type implements engine.Handler.
func (h *ProfileHandler) Type() string { return engine.TypeProfileSetting }

func (h *ProfileHandler) profileTarget(r *engine.Resource) (path, line string, err error) {
	path = r.Properties.String("path")
	line = strings.TrimRight(r.Properties.String("line"), "\n")
	if path == "" {
		return "", "", fmt.Errorf("profile setting %q has no path property", r.Name)
	}
	if line == "" {
		return "", "", fmt.Errorf("profile setting %q has no line property", r.Name)
	}
	if strings.HasPrefix(path, "~") {
		home := h.home
		if home == "" {
			home, err = os.UserHomeDir()
			if err != nil {
				return "", "", fmt.Errorf("resolving home directory: %w", err)
			}
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path, line, nil
}

func containsLine(path, line string) (bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading profile: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimRight(scanner.Text(), " \t") == line {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// Test implements engine.Handler.
func (h *ProfileHandler) Test(ctx context.Context, r *engine.Resource) (bool, error) {
	path, line, err := h.profileTarget(r)
	if err != nil {
		return false, err
	}
	return containsLine(path, line)
}

// Apply implements engine.Handler.
func (h *ProfileHandler) Apply(ctx context.Context, r *engine.Resource) (engine.ApplyOutcome, error) {
	path, line, err := h.profileTarget(r)
	if err != nil {
		return engine.ApplyOutcome{}, engine.NewApplyError("invalid profile declaration", err).WithResource(r.Name)
	}

	present, err := containsLine(path, line)
	if err != nil {
		return engine.ApplyOutcome{}, engine.NewApplyError("profile unreadable", err).WithResource(r.Name)
	}
	if present {
		return engine.ApplyOutcome{Changed: false, Message: "line already present"}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return engine.ApplyOutcome{}, engine.NewApplyError("failed to create profile directory", err).WithResource(r.Name)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return engine.ApplyOutcome{}, engine.NewApplyError("failed to open profile", err).WithResource(r.Name)
	}
	defer func() { _ = f.Close() }()

	// Start on a fresh line when the file does not already end with one.
	prefix := ""
	if data, err := os.ReadFile(path); err == nil && len(data) > 0 && data[len(data)-1] != '\n' {
		prefix = "\n"
	}
	if _, err := f.WriteString(prefix + line + "\n"); err != nil {
		return engine.ApplyOutcome{}, engine.NewApplyError("failed to append profile line", err).WithResource(r.Name)
	}

	h.log.WithItem(r.Name, r.Type).Infof("appended line to %s", path)
	return engine.ApplyOutcome{Changed: true, Message: fmt.Sprintf("appended line to %s", path)}, nil
}

// CurrentState implements engine.Handler.
func (h *ProfileHandler) CurrentState(ctx context.Context, r *engine.Resource) (engine.StateSnapshot, error) {
	path, line, err := h.profileTarget(r)
	if err != nil {
		return nil, err
	}
	present, err := containsLine(path, line)
	if err != nil {
		return nil, err
	}
	if !present {
		return engine.AbsentSnapshot(), nil
	}
	return engine.StateSnapshot{
		"present": true,
		"path":    path,
		"line":    line,
	}, nil
}
