package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/setforge/setforge/pkg/engine"
	"github.com/setforge/setforge/pkg/telemetry"
)

// featureStateFile is the file under the state directory tracking which
// features have been turned on.
const featureStateFile = "features.json"

// FeatureHandler converges feature toggles. Enablement is tracked in a JSON
// state file; the "restart" property marks features whose activation takes
// effect after a reboot.
type FeatureHandler struct {
	log      *telemetry.Logger
	stateDir string
}

// NewFeatureHandler creates the feature handler over the given state
// directory.
func NewFeatureHandler(log *telemetry.Logger, stateDir string) *FeatureHandler {
	return &FeatureHandler{
		log:      log.NewComponentLogger("handler.feature"),
		stateDir: stateDir,
	}
}

// Type implements engine.Handler.
func (h *FeatureHandler) Type() string { return engine.TypeFeatureToggle }

func (h *FeatureHandler) statePath() string {
	return filepath.Join(h.stateDir, featureStateFile)
}

// featureID resolves the feature identifier, falling back to the resource
// name.
func featureID(r *engine.Resource) string {
	return r.Properties.StringOr("feature_id", r.Name)
}

func (h *FeatureHandler) loadState() (map[string]bool, error) {
	data, err := os.ReadFile(h.statePath())
	if os.IsNotExist(err) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading feature state: %w", err)
	}
	state := map[string]bool{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decoding feature state: %w", err)
	}
	return state, nil
}

func (h *FeatureHandler) saveState(state map[string]bool) error {
	if err := os.MkdirAll(h.stateDir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding feature state: %w", err)
	}
	tmp := h.statePath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing feature state: %w", err)
	}
	return os.Rename(tmp, h.statePath())
}

// Test implements engine.Handler.
func (h *FeatureHandler) Test(ctx context.Context, r *engine.Resource) (bool, error) {
	state, err := h.loadState()
	if err != nil {
		return false, err
	}
	return state[featureID(r)], nil
}

// Apply implements engine.Handler.
func (h *FeatureHandler) Apply(ctx context.Context, r *engine.Resource) (engine.ApplyOutcome, error) {
	id := featureID(r)
	state, err := h.loadState()
	if err != nil {
		return engine.ApplyOutcome{}, engine.NewApplyError("feature state unreadable", err).WithResource(r.Name)
	}
	if state[id] {
		return engine.ApplyOutcome{Changed: false, Message: "feature already enabled"}, nil
	}

	state[id] = true
	if err := h.saveState(state); err != nil {
		return engine.ApplyOutcome{}, engine.NewApplyError("failed to persist feature state", err).WithResource(r.Name)
	}

	h.log.WithItem(r.Name, r.Type).Infof("enabled feature %s", id)
	return engine.ApplyOutcome{
		Changed:         true,
		RestartRequired: r.Properties.Bool("restart"),
		Message:         fmt.Sprintf("enabled feature %s", id),
	}, nil
}

// CurrentState implements engine.Handler.
func (h *FeatureHandler) CurrentState(ctx context.Context, r *engine.Resource) (engine.StateSnapshot, error) {
	state, err := h.loadState()
	if err != nil {
		return nil, err
	}
	if !state[featureID(r)] {
		return engine.AbsentSnapshot(), nil
	}

	enabled := make([]string, 0, len(state))
	for id, on := range state {
		if on {
			enabled = append(enabled, id)
		}
	}
	sort.Strings(enabled)
	return engine.StateSnapshot{
		"present":          true,
		"feature":          featureID(r),
		"enabled_features": enabled,
	}, nil
}
