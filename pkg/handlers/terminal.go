package handlers

import (
	"context"
	"fmt"
	"reflect"

	"github.com/setforge/setforge/pkg/bridge"
	"github.com/setforge/setforge/pkg/engine"
	"github.com/setforge/setforge/pkg/telemetry"
)

// TerminalHandler converges a terminal emulator settings document. The
// "payload" property holds the fragment to layer onto the document; keyed
// lists (profiles, keybindings, schemes) merge entry-by-entry the same way
// bridge resolution does.
type TerminalHandler struct {
	log *telemetry.Logger
}

// NewTerminalHandler creates the terminal handler.
func NewTerminalHandler(log *telemetry.Logger) *TerminalHandler {
	return &TerminalHandler{log: log.NewComponentLogger("handler.terminal")}
}

// Type implements engine.Handler.
func (h *TerminalHandler) Type() string { return engine.TypeTerminalSetting }

func terminalTarget(r *engine.Resource) (string, bridge.Payload, error) {
	file := r.Properties.String("file")
	if file == "" {
		return "", nil, fmt.Errorf("terminal setting %q has no file property", r.Name)
	}
	raw, ok := r.Properties["payload"].(map[string]interface{})
	if !ok {
		return "", nil, fmt.Errorf("terminal setting %q has no payload property", r.Name)
	}
	payload, ok := normalize(raw).(map[string]interface{})
	if !ok {
		return "", nil, fmt.Errorf("terminal setting %q has a non-object payload", r.Name)
	}
	return file, bridge.Payload(payload), nil
}

// Test implements engine.Handler. The desired state holds when merging the
// payload into the current document changes nothing.
func (h *TerminalHandler) Test(ctx context.Context, r *engine.Resource) (bool, error) {
	file, payload, err := terminalTarget(r)
	if err != nil {
		return false, err
	}
	doc, err := loadDocument(file)
	if err != nil {
		return false, err
	}
	merged := bridge.Merge(bridge.Payload(doc), payload)
	return reflect.DeepEqual(map[string]interface{}(merged), doc), nil
}

// Apply implements engine.Handler.
func (h *TerminalHandler) Apply(ctx context.Context, r *engine.Resource) (engine.ApplyOutcome, error) {
	file, payload, err := terminalTarget(r)
	if err != nil {
		return engine.ApplyOutcome{}, engine.NewApplyError("invalid terminal declaration", err).WithResource(r.Name)
	}
	doc, err := loadDocument(file)
	if err != nil {
		return engine.ApplyOutcome{}, engine.NewApplyError("terminal settings unreadable", err).WithResource(r.Name)
	}

	merged := bridge.Merge(bridge.Payload(doc), payload)
	if reflect.DeepEqual(map[string]interface{}(merged), doc) {
		return engine.ApplyOutcome{Changed: false, Message: "terminal settings already match"}, nil
	}

	if err := saveDocument(file, map[string]interface{}(merged)); err != nil {
		return engine.ApplyOutcome{}, engine.NewApplyError("failed to write terminal settings", err).WithResource(r.Name)
	}
	h.log.WithItem(r.Name, r.Type).Infof("updated terminal settings in %s", file)
	return engine.ApplyOutcome{Changed: true, Message: "terminal settings updated"}, nil
}

// CurrentState implements engine.Handler.
func (h *TerminalHandler) CurrentState(ctx context.Context, r *engine.Resource) (engine.StateSnapshot, error) {
	file, payload, err := terminalTarget(r)
	if err != nil {
		return nil, err
	}
	doc, err := loadDocument(file)
	if err != nil {
		return nil, err
	}
	if len(doc) == 0 {
		return engine.AbsentSnapshot(), nil
	}

	// Snapshot only the fields the payload cares about, keeping the diff
	// readable for large documents.
	snapshot := engine.StateSnapshot{"present": true}
	for field := range payload {
		if current, ok := doc[field]; ok {
			snapshot[field] = current
		}
	}
	return snapshot, nil
}
