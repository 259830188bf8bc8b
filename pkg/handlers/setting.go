package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/setforge/setforge/pkg/engine"
	"github.com/setforge/setforge/pkg/telemetry"
)

// SettingHandler converges single values inside a JSON settings document.
// Properties: "file" names the document, "path" the slash-separated node
// path within it, "name" the key and "value" the desired value.
type SettingHandler struct {
	log *telemetry.Logger
}

// NewSettingHandler creates the setting handler.
func NewSettingHandler(log *telemetry.Logger) *SettingHandler {
	return &SettingHandler{log: log.NewComponentLogger("handler.setting")}
}

// Type implements engine.Handler.
func (h *SettingHandler) Type() string { return engine.TypeSetting }

type settingRef struct {
	file  string
	path  []string
	name  string
	value interface{}
}

func settingFromResource(r *engine.Resource) (settingRef, error) {
	ref := settingRef{
		file:  r.Properties.String("file"),
		name:  r.Properties.String("name"),
		value: r.Properties["value"],
	}
	if ref.file == "" {
		return ref, fmt.Errorf("setting %q has no file property", r.Name)
	}
	if ref.name == "" {
		return ref, fmt.Errorf("setting %q has no name property", r.Name)
	}
	if p := r.Properties.String("path"); p != "" {
		ref.path = strings.Split(strings.Trim(p, "/"), "/")
	}
	return ref, nil
}

func loadDocument(file string) (map[string]interface{}, error) {
	data, err := os.ReadFile(file)
	if os.IsNotExist(err) {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings document: %w", err)
	}
	doc := map[string]interface{}{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding settings document %s: %w", file, err)
	}
	return doc, nil
}

func saveDocument(file string, doc map[string]interface{}) error {
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings document: %w", err)
	}
	tmp := file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing settings document: %w", err)
	}
	return os.Rename(tmp, file)
}

// node walks the path, optionally creating missing intermediate maps.
func node(doc map[string]interface{}, path []string, create bool) map[string]interface{} {
	current := doc
	for _, segment := range path {
		next, ok := current[segment].(map[string]interface{})
		if !ok {
			if !create {
				return nil
			}
			next = map[string]interface{}{}
			current[segment] = next
		}
		current = next
	}
	return current
}

// normalize round-trips a value through JSON so declared values compare
// equal to decoded ones (ints vs float64, typed slices vs []interface{}).
func normalize(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// Test implements engine.Handler.
func (h *SettingHandler) Test(ctx context.Context, r *engine.Resource) (bool, error) {
	ref, err := settingFromResource(r)
	if err != nil {
		return false, err
	}
	doc, err := loadDocument(ref.file)
	if err != nil {
		return false, err
	}
	target := node(doc, ref.path, false)
	if target == nil {
		return false, nil
	}
	current, ok := target[ref.name]
	if !ok {
		return false, nil
	}
	return reflect.DeepEqual(normalize(current), normalize(ref.value)), nil
}

// Apply implements engine.Handler.
func (h *SettingHandler) Apply(ctx context.Context, r *engine.Resource) (engine.ApplyOutcome, error) {
	ref, err := settingFromResource(r)
	if err != nil {
		return engine.ApplyOutcome{}, engine.NewApplyError("invalid setting declaration", err).WithResource(r.Name)
	}
	doc, err := loadDocument(ref.file)
	if err != nil {
		return engine.ApplyOutcome{}, engine.NewApplyError("settings document unreadable", err).WithResource(r.Name)
	}

	target := node(doc, ref.path, true)
	if current, ok := target[ref.name]; ok && reflect.DeepEqual(normalize(current), normalize(ref.value)) {
		return engine.ApplyOutcome{Changed: false, Message: "setting already set"}, nil
	}

	target[ref.name] = normalize(ref.value)
	if err := saveDocument(ref.file, doc); err != nil {
		return engine.ApplyOutcome{}, engine.NewApplyError("failed to write settings document", err).WithResource(r.Name)
	}

	h.log.WithItem(r.Name, r.Type).Infof("set %s/%s", strings.Join(ref.path, "/"), ref.name)
	return engine.ApplyOutcome{Changed: true, Message: fmt.Sprintf("set %s", ref.name)}, nil
}

// CurrentState implements engine.Handler.
func (h *SettingHandler) CurrentState(ctx context.Context, r *engine.Resource) (engine.StateSnapshot, error) {
	ref, err := settingFromResource(r)
	if err != nil {
		return nil, err
	}
	doc, err := loadDocument(ref.file)
	if err != nil {
		return nil, err
	}
	target := node(doc, ref.path, false)
	if target == nil {
		return engine.AbsentSnapshot(), nil
	}
	current, ok := target[ref.name]
	if !ok {
		return engine.AbsentSnapshot(), nil
	}
	return engine.StateSnapshot{
		"present": true,
		"name":    ref.name,
		"value":   current,
	}, nil
}
