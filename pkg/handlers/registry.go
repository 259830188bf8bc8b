package handlers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/setforge/setforge/pkg/engine"
	"github.com/setforge/setforge/pkg/telemetry"
)

// Registry is a thread-safe handler registry keyed by resource type.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]engine.Handler
}

// NewRegistry creates a registry with the given handlers pre-registered.
func NewRegistry(handlers ...engine.Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[string]engine.Handler)}
	for _, h := range handlers {
		if err := r.Register(h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry wires up the built-in handlers. stateDir is where the
// feature and setting handlers keep their state files.
func DefaultRegistry(log *telemetry.Logger, stateDir string) (*Registry, error) {
	if log == nil {
		log = telemetry.NopLogger()
	}
	return NewRegistry(
		NewPackageHandler(log),
		NewFeatureHandler(log, stateDir),
		NewSettingHandler(log),
		NewTerminalHandler(log),
		NewProfileHandler(log),
	)
}

// Register adds a handler, rejecting duplicate types.
func (r *Registry) Register(h engine.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[h.Type()]; exists {
		return fmt.Errorf("handler already registered for type %q", h.Type())
	}
	r.handlers[h.Type()] = h
	return nil
}

// Handler returns the handler for the given resource type.
func (r *Registry) Handler(resourceType string) (engine.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[resourceType]
	if !ok {
		return nil, fmt.Errorf("no handler registered for type %q", resourceType)
	}
	return h, nil
}

// Types lists the registered resource types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
