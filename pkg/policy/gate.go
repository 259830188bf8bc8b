package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/setforge/setforge/pkg/engine"
	"github.com/setforge/setforge/pkg/telemetry"
)

// Gate evaluates the loaded policies against a configuration. It satisfies
// the validator's PolicyGate interface.
type Gate struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy

	log *telemetry.Logger
}

// compiledPolicy pairs a policy with its prepared deny query.
type compiledPolicy struct {
	policy Policy
	query  rego.PreparedEvalQuery
}

// NewGate creates a Gate with the built-in policies compiled in.
func NewGate(log *telemetry.Logger) (*Gate, error) {
	if log == nil {
		log = telemetry.NopLogger()
	}
	g := &Gate{
		policies: make(map[string]*compiledPolicy),
		log:      log.NewComponentLogger("policy"),
	}
	for _, p := range BuiltinPolicies() {
		if err := g.Add(context.Background(), p); err != nil {
			return nil, fmt.Errorf("compiling built-in policy %s: %w", p.Name, err)
		}
	}
	return g, nil
}

// Add compiles and installs a policy, replacing any policy of the same name.
func (g *Gate) Add(ctx context.Context, p Policy) error {
	pkg := regoPackage(p.Rego)
	if pkg == "" {
		return fmt.Errorf("policy %s declares no package", p.Name)
	}

	query, err := rego.New(
		rego.Module(p.Name+".rego", p.Rego),
		rego.Query(fmt.Sprintf("data.%s.deny", pkg)),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("preparing policy %s: %w", p.Name, err)
	}

	g.mu.Lock()
	g.policies[p.Name] = &compiledPolicy{policy: p, query: query}
	g.mu.Unlock()

	g.log.WithField("policy", p.Name).WithField("severity", string(p.Severity)).Debug("policy compiled")
	return nil
}

// Policies lists the installed policies, sorted by name.
func (g *Gate) Policies() []Policy {
	g.mu.RLock()
	defer g.mu.RUnlock()
	policies := make([]Policy, 0, len(g.policies))
	for _, cp := range g.policies {
		policies = append(policies, cp.policy)
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].Name < policies[j].Name })
	return policies
}

// SetEnabled flips a policy on or off.
func (g *Gate) SetEnabled(name string, enabled bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp, ok := g.policies[name]
	if !ok {
		return fmt.Errorf("policy not found: %s", name)
	}
	cp.policy.Enabled = enabled
	return nil
}

// Evaluate runs every enabled policy against the configuration. A hit from
// an error-severity policy becomes a denial; warning-severity hits become
// warnings. A single policy failing to evaluate degrades to a warning so one
// broken rule cannot block all validation.
func (g *Gate) Evaluate(ctx context.Context, cfg *engine.Configuration) (denials, warnings []string, err error) {
	g.mu.RLock()
	compiled := make([]*compiledPolicy, 0, len(g.policies))
	for _, cp := range g.policies {
		if cp.policy.Enabled {
			compiled = append(compiled, cp)
		}
	}
	g.mu.RUnlock()
	sort.Slice(compiled, func(i, j int) bool { return compiled[i].policy.Name < compiled[j].policy.Name })

	input := configInput(cfg)
	for _, cp := range compiled {
		results, evalErr := cp.query.Eval(ctx, rego.EvalInput(input))
		if evalErr != nil {
			g.log.WithError(evalErr).WithField("policy", cp.policy.Name).Warn("policy evaluation failed")
			warnings = append(warnings, fmt.Sprintf("policy %s could not be evaluated: %v", cp.policy.Name, evalErr))
			continue
		}

		for _, hit := range denyEntries(results) {
			message, severity := hitDetails(hit, cp.policy.Severity)
			text := fmt.Sprintf("policy %s: %s", cp.policy.Name, message)
			if severity == SeverityError {
				denials = append(denials, text)
			} else {
				warnings = append(warnings, text)
			}
		}
	}
	return denials, warnings, nil
}

// configInput converts a configuration into the document policies see.
func configInput(cfg *engine.Configuration) map[string]interface{} {
	items := make([]interface{}, 0, len(cfg.Items))
	for _, item := range cfg.Items {
		items = append(items, map[string]interface{}{
			"name":        item.Name,
			"type":        item.Type,
			"enabled":     item.Enabled,
			"description": item.Description,
			"properties":  map[string]interface{}(item.Properties),
		})
	}
	return map[string]interface{}{
		"name":     cfg.Name,
		"version":  cfg.Version,
		"metadata": cfg.Metadata,
		"items":    items,
	}
}

// denyEntries flattens a result set's deny values.
func denyEntries(results rego.ResultSet) []interface{} {
	var entries []interface{}
	for _, result := range results {
		for _, expr := range result.Expressions {
			if values, ok := expr.Value.([]interface{}); ok {
				entries = append(entries, values...)
			}
		}
	}
	return entries
}

// hitDetails extracts the message and optional severity override from one
// deny entry. Entries are either plain strings or objects with a "message"
// field.
func hitDetails(hit interface{}, fallback Severity) (string, Severity) {
	switch v := hit.(type) {
	case string:
		return v, fallback
	case map[string]interface{}:
		message, _ := v["message"].(string)
		if message == "" {
			message = fmt.Sprintf("%v", v)
		}
		if s, ok := v["severity"].(string); ok && s != "" {
			return message, Severity(s)
		}
		return message, fallback
	default:
		return fmt.Sprintf("%v", hit), fallback
	}
}

// regoPackage extracts the package path from policy source.
func regoPackage(source string) string {
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(trimmed, "package "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
