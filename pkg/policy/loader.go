package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// severityPrefix marks the optional severity header in a policy file, e.g.
// "# severity: warning" on one of the leading comment lines.
const severityPrefix = "# severity:"

// LoadDir compiles every .rego file in dir into the gate. File name (minus
// extension) becomes the policy name; a "# severity:" comment header selects
// the severity, defaulting to error. Missing directories are not an error so
// a default policy path can simply be absent.
func (g *Gate) LoadDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading policy directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".rego" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		source, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading policy %s: %w", path, err)
		}

		p := Policy{
			Name:     strings.TrimSuffix(name, ".rego"),
			Severity: headerSeverity(string(source)),
			Enabled:  true,
			Rego:     string(source),
		}
		if err := g.Add(ctx, p); err != nil {
			return err
		}
		g.log.WithField("policy", p.Name).Infof("loaded policy from %s", path)
	}
	return nil
}

// headerSeverity scans the leading comment block for a severity header.
func headerSeverity(source string) Severity {
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "#") {
			break
		}
		if rest, ok := strings.CutPrefix(trimmed, severityPrefix); ok {
			if s := strings.TrimSpace(rest); s == string(SeverityWarning) {
				return SeverityWarning
			}
			return SeverityError
		}
	}
	return SeverityError
}
