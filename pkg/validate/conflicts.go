package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/setforge/setforge/pkg/engine"
)

// detectConflicts finds resources that are functionally equivalent under
// different sources: the same logical target requested through two different
// channels would fight over the same system state. Conflicts are reported,
// not thrown; one is enough to flag the dependency check as failed.
func detectConflicts(cfg *engine.Configuration) []engine.Conflict {
	type claim struct {
		itemName string
		source   string
	}
	claims := make(map[string][]claim, len(cfg.Items))

	for _, item := range cfg.Items {
		if !item.Enabled {
			continue
		}
		target := functionalTarget(item)
		if target == "" {
			continue
		}
		claims[target] = append(claims[target], claim{
			itemName: item.Name,
			source:   item.Properties.StringOr("source", "system"),
		})
	}

	targets := make([]string, 0, len(claims))
	for target := range claims {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	var conflicts []engine.Conflict
	for _, target := range targets {
		claimants := claims[target]
		for i := 0; i < len(claimants); i++ {
			for j := i + 1; j < len(claimants); j++ {
				if claimants[i].source == claimants[j].source {
					continue
				}
				conflicts = append(conflicts, engine.Conflict{
					First:  claimants[i].itemName,
					Second: claimants[j].itemName,
					Reason: fmt.Sprintf("%s requested via both %q and %q sources",
						target, claimants[i].source, claimants[j].source),
				})
			}
		}
	}
	return conflicts
}

// functionalTarget identifies the piece of system state an item converges.
// Two items with the same target are functionally equivalent.
func functionalTarget(item *engine.Resource) string {
	switch item.Type {
	case engine.TypePackage:
		id := item.Properties.StringOr("package_id", item.Name)
		return "package " + strings.ToLower(id)
	case engine.TypeSetting, engine.TypeTerminalSetting:
		path := item.Properties.String("path")
		name := item.Properties.String("name")
		if path == "" || name == "" {
			return ""
		}
		return fmt.Sprintf("setting %s/%s", strings.ToLower(path), strings.ToLower(name))
	default:
		return ""
	}
}
