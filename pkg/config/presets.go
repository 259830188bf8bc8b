package config

import (
	"fmt"
	"sort"

	"github.com/setforge/setforge/pkg/engine"
)

// categoryPresets are the built-in category declaration lists. A preset is
// just another declaration source: bare identifiers normalized with the
// category's defaults.
var categoryPresets = map[string]struct {
	defaults Defaults
	items    []ItemDecl
}{
	"developer": {
		defaults: Defaults{Type: engine.TypePackage, Source: "system", Category: "developer"},
		items: []ItemDecl{
			{Name: "git"},
			{Name: "curl"},
			{Name: "jq"},
			{Name: "make"},
			{Name: "editor", Type: engine.TypePackage, Properties: map[string]interface{}{"package_id": "vim"}},
		},
	},
	"shell": {
		defaults: Defaults{Type: engine.TypeProfileSetting, Category: "shell"},
		items: []ItemDecl{
			{Name: "aliases", Properties: map[string]interface{}{
				"path": "~/.profile", "line": "alias ll='ls -al'",
			}},
			{Name: "editor-env", Properties: map[string]interface{}{
				"path": "~/.profile", "line": "export EDITOR=vim",
			}},
		},
	},
	"terminal": {
		defaults: Defaults{Type: engine.TypeTerminalSetting, Category: "terminal"},
		items: []ItemDecl{
			{Name: "default-theme", Properties: map[string]interface{}{"theme": "Dark"}},
		},
	},
}

// Presets lists the available category preset names.
func Presets() []string {
	names := make([]string, 0, len(categoryPresets))
	for name := range categoryPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FromPreset builds a Configuration from a built-in category preset.
func (p *Parser) FromPreset(category string) (*engine.Configuration, error) {
	preset, ok := categoryPresets[category]
	if !ok {
		return nil, engine.NewParseError(fmt.Sprintf("unknown category preset %q", category), nil)
	}
	name := fmt.Sprintf("preset-%s", category)
	return p.FromItems(name, "1.0", preset.items, preset.defaults)
}
