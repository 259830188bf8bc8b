package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/setforge/setforge/pkg/engine"
	"github.com/setforge/setforge/pkg/telemetry"
)

// Parser turns raw declarations into canonical Configurations.
type Parser struct {
	validate *validator.Validate
	log      *telemetry.Logger
}

// NewParser creates a parser.
func NewParser(log *telemetry.Logger) *Parser {
	return &Parser{
		validate: validator.New(),
		log:      log.NewComponentLogger("parser"),
	}
}

// ParseFile loads a single declaration document (JSON or YAML; JSON is a
// YAML subset so one decoder serves both).
func (p *Parser) ParseFile(path string) (*engine.Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, engine.NewParseError(fmt.Sprintf("failed to read %s", path), err)
	}
	return p.ParseBytes(data, path)
}

// ParseBytes parses a declaration document from memory. source is used in
// error and warning messages only.
func (p *Parser) ParseBytes(data []byte, source string) (*engine.Configuration, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, engine.NewParseError(fmt.Sprintf("malformed document %s", source), err)
	}

	if err := p.validate.Struct(doc); err != nil {
		return nil, engine.NewParseError(fmt.Sprintf("invalid document %s", source), err)
	}

	return p.fromDocument(&doc, Defaults{})
}

// FromItems builds a Configuration from an inline declaration list,
// normalizing each entry with the given defaults.
func (p *Parser) FromItems(name, version string, items []ItemDecl, defaults Defaults) (*engine.Configuration, error) {
	cfg := engine.NewConfiguration(name, version)
	for i := range items {
		resource, err := p.Normalize(&items[i], defaults)
		if err != nil {
			return nil, err
		}
		if err := cfg.AddItem(resource); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// ParseDir loads every declaration file in dir (non-recursive, sorted by
// file name for deterministic merge order) and merges the results. Name
// collisions across files are non-fatal warnings; the later resource is
// skipped.
func (p *Parser) ParseDir(dir string) (*engine.Configuration, []Warning, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, engine.NewParseError(fmt.Sprintf("failed to read directory %s", dir), err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, nil, engine.NewParseError(fmt.Sprintf("no declaration files in %s", dir), nil)
	}

	configs := make([]*engine.Configuration, 0, len(paths))
	sources := make([]string, 0, len(paths))
	for _, path := range paths {
		cfg, err := p.ParseFile(path)
		if err != nil {
			return nil, nil, err
		}
		configs = append(configs, cfg)
		sources = append(sources, path)
	}

	merged, warnings := p.Merge(configs, sources)
	return merged, warnings, nil
}

// Merge folds several Configurations into one aggregate, adding resources
// one at a time. A duplicate name is a warning, not an overwrite. sources
// must parallel configs; it labels warnings.
func (p *Parser) Merge(configs []*engine.Configuration, sources []string) (*engine.Configuration, []Warning) {
	if len(configs) == 0 {
		return engine.NewConfiguration("", ""), nil
	}

	merged := engine.NewConfiguration(configs[0].Name, configs[0].Version)
	merged.Description = configs[0].Description
	merged.Metadata = make(map[string]string)

	var warnings []Warning
	for i, cfg := range configs {
		source := "inline"
		if i < len(sources) {
			source = sources[i]
		}
		for k, v := range cfg.Metadata {
			merged.Metadata[k] = v
		}
		for _, item := range cfg.Items {
			if err := merged.AddItem(item); err != nil {
				if engine.IsDuplicateName(err) {
					w := Warning{
						Source:  source,
						Message: fmt.Sprintf("duplicate item %q skipped", item.Name),
					}
					warnings = append(warnings, w)
					p.log.WithField("item", item.Name).Warn("duplicate item skipped during merge")
					continue
				}
				// Identity errors were already caught at parse time; an
				// AddItem failure here is a duplicate by construction.
				warnings = append(warnings, Warning{Source: source, Message: err.Error()})
			}
		}
	}
	return merged, warnings
}

// Normalize converts one declaration into a canonical resource, filling
// defaults from context. A declaration with no usable type discriminator
// fails with a parse error.
func (p *Parser) Normalize(decl *ItemDecl, defaults Defaults) (*engine.Resource, error) {
	if strings.TrimSpace(decl.Name) == "" {
		return nil, engine.NewParseError("item declaration has no name", nil)
	}

	resourceType := decl.Type
	if resourceType == "" {
		resourceType = defaults.Type
	}
	if resourceType == "" {
		return nil, engine.NewParseError("item declaration has no type and no contextual default", nil).
			WithResource(decl.Name)
	}

	enabled := true
	if decl.Enabled != nil {
		enabled = *decl.Enabled
	}

	props := engine.Properties(decl.Properties).Clone()
	if props == nil {
		props = engine.Properties{}
	}
	if defaults.Source != "" && !props.Has("source") {
		props["source"] = defaults.Source
	}
	if defaults.Category != "" && !props.Has("category") {
		props["category"] = defaults.Category
	}

	return &engine.Resource{
		Name:        decl.Name,
		Type:        resourceType,
		Enabled:     enabled,
		Description: decl.Description,
		Properties:  props,
	}, nil
}

// fromDocument assembles a Configuration from a validated document.
func (p *Parser) fromDocument(doc *Document, defaults Defaults) (*engine.Configuration, error) {
	cfg := engine.NewConfiguration(doc.Name, doc.Version)
	cfg.Description = doc.Description
	cfg.Metadata = doc.Metadata

	for i := range doc.Items {
		resource, err := p.Normalize(&doc.Items[i], defaults)
		if err != nil {
			return nil, err
		}
		if err := cfg.AddItem(resource); err != nil {
			// Within a single document a duplicate is a hard parse error.
			return nil, engine.NewParseError(
				fmt.Sprintf("document %s declares %q twice", doc.Name, resource.Name), err)
		}
	}
	return cfg, nil
}
