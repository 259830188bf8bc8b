// Package config loads raw declaration documents (files, inline lists,
// category presets), normalizes heterogeneous item shapes into canonical
// resources, and merges multiple sources into one aggregate Configuration.
package config

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document is a raw declaration document as found on disk:
// name/version/description plus an items list.
type Document struct {
	// Name is the configuration name.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Version is the declared configuration version.
	Version string `json:"version" yaml:"version" validate:"required"`

	// Description is optional human-readable context.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Metadata carries free-form annotations.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// Items are the declared configuration items.
	Items []ItemDecl `json:"items" yaml:"items" validate:"required,min=1,dive"`
}

// ItemDecl is one declared item. Declarations come in two shapes: a bare
// identifier ("git") or a structured record; both normalize to the same
// canonical resource.
type ItemDecl struct {
	// Name is the item identifier. For a bare declaration it is the whole
	// declaration.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Type is the resource type. May be empty for bare declarations; the
	// parser then infers it from the normalization defaults.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// Description is optional human-readable context.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Enabled defaults to true when omitted.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Properties is the type-specific payload.
	Properties map[string]interface{} `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// itemDecl mirrors ItemDecl for decoding without recursing into the custom
// unmarshalers.
type itemDecl struct {
	Name        string                 `json:"name" yaml:"name"`
	Type        string                 `json:"type,omitempty" yaml:"type,omitempty"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled     *bool                  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// UnmarshalYAML accepts either a bare scalar identifier or a mapping.
func (d *ItemDecl) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var name string
		if err := value.Decode(&name); err != nil {
			return err
		}
		*d = ItemDecl{Name: name}
		return nil
	}

	var rec itemDecl
	if err := value.Decode(&rec); err != nil {
		return err
	}
	*d = ItemDecl(rec)
	return nil
}

// UnmarshalJSON accepts either a bare string identifier or an object.
func (d *ItemDecl) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*d = ItemDecl(itemDecl{Name: name})
		return nil
	}

	var rec itemDecl
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	*d = ItemDecl(rec)
	return nil
}

// Defaults supplies context for normalizing bare or partial declarations.
type Defaults struct {
	// Type is used when a declaration carries no type discriminator.
	Type string

	// Source is filled into the "source" property when absent
	// (e.g. the default package source).
	Source string

	// Category is filled into the "category" property when absent.
	Category string
}

// Warning is a non-fatal finding produced while merging sources. A name
// collision across files is a warning, not an overwrite: the later resource
// is skipped so one malformed file cannot silently shadow another's.
type Warning struct {
	// Source identifies the declaration source (file path, "inline", ...).
	Source string

	// Message describes the finding.
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Source, w.Message)
}
