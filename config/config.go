// Package config resolves the generator options for one project directory.
//
// Resolution is an ordered chain of strategies. The first strategy whose file
// exists wins; when none applies the compiled-in defaults are used:
//
//	autojsonconfig.json   structured, keys matched case-insensitively
//	.editorconfig         autojson.* key = value lines
//	defaults              no namespace filter, base types included, four shapes
//
// A file that exists but cannot be parsed is a fatal error. There is no silent
// fallback to the next strategy in that case.
package config

import (
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/teranos/autojson/errors"
)

// Placeholder is replaced by the type reference when a template is rendered.
const Placeholder = "{0}"

// IdentityTemplate registers the bare type.
const IdentityTemplate = Placeholder

// Source identifies which strategy produced a config
type Source string

const (
	SourceJSON         Source = "json"
	SourceEditorConfig Source = "editorconfig"
	SourceDefaults     Source = "defaults"
)

// GeneratorConfig holds the options of one generation run.
// It is built once by Resolve and treated as immutable afterwards.
type GeneratorConfig struct {
	// Namespaces restricts eligible types to these containing namespaces
	// (Go import paths). Empty means no filter.
	Namespaces []string `json:"namespaces" yaml:"namespaces" toml:"namespaces"`

	// IncludeBaseTypes makes a type eligible when an embedded type or an
	// implemented interface carries the marker.
	IncludeBaseTypes bool `json:"includeBaseTypes" yaml:"includeBaseTypes" toml:"includeBaseTypes"`

	// CollectionTemplates are rendered once per eligible type, in order.
	// Each contains Placeholder, e.g. "[]{0}".
	CollectionTemplates []string `json:"collectionTemplates" yaml:"collectionTemplates" toml:"collectionTemplates"`

	// Marker overrides the fully-qualified name of the marker type
	Marker string `json:"marker,omitempty" yaml:"marker,omitempty" toml:"marker,omitempty"`

	// PackageName overrides the package clause of the generated file
	PackageName string `json:"packageName,omitempty" yaml:"packageName,omitempty" toml:"packageName,omitempty"`

	// BuildFlags are shell-quoted flags passed to the Go build system (e.g. "-tags dev")
	BuildFlags string `json:"buildFlags,omitempty" yaml:"buildFlags,omitempty" toml:"buildFlags,omitempty"`

	// Source records which strategy produced this config
	Source Source `json:"-" yaml:"-" toml:"-"`
	// Path is the config file that was read (empty for defaults)
	Path string `json:"-" yaml:"-" toml:"-"`
}

// DefaultCollectionTemplates are the shapes registered when nothing is configured:
// the bare type, a slice, a slice of pointers and a string-keyed map.
func DefaultCollectionTemplates() []string {
	return []string{
		IdentityTemplate,
		"[]" + Placeholder,
		"[]*" + Placeholder,
		"map[string]" + Placeholder,
	}
}

// Default returns the compiled-in configuration
func Default() GeneratorConfig {
	return GeneratorConfig{
		IncludeBaseTypes:    true,
		CollectionTemplates: DefaultCollectionTemplates(),
		Source:              SourceDefaults,
	}
}

// HasNamespaceFilter reports whether the namespace filter is active
func (c GeneratorConfig) HasNamespaceFilter() bool {
	return len(c.Namespaces) > 0
}

// AllowsNamespace reports whether types declared in ns pass the namespace filter
func (c GeneratorConfig) AllowsNamespace(ns string) bool {
	if !c.HasNamespaceFilter() {
		return true
	}
	i := sort.SearchStrings(c.Namespaces, ns)
	return i < len(c.Namespaces) && c.Namespaces[i] == ns
}

// Templates returns the collection templates, never empty
func (c GeneratorConfig) Templates() []string {
	if len(c.CollectionTemplates) == 0 {
		return []string{IdentityTemplate}
	}
	return c.CollectionTemplates
}

// SplitBuildFlags splits BuildFlags the way a POSIX shell would
func (c GeneratorConfig) SplitBuildFlags() ([]string, error) {
	if strings.TrimSpace(c.BuildFlags) == "" {
		return nil, nil
	}
	flags, err := shellquote.Split(c.BuildFlags)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "invalid buildFlags %q", c.BuildFlags), errors.ErrInvalidConfig)
	}
	return flags, nil
}

// normalize trims, deduplicates and sorts namespaces, drops blank templates,
// and falls back to the identity template when none remain.
func (c GeneratorConfig) normalize() GeneratorConfig {
	seen := make(map[string]bool, len(c.Namespaces))
	namespaces := make([]string, 0, len(c.Namespaces))
	for _, ns := range c.Namespaces {
		ns = strings.TrimSpace(ns)
		if ns == "" || seen[ns] {
			continue
		}
		seen[ns] = true
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)
	c.Namespaces = namespaces

	templates := make([]string, 0, len(c.CollectionTemplates))
	for _, tmpl := range c.CollectionTemplates {
		if tmpl = strings.TrimSpace(tmpl); tmpl != "" {
			templates = append(templates, tmpl)
		}
	}
	if len(templates) == 0 {
		templates = []string{IdentityTemplate}
	}
	c.CollectionTemplates = templates

	c.Marker = strings.TrimSpace(c.Marker)
	c.PackageName = strings.TrimSpace(c.PackageName)
	return c
}

// Validate checks the invariants every resolved config must satisfy
func (c GeneratorConfig) Validate() error {
	for _, tmpl := range c.CollectionTemplates {
		if !strings.Contains(tmpl, Placeholder) {
			return errors.WithHintf(
				errors.NewInvalidConfigError("collection template %q has no %s placeholder", tmpl, Placeholder),
				"write the template around the type, e.g. %q", "[]"+Placeholder)
		}
	}
	if c.Marker != "" && !strings.Contains(c.Marker, ".") {
		return errors.NewInvalidConfigError("marker %q is not a fully-qualified name (want importpath.Name)", c.Marker)
	}
	if _, err := c.SplitBuildFlags(); err != nil {
		return err
	}
	return nil
}
