// Package symtab is the provider-neutral view of a compiled program's type graph.
//
// The eligibility engine only talks to these interfaces. A provider (the
// go/packages backed one in gosym, or the in-memory table in symtabtest)
// owns every Symbol; callers read and compare them, never mutate them.
// Symbols are compared by identity, so a provider must hand out exactly one
// Symbol value per declared type.
package symtab

import "context"

// Kind classifies a declared type
type Kind int

const (
	KindOther Kind = iota
	KindClass
	KindStruct
	KindInterface
	KindEnum
	KindDelegate
)

func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindStruct:
		return "struct"
	case KindInterface:
		return "interface"
	case KindEnum:
		return "enum"
	case KindDelegate:
		return "delegate"
	default:
		return "other"
	}
}

// IsEmissionTarget reports whether types of this kind can be registered.
// Only classes and structs carry data worth serializing.
func (k Kind) IsEmissionTarget() bool {
	return k == KindClass || k == KindStruct
}

// Symbol is a declared type
type Symbol interface {
	Kind() Kind
	// Name is the short type name, e.g. "User"
	Name() string
	// Namespace is the display name of the containing namespace
	// (for Go, the import path of the declaring package)
	Namespace() string
	// QualifiedName is the fully-qualified display name, unique per table
	QualifiedName() string
	// Nested returns the types declared inside this one
	Nested() []Symbol
}

// Namespace is a node of the namespace tree
type Namespace interface {
	// Name is the full display name; the global namespace has an empty name
	Name() string
	Namespaces() []Namespace
	Types() []Symbol
}

// Table is the capability surface the eligibility engine needs
type Table interface {
	// Global is the root of the namespace tree
	Global() Namespace
	// ResolveMarker looks a marker type up by fully-qualified name
	ResolveMarker(qualifiedName string) (Symbol, bool)
	// HasMarker reports whether t itself carries marker
	HasMarker(t, marker Symbol) bool
	// AncestorsOf returns the full base-type chain of t followed by every
	// interface t implements, without depth limit and without duplicates
	AncestorsOf(t Symbol) []Symbol
}

// LoadOptions tells a Provider what to load
type LoadOptions struct {
	// Dir is the project directory (for Go, the module root)
	Dir string
	// LocalNamespace is the namespace the artifact is generated into;
	// providers may expose otherwise hidden types from it
	LocalNamespace string
	// BuildFlags are passed through to the host build system
	BuildFlags []string
}

// Provider builds a Table for a project
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (Table, error)
}
