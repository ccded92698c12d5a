// Package symtabtest provides an in-memory symtab.Table for tests.
//
// Namespaces are dotted ("App.Models" nests under "App"), types model a
// class-based language: single base type, interfaces, nested types and
// attribute-style markers.
//
//	tbl := symtabtest.New()
//	marker := tbl.Class("App.Attributes", "Serializable")
//	animal := tbl.Class("App.Models", "Animal").Mark(marker)
//	tbl.Class("App.Models", "Dog").Extends(animal)
package symtabtest

import (
	"context"
	"sort"
	"strings"

	"github.com/teranos/autojson/symtab"
)

// Type is a declared type in the fake table
type Type struct {
	kind       symtab.Kind
	name       string
	namespace  string
	outer      *Type
	base       *Type
	interfaces []*Type
	markers    []*Type
	nested     []*Type
}

var _ symtab.Symbol = (*Type)(nil)

func (t *Type) Kind() symtab.Kind { return t.kind }
func (t *Type) Name() string      { return t.name }
func (t *Type) Namespace() string { return t.namespace }

func (t *Type) QualifiedName() string {
	prefix := t.namespace
	if t.outer != nil {
		prefix = t.outer.QualifiedName()
	}
	if prefix == "" {
		return t.name
	}
	return prefix + "." + t.name
}

func (t *Type) Nested() []symtab.Symbol {
	out := make([]symtab.Symbol, len(t.nested))
	for i, n := range t.nested {
		out[i] = n
	}
	return out
}

// Mark attaches markers directly to t
func (t *Type) Mark(markers ...*Type) *Type {
	t.markers = append(t.markers, markers...)
	return t
}

// Extends sets the base type of t
func (t *Type) Extends(base *Type) *Type {
	t.base = base
	return t
}

// Implements adds interfaces to t
func (t *Type) Implements(ifaces ...*Type) *Type {
	t.interfaces = append(t.interfaces, ifaces...)
	return t
}

// NestType declares a type inside t
func (t *Type) NestType(kind symtab.Kind, name string) *Type {
	n := &Type{kind: kind, name: name, namespace: t.namespace, outer: t}
	t.nested = append(t.nested, n)
	return n
}

type namespace struct {
	name     string
	children []*namespace
	types    []*Type
}

func (n *namespace) Name() string { return n.name }

func (n *namespace) Namespaces() []symtab.Namespace {
	out := make([]symtab.Namespace, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

func (n *namespace) Types() []symtab.Symbol {
	out := make([]symtab.Symbol, len(n.types))
	for i, t := range n.types {
		out[i] = t
	}
	return out
}

// Table is an in-memory symtab.Table
type Table struct {
	global *namespace
	spaces map[string]*namespace

	// Lookups counts ResolveMarker calls
	Lookups int
}

var _ symtab.Table = (*Table)(nil)

// New returns an empty table
func New() *Table {
	global := &namespace{}
	return &Table{
		global: global,
		spaces: map[string]*namespace{"": global},
	}
}

// Class declares a class in ns
func (tbl *Table) Class(ns, name string) *Type { return tbl.Declare(symtab.KindClass, ns, name) }

// Struct declares a struct in ns
func (tbl *Table) Struct(ns, name string) *Type { return tbl.Declare(symtab.KindStruct, ns, name) }

// Interface declares an interface in ns
func (tbl *Table) Interface(ns, name string) *Type {
	return tbl.Declare(symtab.KindInterface, ns, name)
}

// Declare adds a top-level type of any kind to ns, creating namespaces as needed
func (tbl *Table) Declare(kind symtab.Kind, ns, name string) *Type {
	t := &Type{kind: kind, name: name, namespace: ns}
	space := tbl.namespace(ns)
	space.types = append(space.types, t)
	return t
}

// namespace returns the node for a dotted name, creating parents on the way
func (tbl *Table) namespace(name string) *namespace {
	if n, ok := tbl.spaces[name]; ok {
		return n
	}
	parentName := ""
	if i := strings.LastIndex(name, "."); i >= 0 {
		parentName = name[:i]
	}
	parent := tbl.namespace(parentName)
	n := &namespace{name: name}
	parent.children = append(parent.children, n)
	tbl.spaces[name] = n
	return n
}

// Global implements symtab.Table
func (tbl *Table) Global() symtab.Namespace { return tbl.global }

// ResolveMarker implements symtab.Table
func (tbl *Table) ResolveMarker(qualifiedName string) (symtab.Symbol, bool) {
	tbl.Lookups++
	for sym := range symtab.Walk(tbl.global) {
		if sym.QualifiedName() == qualifiedName {
			return sym, true
		}
	}
	return nil, false
}

// HasMarker implements symtab.Table
func (tbl *Table) HasMarker(t, marker symtab.Symbol) bool {
	ft, ok := t.(*Type)
	if !ok {
		return false
	}
	for _, m := range ft.markers {
		if symtab.Symbol(m) == marker {
			return true
		}
	}
	return false
}

// AncestorsOf implements symtab.Table: the base chain to its root, then
// every interface implemented by t, its bases, or other interfaces,
// ordered by qualified name.
func (tbl *Table) AncestorsOf(t symtab.Symbol) []symtab.Symbol {
	ft, ok := t.(*Type)
	if !ok {
		return nil
	}

	var out []symtab.Symbol
	seen := map[*Type]bool{ft: true}
	var ifaceQueue []*Type
	for cur := ft; cur != nil; cur = cur.base {
		if cur != ft {
			if seen[cur] {
				break
			}
			seen[cur] = true
			out = append(out, cur)
		}
		ifaceQueue = append(ifaceQueue, cur.interfaces...)
	}

	var ifaces []*Type
	for len(ifaceQueue) > 0 {
		i := ifaceQueue[0]
		ifaceQueue = ifaceQueue[1:]
		if seen[i] {
			continue
		}
		seen[i] = true
		ifaces = append(ifaces, i)
		ifaceQueue = append(ifaceQueue, i.interfaces...)
	}
	sort.Slice(ifaces, func(a, b int) bool {
		return ifaces[a].QualifiedName() < ifaces[b].QualifiedName()
	})
	for _, i := range ifaces {
		out = append(out, i)
	}
	return out
}

// Provider returns a symtab.Provider that always yields tbl.
// Loads records every LoadOptions it was called with.
func (tbl *Table) Provider() *StaticProvider {
	return &StaticProvider{Table: tbl}
}

// StaticProvider hands out a fixed table
type StaticProvider struct {
	Table *Table
	Err   error
	Loads []symtab.LoadOptions
}

// Load implements symtab.Provider
func (p *StaticProvider) Load(_ context.Context, opts symtab.LoadOptions) (symtab.Table, error) {
	p.Loads = append(p.Loads, opts)
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Table, nil
}
