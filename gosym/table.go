package gosym

import (
	"go/types"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/types/typeutil"

	"github.com/teranos/autojson/logger"
	"github.com/teranos/autojson/symtab"
)

// Table is a symtab.Table over one go/packages load.
//
// The namespace tree mirrors import paths: "example.com/app/models" nests
// under "example.com/app" which nests under "example.com". Only packages
// that belong to a module (not the standard library) and that the local
// package could import appear in the tree. Every package seen by the load
// can still resolve a marker.
//
// Packages that import the local package, directly or transitively, are
// left out of the tree: the artifact would import them back and close an
// import cycle.
type Table struct {
	global   *namespace
	packages map[string]*packages.Package
	symbols  map[string]*Symbol
	// ifaces are the interfaces checked by AncestorsOf, sorted by qualified name
	ifaces []*Symbol
	// importers are the module packages excluded for importing the local package
	importers []string
}

var _ symtab.Table = (*Table)(nil)

type namespace struct {
	name     string
	children map[string]*namespace
	types    []symtab.Symbol
}

func (n *namespace) Name() string { return n.name }

func (n *namespace) Namespaces() []symtab.Namespace {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]symtab.Namespace, len(names))
	for i, name := range names {
		out[i] = n.children[name]
	}
	return out
}

func (n *namespace) Types() []symtab.Symbol { return n.types }

func (n *namespace) child(name string) *namespace {
	c, ok := n.children[name]
	if !ok {
		c = &namespace{name: name, children: map[string]*namespace{}}
		n.children[name] = c
	}
	return c
}

// NewTable indexes the packages reachable from roots. localPath is the import
// path of the package the artifact is written into.
func NewTable(roots []*packages.Package, localPath string) *Table {
	tbl := &Table{
		global:   &namespace{children: map[string]*namespace{}},
		packages: map[string]*packages.Package{},
		symbols:  map[string]*Symbol{},
	}

	packages.Visit(roots, nil, func(pkg *packages.Package) {
		if pkg.Types != nil {
			tbl.packages[pkg.PkgPath] = pkg
		}
	})

	paths := make([]string, 0, len(tbl.packages))
	for path := range tbl.packages {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	cyclic := importersOf(tbl.packages, localPath)
	log := logger.Named("gosym")

	for _, path := range paths {
		pkg := tbl.packages[path]
		if pkg.Module == nil {
			continue
		}
		local := path == localPath
		if !local && !importable(localPath, pkg) {
			continue
		}
		if !local && cyclic[path] {
			tbl.importers = append(tbl.importers, path)
			log.Warnw("Skipping package that imports the artifact package (import cycle)",
				"package", path, "artifact_package", localPath)
			continue
		}

		ns := tbl.namespaceFor(path)
		scope := pkg.Types.Scope()
		for _, name := range scope.Names() {
			obj, ok := scope.Lookup(name).(*types.TypeName)
			if !ok || obj.IsAlias() {
				continue
			}
			if !obj.Exported() && !local {
				continue
			}
			sym := tbl.symbolFor(obj)
			ns.types = append(ns.types, sym)
			if sym.Kind() == symtab.KindInterface && isCandidateInterface(obj) {
				tbl.ifaces = append(tbl.ifaces, sym)
			}
		}
	}

	sort.Slice(tbl.ifaces, func(i, j int) bool {
		return tbl.ifaces[i].QualifiedName() < tbl.ifaces[j].QualifiedName()
	})
	return tbl
}

func (tbl *Table) namespaceFor(path string) *namespace {
	cur := tbl.global
	parts := strings.Split(path, "/")
	for i := range parts {
		cur = cur.child(strings.Join(parts[:i+1], "/"))
	}
	return cur
}

func (tbl *Table) symbolFor(obj *types.TypeName) *Symbol {
	qn := qualifiedName(obj)
	if sym, ok := tbl.symbols[qn]; ok {
		return sym
	}
	sym := newSymbol(obj)
	tbl.symbols[qn] = sym
	return sym
}

// ExcludedImporters lists the module packages left out because they import
// the local package, in import path order
func (tbl *Table) ExcludedImporters() []string { return tbl.importers }

// importersOf returns every package that reaches target through its imports
func importersOf(pkgs map[string]*packages.Package, target string) map[string]bool {
	if _, ok := pkgs[target]; !ok {
		return nil
	}
	importedBy := map[string][]string{}
	for path, pkg := range pkgs {
		for _, imp := range pkg.Imports {
			importedBy[imp.PkgPath] = append(importedBy[imp.PkgPath], path)
		}
	}

	out := map[string]bool{}
	queue := []string{target}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, importer := range importedBy[cur] {
			if out[importer] {
				continue
			}
			out[importer] = true
			queue = append(queue, importer)
		}
	}
	delete(out, target)
	return out
}

// Global implements symtab.Table
func (tbl *Table) Global() symtab.Namespace { return tbl.global }

// Package returns the loaded package with the given import path
func (tbl *Table) Package(path string) (*packages.Package, bool) {
	pkg, ok := tbl.packages[path]
	return pkg, ok
}

// ResolveMarker implements symtab.Table; qualifiedName is "importpath.Name"
func (tbl *Table) ResolveMarker(qualifiedName string) (symtab.Symbol, bool) {
	i := strings.LastIndex(qualifiedName, ".")
	if i <= 0 || i == len(qualifiedName)-1 {
		return nil, false
	}
	pkg, ok := tbl.packages[qualifiedName[:i]]
	if !ok {
		return nil, false
	}
	obj, ok := pkg.Types.Scope().Lookup(qualifiedName[i+1:]).(*types.TypeName)
	if !ok {
		return nil, false
	}
	return tbl.symbolFor(obj), true
}

// HasMarker implements symtab.Table. A struct carries the marker when it
// embeds it (by value or pointer); an interface carries it when it embeds it.
func (tbl *Table) HasMarker(t, marker symtab.Symbol) bool {
	ts, ok := t.(*Symbol)
	if !ok {
		return false
	}
	ms, ok := marker.(*Symbol)
	if !ok {
		return false
	}
	for _, embedded := range embeddedOf(ts.obj) {
		if sameTypeName(embedded.Obj(), ms.obj) {
			return true
		}
	}
	return false
}

// AncestorsOf implements symtab.Table: every transitively embedded named
// type in depth-first declaration order, followed by the candidate
// interfaces implemented by T or *T in qualified-name order.
func (tbl *Table) AncestorsOf(t symtab.Symbol) []symtab.Symbol {
	ts, ok := t.(*Symbol)
	if !ok {
		return nil
	}

	var out []symtab.Symbol
	var visited typeutil.Map
	visited.Set(ts.obj.Type(), true)

	stack := reverseNamed(embeddedOf(ts.obj))
	for len(stack) > 0 {
		named := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		key := named.Origin()
		if visited.At(key) != nil {
			continue
		}
		visited.Set(key, true)
		out = append(out, tbl.symbolFor(named.Obj()))
		stack = append(stack, reverseNamed(embeddedOf(named.Obj()))...)
	}

	named, ok := ts.obj.Type().(*types.Named)
	if !ok || named.TypeParams().Len() > 0 {
		return out
	}
	ptr := types.NewPointer(named)
	for _, iface := range tbl.ifaces {
		if visited.At(iface.obj.Type()) != nil {
			continue
		}
		it, ok := iface.obj.Type().Underlying().(*types.Interface)
		if !ok {
			continue
		}
		if types.Implements(named, it) || types.Implements(ptr, it) {
			out = append(out, iface)
		}
	}
	return out
}

// embeddedOf returns the named types embedded directly in obj's declaration
func embeddedOf(obj *types.TypeName) []*types.Named {
	var out []*types.Named
	switch u := obj.Type().Underlying().(type) {
	case *types.Struct:
		for i := 0; i < u.NumFields(); i++ {
			f := u.Field(i)
			if !f.Embedded() {
				continue
			}
			if named, ok := namedOf(f.Type()); ok {
				out = append(out, named)
			}
		}
	case *types.Interface:
		for i := 0; i < u.NumEmbeddeds(); i++ {
			if named, ok := namedOf(u.EmbeddedType(i)); ok {
				out = append(out, named)
			}
		}
	}
	return out
}

func reverseNamed(in []*types.Named) []*types.Named {
	out := make([]*types.Named, len(in))
	for i, n := range in {
		out[len(in)-1-i] = n
	}
	return out
}

// isCandidateInterface reports whether obj is an interface worth checking
// implementations against: non-generic, usable as a type, with methods
func isCandidateInterface(obj *types.TypeName) bool {
	named, ok := obj.Type().(*types.Named)
	if !ok || named.TypeParams().Len() > 0 {
		return false
	}
	it, ok := named.Underlying().(*types.Interface)
	return ok && it.IsMethodSet() && it.NumMethods() > 0
}

// importable applies the go command's visibility rules: main packages
// cannot be imported, and internal packages only from within their parent.
func importable(from string, pkg *packages.Package) bool {
	if pkg.Name == "main" {
		return false
	}
	path := pkg.PkgPath
	var parent string
	switch {
	case strings.HasSuffix(path, "/internal"):
		parent = strings.TrimSuffix(path, "/internal")
	case strings.Contains(path, "/internal/"):
		parent = path[:strings.LastIndex(path, "/internal/")]
	case path == "internal" || strings.HasPrefix(path, "internal/"):
		return false
	default:
		return true
	}
	return from == parent || strings.HasPrefix(from, parent+"/")
}
