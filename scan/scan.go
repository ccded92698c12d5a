// Package scan decides which types of a symbol table are registered.
//
// A type is eligible when it is a class or struct, its namespace passes the
// configured filter, and it carries the marker either directly or (with
// IncludeBaseTypes) through any ancestor. The result is deduplicated by
// symbol identity and ordered by fully-qualified name.
package scan

import (
	"sort"

	"github.com/teranos/autojson/config"
	"github.com/teranos/autojson/errors"
	"github.com/teranos/autojson/logger"
	"github.com/teranos/autojson/symtab"
)

// Reason records why a type matched
type Reason int

const (
	// Direct means the type itself carries the marker
	Direct Reason = iota
	// Inherited means an embedded type or implemented interface carries it
	Inherited
)

func (r Reason) String() string {
	if r == Inherited {
		return "inherited"
	}
	return "direct"
}

// Match is one eligible type
type Match struct {
	Symbol symtab.Symbol
	Reason Reason
	// Via is the ancestor carrying the marker for Inherited matches
	Via symtab.Symbol
}

// Result is the ordered eligible set of one scan
type Result struct {
	Marker  symtab.Symbol
	Matches []Match
	// Visited counts every declared type the walk saw
	Visited int
}

// Symbols returns the matched symbols in result order
func (r *Result) Symbols() []symtab.Symbol {
	out := make([]symtab.Symbol, len(r.Matches))
	for i, m := range r.Matches {
		out[i] = m.Symbol
	}
	return out
}

// ResolveMarker returns the first candidate name the table can resolve
func ResolveMarker(tbl symtab.Table, candidates ...string) (symtab.Symbol, error) {
	for _, name := range candidates {
		if name == "" {
			continue
		}
		if sym, ok := tbl.ResolveMarker(name); ok {
			return sym, nil
		}
	}
	return nil, errors.WithHintf(
		errors.Wrapf(errors.ErrMarkerNotFound, "none of %v resolve in the loaded program", candidates),
		"embed the marker in at least one type so its package is part of the build, or set %q in the config",
		"marker")
}

// Scan walks tbl and returns every type eligible under cfg.
// candidates are marker names tried in order; the first that resolves is used.
func Scan(tbl symtab.Table, cfg config.GeneratorConfig, candidates ...string) (*Result, error) {
	marker, err := ResolveMarker(tbl, candidates...)
	if err != nil {
		return nil, err
	}
	return ScanWithMarker(tbl, cfg, marker), nil
}

// ScanWithMarker walks tbl against an already resolved marker
func ScanWithMarker(tbl symtab.Table, cfg config.GeneratorConfig, marker symtab.Symbol) *Result {
	log := logger.Named("scan")
	result := &Result{Marker: marker}
	seen := make(map[symtab.Symbol]bool)
	trace := logger.TraceEnabled()

	for sym := range symtab.Walk(tbl.Global()) {
		result.Visited++
		if trace {
			log.Debugw("Visiting type", "type", sym.QualifiedName(), "kind", sym.Kind().String())
		}
		if seen[sym] {
			continue
		}
		match, ok := eligible(tbl, cfg, marker, sym)
		if !ok {
			continue
		}
		seen[sym] = true
		result.Matches = append(result.Matches, match)
		log.Debugw("Eligible type", "type", sym.QualifiedName(), "reason", match.Reason.String())
	}

	sort.SliceStable(result.Matches, func(i, j int) bool {
		return result.Matches[i].Symbol.QualifiedName() < result.Matches[j].Symbol.QualifiedName()
	})

	log.Infow("Scan complete",
		"marker", marker.QualifiedName(),
		"visited", result.Visited,
		"eligible", len(result.Matches))
	return result
}

func eligible(tbl symtab.Table, cfg config.GeneratorConfig, marker, sym symtab.Symbol) (Match, bool) {
	if !sym.Kind().IsEmissionTarget() {
		return Match{}, false
	}
	if !cfg.AllowsNamespace(sym.Namespace()) {
		return Match{}, false
	}
	if tbl.HasMarker(sym, marker) {
		return Match{Symbol: sym, Reason: Direct}, true
	}
	if !cfg.IncludeBaseTypes {
		return Match{}, false
	}
	for _, ancestor := range tbl.AncestorsOf(sym) {
		if tbl.HasMarker(ancestor, marker) {
			return Match{Symbol: sym, Reason: Inherited, Via: ancestor}, true
		}
	}
	return Match{}, false
}
