// Package render turns an eligible type set into the Go registration file.
//
// The output is a single var holding one reflect.Type per (type, template)
// pair, in type order then template order:
//
//	var AutoJSONContext = []reflect.Type{
//		reflect.TypeFor[models.User](),
//		reflect.TypeFor[[]models.User](),
//	}
//
// Rendering is pure: the same input always yields the same bytes.
package render

import (
	"bytes"
	"fmt"
	"go/format"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/teranos/autojson/config"
	"github.com/teranos/autojson/errors"
	"github.com/teranos/autojson/symtab"
)

// FileName is the name of the generated artifact
const FileName = "zz_generated.autojson.go"

// VarName is the registration variable declared by the artifact
const VarName = "AutoJSONContext"

// Header marks the file as generated for go vet and code review tools
const Header = "// Code generated by autojsonctx. DO NOT EDIT."

// typeForSince is the first Go release with reflect.TypeFor
var typeForSince = semver.MustParse("1.22.0")

// Options describes the artifact's package and the shapes to register
type Options struct {
	// PackageName is the package clause of the artifact
	PackageName string
	// PackagePath is the artifact's import path; its own types stay unqualified
	PackagePath string
	// GoVersion is the module's go directive; below 1.22 the legacy
	// reflect.TypeOf form is emitted
	GoVersion string
	// Templates are the collection templates, each containing config.Placeholder
	Templates []string
}

// Render produces the gofmt'ed artifact source
func Render(types []symtab.Symbol, opts Options) ([]byte, error) {
	if opts.PackageName == "" {
		return nil, errors.New("render: package name is required")
	}
	templates := opts.Templates
	if len(templates) == 0 {
		templates = []string{config.IdentityTemplate}
	}

	imports := newImportSet(opts.PackagePath)
	for _, t := range types {
		imports.add(t.Namespace())
	}
	aliases := imports.resolve()

	legacy := UsesLegacyForm(opts.GoVersion)

	var buf bytes.Buffer
	buf.WriteString(Header + "\n\n")
	fmt.Fprintf(&buf, "package %s\n\n", opts.PackageName)

	buf.WriteString("import (\n\t\"reflect\"\n")
	if len(aliases) > 0 {
		buf.WriteString("\n")
	}
	for _, path := range imports.paths {
		fmt.Fprintf(&buf, "\t%s %q\n", aliases[path], path)
	}
	buf.WriteString(")\n\n")

	fmt.Fprintf(&buf, "// %s lists the types registered for ahead-of-time JSON serialization.\n", VarName)
	if len(types) == 0 {
		fmt.Fprintf(&buf, "var %s = []reflect.Type{}\n", VarName)
		return formatSource(buf.Bytes())
	}
	fmt.Fprintf(&buf, "var %s = []reflect.Type{\n", VarName)
	for _, t := range types {
		ref := t.Name()
		if alias, ok := aliases[t.Namespace()]; ok {
			ref = alias + "." + ref
		}
		for _, tmpl := range templates {
			expr := strings.ReplaceAll(tmpl, config.Placeholder, ref)
			buf.WriteString("\t" + registration(expr, legacy) + ",\n")
		}
	}
	buf.WriteString("}\n")

	return formatSource(buf.Bytes())
}

func formatSource(src []byte) ([]byte, error) {
	formatted, err := format.Source(src)
	if err != nil {
		return nil, errors.WithDetail(
			errors.Wrap(err, "generated source does not parse; check the collection templates"),
			string(src))
	}
	return formatted, nil
}

func registration(expr string, legacy bool) string {
	if legacy {
		return "reflect.TypeOf((*" + expr + ")(nil)).Elem()"
	}
	return "reflect.TypeFor[" + expr + "]()"
}

// UsesLegacyForm reports whether goVersion predates reflect.TypeFor.
// An empty or unparsable version is treated as current.
func UsesLegacyForm(goVersion string) bool {
	goVersion = strings.TrimPrefix(strings.TrimSpace(goVersion), "go")
	if goVersion == "" {
		return false
	}
	// go directives may carry a prerelease suffix without a separator ("1.21rc1")
	if i := strings.IndexFunc(goVersion, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	}); i > 0 {
		goVersion = goVersion[:i]
	}
	v, err := semver.NewVersion(goVersion)
	if err != nil {
		return false
	}
	return v.LessThan(typeForSince)
}

// importSet assigns aliases to the packages a registration references
type importSet struct {
	self  string
	paths []string
	seen  map[string]bool
}

func newImportSet(self string) *importSet {
	return &importSet{self: self, seen: map[string]bool{}}
}

func (s *importSet) add(path string) {
	if path == "" || path == s.self || s.seen[path] {
		return
	}
	s.seen[path] = true
	s.paths = append(s.paths, path)
}

// resolve sorts the paths and returns a unique alias for each
func (s *importSet) resolve() map[string]string {
	sort.Strings(s.paths)
	taken := map[string]bool{"reflect": true}
	aliases := make(map[string]string, len(s.paths))
	for _, path := range s.paths {
		base := Identifier(path)
		alias := base
		for n := 2; taken[alias]; n++ {
			alias = fmt.Sprintf("%s%d", base, n)
		}
		taken[alias] = true
		aliases[path] = alias
	}
	return aliases
}
