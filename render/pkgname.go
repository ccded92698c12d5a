package render

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/teranos/autojson/errors"
)

var versionSuffix = regexp.MustCompile(`^v[0-9]+$`)

// Identifier derives a Go identifier from an import path: the last path
// element (skipping a /vN major-version suffix), lowercased, with every
// character that is not a letter or digit removed.
func Identifier(importPath string) string {
	parts := strings.Split(strings.Trim(importPath, "/"), "/")
	last := parts[len(parts)-1]
	if versionSuffix.MatchString(last) && len(parts) > 1 {
		last = parts[len(parts)-2]
	}

	var b strings.Builder
	for _, r := range strings.ToLower(last) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	id := b.String()
	if id == "" || unicode.IsDigit(rune(id[0])) {
		id = "pkg" + id
	}
	if token.IsKeyword(id) {
		id += "pkg"
	}
	return id
}

// PackageName picks the package clause of the artifact in outputDir:
// the explicit override, else the package of existing Go files in the
// directory, else an identifier derived from packagePath.
func PackageName(override, outputDir, packagePath string) (string, error) {
	if override != "" {
		if !token.IsIdentifier(override) {
			return "", errors.NewInvalidConfigError("packageName %q is not a Go identifier", override)
		}
		return override, nil
	}

	existing, err := existingPackage(outputDir)
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}
	return Identifier(packagePath), nil
}

// existingPackage returns the package clause of the first non-test Go file
// in dir, ignoring the artifact itself. An absent dir yields "".
func existingPackage(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrapf(err, "failed to read %s", dir)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == FileName || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	fset := token.NewFileSet()
	for _, name := range names {
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.PackageClauseOnly)
		if err != nil {
			continue
		}
		return f.Name.Name, nil
	}
	return "", nil
}
