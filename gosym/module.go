package gosym

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/teranos/autojson/errors"
)

// GoModFileName is the project file of a Go module
const GoModFileName = "go.mod"

// Module is the parsed go.mod of the project being generated for
type Module struct {
	// Path is the module path declared by the module directive
	Path string
	// Dir is the module root directory
	Dir string
	// GoVersion is the go directive, empty when absent
	GoVersion string
}

// FindModule reads the go.mod at projectPath. projectPath may name the
// go.mod itself or any directory inside the module; directories are
// searched upwards.
func FindModule(projectPath string) (*Module, error) {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", projectPath)
	}

	goMod := abs
	if info, err := os.Stat(abs); err != nil {
		return nil, errors.Wrapf(err, "project file %s", projectPath)
	} else if info.IsDir() {
		goMod, err = findGoMod(abs)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(goMod)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", goMod)
	}
	mf, err := modfile.ParseLax(goMod, data, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", goMod)
	}
	if mf.Module == nil || mf.Module.Mod.Path == "" {
		return nil, errors.WithHint(
			errors.Newf("%s has no module directive", goMod),
			"the project file must be the go.mod of the module to scan")
	}

	m := &Module{
		Path: mf.Module.Mod.Path,
		Dir:  filepath.Dir(goMod),
	}
	if mf.Go != nil {
		m.GoVersion = mf.Go.Version
	}
	return m, nil
}

func findGoMod(dir string) (string, error) {
	for cur := dir; ; {
		candidate := filepath.Join(cur, GoModFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", errors.WithHint(
				errors.Newf("no %s found in %s or any parent", GoModFileName, dir),
				"pass the path of the module's go.mod as the first argument")
		}
		cur = parent
	}
}

// ImportPathFor maps a directory inside the module to its import path
func (m *Module) ImportPathFor(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve %s", dir)
	}
	rel, err := filepath.Rel(m.Dir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Newf("%s is outside module %s (%s)", dir, m.Path, m.Dir)
	}
	if rel == "." {
		return m.Path, nil
	}
	return path.Join(m.Path, filepath.ToSlash(rel)), nil
}
