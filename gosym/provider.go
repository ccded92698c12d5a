// Package gosym provides the go/packages backed symbol table.
//
// A Provider loads every package of a module ("./...") with full type
// information and exposes the result as a symtab.Table. Package load errors
// are logged as warnings; generation proceeds with whatever type-checked.
package gosym

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/teranos/autojson/errors"
	"github.com/teranos/autojson/logger"
	"github.com/teranos/autojson/symtab"
)

const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedTypes |
	packages.NeedSyntax |
	packages.NeedTypesInfo |
	packages.NeedModule

// Provider implements symtab.Provider for Go modules
type Provider struct {
	Locator *Locator
}

var _ symtab.Provider = (*Provider)(nil)

// NewProvider creates a provider that locates go in the real environment
func NewProvider() *Provider {
	return &Provider{Locator: DefaultLocator()}
}

// Load type-checks all packages under opts.Dir
func (p *Provider) Load(ctx context.Context, opts symtab.LoadOptions) (symtab.Table, error) {
	log := logger.Named("gosym")

	goBinary, err := p.Locator.Locate(ctx)
	if err != nil {
		return nil, err
	}
	defer ensureOnPath(goBinary)()

	cfg := &packages.Config{
		Context:    ctx,
		Mode:       loadMode,
		Dir:        opts.Dir,
		Env:        Env(goBinary),
		BuildFlags: opts.BuildFlags,
	}

	log.Debugw("Loading packages", "dir", opts.Dir, "go", goBinary, "build_flags", opts.BuildFlags)
	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "failed to load packages in %s", opts.Dir),
			"run `go build ./...` in the module to see the underlying error")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "package load interrupted")
	}

	warnings := 0
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, e := range pkg.Errors {
			warnings++
			log.Warnw("Package error", "package", pkg.PkgPath, "error", e.Msg, "pos", e.Pos)
		}
	})
	log.Infow("Packages loaded", "roots", len(pkgs), "errors", warnings)

	return NewTable(pkgs, opts.LocalNamespace), nil
}

// ensureOnPath puts the directory of goBinary on the process PATH for the
// duration of a load, since go/packages resolves "go" against it. The
// returned func restores the previous value.
func ensureOnPath(goBinary string) (restore func()) {
	log := logger.Named("gosym")
	dir := filepath.Dir(goBinary)
	previous, had := os.LookupEnv("PATH")
	for _, entry := range filepath.SplitList(previous) {
		if entry == dir {
			return func() {}
		}
	}

	updated := dir
	if previous != "" {
		updated = strings.Join([]string{dir, previous}, string(os.PathListSeparator))
	}
	if err := os.Setenv("PATH", updated); err != nil {
		log.Warnw("Failed to add go to PATH", "dir", dir, "error", err)
		return func() {}
	}

	return func() {
		var err error
		if had {
			err = os.Setenv("PATH", previous)
		} else {
			err = os.Unsetenv("PATH")
		}
		if err != nil {
			log.Warnw("Failed to restore PATH", "error", err)
		}
	}
}
