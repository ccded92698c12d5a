// Package generator runs one end-to-end generation pass.
//
// Order of a pass: argument check, recursion guard, config resolution,
// package load, eligibility scan, render, idempotent write. Anything after
// the guard runs with the lock held, and the lock is released on every exit
// path. A fatal error leaves the existing artifact untouched.
package generator

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/teranos/autojson/config"
	"github.com/teranos/autojson/emit"
	"github.com/teranos/autojson/errors"
	"github.com/teranos/autojson/gosym"
	"github.com/teranos/autojson/guard"
	"github.com/teranos/autojson/logger"
	"github.com/teranos/autojson/marker"
	"github.com/teranos/autojson/render"
	"github.com/teranos/autojson/scan"
	"github.com/teranos/autojson/symtab"
)

// RootMarkerName is looked up in the root package before the default marker
const RootMarkerName = "Serializable"

// Options are the inputs of one pass
type Options struct {
	// ProjectPath is the module's go.mod (or a directory inside the module)
	ProjectPath string
	// RootPackage is the import path of the package receiving the artifact.
	// A path starting with "." is taken relative to the module root.
	RootPackage string
	// OutputDir is where the artifact and the lock file are written
	OutputDir string

	// Flag is the in-process recursion flag; defaults to the AUTOJSON_RUNNING env var
	Flag guard.Flag
	// Provider builds the symbol table; defaults to the go/packages provider
	Provider symtab.Provider
}

// Report describes the outcome of a pass
type Report struct {
	// Skipped is set when the recursion guard declined to run
	Skipped guard.SkipReason
	// Changed is true when the artifact was written
	Changed bool
	// TypeCount is the number of eligible types
	TypeCount int
	// Registrations is the number of reflect.Type entries in the artifact
	Registrations int
	OutputPath    string
	RootPackage   string
	Marker        string
	Config        config.GeneratorConfig
}

// Validate checks the positional inputs
func (o Options) Validate() error {
	var missing []string
	if strings.TrimSpace(o.ProjectPath) == "" {
		missing = append(missing, "project file")
	}
	if strings.TrimSpace(o.RootPackage) == "" {
		missing = append(missing, "root package")
	}
	if strings.TrimSpace(o.OutputDir) == "" {
		missing = append(missing, "output directory")
	}
	if len(missing) > 0 {
		return errors.NewUsageError("missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Run executes one generation pass
func Run(ctx context.Context, opts Options) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Flag == nil {
		opts.Flag = guard.EnvFlag(guard.EnvVar)
	}
	if opts.Provider == nil {
		opts.Provider = gosym.NewProvider()
	}

	report := &Report{OutputPath: filepath.Join(opts.OutputDir, render.FileName)}
	skip, err := guard.New(opts.Flag, opts.OutputDir).Run(func() error {
		return generate(ctx, opts, report)
	})
	report.Skipped = skip
	if err != nil {
		return report, err
	}
	return report, nil
}

// prepared is the state of a pass after the scan
type prepared struct {
	module  *gosym.Module
	rootPkg string
	cfg     config.GeneratorConfig
	result  *scan.Result
}

// prepare resolves config, loads the program and scans it
func prepare(ctx context.Context, opts Options) (*prepared, error) {
	log := logger.Named("generator")

	cfg, err := config.Resolve(config.ProjectDir(opts.ProjectPath))
	if err != nil {
		return nil, err
	}

	mod, err := gosym.FindModule(opts.ProjectPath)
	if err != nil {
		return nil, err
	}
	rootPkg, err := ResolveRootPackage(mod, opts.RootPackage)
	if err != nil {
		return nil, err
	}
	if rootPkg != mod.Path && !strings.HasPrefix(rootPkg, mod.Path+"/") {
		log.Warnw("Root package is outside the module", "root", rootPkg, "module", mod.Path)
	}

	buildFlags, err := cfg.SplitBuildFlags()
	if err != nil {
		return nil, err
	}

	tbl, err := opts.Provider.Load(ctx, symtab.LoadOptions{
		Dir:            mod.Dir,
		LocalNamespace: rootPkg,
		BuildFlags:     buildFlags,
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "generation interrupted")
	}

	result, err := scan.Scan(tbl, cfg, MarkerCandidates(cfg, rootPkg)...)
	if err != nil {
		return nil, err
	}
	return &prepared{module: mod, rootPkg: rootPkg, cfg: cfg, result: result}, nil
}

func (p *prepared) fill(report *Report) {
	report.Config = p.cfg
	report.RootPackage = p.rootPkg
	report.Marker = p.result.Marker.QualifiedName()
	report.TypeCount = len(p.result.Matches)
	report.Registrations = len(p.result.Matches) * len(p.cfg.Templates())
}

func generate(ctx context.Context, opts Options, report *Report) error {
	p, err := prepare(ctx, opts)
	if err != nil {
		return err
	}
	p.fill(report)

	pkgName, err := render.PackageName(p.cfg.PackageName, opts.OutputDir, p.rootPkg)
	if err != nil {
		return err
	}
	src, err := render.Render(p.result.Symbols(), render.Options{
		PackageName: pkgName,
		PackagePath: p.rootPkg,
		GoVersion:   p.module.GoVersion,
		Templates:   p.cfg.Templates(),
	})
	if err != nil {
		return err
	}

	outcome, err := emit.WriteIfChanged(report.OutputPath, src)
	if err != nil {
		return err
	}
	report.Changed = outcome == emit.Written

	logger.Named("generator").Infow("Generation complete",
		"output", report.OutputPath,
		"outcome", outcome.String(),
		"types", report.TypeCount,
		"registrations", report.Registrations)
	return nil
}

// Inspect runs config resolution, load and scan without the guard and
// without writing. OutputDir is not required.
func Inspect(ctx context.Context, opts Options) (*scan.Result, *Report, error) {
	if strings.TrimSpace(opts.OutputDir) == "" {
		opts.OutputDir = "."
	}
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}
	if opts.Provider == nil {
		opts.Provider = gosym.NewProvider()
	}

	p, err := prepare(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	report := &Report{}
	p.fill(report)
	return p.result, report, nil
}

// MarkerCandidates lists marker names in lookup order. An explicit config
// marker is the only candidate; otherwise the root package's own
// Serializable is preferred over the default marker.
func MarkerCandidates(cfg config.GeneratorConfig, rootPkg string) []string {
	if cfg.Marker != "" {
		return []string{cfg.Marker}
	}
	return []string{rootPkg + "." + RootMarkerName, marker.QualifiedName}
}

// ResolveRootPackage maps "./sub/dir" style arguments onto the module's
// import path space; anything else is taken as an import path already.
func ResolveRootPackage(mod *gosym.Module, root string) (string, error) {
	root = strings.TrimSpace(root)
	if root != "." && !strings.HasPrefix(root, "./") && !strings.HasPrefix(root, "../") {
		return strings.TrimSuffix(root, "/"), nil
	}
	return mod.ImportPathFor(filepath.Join(mod.Dir, filepath.FromSlash(root)))
}
