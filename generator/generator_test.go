package generator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/autojson/config"
	"github.com/teranos/autojson/errors"
	"github.com/teranos/autojson/gosym"
	"github.com/teranos/autojson/guard"
	"github.com/teranos/autojson/marker"
	"github.com/teranos/autojson/render"
	"github.com/teranos/autojson/symtab/symtabtest"
)

const rootPkg = "example.com/app/gen"

type project struct {
	dir    string
	goMod  string
	outDir string
}

func newProject(t *testing.T, goVersion string) project {
	t.Helper()
	dir := t.TempDir()
	goMod := filepath.Join(dir, "go.mod")
	require.NoError(t, os.WriteFile(goMod, []byte("module example.com/app\n\ngo "+goVersion+"\n"), 0644))
	return project{dir: dir, goMod: goMod, outDir: filepath.Join(dir, "gen")}
}

func defaultMarkerTable() (*symtabtest.Table, *symtabtest.Type) {
	tbl := symtabtest.New()
	return tbl, tbl.Struct("github.com/teranos/autojson/marker", "Serializable")
}

func (p project) options(provider *symtabtest.StaticProvider) Options {
	return Options{
		ProjectPath: p.goMod,
		RootPackage: rootPkg,
		OutputDir:   p.outDir,
		Flag:        &guard.MemoryFlag{},
		Provider:    provider,
	}
}

func TestRunWritesArtifactOnce(t *testing.T) {
	p := newProject(t, "1.22")
	tbl, m := defaultMarkerTable()
	animal := tbl.Struct("example.com/app/models", "Animal").Mark(m)
	tbl.Struct("example.com/app/models", "Dog").Extends(animal)
	tbl.Struct("example.com/app/models", "Plain")
	provider := tbl.Provider()

	report, err := Run(context.Background(), p.options(provider))
	require.NoError(t, err)
	assert.Equal(t, guard.NotSkipped, report.Skipped)
	assert.True(t, report.Changed)
	assert.Equal(t, 2, report.TypeCount)
	assert.Equal(t, 8, report.Registrations)
	assert.Equal(t, marker.QualifiedName, report.Marker)
	assert.Equal(t, config.SourceDefaults, report.Config.Source)

	data, err := os.ReadFile(filepath.Join(p.outDir, render.FileName))
	require.NoError(t, err)
	assert.Equal(t, `// Code generated by autojsonctx. DO NOT EDIT.

package gen

import (
	"reflect"

	models "example.com/app/models"
)

// AutoJSONContext lists the types registered for ahead-of-time JSON serialization.
var AutoJSONContext = []reflect.Type{
	reflect.TypeFor[models.Animal](),
	reflect.TypeFor[[]models.Animal](),
	reflect.TypeFor[[]*models.Animal](),
	reflect.TypeFor[map[string]models.Animal](),
	reflect.TypeFor[models.Dog](),
	reflect.TypeFor[[]models.Dog](),
	reflect.TypeFor[[]*models.Dog](),
	reflect.TypeFor[map[string]models.Dog](),
}
`, string(data))
	assert.NoFileExists(t, filepath.Join(p.outDir, guard.LockFileName))

	require.Len(t, provider.Loads, 1)
	assert.Equal(t, p.dir, provider.Loads[0].Dir)
	assert.Equal(t, rootPkg, provider.Loads[0].LocalNamespace)

	again, err := Run(context.Background(), p.options(provider))
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Equal(t, 2, again.TypeCount)
}

func TestRunMarkerNotFoundWritesNothing(t *testing.T) {
	p := newProject(t, "1.22")
	tbl := symtabtest.New()
	tbl.Struct("example.com/app/models", "User")

	_, err := Run(context.Background(), p.options(tbl.Provider()))
	require.Error(t, err)
	assert.True(t, errors.IsMarkerNotFoundError(err))
	assert.NoFileExists(t, filepath.Join(p.outDir, render.FileName))
	assert.NoFileExists(t, filepath.Join(p.outDir, guard.LockFileName))
}

func TestRunMarkerNotFoundKeepsExistingArtifact(t *testing.T) {
	p := newProject(t, "1.22")
	require.NoError(t, os.MkdirAll(p.outDir, 0755))
	artifact := filepath.Join(p.outDir, render.FileName)
	require.NoError(t, os.WriteFile(artifact, []byte("package gen\n"), 0644))

	_, err := Run(context.Background(), p.options(symtabtest.New().Provider()))
	require.Error(t, err)

	data, err := os.ReadFile(artifact)
	require.NoError(t, err)
	assert.Equal(t, "package gen\n", string(data))
}

func TestRunUsageErrorHasNoSideEffects(t *testing.T) {
	p := newProject(t, "1.22")
	opts := p.options(symtabtest.New().Provider())
	opts.OutputDir = ""

	_, err := Run(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, errors.IsUsageError(err))
	assert.Contains(t, err.Error(), "output directory")
	assert.NoDirExists(t, p.outDir)
}

func TestRunSkipsWhenFlagRaised(t *testing.T) {
	p := newProject(t, "1.22")
	tbl, _ := defaultMarkerTable()
	provider := tbl.Provider()
	opts := p.options(provider)
	require.NoError(t, opts.Flag.Raise())

	report, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, guard.SkipFlagRaised, report.Skipped)
	assert.Empty(t, provider.Loads)
	assert.NoDirExists(t, p.outDir)
}

func TestRunSkipsWhenLockPresent(t *testing.T) {
	p := newProject(t, "1.22")
	require.NoError(t, os.MkdirAll(p.outDir, 0755))
	lock := filepath.Join(p.outDir, guard.LockFileName)
	require.NoError(t, os.WriteFile(lock, []byte("pid = 0\n"), 0644))
	tbl, _ := defaultMarkerTable()
	provider := tbl.Provider()

	report, err := Run(context.Background(), p.options(provider))
	require.NoError(t, err)
	assert.Equal(t, guard.SkipLockHeld, report.Skipped)
	assert.Empty(t, provider.Loads)
	assert.FileExists(t, lock)
	assert.NoFileExists(t, filepath.Join(p.outDir, render.FileName))
}

func TestRunPrefersRootPackageMarker(t *testing.T) {
	p := newProject(t, "1.22")
	tbl, defaultMarker := defaultMarkerTable()
	rootMarker := tbl.Struct(rootPkg, "Serializable")
	tbl.Struct("example.com/app/models", "ByRoot").Mark(rootMarker)
	tbl.Struct("example.com/app/models", "ByDefault").Mark(defaultMarker)

	report, err := Run(context.Background(), p.options(tbl.Provider()))
	require.NoError(t, err)
	assert.Equal(t, rootPkg+".Serializable", report.Marker)
	assert.Equal(t, 1, report.TypeCount)
}

func TestRunUsesProjectConfig(t *testing.T) {
	p := newProject(t, "1.21")
	require.NoError(t, os.WriteFile(filepath.Join(p.dir, config.JSONFileName), []byte(`{
  "namespaces": ["example.com/app/models"],
  "collectionTemplates": ["[]{0}"],
  "packageName": "registry",
  "buildFlags": "-tags integration"
}`), 0644))

	tbl, m := defaultMarkerTable()
	tbl.Struct("example.com/app/models", "User").Mark(m)
	tbl.Struct("example.com/app/other", "Widget").Mark(m)
	tbl.Struct(rootPkg, "local").Mark(m)
	provider := tbl.Provider()

	report, err := Run(context.Background(), p.options(provider))
	require.NoError(t, err)
	assert.Equal(t, config.SourceJSON, report.Config.Source)
	assert.Equal(t, 1, report.TypeCount)
	assert.Equal(t, []string{"-tags", "integration"}, provider.Loads[0].BuildFlags)

	data, err := os.ReadFile(report.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "package registry")
	assert.Contains(t, string(data), "reflect.TypeOf((*[]models.User)(nil)).Elem(),")
	assert.NotContains(t, string(data), "Widget")
}

func TestRunInvalidConfigIsFatal(t *testing.T) {
	p := newProject(t, "1.22")
	require.NoError(t, os.WriteFile(filepath.Join(p.dir, config.JSONFileName), []byte(`{"collectionTemplates": [`), 0644))
	tbl, _ := defaultMarkerTable()
	provider := tbl.Provider()

	_, err := Run(context.Background(), p.options(provider))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfigParse))
	assert.Empty(t, provider.Loads)
	assert.NoFileExists(t, filepath.Join(p.outDir, guard.LockFileName))
}

func TestRunProviderErrorReleasesGuard(t *testing.T) {
	p := newProject(t, "1.22")
	provider := symtabtest.New().Provider()
	provider.Err = errors.WithStack(errors.ErrToolchainNotFound)
	opts := p.options(provider)

	_, err := Run(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrToolchainNotFound))
	assert.False(t, opts.Flag.Raised())
	assert.NoFileExists(t, filepath.Join(p.outDir, guard.LockFileName))
}

func TestMarkerCandidates(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, []string{rootPkg + ".Serializable", marker.QualifiedName}, MarkerCandidates(cfg, rootPkg))

	cfg.Marker = "example.com/tags.JSON"
	assert.Equal(t, []string{"example.com/tags.JSON"}, MarkerCandidates(cfg, rootPkg))
}

func TestResolveRootPackage(t *testing.T) {
	mod := &gosym.Module{Path: "example.com/app", Dir: t.TempDir()}

	got, err := ResolveRootPackage(mod, "./internal/gen")
	require.NoError(t, err)
	assert.Equal(t, "example.com/app/internal/gen", got)

	got, err = ResolveRootPackage(mod, ".")
	require.NoError(t, err)
	assert.Equal(t, "example.com/app", got)

	got, err = ResolveRootPackage(mod, "example.com/app/gen/")
	require.NoError(t, err)
	assert.Equal(t, "example.com/app/gen", got)

	_, err = ResolveRootPackage(mod, "../elsewhere")
	require.Error(t, err)
}

func TestInspectDoesNotWrite(t *testing.T) {
	p := newProject(t, "1.22")
	tbl, m := defaultMarkerTable()
	tbl.Struct("example.com/app/models", "User").Mark(m)

	result, report, err := Inspect(context.Background(), Options{
		ProjectPath: p.goMod,
		RootPackage: rootPkg,
		Provider:    tbl.Provider(),
	})
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "example.com/app/models.User", result.Matches[0].Symbol.QualifiedName())
	assert.Equal(t, 1, report.TypeCount)
	assert.NoDirExists(t, p.outDir)
}

func TestRunRootPackageMarkerNeverImportsItsEmbedders(t *testing.T) {
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not available")
	}
	dir := t.TempDir()
	files := map[string]string{
		"go.mod": "module example.com/app\n\ngo 1.22\n",
		"app.go": "package app\n\ntype Serializable struct{}\n\ntype Settings struct{ Serializable }\n",
		"models/user.go": "package models\n\nimport \"example.com/app\"\n\ntype User struct{ app.Serializable }\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	opts := Options{
		ProjectPath: filepath.Join(dir, "go.mod"),
		RootPackage: ".",
		OutputDir:   dir,
		Flag:        &guard.MemoryFlag{},
		Provider:    gosym.NewProvider(),
	}
	report, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "example.com/app.Serializable", report.Marker)
	assert.Equal(t, 1, report.TypeCount)

	data, err := os.ReadFile(filepath.Join(dir, render.FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "reflect.TypeFor[Settings]()")
	assert.NotContains(t, string(data), "example.com/app/models")

	build := exec.Command("go", "build", "./...")
	build.Dir = dir
	out, err := build.CombinedOutput()
	require.NoError(t, err, string(out))

	report, err = Run(context.Background(), opts)
	require.NoError(t, err)
	assert.False(t, report.Changed)
}
