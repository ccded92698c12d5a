package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/autojson/guard"
	"github.com/teranos/autojson/render"
	"github.com/teranos/autojson/symtab"
	"github.com/teranos/autojson/symtab/symtabtest"
)

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	os.Exit(m.Run())
}

type result struct {
	code   int
	stdout string
	stderr string
}

func run(args ...string) result {
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), args, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// useTable routes the CLI to an in-memory table and a private recursion flag
func useTable(t *testing.T, tbl *symtabtest.Table) *guard.MemoryFlag {
	t.Helper()
	flag := &guard.MemoryFlag{}
	prevProvider, prevFlag := newProvider, newFlag
	newProvider = func() symtab.Provider { return tbl.Provider() }
	newFlag = func() guard.Flag { return flag }
	t.Cleanup(func() { newProvider, newFlag = prevProvider, prevFlag })
	return flag
}

func shopTable() *symtabtest.Table {
	tbl := symtabtest.New()
	m := tbl.Struct("github.com/teranos/autojson/marker", "Serializable")
	order := tbl.Struct("example.com/shop/models", "Order").Mark(m)
	tbl.Struct("example.com/shop/models", "RushOrder").Extends(order)
	return tbl
}

func newModule(t *testing.T) (goMod, outDir string) {
	t.Helper()
	dir := t.TempDir()
	goMod = filepath.Join(dir, "go.mod")
	require.NoError(t, os.WriteFile(goMod, []byte("module example.com/shop\n\ngo 1.24\n"), 0644))
	return goMod, filepath.Join(dir, "gen")
}

func TestNoArgumentsIsUsageError(t *testing.T) {
	r := run()
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "expected <project-file> <root-package> <output-dir>")
	assert.Contains(t, r.stderr, "Usage:")
	assert.Empty(t, r.stdout)
}

func TestMissingOutputDirHasNoSideEffects(t *testing.T) {
	useTable(t, shopTable())
	goMod, outDir := newModule(t)

	r := run(goMod, "example.com/shop/gen")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "got 2 argument(s)")
	assert.NoDirExists(t, outDir)
}

func TestGenerate(t *testing.T) {
	useTable(t, shopTable())
	goMod, outDir := newModule(t)

	r := run(goMod, "./gen", outDir)
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Generated")
	assert.Contains(t, r.stdout, "2 types, 8 registrations")

	data, err := os.ReadFile(filepath.Join(outDir, render.FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "reflect.TypeFor[models.RushOrder]()")

	r = run(goMod, "./gen", outDir, "ignored-extra")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "No changes detected")
}

func TestGenerateSkipsNestedRun(t *testing.T) {
	flag := useTable(t, shopTable())
	require.NoError(t, flag.Raise())
	goMod, outDir := newModule(t)

	r := run(goMod, "./gen", outDir)
	assert.Equal(t, 0, r.code)
	assert.Contains(t, r.stdout, "Generation skipped")
	assert.NoDirExists(t, outDir)
}

func TestGenerateMarkerNotFound(t *testing.T) {
	useTable(t, symtabtest.New())
	goMod, outDir := newModule(t)

	r := run(goMod, "./gen", outDir)
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "marker")
	assert.Contains(t, r.stderr, "hint:")
	assert.NotContains(t, r.stderr, "Usage:")
	assert.NoFileExists(t, filepath.Join(outDir, render.FileName))
}

func TestGenerateVerboseErrorIncludesCauseChain(t *testing.T) {
	useTable(t, symtabtest.New())
	goMod, outDir := newModule(t)

	r := run("-v", goMod, "./gen", outDir)
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "marker type not found")
	assert.Contains(t, r.stderr, "stack trace")
}

func TestScan(t *testing.T) {
	useTable(t, shopTable())
	goMod, _ := newModule(t)

	r := run("scan", goMod, "./gen")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "example.com/shop/models.Order")
	assert.Contains(t, r.stdout, "example.com/shop/models.RushOrder")
	assert.Contains(t, r.stdout, "inherited")
	assert.Contains(t, r.stdout, "2 eligible types")
}

func TestScanWrongArgs(t *testing.T) {
	r := run("scan", "go.mod")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "Usage:")
}

func TestConfigFormats(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".editorconfig"),
		[]byte("autojson.namespaces = example.com/shop/models\nautojson.includeBaseTypes = false\n"), 0644))

	r := run("config", dir)
	require.Equal(t, 0, r.code, r.stderr)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &decoded))
	assert.Equal(t, false, decoded["includeBaseTypes"])
	assert.Contains(t, r.stderr, "source: editorconfig")

	r = run("config", dir, "--format", "yaml")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "includeBaseTypes: false")
	assert.Contains(t, r.stdout, "- example.com/shop/models")

	r = run("config", dir, "--format", "toml")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "includeBaseTypes = false")

	r = run("config", dir, "--format", "xml")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "unsupported format")
}

func TestVersion(t *testing.T) {
	r := run("version")
	require.Equal(t, 0, r.code)
	assert.Contains(t, r.stdout, "autojsonctx")
	assert.Contains(t, r.stdout, "Platform:")

	r = run("version", "--json")
	require.Equal(t, 0, r.code)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &info))
	assert.NotEmpty(t, info["go_version"])
}
