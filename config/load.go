package config

import (
	"os"
	"path/filepath"

	"github.com/teranos/autojson/errors"
	"github.com/teranos/autojson/logger"
)

// Strategy is one link of the resolution chain.
// Load returns ok=false when the strategy does not apply to projectDir
// (its file is absent); any error is fatal for the whole resolution.
type Strategy interface {
	Name() Source
	Load(projectDir string) (cfg GeneratorConfig, ok bool, err error)
}

// DefaultChain is the resolution order used by Resolve
var DefaultChain = []Strategy{
	JSONFile{},
	EditorConfig{},
}

// Resolve produces a fully-populated, validated config for projectDir
func Resolve(projectDir string) (GeneratorConfig, error) {
	return ResolveWith(projectDir, DefaultChain...)
}

// ResolveWith runs the given chain and falls back to Default()
func ResolveWith(projectDir string, chain ...Strategy) (GeneratorConfig, error) {
	cfg := Default()
	for _, strategy := range chain {
		loaded, ok, err := strategy.Load(projectDir)
		if err != nil {
			return GeneratorConfig{}, err
		}
		if ok {
			cfg = loaded
			break
		}
	}

	cfg = cfg.normalize()
	if err := cfg.Validate(); err != nil {
		if cfg.Path != "" {
			return GeneratorConfig{}, errors.Wrapf(err, "config %s", cfg.Path)
		}
		return GeneratorConfig{}, err
	}

	logger.Infow("Generator config resolved",
		"source", cfg.Source,
		"path", cfg.Path,
		"namespaces", cfg.Namespaces,
		"include_base_types", cfg.IncludeBaseTypes,
		"templates", len(cfg.CollectionTemplates))
	return cfg, nil
}

// ProjectDir returns the directory of a project file path.
// A directory is returned unchanged.
func ProjectDir(projectPath string) string {
	if info, err := os.Stat(projectPath); err == nil && info.IsDir() {
		return projectPath
	}
	return filepath.Dir(projectPath)
}

// fileExists reports whether path names a regular file
func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "failed to stat %s", path)
}
