package config

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/teranos/autojson/errors"
)

// EditorConfigFileName is the line-oriented fallback file
const EditorConfigFileName = ".editorconfig"

// Recognized .editorconfig keys. Lines are matched by prefix, like the
// original MSBuild integration did, so section headers are irrelevant.
const (
	keyNamespaces          = "autojson.namespaces"
	keyIncludeBaseTypes    = "autojson.includeBaseTypes"
	keyCollectionTemplates = "autojson.collectionTemplates"
	keyMarker              = "autojson.marker"
	keyPackageName         = "autojson.packageName"
	keyBuildFlags          = "autojson.buildFlags"
)

// maxEditorConfigLine bounds a single .editorconfig line
const maxEditorConfigLine = 1 << 20

// EditorConfig reads autojson.* settings from .editorconfig:
//
//	autojson.namespaces = example.com/app/models; example.com/app/api
//	autojson.includeBaseTypes = false
//	autojson.collectionTemplates = {0}, []{0}
//
// Missing keys keep their defaults. A repeated key takes the last value.
type EditorConfig struct{}

// Name implements Strategy
func (EditorConfig) Name() Source { return SourceEditorConfig }

// Load implements Strategy
func (EditorConfig) Load(projectDir string) (GeneratorConfig, bool, error) {
	path := filepath.Join(projectDir, EditorConfigFileName)
	exists, err := fileExists(path)
	if err != nil || !exists {
		return GeneratorConfig{}, false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return GeneratorConfig{}, false, errors.Wrapf(err, "failed to read %s", path)
	}

	cfg, err := parseEditorConfig(data)
	if err != nil {
		return GeneratorConfig{}, false, errors.NewConfigParseError(err, path)
	}
	cfg.Source = SourceEditorConfig
	cfg.Path = path
	return cfg, true, nil
}

// parseEditorConfig applies every recognized line on top of Default()
func parseEditorConfig(data []byte) (GeneratorConfig, error) {
	cfg := Default()

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxEditorConfigLine)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "autojson.") {
			continue
		}

		switch {
		case strings.HasPrefix(line, keyNamespaces):
			value, err := valueOf(line, lineNo)
			if err != nil {
				return cfg, err
			}
			cfg.Namespaces = splitList(value, ";")

		case strings.HasPrefix(line, keyIncludeBaseTypes):
			value, err := valueOf(line, lineNo)
			if err != nil {
				return cfg, err
			}
			include, err := strconv.ParseBool(value)
			if err != nil {
				return cfg, errors.Wrapf(err, "line %d: %s", lineNo, keyIncludeBaseTypes)
			}
			cfg.IncludeBaseTypes = include

		case strings.HasPrefix(line, keyCollectionTemplates):
			value, err := valueOf(line, lineNo)
			if err != nil {
				return cfg, err
			}
			cfg.CollectionTemplates = splitList(value, ",")

		case strings.HasPrefix(line, keyMarker):
			value, err := valueOf(line, lineNo)
			if err != nil {
				return cfg, err
			}
			cfg.Marker = value

		case strings.HasPrefix(line, keyPackageName):
			value, err := valueOf(line, lineNo)
			if err != nil {
				return cfg, err
			}
			cfg.PackageName = value

		case strings.HasPrefix(line, keyBuildFlags):
			value, err := valueOf(line, lineNo)
			if err != nil {
				return cfg, err
			}
			cfg.BuildFlags = value
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, errors.Wrapf(err, "line %d", lineNo+1)
	}
	return cfg, nil
}

// valueOf returns the trimmed text after the first '='
func valueOf(line string, lineNo int) (string, error) {
	_, value, found := strings.Cut(line, "=")
	if !found {
		return "", errors.Newf("line %d: expected key = value, got %q", lineNo, line)
	}
	return strings.TrimSpace(value), nil
}

// splitList splits on sep, trims entries and drops empty ones
func splitList(value, sep string) []string {
	parts := strings.Split(value, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
