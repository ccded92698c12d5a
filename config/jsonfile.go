package config

import (
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/teranos/autojson/errors"
)

// JSONFileName is the structured config file looked up in the project directory
const JSONFileName = "autojsonconfig.json"

// JSONFile reads autojsonconfig.json with Viper.
//
// Keys match case-insensitively and ignore '_' and '-', so includeBaseTypes,
// IncludeBaseTypes and include_base_types are the same key. Keys that are
// absent (or null) keep their default value.
type JSONFile struct{}

// Name implements Strategy
func (JSONFile) Name() Source { return SourceJSON }

// fileValues mirrors GeneratorConfig with pointers so absent keys are detectable
type fileValues struct {
	Namespaces          *[]string `mapstructure:"namespaces"`
	IncludeBaseTypes    *bool     `mapstructure:"includeBaseTypes"`
	CollectionTemplates *[]string `mapstructure:"collectionTemplates"`
	Marker              *string   `mapstructure:"marker"`
	PackageName         *string   `mapstructure:"packageName"`
	BuildFlags          *string   `mapstructure:"buildFlags"`
}

// Load implements Strategy
func (JSONFile) Load(projectDir string) (GeneratorConfig, bool, error) {
	path := filepath.Join(projectDir, JSONFileName)
	exists, err := fileExists(path)
	if err != nil || !exists {
		return GeneratorConfig{}, false, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return GeneratorConfig{}, false, errors.NewConfigParseError(err, path)
	}

	var values fileValues
	if err := v.Unmarshal(&values, withLenientKeys); err != nil {
		return GeneratorConfig{}, false, errors.NewConfigParseError(err, path)
	}

	cfg := values.applyTo(Default())
	cfg.Source = SourceJSON
	cfg.Path = path
	return cfg, true, nil
}

// applyTo overlays the keys present in the file onto base
func (f fileValues) applyTo(base GeneratorConfig) GeneratorConfig {
	if f.Namespaces != nil {
		base.Namespaces = *f.Namespaces
	}
	if f.IncludeBaseTypes != nil {
		base.IncludeBaseTypes = *f.IncludeBaseTypes
	}
	if f.CollectionTemplates != nil {
		base.CollectionTemplates = *f.CollectionTemplates
	}
	if f.Marker != nil {
		base.Marker = *f.Marker
	}
	if f.PackageName != nil {
		base.PackageName = *f.PackageName
	}
	if f.BuildFlags != nil {
		base.BuildFlags = *f.BuildFlags
	}
	return base
}

// withLenientKeys relaxes mapstructure's field matching to ignore case and separators
func withLenientKeys(dc *mapstructure.DecoderConfig) {
	dc.MatchName = func(mapKey, fieldName string) bool {
		return canonicalKey(mapKey) == canonicalKey(fieldName)
	}
}

var keySeparators = strings.NewReplacer("_", "", "-", "")

func canonicalKey(key string) string {
	return strings.ToLower(keySeparators.Replace(key))
}
