package cbvweb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/peterbourgon/cbvtrc/cbvmeta"
	"gopkg.in/yaml.v3"
)

// Config is the user-facing configuration of the toolbar. The zero value is
// valid, but leaves the toolbar disabled; see DefaultConfig.
type Config struct {
	// Enabled turns the toolbar on. Disabled toolbars pass every request
	// through untouched.
	Enabled bool `yaml:"enabled"`

	// DocHost serves the framework reference docs. Optional. By default,
	// cbvmeta.DefaultDocHost.
	DocHost string `yaml:"doc_host"`

	// DocVersion is the framework version used in doc links. Optional. By
	// default, cbv.Version.
	DocVersion string `yaml:"doc_version"`

	// DocPrefixes are the package paths which get doc links. Optional. By
	// default, cbvmeta.DefaultDocPrefixes.
	DocPrefixes []string `yaml:"doc_prefixes"`

	// MaxValueLen truncates serialized arguments and return values. Optional.
	// By default, 0, which means no truncation. The maximum is 100000.
	MaxValueLen int `yaml:"max_value_len"`

	// ExcludedMethods are never logged, in addition to
	// cbvmeta.DefaultExcludedMethods.
	ExcludedMethods []string `yaml:"excluded_methods"`

	// RouteSize is the number of recent requests kept per route. Optional. By
	// default, 100. See cbvstore.StoreConfig.
	RouteSize int `yaml:"route_size"`

	// Debug logs every intercepted call.
	Debug bool `yaml:"debug"`
}

const maxValueLenMax = 100000

// DefaultConfig returns an enabled config with default values.
func DefaultConfig() Config {
	return Config{Enabled: true}
}

// ParseConfig reads YAML into a copy of the base config. Unknown keys are an
// error.
func ParseConfig(r io.Reader, base Config) (Config, error) {
	cfg := base

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("decode config: %w", err)
	}

	return cfg.normalize(), nil
}

// LoadConfig reads the YAML file into a copy of the base config.
func LoadConfig(filename string, base Config) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return base, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(bytes.NewReader(data), base)
}

func (cfg Config) normalize() Config {
	switch {
	case cfg.MaxValueLen < 0:
		cfg.MaxValueLen = 0
	case cfg.MaxValueLen > maxValueLenMax:
		cfg.MaxValueLen = maxValueLenMax
	}
	if cfg.RouteSize < 0 {
		cfg.RouteSize = 0
	}
	return cfg
}

// Linker returns the doc linker described by the config.
func (cfg Config) Linker() cbvmeta.Linker {
	return cbvmeta.Linker{
		Host:     cfg.DocHost,
		Version:  cfg.DocVersion,
		Prefixes: cfg.DocPrefixes,
	}
}

// Enricher returns a new enricher described by the config.
func (cfg Config) Enricher() *cbvmeta.Enricher {
	cfg = cfg.normalize()
	excluded := append([]string{}, cbvmeta.DefaultExcludedMethods...)
	excluded = append(excluded, cfg.ExcludedMethods...)
	return cbvmeta.NewEnricher(cbvmeta.EnricherConfig{
		Linker:          cfg.Linker(),
		MaxValueLen:     cfg.MaxValueLen,
		ExcludedMethods: excluded,
	})
}
