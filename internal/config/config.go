// Package config loads bidscombine configuration from an optional YAML
// file and merges CLI flag overrides on top.
package config

import (
	"fmt"
	"os"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = ".bidscombine.yaml"

// datasetNameRe restricts dataset names to filename-safe characters;
// the value lands verbatim in the niftis_desc-<name> directory name.
var datasetNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*$`)

// Config holds the run options that may come from a file instead of
// flags. Flags always take precedence.
type Config struct {
	// DatasetName is the desc- value of the output directory name.
	DatasetName string `yaml:"dataset_name"`

	// OwnerGroup is a group name or numeric GID applied to new files.
	OwnerGroup string `yaml:"owner_group"`

	// LogLevel sets console verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// Overwrite allows clobbering output from a previous run.
	Overwrite bool `yaml:"overwrite"`

	// DryRun plans and logs without copying.
	DryRun bool `yaml:"dry_run"`
}

// Default returns a Config with the stock values.
func Default() *Config {
	return &Config{
		DatasetName: "combined",
		LogLevel:    "info",
	}
}

// Load loads configuration from path. A missing file is not an error
// and yields the defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if cfg.DatasetName == "" {
		cfg.DatasetName = "combined"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// MergeWithFlags applies flag values on top of file values. Nil
// pointers mean the flag was not set on the command line.
func (c *Config) MergeWithFlags(datasetName, ownerGroup, logLevel *string, overwrite, dryRun *bool) {
	if datasetName != nil {
		c.DatasetName = *datasetName
	}
	if ownerGroup != nil {
		c.OwnerGroup = *ownerGroup
	}
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if overwrite != nil {
		c.Overwrite = *overwrite
	}
	if dryRun != nil {
		c.DryRun = *dryRun
	}
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DatasetName,
			validation.Required,
			validation.Match(datasetNameRe).Error("must be alphanumeric (dashes allowed after the first character)"),
		),
		validation.Field(&c.LogLevel,
			validation.Required,
			validation.In("debug", "info", "warn", "error"),
		),
	)
}
