// Package config resolves the tool's configuration from environment
// variables, an optional YAML file, and command-line flags, in ascending
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Server identifies one lifecycle tracking system and the credential used
// to query it.
type Server struct {
	URL   string `yaml:"url" env:"URL"`
	Token string `yaml:"token" env:"TOKEN"`
}

// Sync is the sweep-mode configuration: a source/target server pair.
type Sync struct {
	Source Server `yaml:"source" envPrefix:"RBSYNC_SOURCE_"`
	Target Server `yaml:"target" envPrefix:"RBSYNC_TARGET_"`
}

// Validate checks that both server pairs are complete.
func (c Sync) Validate() error {
	var missing []string
	if c.Source.URL == "" {
		missing = append(missing, "source URL")
	}
	if c.Source.Token == "" {
		missing = append(missing, "source token")
	}
	if c.Target.URL == "" {
		missing = append(missing, "target URL")
	}
	if c.Target.Token == "" {
		missing = append(missing, "target token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("incomplete configuration: missing %v", missing)
	}
	return nil
}

// SyncFromEnv reads the sweep configuration from RBSYNC_SOURCE_* and
// RBSYNC_TARGET_* environment variables.
func SyncFromEnv() (Sync, error) {
	var cfg Sync
	if err := env.Parse(&cfg); err != nil {
		return Sync{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// SyncFromFile reads a YAML server-pair file.
func SyncFromFile(path string) (Sync, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Sync{}, fmt.Errorf("read config file: %w", err)
	}
	var cfg Sync
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Sync{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadSync resolves the sweep configuration. Environment variables form the
// base; a config file, when given, overrides them field by field. Flag
// overrides are applied by the caller on top.
func LoadSync(file string) (Sync, error) {
	cfg, err := SyncFromEnv()
	if err != nil {
		return Sync{}, err
	}
	if file == "" {
		return cfg, nil
	}
	fromFile, err := SyncFromFile(file)
	if err != nil {
		return Sync{}, err
	}
	cfg.Source = cfg.Source.overlay(fromFile.Source)
	cfg.Target = cfg.Target.overlay(fromFile.Target)
	return cfg, nil
}

func (s Server) overlay(over Server) Server {
	if over.URL != "" {
		s.URL = over.URL
	}
	if over.Token != "" {
		s.Token = over.Token
	}
	return s
}

// Event is the event-mode configuration: one triggering promotion plus the
// endpoints needed for the origin guard. The variable names follow the
// trigger environment the tool runs under.
type Event struct {
	SourceURL   string `env:"SOURCE_URL"`
	SourceToken string `env:"SOURCE_ACCESS_TOKEN"`
	TargetURL   string `env:"TARGET_URL"`
	TargetToken string `env:"TARGET_ACCESS_TOKEN"`

	BundleName    string `env:"RELEASE_BUNDLE"`
	BundleVersion string `env:"BUNDLE_VERSION"`
	ProjectKey    string `env:"PROJECT_KEY" envDefault:"default"`
	RepositoryKey string `env:"REPOSITORY_KEY"`

	Environment   string   `env:"PROMOTION_ENVIRONMENT"`
	IncludedRepos []string `env:"PROMOTION_INCLUDED_REPOS" envSeparator:","`
	ExcludedRepos []string `env:"PROMOTION_EXCLUDED_REPOS" envSeparator:","`
	CreatedMillis int64    `env:"PROMOTION_CREATED_MILLIS"`

	Origin        string `env:"TRIGGER_ORIGIN_URL"`
	PrimarySource string `env:"PRIMARY_SOURCE_URL"`
}

// EventFromEnv reads the event-mode configuration from the environment.
func EventFromEnv() (Event, error) {
	var cfg Event
	if err := env.Parse(&cfg); err != nil {
		return Event{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields the event driver cannot run without. The
// origin guard needs both endpoints; comparing against an empty primary
// would silently ignore every trigger.
func (c Event) Validate() error {
	var missing []string
	if c.TargetURL == "" {
		missing = append(missing, "TARGET_URL")
	}
	if c.TargetToken == "" {
		missing = append(missing, "TARGET_ACCESS_TOKEN")
	}
	if c.BundleName == "" {
		missing = append(missing, "RELEASE_BUNDLE")
	}
	if c.BundleVersion == "" {
		missing = append(missing, "BUNDLE_VERSION")
	}
	if c.Environment == "" {
		missing = append(missing, "PROMOTION_ENVIRONMENT")
	}
	if c.Origin == "" {
		missing = append(missing, "TRIGGER_ORIGIN_URL")
	}
	if c.PrimarySource == "" {
		missing = append(missing, "PRIMARY_SOURCE_URL")
	}
	if len(missing) > 0 {
		return errors.New("missing required configuration: " + fmt.Sprint(missing))
	}
	return nil
}
