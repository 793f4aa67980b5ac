package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Store backends selectable in engine settings.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
)

// StoreSettings selects and configures the checkpoint backend.
type StoreSettings struct {
	// Backend is one of memory, file, sqlite or mysql. There is no default:
	// picking the ephemeral backend has to be a deliberate choice.
	Backend string `yaml:"backend"`

	// Path is the directory (file backend) or database file (sqlite backend).
	Path string `yaml:"path"`

	// DSN is the connection string for the mysql backend.
	DSN string `yaml:"dsn"`
}

// Settings is the engine configuration document, loaded from a dde.yaml file
// and overridable per flag by the CLI.
type Settings struct {
	Store              StoreSettings `yaml:"store"`
	MaxWorkers         int           `yaml:"max_workers"`
	DefaultNodeTimeout Duration      `yaml:"default_node_timeout"`
	RunTimeout         Duration      `yaml:"run_timeout"`
	CheckpointInterval int           `yaml:"checkpoint_interval"`
	Speculation        bool          `yaml:"speculation"`
	MockTTL            Duration      `yaml:"mock_ttl"`

	// ConditionPolicy is "fail-open" (default) or "fail-closed".
	ConditionPolicy string `yaml:"condition_policy"`

	// LogJSON switches the event log from text lines to JSONL.
	LogJSON bool `yaml:"log_json"`
}

// DefaultSettings returns the baseline configuration before any file or flag
// is applied.
func DefaultSettings() Settings {
	return Settings{
		MaxWorkers:         1,
		CheckpointInterval: 1,
		ConditionPolicy:    "fail-open",
	}
}

// LoadSettings reads an engine settings file over the defaults. A missing
// file is not an error; the defaults stand.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, fmt.Errorf("read settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("parse settings file %s: %w", path, err)
	}
	return settings, settings.Validate()
}

// Validate checks cross-field constraints.
func (s Settings) Validate() error {
	switch s.Store.Backend {
	case "", BackendMemory:
	case BackendFile:
		if s.Store.Path == "" {
			return fmt.Errorf("store backend %q requires path", s.Store.Backend)
		}
	case BackendSQLite:
		if s.Store.Path == "" {
			return fmt.Errorf("store backend %q requires path", s.Store.Backend)
		}
	case BackendMySQL:
		if s.Store.DSN == "" {
			return fmt.Errorf("store backend %q requires dsn", s.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store backend %q", s.Store.Backend)
	}
	if s.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be at least 1")
	}
	if s.CheckpointInterval < 1 {
		return fmt.Errorf("checkpoint_interval must be at least 1")
	}
	switch s.ConditionPolicy {
	case "fail-open", "fail-closed":
	default:
		return fmt.Errorf("unknown condition_policy %q", s.ConditionPolicy)
	}
	return nil
}
