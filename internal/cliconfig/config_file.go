package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bft-labs/actlife/pkg/activity"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	ListenAddr string `toml:"listen"`
	StateDir   string `toml:"state_dir"`
	AuthKey    string `toml:"auth_key"`
	LogLevel   string `toml:"log_level"`

	PauseTimeout    string `toml:"pause_timeout"`
	StopTimeout     string `toml:"stop_timeout"`
	DestroyTimeout  string `toml:"destroy_timeout"`
	IdleTimeout     string `toml:"idle_timeout"`
	RelaunchTimeout string `toml:"relaunch_timeout"`
	HTTPTimeout     string `toml:"http_timeout"`

	MaxStoppingToForce int `toml:"max_stopping"`
	QueueSize          int `toml:"queue_size"`

	AllowUpscaling          *bool `toml:"allow_upscaling"`
	SkipRelaunchWhenDocking *bool `toml:"skip_relaunch_docking"`
	UniversalResizeable     *bool `toml:"universal_resizeable"`
	Metrics                 *bool `toml:"metrics"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.actlife/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".actlife", "config.toml")
	}
	return ""
}

// DefaultStateDir returns ~/.actlife/state, or a relative directory when
// the home directory is unknown.
func DefaultStateDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".actlife", "state")
	}
	return filepath.Join(".actlife", "state")
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("listen", fc.ListenAddr, &cfg.ListenAddr)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("auth-key", fc.AuthKey, &cfg.AuthKey)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("pause-timeout", fc.PauseTimeout, &cfg.PauseTimeout); err != nil {
		return err
	}
	if err := s.setDuration("stop-timeout", fc.StopTimeout, &cfg.StopTimeout); err != nil {
		return err
	}
	if err := s.setDuration("destroy-timeout", fc.DestroyTimeout, &cfg.DestroyTimeout); err != nil {
		return err
	}
	if err := s.setDuration("idle-timeout", fc.IdleTimeout, &cfg.IdleTimeout); err != nil {
		return err
	}
	if err := s.setDuration("relaunch-timeout", fc.RelaunchTimeout, &cfg.RelaunchTimeout); err != nil {
		return err
	}
	if err := s.setDuration("http-timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}

	s.setInt("max-stopping", fc.MaxStoppingToForce, &cfg.MaxStoppingToForce)
	s.setInt("queue-size", fc.QueueSize, &cfg.QueueSize)

	s.setBool("allow-upscaling", fc.AllowUpscaling, &cfg.AllowUpscaling)
	s.setBool("skip-relaunch-docking", fc.SkipRelaunchWhenDocking, &cfg.SkipRelaunchWhenDocking)
	s.setBool("universal-resizeable", fc.UniversalResizeable, &cfg.UniversalResizeable)
	s.setBool("metrics", fc.Metrics, &cfg.Metrics)

	return nil
}

// Load builds a Config from defaults, the file at path (if it exists) and
// the environment. Flags in changed win over both.
func Load(cfg *Config, path string, changed map[string]bool) error {
	if path != "" && FileExists(path) {
		fc, err := LoadFileConfig(path)
		if err != nil {
			return err
		}
		if err := ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	}
	if err := ApplyEnvConfig(cfg, changed); err != nil {
		return err
	}
	return cfg.Validate()
}

// LoadEngineConfig re-reads the file at path and the environment on top of
// base. Tunables whose flag is in changed keep their value from base.
func LoadEngineConfig(path string, base activity.Config, changed map[string]bool) (activity.Config, error) {
	fc, err := LoadFileConfig(path)
	if err != nil {
		return base, err
	}
	cfg := DefaultConfig()
	cfg.PauseTimeout = base.PauseTimeout
	cfg.StopTimeout = base.StopTimeout
	cfg.DestroyTimeout = base.DestroyTimeout
	cfg.IdleTimeout = base.IdleTimeout
	cfg.RelaunchTimeout = base.RelaunchTimeout
	cfg.MaxStoppingToForce = base.MaxStoppingToForce
	cfg.AllowUpscaling = base.AllowUpscaling
	cfg.SkipRelaunchWhenDocking = base.SkipRelaunchWhenDocking
	cfg.UniversalResizeable = base.UniversalResizeable

	if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
		return base, err
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		return base, err
	}
	return cfg.EngineConfig(base), nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
