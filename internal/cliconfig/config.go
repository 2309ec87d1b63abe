package cliconfig

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/actlife/pkg/activity"
)

// DefaultListenAddr is where serve accepts client traffic.
const DefaultListenAddr = "127.0.0.1:7070"

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("actlife: invalid configuration")

// Config holds CLI configuration for actlife.
type Config struct {
	ListenAddr string
	StateDir   string
	AuthKey    string
	LogLevel   string

	PauseTimeout    time.Duration
	StopTimeout     time.Duration
	DestroyTimeout  time.Duration
	IdleTimeout     time.Duration
	RelaunchTimeout time.Duration
	HTTPTimeout     time.Duration

	MaxStoppingToForce int
	QueueSize          int

	AllowUpscaling          bool
	SkipRelaunchWhenDocking bool
	UniversalResizeable     bool
	Metrics                 bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	ec := activity.DefaultConfig()
	return Config{
		ListenAddr:              DefaultListenAddr,
		LogLevel:                "info",
		PauseTimeout:            ec.PauseTimeout,
		StopTimeout:             ec.StopTimeout,
		DestroyTimeout:          ec.DestroyTimeout,
		IdleTimeout:             ec.IdleTimeout,
		RelaunchTimeout:         ec.RelaunchTimeout,
		HTTPTimeout:             10 * time.Second,
		MaxStoppingToForce:      ec.MaxStoppingToForce,
		QueueSize:               256,
		SkipRelaunchWhenDocking: ec.SkipRelaunchWhenDocking,
		Metrics:                 true,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.StateDir == "" {
		c.StateDir = DefaultStateDir()
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: http timeout must be positive", ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue size must be positive", ErrInvalidConfig)
	}
	if err := c.EngineConfig(activity.DefaultConfig()).Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// EngineConfig overlays the engine tunables of c onto base.
func (c Config) EngineConfig(base activity.Config) activity.Config {
	base.PauseTimeout = c.PauseTimeout
	base.StopTimeout = c.StopTimeout
	base.DestroyTimeout = c.DestroyTimeout
	base.IdleTimeout = c.IdleTimeout
	base.RelaunchTimeout = c.RelaunchTimeout
	base.MaxStoppingToForce = c.MaxStoppingToForce
	base.AllowUpscaling = c.AllowUpscaling
	base.SkipRelaunchWhenDocking = c.SkipRelaunchWhenDocking
	base.UniversalResizeable = c.UniversalResizeable
	return base
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
