package activity

import (
	"fmt"
	"time"
)

// Config holds the engine tunables.
type Config struct {
	PauseTimeout    time.Duration
	StopTimeout     time.Duration
	DestroyTimeout  time.Duration
	IdleTimeout     time.Duration
	RelaunchTimeout time.Duration

	// MaxStoppingToForce forces an idle pass once the stopping list grows
	// beyond this many records.
	MaxStoppingToForce int
	// ResizeRelaunchRetryLimit bounds how many launches a record whose
	// process died mid resize-relaunch is retained for.
	ResizeRelaunchRetryLimit int
	// CrashLoopLaunchCount and CrashLoopWindow detect an invisible
	// activity that keeps crashing right after launch.
	CrashLoopLaunchCount int
	CrashLoopWindow      time.Duration

	AllowUpscaling          bool
	SkipRelaunchWhenDocking bool
	UniversalResizeable     bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		PauseTimeout:             500 * time.Millisecond,
		StopTimeout:              11 * time.Second,
		DestroyTimeout:           10 * time.Second,
		IdleTimeout:              10 * time.Second,
		RelaunchTimeout:          10 * time.Second,
		MaxStoppingToForce:       3,
		ResizeRelaunchRetryLimit: 3,
		CrashLoopLaunchCount:     2,
		CrashLoopWindow:          60 * time.Second,
		SkipRelaunchWhenDocking:  true,
	}
}

// Validate checks that every timeout is positive and every limit sane.
func (c Config) Validate() error {
	timeouts := []struct {
		name string
		d    time.Duration
	}{
		{"pause timeout", c.PauseTimeout},
		{"stop timeout", c.StopTimeout},
		{"destroy timeout", c.DestroyTimeout},
		{"idle timeout", c.IdleTimeout},
		{"relaunch timeout", c.RelaunchTimeout},
		{"crash loop window", c.CrashLoopWindow},
	}
	for _, t := range timeouts {
		if t.d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidConfig, t.name, t.d)
		}
	}
	if c.MaxStoppingToForce < 0 {
		return fmt.Errorf("%w: max stopping to force must not be negative", ErrInvalidConfig)
	}
	if c.ResizeRelaunchRetryLimit < 0 || c.CrashLoopLaunchCount < 0 {
		return fmt.Errorf("%w: launch limits must not be negative", ErrInvalidConfig)
	}
	return nil
}
