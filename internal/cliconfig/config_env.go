package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (ACTLIFE_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("listen", os.Getenv("ACTLIFE_LISTEN"), &cfg.ListenAddr)
	s.setString("state-dir", os.Getenv("ACTLIFE_STATE_DIR"), &cfg.StateDir)
	s.setString("auth-key", os.Getenv("ACTLIFE_AUTH_KEY"), &cfg.AuthKey)
	s.setString("log-level", os.Getenv("ACTLIFE_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("pause-timeout", os.Getenv("ACTLIFE_PAUSE_TIMEOUT"), &cfg.PauseTimeout); err != nil {
		return err
	}
	if err := s.setDuration("stop-timeout", os.Getenv("ACTLIFE_STOP_TIMEOUT"), &cfg.StopTimeout); err != nil {
		return err
	}
	if err := s.setDuration("destroy-timeout", os.Getenv("ACTLIFE_DESTROY_TIMEOUT"), &cfg.DestroyTimeout); err != nil {
		return err
	}
	if err := s.setDuration("idle-timeout", os.Getenv("ACTLIFE_IDLE_TIMEOUT"), &cfg.IdleTimeout); err != nil {
		return err
	}
	if err := s.setDuration("relaunch-timeout", os.Getenv("ACTLIFE_RELAUNCH_TIMEOUT"), &cfg.RelaunchTimeout); err != nil {
		return err
	}
	if err := s.setDuration("http-timeout", os.Getenv("ACTLIFE_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("max-stopping", os.Getenv("ACTLIFE_MAX_STOPPING"), &cfg.MaxStoppingToForce); err != nil {
		return err
	}
	if err := s.setIntFromString("queue-size", os.Getenv("ACTLIFE_QUEUE_SIZE"), &cfg.QueueSize); err != nil {
		return err
	}

	s.setBoolFromString("allow-upscaling", os.Getenv("ACTLIFE_ALLOW_UPSCALING"), &cfg.AllowUpscaling)
	s.setBoolFromString("skip-relaunch-docking", os.Getenv("ACTLIFE_SKIP_RELAUNCH_DOCKING"), &cfg.SkipRelaunchWhenDocking)
	s.setBoolFromString("universal-resizeable", os.Getenv("ACTLIFE_UNIVERSAL_RESIZEABLE"), &cfg.UniversalResizeable)
	s.setBoolFromString("metrics", os.Getenv("ACTLIFE_METRICS"), &cfg.Metrics)

	return nil
}
