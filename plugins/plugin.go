// Package plugins defines the contract for optional components started
// alongside the engine by the serve command.
package plugins

import (
	"context"

	"github.com/bft-labs/actlife/pkg/activity"
	"github.com/bft-labs/actlife/pkg/log"
)

// Engine is the engine surface available to plugins.
type Engine interface {
	Config() activity.Config
	UpdateConfig(cfg activity.Config) error
}

// Config is handed to a plugin on Initialize.
type Config struct {
	Engine Engine
	Logger log.Logger
}

// Plugin is an optional component with its own goroutines.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg Config) error
	Shutdown(ctx context.Context) error
}
