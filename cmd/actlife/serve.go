package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	httpadapter "github.com/bft-labs/actlife/internal/adapters/http"
	"github.com/bft-labs/actlife/internal/cliconfig"
	"github.com/bft-labs/actlife/pkg/activity"
	"github.com/bft-labs/actlife/pkg/client"
	"github.com/bft-labs/actlife/pkg/configuration"
	"github.com/bft-labs/actlife/pkg/lifecycle"
	"github.com/bft-labs/actlife/pkg/log"
	"github.com/bft-labs/actlife/pkg/metrics"
	"github.com/bft-labs/actlife/pkg/persist"
	"github.com/bft-labs/actlife/plugins"
	"github.com/bft-labs/actlife/plugins/configwatcher"
)

const defaultDisplay = "1080x1920@480"

type serveOptions struct {
	cfg     cliconfig.Config
	cfgPath string
	display string
}

func newServeCmd() *cobra.Command {
	o := &serveOptions{cfg: cliconfig.DefaultConfig(), display: defaultDisplay}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the lifecycle service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgFile := o.cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if err := cliconfig.Load(&o.cfg, cfgFile, changed); err != nil {
				return err
			}
			display, err := parseDisplay(o.display)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, o.cfg, cfgFile, changed, display)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.cfgPath, "config", "", "path to config file (default: $HOME/.actlife/config.toml)")
	f.StringVar(&o.display, "display", o.display, "initial configuration of display 0 as WIDTHxHEIGHT[@DENSITY]")
	bindConfigFlags(f, &o.cfg)
	return cmd
}

func bindConfigFlags(f *pflag.FlagSet, cfg *cliconfig.Config) {
	f.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "address for the client API and /metrics")
	f.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for persisted tasks (default: $HOME/.actlife/state)")
	f.StringVar(&cfg.AuthKey, "auth-key", cfg.AuthKey, "bearer token sent with lifecycle messages")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	f.DurationVar(&cfg.PauseTimeout, "pause-timeout", cfg.PauseTimeout, "time a client has to acknowledge a pause")
	f.DurationVar(&cfg.StopTimeout, "stop-timeout", cfg.StopTimeout, "time a client has to acknowledge a stop")
	f.DurationVar(&cfg.DestroyTimeout, "destroy-timeout", cfg.DestroyTimeout, "time a client has to acknowledge a destroy")
	f.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "time to wait for an idle report after resume")
	f.DurationVar(&cfg.RelaunchTimeout, "relaunch-timeout", cfg.RelaunchTimeout, "time a client has to finish a relaunch")
	f.DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "HTTP timeout for lifecycle messages")

	f.IntVar(&cfg.MaxStoppingToForce, "max-stopping", cfg.MaxStoppingToForce, "stopping activities that force an idle pass")
	f.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "outgoing messages buffered per client")

	f.BoolVar(&cfg.AllowUpscaling, "allow-upscaling", cfg.AllowUpscaling, "let size compat mode scale activities up")
	f.BoolVar(&cfg.SkipRelaunchWhenDocking, "skip-relaunch-docking", cfg.SkipRelaunchWhenDocking, "skip relaunch for desk dock changes of activities without desk resources")
	f.BoolVar(&cfg.UniversalResizeable, "universal-resizeable", cfg.UniversalResizeable, "treat every activity as resizeable")
	f.BoolVar(&cfg.Metrics, "metrics", cfg.Metrics, "serve Prometheus metrics on /metrics")
}

// parseDisplay reads WIDTHxHEIGHT[@DENSITY].
func parseDisplay(s string) (configuration.Display, error) {
	size, density, hasDensity := strings.Cut(s, "@")
	w, h, ok := strings.Cut(size, "x")
	if !ok {
		return configuration.Display{}, fmt.Errorf("display %q: want WIDTHxHEIGHT[@DENSITY]", s)
	}
	var d configuration.Display
	var err error
	if d.Width, err = strconv.Atoi(w); err != nil || d.Width <= 0 {
		return configuration.Display{}, fmt.Errorf("display %q: bad width", s)
	}
	if d.Height, err = strconv.Atoi(h); err != nil || d.Height <= 0 {
		return configuration.Display{}, fmt.Errorf("display %q: bad height", s)
	}
	if hasDensity {
		if d.Density, err = strconv.Atoi(density); err != nil || d.Density <= 0 {
			return configuration.Display{}, fmt.Errorf("display %q: bad density", s)
		}
	}
	return d, nil
}

// saveSignal asks the persister to write the task state.
type saveSignal struct {
	activity.NopObserver
	ch chan struct{}
}

func (s saveSignal) OnPersistentStateChanged(activity.TaskID) {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// resolveStored declares a restored component from its persisted name. The
// process name comes from the stored task.
func resolveStored(component string) (activity.Info, bool) {
	if component == "" {
		return activity.Info{}, false
	}
	return activity.Info{Component: component}, true
}

func serve(ctx context.Context, cfg cliconfig.Config, cfgFile string, changed map[string]bool, display configuration.Display) error {
	zl := cliconfig.Logger(cfg.LogLevel)
	logger := log.NewZerologAdapterWithLogger(zl)

	logCfg := cfg
	if logCfg.AuthKey != "" {
		logCfg.AuthKey = "*****"
	}
	zl.Info().Interface("config", logCfg).Str("version", getVersion()).Msg("configuration")

	var (
		eng     *activity.Engine
		handler *httpadapter.Handler
	)
	sender := httpadapter.NewSender(
		httpadapter.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		httpadapter.WithLogger(logger.With(log.String("component", "sender"))),
		httpadapter.WithAuthKey(cfg.AuthKey),
		httpadapter.WithQueueSize(cfg.QueueSize),
		httpadapter.WithOnGone(func(h client.Handle) {
			name, ok := handler.ProcessFor(h)
			if !ok {
				return
			}
			if err := eng.HandleAppDied(name); err != nil && !errors.Is(err, activity.ErrUnknownProcess) {
				logger.Warn("app death not handled", log.String("process", name), log.Err(err))
			}
		}),
	)

	saves := make(chan struct{}, 1)
	opts := []activity.Option{
		activity.WithLogger(logger.With(log.String("component", "engine"))),
		activity.WithTransport(sender),
		activity.WithObserver(saveSignal{ch: saves}),
	}

	mux := http.NewServeMux()
	if cfg.Metrics {
		reg, err := metrics.NewRegistry()
		if err != nil {
			return err
		}
		collector, err := metrics.NewCollector(reg)
		if err != nil {
			return err
		}
		opts = append(opts, activity.WithMetrics(collector))
		mux.Handle("GET /metrics", metrics.Handler(reg))
	}

	eng, err := activity.New(cfg.EngineConfig(activity.DefaultConfig()), opts...)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	handler = httpadapter.NewHandler(eng, sender, logger.With(log.String("component", "api")))
	mux.Handle("/", handler)

	if err := eng.SetDisplayConfiguration(0, display.Configuration(1)); err != nil {
		return err
	}

	repo := persist.NewFileRepository(cfg.StateDir)
	st, err := repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if !st.IsEmpty() {
		ids, err := eng.RestoreState(st, resolveStored)
		if err != nil {
			return fmt.Errorf("restore state: %w", err)
		}
		logger.Info("tasks restored", log.Int("tasks", len(ids)), log.String("path", repo.Path()))
	}

	group, gctx := lifecycle.NewGroup(ctx, logger)

	group.Go("engine", func() error { return eng.Run(gctx) })

	group.Go("persist", func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-saves:
				if err := repo.Save(gctx, eng.PersistState()); err != nil {
					logger.Warn("saving state failed", log.Err(err))
				}
			}
		}
	})

	watcher := configwatcher.New(configwatcher.DefaultConfig(cfgFile),
		func(path string, base activity.Config) (activity.Config, error) {
			return cliconfig.LoadEngineConfig(path, base, changed)
		})
	if err := watcher.Initialize(gctx, plugins.Config{Engine: eng, Logger: logger}); err != nil {
		logger.Warn("config watcher disabled", log.Err(err))
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return gctx },
	}
	group.Go("http", func() error {
		logger.Info("listening", log.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	<-gctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), lifecycle.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", log.Err(err))
	}
	if err := watcher.Shutdown(shutdownCtx); err != nil {
		logger.Warn("config watcher shutdown", log.Err(err))
	}
	group.Cancel()
	waitErr := group.WaitWithTimeout(lifecycle.ShutdownTimeout)
	sender.Close()

	if err := repo.Save(shutdownCtx, eng.PersistState()); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return waitErr
}
