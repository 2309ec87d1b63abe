package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bft-labs/actlife/internal/cliconfig"
	"github.com/bft-labs/actlife/internal/scenario"
	"github.com/bft-labs/actlife/pkg/log"
)

var errScenarioFailed = errors.New("scenario failed")

func newRunCmd() *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "run <scenario.toml>...",
		Short: "Replay scenarios against a simulated client",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.NewZerologAdapterWithLogger(cliconfig.Logger(logLevel))
			runner := scenario.NewRunner(scenario.WithLogger(logger))

			failed := 0
			for _, path := range args {
				sc, err := scenario.Load(path)
				if err != nil {
					return err
				}
				rep, err := runner.Run(cmd.Context(), sc)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if _, err := rep.WriteTo(cmd.OutOrStdout()); err != nil {
					return err
				}
				if !rep.Passed() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", errScenarioFailed, failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	return cmd
}
