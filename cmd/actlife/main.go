package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

const helpDescription = `
Drive application activities through their lifecycle: launch, pause, stop,
relaunch on configuration changes, recover from process death.

Commands:
  serve   run the lifecycle service clients attach to over HTTP
  run     replay a TOML scenario against a simulated client and check it
`

var exampleUsage = strings.TrimSpace(`
  actlife serve --listen 127.0.0.1:7070 --state-dir ~/.actlife/state
  actlife serve --config $HOME/.actlife/config.toml --pause-timeout 300ms
  actlife run testdata/rotation.toml
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func versionString() string {
	return fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "actlife",
		Short:         "Activity lifecycle engine",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newRunCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "actlife", versionString())
		},
	}
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "actlife:", err)
		os.Exit(1)
	}
}
