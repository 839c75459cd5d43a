package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-lynx/scf/cmd/scf/internal/base"
	"github.com/go-lynx/scf/cmd/scf/internal/plugin"
)

// release is overridden at build time with -ldflags "-X main.release=...".
var release = "v0.1.0"

var rootCmd = &cobra.Command{
	Use:           "scf",
	Short:         "scf: capability registry and plugin loader",
	Long:          `Load plugins into a capability registry and inspect plugin classes and modules.`,
	Version:       release,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return base.Setup(release)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		base.Teardown()
	},
}

func init() {
	base.AddFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(plugin.CmdLoad)
	rootCmd.AddCommand(plugin.CmdClasses)
	rootCmd.AddCommand(plugin.CmdScan)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, base.Fail(err))
		os.Exit(1)
	}
}
