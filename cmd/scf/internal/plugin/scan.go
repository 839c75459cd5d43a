package plugin

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/go-lynx/scf/cmd/scf/internal/base"
	"github.com/go-lynx/scf/discovery"
	"github.com/go-lynx/scf/module"
)

var scanPaths []string

// CmdScan lists the native plugin modules found in the plugin paths.
var CmdScan = &cobra.Command{
	Use:   "scan",
	Short: "List native plugin modules in the plugin paths",
	Example: `  # Scan the paths from the configuration
  scf scan -c scf.yaml

  # Scan explicit directories
  scf scan -p ./plugins -p /opt/scf/plugins`,
	RunE: runScan,
}

func init() {
	CmdScan.Flags().StringSliceVarP(&scanPaths, "path", "p", nil, "plugin directory (repeatable, overrides scf.paths)")
}

func runScan(cmd *cobra.Command, args []string) error {
	paths := scanPaths
	if len(paths) == 0 {
		paths = base.Config().Paths
	}
	out := cmd.OutOrStdout()
	if len(paths) == 0 {
		fmt.Fprintln(out, "No plugin paths configured. Use --path or scf.paths.")
		return nil
	}
	names, err := discovery.Scan(paths...)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintf(out, "No plugin modules found in %d paths.\n", len(paths))
		return nil
	}
	native := module.NewNative(paths...)
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "PLUGIN\tFILE\n")
	for _, n := range names {
		file, err := native.Locate(n)
		if err != nil {
			file = color.RedString(err.Error())
		}
		fmt.Fprintf(w, "%s\t%s\n", color.CyanString(n), file)
	}
	return w.Flush()
}
