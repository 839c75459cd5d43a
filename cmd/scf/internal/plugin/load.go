package plugin

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/go-lynx/scf"
	"github.com/go-lynx/scf/cmd/scf/internal/base"
)

var loadHold bool

// CmdLoad loads the configured plugins plus any named on the command line.
var CmdLoad = &cobra.Command{
	Use:   "load [plugin[:tag]...]",
	Short: "Load plugins and report their state",
	Long: `Load the plugins listed under scf.plugins in the configuration, followed by
the plugins named as arguments, then print the state of every plugin.`,
	Example: `  # Load what the configuration asks for
  scf load -c scf.yaml

  # Load an extra plugin under a tag
  scf load -c scf.yaml renderer.software:video

  # Keep plugins loaded until interrupted
  scf load -c scf.yaml --hold`,
	RunE: runLoad,
}

func init() {
	CmdLoad.Flags().BoolVar(&loadHold, "hold", false, "keep plugins loaded until interrupted")
}

func runLoad(cmd *cobra.Command, args []string) error {
	sys, err := scf.NewSystem(base.Source())
	if err != nil {
		return err
	}
	defer sys.Close()

	if err := sys.Requests(); err != nil {
		return err
	}
	for _, a := range args {
		name, tag, err := scf.ParseRequest(a)
		if err != nil {
			return err
		}
		if err := sys.Loader().RequestPlugin(name, scf.WithTag(tag)); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	loadErr := sys.Start(ctx)

	printPlugins(cmd.OutOrStdout(), sys.Loader().Plugins())
	if loadHold && loadErr == nil {
		fmt.Fprintln(cmd.OutOrStdout(), color.CyanString("plugins loaded, press Ctrl+C to unload"))
		<-ctx.Done()
	}
	if loadErr != nil {
		return fmt.Errorf("some plugins failed to load")
	}
	return nil
}

func printPlugins(out io.Writer, plugins []scf.PluginInfo) {
	if len(plugins) == 0 {
		fmt.Fprintln(out, "No plugins requested.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "NAME\tTAG\tSTATE\tCAPABILITIES\tERROR\n")
	fmt.Fprintf(w, "----\t---\t-----\t------------\t-----\n")
	for _, p := range plugins {
		caps := make([]string, len(p.Capabilities))
		for i, d := range p.Capabilities {
			caps[i] = d.String()
		}
		errText := ""
		if p.Err != nil {
			errText = p.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			p.Name, dash(p.Tag), base.ColorState(p.State), dash(strings.Join(caps, ",")), errText)
	}
	_ = w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

