package plugin

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/go-lynx/scf/factory"
)

// CmdClasses lists the plugin classes compiled into the binary.
var CmdClasses = &cobra.Command{
	Use:   "classes",
	Short: "List in-process plugin classes",
	RunE: func(cmd *cobra.Command, args []string) error {
		classes := factory.Global().Classes()
		out := cmd.OutOrStdout()
		if len(classes) == 0 {
			fmt.Fprintln(out, "No plugin classes registered.")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintf(w, "CLASS\tDEPENDENCIES\tDESCRIPTION\n")
		for _, c := range classes {
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, dash(strings.Join(c.Dependencies, ",")), c.Description)
		}
		return w.Flush()
	},
}
