package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aristath/stagetrack/internal/stages"
)

func newCatalogCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog [stage-id]",
		Short: "Print the configured stage catalog, or one stage in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				def, ok := a.catalog.Lookup(args[0])
				if !ok {
					return fmt.Errorf("unknown stage %q", args[0])
				}
				return printStage(cmd.OutOrStdout(), def)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tID\tNAME\tRANGE\tDAYS")
			for i, def := range a.catalog.Definitions() {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d-%d\t%s\n", i+1, def.ID, def.Name, def.Min, def.Max, allotted(def))
			}
			return w.Flush()
		},
	}
}

func printStage(out io.Writer, def stages.Definition) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", def.ID)
	fmt.Fprintf(w, "Name:\t%s\n", def.Name)
	fmt.Fprintf(w, "Range:\t%d-%d\n", def.Min, def.Max)
	fmt.Fprintf(w, "Days:\t%s\n", allotted(def))
	if def.Color != "" {
		fmt.Fprintf(w, "Color:\t%s\n", def.Color)
	}
	return w.Flush()
}

func allotted(def stages.Definition) string {
	if !def.HasTimeline() {
		return "-"
	}
	return strconv.Itoa(def.Days)
}
