package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/loadcheck/internal/report"
)

func newReportCmd() *cobra.Command {
	var summary, outDir string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a summary snapshot as a Markdown report",
		Long: `Render the JSON snapshot written by "loadcheck run" as a Markdown report.

Reports are written to <out>/<environment>/ as <name>_(N).md, where N is
the number of entries already in that directory. Removing files from the
directory can make N collide with an existing report, which is then
replaced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := report.Render(summary, outDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&summary, "summary", "s", "summary.json", "Path of the JSON summary snapshot")
	cmd.Flags().StringVarP(&outDir, "out", "o", "out", "Report output directory")

	return cmd
}
