package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openrove/openrove/pkg/mission"
)

func newGraphCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "graph <mission-file>",
		Short: "Render a mission's dependency graph as DOT",
		Long: `Render the step dependency graph of a mission in Graphviz DOT format.

Steps are grouped into the scheduling levels the runner would execute,
with hard requires edges drawn solid and after edges dashed. Pipe the
output through dot to get an image.`,
		Example: `  # Print the graph to stdout
  rove graph missions/patrol.yaml

  # Render an image via Graphviz
  rove graph missions/patrol.yaml | dot -Tsvg -o patrol.svg

  # Write the DOT file directly
  rove graph missions/patrol.yaml -o patrol.dot`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := mission.Load(args[0])
			if err != nil {
				return err
			}
			g, err := mission.BuildGraph(m)
			if err != nil {
				return err
			}

			dot := g.ToDOT()
			if output == "" {
				fmt.Print(dot)
				return nil
			}
			if err := os.WriteFile(output, []byte(dot), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Printf("✓ Wrote %s (%d steps in %d levels)\n", output, len(m.Steps), g.Depth())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the DOT graph to a file instead of stdout")

	return cmd
}
