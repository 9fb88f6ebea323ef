package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/martinemde/agentwire/flow"
)

func NewFlowCmd() *cobra.Command {
	flowCmd := &cobra.Command{
		Use:   "flow",
		Short: "Inspect flowchart definitions",
	}
	flowCmd.AddCommand(newFlowCheckCmd())
	return flowCmd
}

func newFlowCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Parse and validate a Mermaid or DOT flowchart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			f, err := flow.Parse(string(source))
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			ids := make([]string, 0, len(f.Nodes))
			for id := range f.Nodes {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: valid (%d nodes)\n", args[0], len(ids))
			for _, id := range ids {
				n := f.Nodes[id]
				fmt.Fprintf(out, "  [%s] %s: %q\n", n.Kind, n.ID, n.Label)
				for _, e := range f.Outgoing(id) {
					if e.Label != "" {
						fmt.Fprintf(out, "    -> %s (%s)\n", e.Dst, e.Label)
					} else {
						fmt.Fprintf(out, "    -> %s\n", e.Dst)
					}
				}
			}
			return nil
		},
	}
}
