package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	clearYes  bool
	exportOut string
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every entity and relation from the graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes {
			return fmt.Errorf("refusing to clear the graph without --yes")
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Clear(ctx); err != nil {
			return fmt.Errorf("clearing graph: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "graph cleared")
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print entity and relation counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := s.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "entities:  %d\nrelations: %d\n", stats.Nodes, stats.Edges)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the whole graph as JSON {nodes, edges}",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		snap, err := s.Snapshot(ctx)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), exportOut, snap)
	},
}

func init() {
	rootCmd.AddCommand(clearCmd, statsCmd, exportCmd)
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "confirm deletion")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "-", `output path ("-" for stdout)`)
}
