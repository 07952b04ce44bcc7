package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand(NewAnalyzeCommand()).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCommand returns the base command with analyze registered as a
// subcommand.
func newRootCommand(analyze *AnalyzeCommand) *cobra.Command {
	root := &cobra.Command{
		Use:   "ackermann",
		Short: "Find symbolic arrays that can be replaced by bitvectors.",
		Long: `Ackermann reads formulas over symbolic arrays and reports which arrays are
only ever read whole, or one unmodified element at a time, so a solver can
treat them as plain bitvectors.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "increase logging verbosity")
	root.PersistentFlags().String("config", "", "read settings from a YAML file")
	root.AddCommand(analyze.Command())
	return root
}
