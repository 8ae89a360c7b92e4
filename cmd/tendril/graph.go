package main

import (
	"github.com/aretw0/tendril/internal/cli"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [title]",
	Short: "Export the dependency graph",
	Long:  `Renders every entity (or only title) and outputs a Mermaid diagram (graph TD) of what each rendering depends on.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		title := ""
		if len(args) > 0 {
			title = args[0]
		}
		return cli.RunGraph(env, title, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
