package main

import (
	"os"

	"github.com/aretw0/tendril/internal/cli"
	"github.com/aretw0/tendril/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render [title]",
	Short: "Render an entity",
	Long:  `Renders an entity (default_title from tendril.yaml when omitted) as html, text or markdown.`,
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
		format, _ := cmd.Flags().GetString("format")
		pretty := tui.IsTerminal(os.Stdout)
		return cli.RunRender(env, title, format, cmd.OutOrStdout(), pretty, tui.TerminalWidth(os.Stdout))
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringP("format", "f", "", "Output format: html, text or markdown")
}
