package main

import (
	"context"
	"os"

	"github.com/aretw0/tendril/internal/cli"
	"github.com/aretw0/tendril/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [title]",
	Short: "Keep an entity reconciled with files edited on disk",
	Long: `Mounts an entity and applies every change made to the loam directory,
printing how much of the output each reconciliation reused or rebuilt.`,
	Args: cobra.MaximumNArgs(1),
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
		colour := tui.IsTerminal(os.Stdout)
		if colour {
			tui.PrintBanner(cmd.OutOrStdout())
		}

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()
		return cli.RunWatch(sigCtx, env, title, cmd.OutOrStdout(), colour)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
