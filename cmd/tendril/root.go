package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/tendril/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tendril",
	Short: "Tendril renders and live-reconciles a wiki of wikitext entities",
	Long: `Tendril parses wikitext entities into trees, executes their macros and keeps
the rendered output reconciled as entities change.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("dir", ".", "Wiki directory (holds tendril.yaml and the loam store)")
	flags.String("store", "", "Store kind overriding tendril.yaml: loam, redis or sqlite")
	flags.String("redis-addr", "", "Redis address for the redis store")
	flags.String("sqlite-path", "", "Database file for the sqlite store")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-file", "", "Also write JSON logs to this file")
	flags.Bool("debug", false, "Log every parse, execution and reconciliation")
}

// openEnv opens the wiki described by the persistent flags.
func openEnv(cmd *cobra.Command) (*cli.Env, error) {
	flags := cmd.Flags()
	opts := cli.Options{}
	opts.Dir, _ = flags.GetString("dir")
	opts.Store, _ = flags.GetString("store")
	opts.RedisAddr, _ = flags.GetString("redis-addr")
	opts.SQLitePath, _ = flags.GetString("sqlite-path")
	opts.LogLevel, _ = flags.GetString("log-level")
	opts.LogFile, _ = flags.GetString("log-file")
	opts.Debug, _ = flags.GetBool("debug")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return cli.Open(ctx, opts)
}
