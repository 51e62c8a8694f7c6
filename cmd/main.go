package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mhire/liveavatar/internal/config"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		opts config.Options
		port int
	)

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts, port)
		},
	}

	root := &cobra.Command{
		Use:          "liveavatar",
		Short:        "Speech and talking-avatar video backend",
		SilenceUsage: true,
		// Running without a subcommand serves.
		RunE: serve.RunE,
	}

	root.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "optional config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().IntVar(&port, "port", 0, "listen port, overrides PORT")

	root.AddCommand(serve, newWatchCommand(), &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return root
}
