package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"carenav/internal/api"
	"carenav/internal/config"
	"carenav/internal/logging"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "carenav",
	Short:         "Home-care route planning and labor-time compliance",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "carenav.yaml", "configuration file (optional)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// setup loads config, configures logging to out and wires a server.
func setup(ctx context.Context, out io.Writer) (*api.Server, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logging.Configure(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Out: out})
	return api.NewServer(ctx, cfg)
}

func closeServer(srv *api.Server) {
	if err := srv.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close: %v\n", err)
	}
}
