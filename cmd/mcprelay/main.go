package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mcprelay/internal/app"
)

type rootOptions struct {
	configPath string
	debug      bool
}

func main() {
	opts := rootOptions{}

	root := newRootCmd(&opts)
	if err := root.Execute(); err != nil {
		// One diagnostic line, non-zero exit.
		app.NewLogger(opts.debug).Fatal("command failed", zap.Error(err))
	}
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "mcprelay",
		Short:         "Relay exposing remote backend capabilities over a local stdio server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (optional, env vars suffice)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newValidateCmd(opts),
		newCatalogCmd(opts),
	)

	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			logger := app.NewLogger(opts.debug)
			defer func() { _ = logger.Sync() }()

			return app.New(logger).Serve(ctx, app.ServeConfig{
				ConfigPath: opts.configPath,
			})
		},
	}
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration without serving",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := app.NewLogger(opts.debug)
			defer func() { _ = logger.Sync() }()

			return app.New(logger).Validate(app.ValidateConfig{
				ConfigPath: opts.configPath,
			})
		},
	}
}

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the capability table that would be registered",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			logger := app.NewLogger(opts.debug)
			defer func() { _ = logger.Sync() }()

			return app.New(logger).PrintCatalog(ctx, app.CatalogConfig{
				ConfigPath: opts.configPath,
				Out:        os.Stdout,
			})
		},
	}
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
