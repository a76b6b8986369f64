package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/avstrong/roomstay/internal/app"
	"github.com/avstrong/roomstay/internal/config"
	"github.com/avstrong/roomstay/internal/logger"
)

func main() {
	conf, err := config.Load()
	if err != nil {
		logger.NewWithLevel(os.Stderr, "info").LogErrorf("Failed to load config: %v", err.Error())
		os.Exit(1)
	}

	l := logger.NewWithLevel(os.Stdout, conf.LogLevel)

	var exitCode int

	if err := rootCmd(conf, l).Execute(); err != nil {
		l.LogErrorf("Failed to run app: %v", err.Error())

		exitCode = 1
	}

	os.Exit(exitCode)
}

func rootCmd(conf *config.Config, l *logger.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "roomstay",
		Short:         "Room booking service with payment-backed reservations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCmd(conf, l), migrateCmd(conf, l))

	return root
}

func serveCmd(conf *config.Config, l *logger.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := conf.Validate(); err != nil {
				return err
			}

			return app.Run(conf, l)
		},
	}

	cmd.Flags().StringVar(&conf.HTTP.Host, "host", conf.HTTP.Host, "address to listen on")
	cmd.Flags().StringVar(&conf.HTTP.Port, "port", conf.HTTP.Port, "port to listen on")
	cmd.Flags().StringVar(&conf.Storage.Driver, "storage", conf.Storage.Driver, "storage driver: memory, sqlite or postgres")

	return cmd
}

func migrateCmd(conf *config.Config, l *logger.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema and seed listings",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := conf.Validate(); err != nil {
				return err
			}

			return app.Migrate(conf, l)
		},
	}

	cmd.Flags().StringVar(&conf.Storage.Driver, "storage", conf.Storage.Driver, "storage driver: memory, sqlite or postgres")

	return cmd
}
