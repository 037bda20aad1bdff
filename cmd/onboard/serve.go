package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"log-onboarding-engine/internal/logging"
	"log-onboarding-engine/internal/server"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if servePort != "" {
			cfg.Server.Port = servePort
		}
		logging.InitGlobalLogger(&logging.LoggerConfig{
			Level:     cfg.Log.Level,
			Component: "server",
			Output:    cfg.Log.Output,
			Format:    cfg.Log.Format,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv, resources, err := server.NewFromConfig(cfg)
		if err != nil {
			return err
		}
		defer resources.Close()

		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port, overrides server.port")
	rootCmd.AddCommand(serveCmd)
}
