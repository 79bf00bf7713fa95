package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/carewatch/internal/server"
	"procodus.dev/carewatch/pkg/metrics"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the monitoring server",
	Long: `Run the carewatch server that:
- Serves the device registration, telemetry and emergency HTTP API
- Derives device presence from telemetry recency
- Fans out SOS alerts to connected caregiver clients over websockets
- Persists devices and emergencies to flat JSON files`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server-specific flags
	serverCmd.Flags().Int("http-port", 3001, "HTTP server port")
	serverCmd.Flags().String("data-dir", "./data", "directory for devices.json and emergencies.json")

	// Bind flags to viper
	_ = viper.BindPFlag("server.http.port", serverCmd.Flags().Lookup("http-port"))
	_ = viper.BindPFlag("server.data_dir", serverCmd.Flags().Lookup("data-dir"))
}

func runServer(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting server service")

	config := &server.ServerConfig{
		Logger:   logger,
		HTTPPort: viper.GetInt("server.http.port"),
		DataDir:  viper.GetString("server.data_dir"),
		Metrics:  metrics.NewServerMetrics("carewatch"),
	}

	srv, err := server.NewServer(config)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		return err
	}

	logger.Info("server configuration",
		"http_port", config.HTTPPort,
		"data_dir", config.DataDir,
	)

	if err := srv.Run(context.Background()); err != nil {
		logger.Error("server error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}
