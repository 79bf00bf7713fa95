package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/carewatch/internal/simulator"
	"procodus.dev/carewatch/pkg/metrics"
)

var simulatorCmd = &cobra.Command{
	Use:   "simulator",
	Short: "Run the wearable fleet simulator",
	Long: `Run the simulator that:
- Registers a fleet of synthetic wearable devices against a carewatch server
- Pushes periodic health telemetry for each device
- Occasionally raises SOS alerts to exercise the emergency flow`,
	RunE: runSimulator,
}

func init() {
	rootCmd.AddCommand(simulatorCmd)

	// Simulator-specific flags
	simulatorCmd.Flags().String("server-url", "http://localhost:3001", "base URL of the carewatch server")
	simulatorCmd.Flags().Int("device-count", 5, "number of simulated devices")
	simulatorCmd.Flags().Duration("interval", 30*time.Second, "interval between telemetry pushes")
	simulatorCmd.Flags().Float64("sos-chance", 0.01, "probability of raising an SOS on each push")

	// Bind flags to viper
	_ = viper.BindPFlag("simulator.server_url", simulatorCmd.Flags().Lookup("server-url"))
	_ = viper.BindPFlag("simulator.device_count", simulatorCmd.Flags().Lookup("device-count"))
	_ = viper.BindPFlag("simulator.interval", simulatorCmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("simulator.sos_chance", simulatorCmd.Flags().Lookup("sos-chance"))
}

func runSimulator(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting simulator service")

	config := &simulator.ServerConfig{
		Logger:      logger,
		ServerURL:   viper.GetString("simulator.server_url"),
		DeviceCount: viper.GetInt("simulator.device_count"),
		Interval:    viper.GetDuration("simulator.interval"),
		SOSChance:   viper.GetFloat64("simulator.sos_chance"),
		Metrics:     metrics.NewSimulatorMetrics("carewatch"),
	}

	srv, err := simulator.NewServer(config)
	if err != nil {
		logger.Error("failed to create simulator", "error", err)
		return err
	}

	logger.Info("simulator configuration",
		"server_url", config.ServerURL,
		"device_count", config.DeviceCount,
		"interval", config.Interval,
		"sos_chance", config.SOSChance,
	)

	if err := srv.Run(context.Background()); err != nil {
		logger.Error("simulator error", "error", err)
		return err
	}

	logger.Info("simulator stopped")
	return nil
}
