package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nursetrack/clinical-hours/config"
)

var (
	configFile    string
	storeOverride string
)

var rootCmd = &cobra.Command{
	Use:   "clinicalctl",
	Short: "Clinical hours and makeup-hours compliance engine",
	Long: `clinicalctl tracks clinical hours, attendance and the makeup-hours
ledger of a nursing program and checks them against the board's thresholds.

Configuration is read from defaults, clinical.yaml (or $CLINICAL_CONFIG),
.env and the environment, in increasing order of precedence.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (default $CLINICAL_CONFIG or ./clinical.yaml)")
	rootCmd.PersistentFlags().StringVar(&storeOverride, "store", "", "record store driver: memory, sqlite or postgres")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(reportCmd)
}

// loadConfig resolves the configuration. --store is applied through the
// environment so it outranks every other source and is validated with the
// rest.
func loadConfig() (*config.Config, error) {
	if storeOverride != "" {
		if err := os.Setenv("STORE_DRIVER", storeOverride); err != nil {
			return nil, err
		}
	}

	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
