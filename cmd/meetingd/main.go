package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ibn-isHERE/p.magang.whatsApp-sub001/config"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "meeting-reminder ", log.LstdFlags)

	if err := newRootCmd(logger).Execute(); err != nil {
		logger.Fatalf("%v", err)
	}
}

func newRootCmd(logger *log.Logger) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "meetingd",
		Short:        "Meeting room reservations with WhatsApp reminders",
		Long:         "Books meeting rooms without double-booking and sends WhatsApp reminders one hour before each meeting starts.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil {
				logger.Println("No .env file found, using system environment variables")
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(logger, resolveConfigPath(configPath))
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default $CONFIG_PATH or ./config/config.yaml)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the reminder scheduler and the expiry sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(logger, resolveConfigPath(configPath))
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(logger, resolveConfigPath(configPath))
		},
	})

	return rootCmd
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "./config/config.yaml" // Default path for local development
}

func loadConfig(logger *log.Logger, path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}
	logger.Printf("configuration loaded successfully from %s", path)
	return cfg, nil
}
