// Package cmd implements the driveflow command line interface.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/driveflow/driveflow"
)

// Config holds CLI configuration loaded from DRIVEFLOW_* environment
// variables.
type Config struct {
	ClientID       string        `envconfig:"CLIENT_ID" required:"true"`
	ClientSecret   string        `envconfig:"CLIENT_SECRET" required:"true"`
	ProviderURL    string        `envconfig:"PROVIDER_URL" required:"true"`
	ResourceURL    string        `envconfig:"RESOURCE_URL" required:"true"`
	PusherAppToken string        `envconfig:"PUSHER_APP_TOKEN" required:"true"`
	PusherURL      string        `envconfig:"PUSHER_URL" default:"https://wxpusher.zjiecode.com"`
	Scope          string        `envconfig:"SCOPE" default:"basic,netdisk"`
	AuthTimeout    time.Duration `envconfig:"AUTH_TIMEOUT" default:"5m"`
	Port           int           `envconfig:"PORT" default:"8080"`
	RedisURL       string        `envconfig:"REDIS_URL"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
}

var (
	cfg    Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "driveflow",
	Short:         "Delegated cloud-storage access over the OAuth device-code grant",
	Long:          "driveflow requests delegated access to a third party's cloud-storage account:\nit issues a device-code grant, pushes the approval request to the resource owner,\nand polls until approval, then operates on files with the granted token.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := envconfig.Process("DRIVEFLOW", &cfg); err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("parsing log level: %w", err)
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			Level(level).
			With().Timestamp().Logger()
		return nil
	},
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newClient builds the SDK client from the loaded configuration.
func newClient() (*driveflow.Client, error) {
	return driveflow.New(driveflow.Config{
		ClientID:        cfg.ClientID,
		ClientSecret:    cfg.ClientSecret,
		ProviderBaseURL: cfg.ProviderURL,
		ResourceBaseURL: cfg.ResourceURL,
		PusherAppToken:  cfg.PusherAppToken,
		PusherBaseURL:   cfg.PusherURL,
		Scope:           cfg.Scope,
		AuthTimeout:     cfg.AuthTimeout,
	}, driveflow.WithLogger(logger))
}
