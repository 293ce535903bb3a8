package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/d60-Lab/friendlyvoice/config"
	"github.com/d60-Lab/friendlyvoice/pkg/logger"
)

var (
	version = "dev"
	commit  string
	date    string

	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "friendlyvoice",
	Short: "FriendlyVoice - voice-first social backend",
	Long: `FriendlyVoice serves the session, social graph, direct message, feed and
ecosystem APIs of the voice messaging app.

Configuration is read from config.yaml (see --config) and FV_* environment
variables, e.g. FV_DATABASE_DSN.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute runs the root command. Errors are printed once to stderr.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", "", "directory containing config.yaml")
}

// bootstrap loads the configuration and installs the global logger.
func bootstrap() (*config.Config, error) {
	var paths []string
	if configDir != "" {
		paths = append(paths, configDir)
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}
