/*
Package cli provides the relayctl administration commands.
*/
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/elchemista/FormRelay/internal/config"
)

// Build metadata, set with -ldflags.
var (
	Version   = "dev"
	GitCommit = ""
	BuildDate = ""
)

var (
	cfgFile string
	verbose bool
	debug   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "relayctl",
	Short: "Administer a form relay deployment",
	Long: `relayctl inspects and prepares a form relay deployment.

Example:
  relayctl check -c config.yaml        # Validate configuration and credentials
  relayctl migrate                     # Create the MySQL tables
  relayctl send-test --form quote      # Deliver a sample notification`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetOutput(cmd.ErrOrStderr())
		switch {
		case debug:
			log.SetLevel(log.DebugLevel)
		case verbose:
			log.SetLevel(log.InfoLevel)
		default:
			log.SetLevel(log.WarnLevel)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $CONFIG or config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sendTestCmd)
	rootCmd.AddCommand(versionCmd)
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if env := strings.TrimSpace(os.Getenv("CONFIG")); env != "" {
		return env
	}
	return "config.json"
}

// loadConfig mirrors the relay's startup: file, then environment, then
// validation. A missing file yields an environment-only configuration.
func loadConfig() (*config.Config, error) {
	path := configPath()

	cfg, err := config.Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		log.Warn("Config file not found, using environment only", "path", path)
		cfg = config.Default()
		cfg.WithSource("environment")
	} else {
		log.Debug("Configuration loaded", "path", path)
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	cfg.WithLoadedTime(time.Now().UTC())

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
