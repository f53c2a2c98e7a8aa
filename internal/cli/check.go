package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/elchemista/FormRelay/internal/forms"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check configuration and credentials",
	Long: `Check that the configuration file and environment produce a usable relay.

This validates:
  - JSON or YAML syntax and unknown fields
  - Form recipients and sender addresses
  - Guard, storage and event settings
  - Mailgun credentials`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		resolver := forms.NewResolver(cfg.Forms, cfg.Defaults, fallbackFrom(cfg.Mailgun.Domain))

		fmt.Fprintf(out, "Configuration %s\n", cfg.Source())
		for _, key := range cfg.FormKeys() {
			res, err := resolver.Resolve("/"+key+"/submit", "")
			if err != nil {
				return err
			}
			state := "enabled"
			if !res.Enabled {
				state = "disabled"
			}
			fmt.Fprintf(out, "  /%s/submit  %s  %s -> %s\n", key, state, res.Name, strings.Join(res.NotifyTo, ", "))
		}

		def, err := resolver.Resolve("/submit", "")
		if err != nil {
			return err
		}
		if len(def.NotifyTo) == 0 {
			log.Warn("No default recipients, /submit requests without a known _form will be rejected")
		}

		if missing := cfg.Mailgun.Missing(); len(missing) > 0 {
			return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
		}

		fmt.Fprintln(out, "✓ Configuration is valid")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit, and build date of relayctl.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "relayctl %s\n", Version)
		if GitCommit != "" {
			fmt.Fprintf(out, "  Commit: %s\n", GitCommit)
		}
		if BuildDate != "" {
			fmt.Fprintf(out, "  Built:  %s\n", BuildDate)
		}
	},
}

func fallbackFrom(domain string) string {
	if domain == "" {
		return ""
	}
	return "noreply@" + domain
}
