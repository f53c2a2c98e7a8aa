package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/elchemista/FormRelay/internal/forms"
	"github.com/elchemista/FormRelay/internal/mailer"
	"github.com/elchemista/FormRelay/internal/notify"
	"github.com/elchemista/FormRelay/internal/submission"
)

var (
	sendTestForm   string
	sendTestTo     []string
	sendTestDryRun bool
)

var sendTestCmd = &cobra.Command{
	Use:   "send-test",
	Short: "Deliver a sample notification",
	Long: `Compose a sample submission for a form and deliver it through Mailgun
exactly as the relay would. Use --dry-run to print the notification instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		resolver := forms.NewResolver(cfg.Forms, cfg.Defaults, fallbackFrom(cfg.Mailgun.Domain))

		path := "/submit"
		if sendTestForm != "" {
			if _, ok := resolver.Lookup(sendTestForm); !ok {
				return fmt.Errorf("unknown form %q", sendTestForm)
			}
			path = "/" + sendTestForm + "/submit"
		}

		form, err := resolver.Resolve(path, "")
		if err != nil {
			return err
		}

		recipients := sendTestTo
		if len(recipients) == 0 {
			if recipients, err = form.Recipients(); err != nil {
				return err
			}
		}

		sub := sampleSubmission()
		msg, err := notify.NewComposer(nil).Compose(sub, form)
		if err != nil {
			return err
		}

		env := mailer.Envelope{From: form.From, Subject: msg.Subject, HTML: msg.HTML, Text: msg.Text}

		out := cmd.OutOrStdout()
		if sendTestDryRun {
			fmt.Fprintf(out, "From: %s\nTo: %v\nSubject: %s\n\n%s", env.From, recipients, env.Subject, env.Text)
			return nil
		}

		svc, err := mailer.NewService(cfg.Mailgun, nil)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		sent, err := mailer.SendAll(ctx, svc, recipients, env)
		if err != nil {
			log.Error("Delivery failed", "sent", sent, "recipients", len(recipients), "error", err)
			return err
		}

		fmt.Fprintf(out, "✓ Sent %d notification(s) for %s\n", sent, form.Name)
		return nil
	},
}

func sampleSubmission() *submission.Submission {
	return submission.FromFields(
		submission.Field{Name: "name", Value: "Test Sender"},
		submission.Field{Name: "email", Value: "test@example.com"},
		submission.Field{Name: "message", Value: "This is a test notification.\nSent with relayctl."},
	)
}

func init() {
	sendTestCmd.Flags().StringVar(&sendTestForm, "form", "", "form key to resolve (default: the defaults record)")
	sendTestCmd.Flags().StringSliceVar(&sendTestTo, "to", nil, "override the resolved recipients")
	sendTestCmd.Flags().BoolVar(&sendTestDryRun, "dry-run", false, "print the notification without sending")
}
