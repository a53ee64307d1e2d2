package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"quizline/internal/approval"
	"quizline/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	var viaGateway bool
	cmd := &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
				fmt.Fprintln(out, "ntfy topic not configured")
			} else {
				if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
					return fmt.Errorf("send ntfy notification: %w", err)
				}
				fmt.Fprintln(out, "Test notification sent")
			}

			if !viaGateway {
				return nil
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			gw, err := approval.New(cfg, logger)
			if err != nil {
				return err
			}
			if err := gw.Notify(cmd.Context(), cfg.Approval.ChannelID, "🧪 quizline approval channel test"); err != nil {
				return fmt.Errorf("notify approval channel: %w", err)
			}
			fmt.Fprintf(out, "Test message sent to %s channel\n", cfg.Approval.Backend)
			return nil
		},
	}
	cmd.Flags().BoolVar(&viaGateway, "approval", false, "Also send a message through the approval channel")
	return cmd
}
