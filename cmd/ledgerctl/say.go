package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ledgerbot/internal/amqp"
)

var errNotACommand = errors.New("not a ledger command")

func newSayCmd(a *app) *cobra.Command {
	var viaQueue bool
	var sender string

	cmd := &cobra.Command{
		Use:   "say TEXT...",
		Short: "Run one chat command and print the reply",
		Long: `Run one chat command, exactly as it would be typed in the chat channel,
and print the bot's reply. Arguments are joined with single spaces:

  ledgerctl say 支出 午餐 120
  ledgerctl say 統計 2026/2

With --queue the command is published to the AMQP command queue for
ledger-worker instead of being run locally.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if viaQueue {
				return publishCommand(cmd, a, sender, text)
			}
			if err := a.openService(cmd.Context()); err != nil {
				return err
			}
			reply, handled := a.service.Handle(cmd.Context(), text)
			if !handled {
				return fmt.Errorf("%w: %q", errNotACommand, text)
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().BoolVar(&viaQueue, "queue", false, "Publish to the AMQP command queue instead of running locally")
	cmd.Flags().StringVar(&sender, "sender", "ledgerctl", "Sender id attached to queued commands")
	return cmd
}

func publishCommand(cmd *cobra.Command, a *app, sender, text string) error {
	if err := a.cfg.ValidateAMQP(); err != nil {
		return err
	}
	client, err := amqp.NewClient(amqp.Config{
		URL:          a.cfg.AMQPURL,
		Exchange:     a.cfg.AMQPExchange,
		CommandQueue: a.cfg.AMQPCommandQueue,
		ReplyQueue:   a.cfg.AMQPReplyQueue,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	msg := amqp.NewCommandMessage(sender, text)
	if err := client.PublishCommand(cmd.Context(), msg); err != nil {
		return fmt.Errorf("publish command: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "queued %s\n", msg.ID)
	return nil
}
