package main

import (
	"github.com/aretw0/cortex/internal/cli"
	"github.com/spf13/cobra"
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Poll a receive tool and answer each message with a session",
	Long: `Polls inbox.receive_tool for messages, runs one session per new message
and replies through inbox.send_tool. With the redis memory backend, replicas
claim messages through a distributed lock so each is handled once.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		cfg, app, err := buildApp(sigCtx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if skip, _ := cmd.Flags().GetBool("skip-backlog"); skip {
			cfg.Inbox.SkipBacklog = true
		}

		poller, err := newPoller(cfg.Inbox, app)
		if err != nil {
			return err
		}
		app.Logger.Info("Inbox poller started", "receive_tool", cfg.Inbox.ReceiveTool, "send_tool", cfg.Inbox.SendTool)
		return poller.Run(sigCtx)
	},
}

func init() {
	rootCmd.AddCommand(inboxCmd)
	inboxCmd.Flags().Bool("skip-backlog", false, "Ignore the message pending at startup")
}
