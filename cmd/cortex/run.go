package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/cortex"
	"github.com/aretw0/cortex/internal/cli"
	"github.com/aretw0/cortex/internal/presentation/tui"
	"github.com/aretw0/cortex/internal/sanitize"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [task...]",
	Short: "Run one session and print the answer",
	Long: `Runs a single agent session for the given task and prints the answer.
When no task is given as arguments it is read from Stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")
		sessionID, _ := cmd.Flags().GetString("session")
		noBanner, _ := cmd.Flags().GetBool("no-banner")

		input := strings.TrimSpace(strings.Join(args, " "))
		if input == "" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading task: %w", err)
			}
			input = strings.TrimSpace(string(data))
		}
		input, err := sanitize.Input(input)
		if err != nil {
			return err
		}
		if input == "" {
			return errors.New("a task is required")
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		_, app, err := buildApp(sigCtx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if !jsonMode && !noBanner && tui.IsTerminal(os.Stdout) {
			tui.PrintBanner(os.Stdout)
		}

		var res cortex.Result
		if sessionID != "" {
			res = app.Agent.RunSession(sigCtx, sessionID, input)
		} else {
			res = app.Agent.Run(sigCtx, input)
		}
		if sig := sigCtx.Signal(); sig != nil {
			app.Logger.Info("Session interrupted", "signal", sig.String(), "session", res.SessionID)
		}

		if jsonMode {
			return cli.WriteJSON(os.Stdout, res)
		}
		return cli.WriteAnswer(os.Stdout, os.Stdout, res)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("json", false, "Print the result as JSON")
	runCmd.Flags().String("session", "", "Session id (defaults to a generated one)")
	runCmd.Flags().Bool("no-banner", false, "Do not print the banner")
}
