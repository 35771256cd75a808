package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/aretw0/cortex/internal/cli"
	"github.com/aretw0/cortex/internal/llm"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools discovered from the configured backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		// Listing needs no model, so a missing API key is not an error here.
		offline := llm.GeneratorFunc(func(context.Context, string) (string, error) {
			return "", errors.New("no model in tools listing")
		})
		_, app, err := buildApp(sigCtx, cmd, cli.WithGenerator(offline))
		if err != nil {
			return err
		}
		defer app.Close()

		tools := app.Agent.Tools()
		if jsonMode {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(tools)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tBACKEND\tPARAMETERS\tDESCRIPTION")
		for _, t := range tools {
			_, backend, _ := app.Registry.Lookup(t.Name)
			params := t.ParameterNames()
			slices.Sort(params)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name, backend, strings.Join(params, ","), t.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.Flags().Bool("json", false, "Print the tools as JSON")
}
