package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/cortex"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of cortex",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cortex version %s\n", strings.TrimSpace(cortex.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
