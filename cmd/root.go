package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "settle",
	Short: "Settlement and escrow engine",
	Long: `Settlement and escrow engine for multi-sided commerce.

The engine routes buyer payments through per-order split configurations,
tracks order lifecycles up to commission distribution, and custodies
milestone-based budget pools. All state changes stream out as typed
events over websocket and into storage.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
