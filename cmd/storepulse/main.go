// Package main implements the storepulse CLI: an interactive chat session
// against the closure-analysis chatbot and a few maintenance commands.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "storepulse",
	Short: "Conversational analytics for small business closure data",
	Long: `storepulse answers questions about small business sales, store
operations and government support programs. Questions are routed to the
right backend automatically; analytical follow-ups keep their context.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(historyCmd)
}
