package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "drishti",
	Short: "Knowledge graph help bot for the satellite data portal",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Ignore a missing .env, env vars may come from the shell.
		_ = godotenv.Load()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
