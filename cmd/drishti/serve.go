package main

import (
	"github.com/spf13/cobra"

	"github.com/skyserve/drishti/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP chat server and the background re-scrape loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := server.NewFromConfig()
		return srv.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
