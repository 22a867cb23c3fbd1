package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skyserve/drishti/internal/ingest"
	"github.com/skyserve/drishti/internal/server"
)

var ingestDir string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion cycle over the configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := server.NewFromConfig()

		sources := srv.Sources
		if ingestDir != "" {
			sources = append(sources, ingest.DirSource{Dir: ingestDir})
		}
		if len(sources) == 0 {
			return fmt.Errorf("no sources configured, pass --dir or set ingest sources in the config")
		}

		srv.Scheduler.RunCycle(cmd.Context(), sources)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "directory of scraped pages to ingest")
	rootCmd.AddCommand(ingestCmd)
}
