package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skyserve/drishti/internal/server"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question against the knowledge graph",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := server.NewFromConfig()

		reply, err := srv.Engine.Answer(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
