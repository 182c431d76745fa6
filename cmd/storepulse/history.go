package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storepulse/chatbot/config"
	"github.com/storepulse/chatbot/history"
)

var historyCmd = &cobra.Command{
	Use:   "history <conversation-id>",
	Short: "List the archived turns of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.HistoryDBPath == "" {
			return errors.New("HISTORY_DB_PATH is not configured")
		}

		archive, err := history.NewSqliteStore(history.SqliteOptions{Path: cfg.HistoryDBPath})
		if err != nil {
			return err
		}
		defer archive.Close()

		turns, err := archive.List(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, turn := range turns {
			fmt.Fprintf(out, "%s [%s]\n", turn.CreatedAt.Format("2006-01-02 15:04:05"), turn.Route)
			fmt.Fprintf(out, "Q: %s\n", turn.Question)
			if turn.Response != "" {
				fmt.Fprintf(out, "A: %s\n", turn.Response)
			}
			if len(turn.Table) > 0 {
				fmt.Fprintf(out, "A: %s\n", string(turn.Table))
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}
