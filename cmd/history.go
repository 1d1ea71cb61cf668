package cmd

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/abhisek/dsatutor/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the learner's conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		u, err := resolveUser(ctx, cmd, s, false)
		if err != nil {
			return fmt.Errorf("resolve learner: %w", err)
		}
		msgs, err := s.LoadHistory(ctx, u.UserID, "")
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		if len(msgs) == 0 {
			fmt.Println("No conversation yet.")
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		if limit > 0 && len(msgs) > limit {
			msgs = msgs[len(msgs)-limit:]
		}
		for _, m := range msgs {
			who := "Tutor"
			if m.Role == store.RoleUser {
				who = "You"
			}
			fmt.Printf("%s  (%s)\n", who, humanize.Time(m.Timestamp))
			if n := len(m.Images()); n > 0 {
				fmt.Printf("  [%d image(s)]\n", n)
			}
			for _, line := range strings.Split(m.Content, "\n") {
				fmt.Println("  " + line)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 0, "Show only the last n messages")
}
