package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the learner's conversation",
	Long:  "Clear the learner's conversation. The level and topic map are kept.",
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
		if err := s.ClearHistory(ctx, u.UserID); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
		fmt.Printf("Cleared conversation for %s.\n", u.Email)
		return nil
	},
}
