package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/dsatutor/internal/tutor"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Suggest topics to study next",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd, os.Stderr)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		u, err := resolveUser(ctx, cmd, rt.store, false)
		if err != nil {
			return fmt.Errorf("resolve learner: %w", err)
		}
		recs, err := rt.tutor.Recommendations(ctx, u.UserID)
		if errors.Is(err, tutor.ErrNotAssessed) {
			fmt.Println("Finish the initial assessment first: run dsatutor chat.")
			return nil
		}
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("No recommendations right now.")
			return nil
		}
		for i, r := range recs {
			fmt.Printf("%d. %s [%s]\n", i+1, r.Topic, r.Difficulty)
			if r.Description != "" {
				fmt.Printf("   %s\n", r.Description)
			}
			if r.Rationale != "" {
				fmt.Printf("   Why: %s\n", r.Rationale)
			}
		}
		return nil
	},
}
