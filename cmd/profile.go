package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the learner's level and topic map",
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
		p, err := rt.tutor.Profile(ctx, u.UserID)
		if err != nil {
			return err
		}

		fmt.Printf("Learner:   %s (%s)\n", p.User.Username, p.User.Email)
		fmt.Printf("Level:     %s\n", p.Level.Title())
		if p.LastAnalysisAt != nil {
			fmt.Printf("Analysed:  %s\n", humanize.Time(*p.LastAnalysisAt))
		}
		if p.Recommendation != "" {
			fmt.Printf("Last call: %s (confidence %.0f%%)\n", p.Recommendation, p.Confidence*100)
		}

		if len(p.Topics) == 0 {
			fmt.Println("\nNo topics discussed yet.")
			return nil
		}
		fmt.Println("\nTopics")
		fmt.Println(strings.Repeat("─", 40))
		for _, key := range p.Topics.Keys() {
			fmt.Printf("%s\n", key)
			for _, s := range p.Topics[key] {
				fmt.Printf("  - %s\n", s)
			}
		}
		return nil
	},
}
