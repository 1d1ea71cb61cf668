package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/dsatutor/internal/attachment"
	"github.com/abhisek/dsatutor/internal/store"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Send one turn to the tutor and print the reply",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		files, _ := cmd.Flags().GetStringSlice("file")
		if strings.TrimSpace(text) == "" && len(files) == 0 {
			return fmt.Errorf("nothing to ask: pass a question or --file")
		}

		var atts []attachment.Attachment
		for _, path := range files {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			name := filepath.Base(path)
			atts = append(atts, attachment.Attachment{
				Name:     name,
				MIMEType: attachment.DetectMIME(name, data),
				Data:     data,
			})
		}

		rt, err := buildRuntime(cmd, os.Stderr)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		u, err := resolveUser(ctx, cmd, rt.store, true)
		if err != nil {
			return fmt.Errorf("resolve learner: %w", err)
		}

		reply, err := rt.tutor.ProcessTurn(ctx, u.UserID, text, atts)
		if err != nil {
			return err
		}

		fmt.Println(reply.Text)
		if lc := reply.LevelChange; lc != nil {
			fmt.Printf("\nLevel: %s → %s\n", lc.From.Title(), lc.To.Title())
		}
		if u.HasRole(store.RoleTester) && len(reply.Trace) > 0 {
			fmt.Println()
			for _, step := range reply.Trace {
				fmt.Printf("  %-12s %s\n", step.State, step.Note)
			}
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringSliceP("file", "f", nil, "Attach an image or PDF (repeatable)")
}
