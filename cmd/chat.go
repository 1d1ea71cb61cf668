package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/dsatutor/internal/app"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive tutor (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
}

// runChat starts the terminal UI for the current learner, creating the
// account on first use.
func runChat(cmd *cobra.Command) error {
	f, err := logFile(cmd)
	if err != nil {
		return err
	}
	defer f.Close()

	rt, err := buildRuntime(cmd, f)
	if err != nil {
		return err
	}
	defer rt.Close()

	user, err := resolveUser(cmd.Context(), cmd, rt.store, true)
	if err != nil {
		return err
	}

	return app.Run(app.Options{
		Tutor:       rt.tutor,
		History:     rt.store,
		User:        user,
		Attachments: rt.attachments,
	})
}
