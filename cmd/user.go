package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage learner accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create <email>",
	Short: "Create a learner account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		email := strings.TrimSpace(args[0])
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}
		roles, _ := cmd.Flags().GetStringSlice("role")

		u, err := s.CreateUser(cmd.Context(), email, name, roles)
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		fmt.Printf("Created %s (%s)\n", u.Email, u.UserID)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List learner accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		users, err := s.ListUsers(cmd.Context())
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		if len(users) == 0 {
			fmt.Println("No learners yet.")
			return nil
		}

		fmt.Printf("%-36s  %-28s  %-12s  %s\n", "ID", "Email", "Level", "Roles")
		fmt.Println(strings.Repeat("─", 90))
		for _, u := range users {
			fmt.Printf("%-36s  %-28s  %-12s  %s\n",
				u.UserID, truncate(u.Email, 28), u.Level.Title(), strings.Join(u.Roles, ","))
		}
		return nil
	},
}

func init() {
	userCreateCmd.Flags().String("name", "", "Display name (defaults to the email's local part)")
	userCreateCmd.Flags().StringSlice("role", nil, "Role to grant, e.g. tester (repeatable)")

	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
}
