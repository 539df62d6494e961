package cli

import (
	"errors"
	"fmt"
	"strconv"

	"realtyhub/internal/models"

	"github.com/spf13/cobra"
)

func newUserCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newUserAddCmd(opts))
	return cmd
}

func newUserAddCmd(opts *options) *cobra.Command {
	var user models.User

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user.Name == "" || user.Email == "" {
				return errors.New("--name and --email are required")
			}
			_, db, err := opts.openDB(cmd)
			if err != nil {
				return err
			}
			defer closeDB(cmd, db)

			if err := db.CreateUser(cmd.Context(), &user); err != nil {
				return err
			}
			if opts.isJSON() {
				return printJSON(cmd.OutOrStdout(), user)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User #%d created: %s <%s>\n", user.ID, user.Name, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&user.Name, "name", "", "display name")
	cmd.Flags().StringVar(&user.Email, "email", "", "email address")
	cmd.Flags().StringVar(&user.Phone, "phone", "", "phone number")
	return cmd
}

func newPropertyCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "property",
		Short: "Manage properties",
	}
	cmd.AddCommand(newPropertyAddCmd(opts))
	return cmd
}

func newPropertyAddCmd(opts *options) *cobra.Command {
	var property models.Property

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a property owned by an existing user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if property.OwnerID <= 0 || property.Title == "" {
				return errors.New("--owner and --title are required")
			}
			_, db, err := opts.openDB(cmd)
			if err != nil {
				return err
			}
			defer closeDB(cmd, db)

			if _, err := db.GetUser(cmd.Context(), property.OwnerID); err != nil {
				return fmt.Errorf("owner %d: %w", property.OwnerID, err)
			}
			if err := db.CreateProperty(cmd.Context(), &property); err != nil {
				return err
			}
			if opts.isJSON() {
				return printJSON(cmd.OutOrStdout(), property)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Property #%d created: %s\n", property.ID, property.Title)
			return nil
		},
	}

	cmd.Flags().Int64Var(&property.OwnerID, "owner", 0, "owner user ID")
	cmd.Flags().StringVar(&property.Title, "title", "", "listing title")
	return cmd
}

func newTelegramCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telegram",
		Short: "Manage Telegram mirroring",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "link <user-id> <chat-id>",
		Short: "Mirror a user's notifications to a Telegram chat (0 unlinks)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user ID: %s", args[0])
			}
			chatID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chat ID: %s", args[1])
			}
			_, db, err := opts.openDB(cmd)
			if err != nil {
				return err
			}
			defer closeDB(cmd, db)

			if err := db.SetTelegramChat(cmd.Context(), userID, chatID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User #%d linked to chat %d\n", userID, chatID)
			return nil
		},
	})
	return cmd
}
