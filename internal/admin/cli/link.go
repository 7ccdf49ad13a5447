package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/tgbridge/internal/directory"
	"github.com/iudanet/tgbridge/internal/validation"
)

func newLinkCommand(app *App) *cobra.Command {
	var (
		telegramID int64
		email      string
		username   string
	)

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Link (or relink) a Telegram id to an account",
		Long: "Link a Telegram user id to the account with the given email.\n" +
			"If the id is already linked to another account, the link is moved.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateTelegramID(telegramID); err != nil {
				return err
			}
			email = strings.TrimSpace(email)
			if err := validation.ValidateEmail(email); err != nil {
				return err
			}
			username = validation.NormalizeUsername(username)
			if username != "" {
				if err := validation.ValidateTelegramUsername(username); err != nil {
					return err
				}
			}

			return app.withAdmin(cmd.Context(), func(admin directory.Admin) error {
				identity := &directory.Identity{
					TelegramID: telegramID,
					Email:      email,
					Username:   username,
				}

				if err := admin.LinkTelegram(cmd.Context(), identity); err != nil {
					if errors.Is(err, directory.ErrAccountNotFound) {
						return fmt.Errorf("account %s not found, create it with 'tgadmin account create'", email)
					}
					return fmt.Errorf("failed to link telegram id: %w", err)
				}

				printf(cmd.OutOrStdout(), "Linked telegram id %d to %s (%s)\n", telegramID, email, identity.UserID)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&telegramID, "telegram-id", 0, "Telegram user id")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&username, "username", "", "Telegram username (optional)")
	_ = cmd.MarkFlagRequired("telegram-id")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newUnlinkCommand(app *App) *cobra.Command {
	var telegramID int64

	cmd := &cobra.Command{
		Use:   "unlink",
		Short: "Remove a Telegram id link",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateTelegramID(telegramID); err != nil {
				return err
			}

			return app.withAdmin(cmd.Context(), func(admin directory.Admin) error {
				if err := admin.UnlinkTelegram(cmd.Context(), telegramID); err != nil {
					if errors.Is(err, directory.ErrIdentityNotFound) {
						return fmt.Errorf("telegram id %d is not linked", telegramID)
					}
					return fmt.Errorf("failed to unlink telegram id: %w", err)
				}

				printf(cmd.OutOrStdout(), "Unlinked telegram id %d\n", telegramID)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&telegramID, "telegram-id", 0, "Telegram user id")
	_ = cmd.MarkFlagRequired("telegram-id")

	return cmd
}
