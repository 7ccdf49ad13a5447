package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/tgbridge/internal/directory"
	"github.com/iudanet/tgbridge/internal/validation"
)

func newAccountCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage directory accounts",
	}

	cmd.AddCommand(
		newAccountCreateCommand(app),
		newAccountGetCommand(app),
		newAccountDeleteCommand(app),
		newAccountRevokeCommand(app),
	)
	return cmd
}

func newAccountCreateCommand(app *App) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account with a confirmed email",
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.TrimSpace(email)
			if err := validation.ValidateEmail(email); err != nil {
				return err
			}

			return app.withAdmin(cmd.Context(), func(admin directory.Admin) error {
				account, err := admin.CreateAccount(cmd.Context(), email)
				if err != nil {
					if errors.Is(err, directory.ErrAccountAlreadyExists) {
						return fmt.Errorf("account %s already exists", email)
					}
					return fmt.Errorf("failed to create account: %w", err)
				}

				printf(cmd.OutOrStdout(), "Account created\n  id:    %s\n  email: %s\n", account.ID, account.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newAccountGetCommand(app *App) *cobra.Command {
	var email, id string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show an account by email or id",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withAdmin(cmd.Context(), func(admin directory.Admin) error {
				account, err := findAccount(cmd.Context(), admin, email, id)
				if err != nil {
					return err
				}

				printf(cmd.OutOrStdout(), "  id:         %s\n  email:      %s\n  created_at: %s\n",
					account.ID, account.Email, account.CreatedAt.Format("2006-01-02 15:04:05"))
				if account.LastSignInAt != nil {
					printf(cmd.OutOrStdout(), "  last_login: %s\n", account.LastSignInAt.Format("2006-01-02 15:04:05"))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&id, "id", "", "account id")
	cmd.MarkFlagsOneRequired("email", "id")
	cmd.MarkFlagsMutuallyExclusive("email", "id")

	return cmd
}

func newAccountDeleteCommand(app *App) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an account and its Telegram links",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withAdmin(cmd.Context(), func(admin directory.Admin) error {
				account, err := findAccount(cmd.Context(), admin, email, "")
				if err != nil {
					return err
				}

				if err := admin.DeleteAccount(cmd.Context(), account.ID); err != nil {
					if errors.Is(err, directory.ErrAccountNotFound) {
						return fmt.Errorf("account %s not found", email)
					}
					return fmt.Errorf("failed to delete account: %w", err)
				}

				printf(cmd.OutOrStdout(), "Account %s deleted\n", account.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newAccountRevokeCommand(app *App) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke every refresh token of an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withAdmin(cmd.Context(), func(admin directory.Admin) error {
				revoker, ok := admin.(directory.SessionRevoker)
				if !ok {
					return fmt.Errorf("the configured directory does not support session revocation, use the sqlite driver")
				}

				account, err := findAccount(cmd.Context(), admin, email, "")
				if err != nil {
					return err
				}

				revoked, err := revoker.RevokeSessions(cmd.Context(), account.ID)
				if err != nil {
					return fmt.Errorf("failed to revoke sessions: %w", err)
				}

				printf(cmd.OutOrStdout(), "Revoked %d session(s) of %s\n", revoked, account.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// findAccount ищет аккаунт по id, если он задан, иначе по email
func findAccount(ctx context.Context, admin directory.Admin, email, id string) (*directory.Account, error) {
	email = strings.TrimSpace(email)
	id = strings.TrimSpace(id)

	var (
		account *directory.Account
		err     error
		key     = email
	)
	if id != "" {
		key = id
		account, err = admin.GetAccountByID(ctx, id)
	} else {
		account, err = admin.GetAccountByEmail(ctx, email)
	}

	if err != nil {
		if errors.Is(err, directory.ErrAccountNotFound) {
			return nil, fmt.Errorf("account %s not found", key)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}
