package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/tgbridge/internal/directory"
	"github.com/iudanet/tgbridge/internal/token"
)

// accessTokenInspector реализует локальный directory, который сам подписывает токены
type accessTokenInspector interface {
	InspectAccessToken(accessToken string) (*token.Claims, error)
}

func newTokenCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Work with access tokens of the local directory",
	}

	cmd.AddCommand(newTokenInspectCommand(app))
	return cmd
}

func newTokenInspectCommand(app *App) *cobra.Command {
	var accessToken string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Verify an access token and print its claims",
		RunE: func(cmd *cobra.Command, args []string) error {
			accessToken = strings.TrimSpace(accessToken)
			if accessToken == "" {
				input, err := app.ReadSecret("Access token: ")
				if err != nil {
					return fmt.Errorf("access token is required: %w", err)
				}
				accessToken = strings.TrimSpace(input)
			}

			return app.withAdmin(cmd.Context(), func(admin directory.Admin) error {
				inspector, ok := admin.(accessTokenInspector)
				if !ok {
					return fmt.Errorf("token inspect works with the sqlite directory driver only")
				}

				claims, err := inspector.InspectAccessToken(accessToken)
				if err != nil {
					return fmt.Errorf("access token is invalid: %w", err)
				}

				out := cmd.OutOrStdout()
				printf(out, "Access token is valid\n  sub:    %s\n  email:  %s\n  role:   %s\n  issuer: %s\n",
					claims.Subject, claims.Email, claims.Role, claims.Issuer)
				if claims.ExpiresAt != nil {
					printf(out, "  expires_at: %s\n", claims.ExpiresAt.UTC().Format(time.RFC3339))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&accessToken, "token", "", "access token (read from stdin when omitted)")

	return cmd
}
