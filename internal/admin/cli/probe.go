package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/tgbridge/internal/client"
	"github.com/iudanet/tgbridge/internal/initdata"
	"github.com/iudanet/tgbridge/internal/validation"
)

func newProbeCommand(app *App) *cobra.Command {
	var (
		baseURL    string
		telegramID int64
		firstName  string
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Run the Mini App login flow against a running bridge",
		Long: "Sign initData for the given Telegram id with the configured bot token,\n" +
			"then call the health, verify and create-session endpoints of the bridge.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateTelegramID(telegramID); err != nil {
				return err
			}

			token, err := app.botToken()
			if err != nil {
				return err
			}

			user, err := json.Marshal(initdata.User{ID: telegramID, FirstName: firstName})
			if err != nil {
				return fmt.Errorf("failed to encode user: %w", err)
			}
			initData := initdata.Sign([]initdata.Pair{
				{Key: "user", Value: string(user)},
				{Key: "auth_date", Value: strconv.FormatInt(time.Now().Unix(), 10)},
			}, token)

			ctx := cmd.Context()
			bridge := client.NewClient(baseURL)
			out := cmd.OutOrStdout()

			health, err := bridge.Health(ctx)
			if err != nil {
				return err
			}
			printf(out, "health:  %s (version %s)\n", health.Status, health.Version)

			ok, err := bridge.VerifyInitData(ctx, initData)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("bridge rejected initData: bot tokens differ")
			}
			printf(out, "verify:  ok\n")

			resp, err := bridge.CreateSession(ctx, initData, telegramID)
			if err != nil {
				if code := client.Code(err); code != "" {
					return fmt.Errorf("session was not issued: %s", code)
				}
				return err
			}

			if resp.User != nil {
				printf(out, "session: issued for %s (%s)\n", resp.User.Email, resp.User.ID)
			}
			if resp.Session != nil {
				printf(out, "  token_type: %s\n  expires_in: %d\n", resp.Session.TokenType, resp.Session.ExpiresIn)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "bridge base URL")
	cmd.Flags().Int64Var(&telegramID, "telegram-id", 0, "Telegram user id")
	cmd.Flags().StringVar(&firstName, "first-name", "Probe", "user first name in initData")
	_ = cmd.MarkFlagRequired("telegram-id")

	return cmd
}
