package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/tgbridge/internal/initdata"
	"github.com/iudanet/tgbridge/internal/validation"
)

func newInitDataCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "initdata",
		Short: "Sign and check Mini App initData",
	}

	cmd.AddCommand(newInitDataSignCommand(app), newInitDataVerifyCommand(app))
	return cmd
}

func newInitDataSignCommand(app *App) *cobra.Command {
	var (
		user     initdata.User
		authDate int64
		queryID  string
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Produce a signed initData string for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateTelegramID(user.ID); err != nil {
				return err
			}
			user.Username = validation.NormalizeUsername(user.Username)

			token, err := app.botToken()
			if err != nil {
				return err
			}

			userJSON, err := json.Marshal(user)
			if err != nil {
				return fmt.Errorf("failed to encode user: %w", err)
			}

			if authDate == 0 {
				authDate = time.Now().Unix()
			}

			pairs := make([]initdata.Pair, 0, 3)
			if queryID != "" {
				pairs = append(pairs, initdata.Pair{Key: "query_id", Value: queryID})
			}
			pairs = append(pairs,
				initdata.Pair{Key: "user", Value: string(userJSON)},
				initdata.Pair{Key: "auth_date", Value: strconv.FormatInt(authDate, 10)},
			)

			printf(cmd.OutOrStdout(), "%s\n", initdata.Sign(pairs, token))
			return nil
		},
	}

	cmd.Flags().Int64Var(&user.ID, "telegram-id", 0, "Telegram user id")
	cmd.Flags().StringVar(&user.FirstName, "first-name", "", "user first name")
	cmd.Flags().StringVar(&user.LastName, "last-name", "", "user last name")
	cmd.Flags().StringVar(&user.Username, "username", "", "Telegram username")
	cmd.Flags().Int64Var(&authDate, "auth-date", 0, "auth_date unix timestamp (default: now)")
	cmd.Flags().StringVar(&queryID, "query-id", "", "query_id value")
	_ = cmd.MarkFlagRequired("telegram-id")
	_ = cmd.MarkFlagRequired("first-name")

	return cmd
}

func newInitDataVerifyCommand(app *App) *cobra.Command {
	var (
		raw        string
		telegramID int64
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check an initData string against the bot token",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := app.botToken()
			if err != nil {
				return err
			}

			binding := initdata.NoBinding()
			if telegramID != 0 {
				binding = initdata.BindTo(telegramID)
			}

			v := initdata.NewValidator(token, app.cfg.Telegram.InitDataMaxAge)
			payload, err := v.Validate(raw, binding)
			if err != nil {
				return fmt.Errorf("initData is not valid: %w", err)
			}

			user, err := payload.User()
			if err != nil {
				return fmt.Errorf("initData is not valid: %w", err)
			}

			out := cmd.OutOrStdout()
			printf(out, "initData is valid\n  telegram_id: %d\n  first_name:  %s\n", user.ID, user.FirstName)
			if user.Username != "" {
				printf(out, "  username:    @%s\n", user.Username)
			}
			if authDate, err := payload.AuthDate(); err == nil {
				printf(out, "  auth_date:   %s\n", authDate.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&raw, "init-data", "", "raw initData string")
	cmd.Flags().Int64Var(&telegramID, "telegram-id", 0, "require this Telegram user id")
	_ = cmd.MarkFlagRequired("init-data")

	return cmd
}
