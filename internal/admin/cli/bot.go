package cli

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iudanet/tgbridge/internal/admin/offsets"
	"github.com/iudanet/tgbridge/internal/telegram"
)

const defaultUpdatesLimit = 100

func newBotCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Inspect the bot through the Bot API",
	}

	cmd.AddCommand(
		newBotMeCommand(app),
		newBotUpdatesCommand(app),
		newBotSendersCommand(app),
		newBotSendCommand(app),
	)
	return cmd
}

func (a *App) gateway() (Gateway, error) {
	token, err := a.botToken()
	if err != nil {
		return nil, err
	}

	gw, err := a.OpenGateway(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Bot API: %w", err)
	}
	return gw, nil
}

func (a *App) withState(cmd *cobra.Command, fn func(store *offsets.Store) error) error {
	store, err := a.OpenState(cmd.Context(), a.cfg.Admin.StatePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("failed to close state", slog.Any("error", err))
		}
	}()

	return fn(store)
}

func newBotMeCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the bot identity for the configured token",
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := app.gateway()
			if err != nil {
				return err
			}

			me := gw.Me()
			printf(cmd.OutOrStdout(), "  id:       %d\n  username: @%s\n  name:     %s\n", me.ID, me.Username, me.FirstName)
			return nil
		},
	}
}

func newBotUpdatesCommand(app *App) *cobra.Command {
	var (
		all   bool
		limit int
	)

	cmd := &cobra.Command{
		Use:   "updates",
		Short: "Fetch pending updates and list their senders",
		Long: "Fetch pending updates from the Bot API. The next offset is stored locally,\n" +
			"so every update is shown once. Use it to discover Telegram ids to link.\n" +
			"With --all the stored offset is neither used nor advanced.",
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := app.gateway()
			if err != nil {
				return err
			}
			botID := gw.Me().ID

			return app.withState(cmd, func(store *offsets.Store) error {
				offset := 0
				if !all {
					if offset, err = store.GetOffset(cmd.Context(), botID); err != nil {
						return err
					}
				}

				updates, next, err := gw.Updates(offset, limit)
				if err != nil {
					return fmt.Errorf("failed to get updates: %w", err)
				}

				fresh, err := store.RememberSenders(cmd.Context(), botID, toStateSenders(updates))
				if err != nil {
					return err
				}
				if !all && next > offset {
					if err := store.SaveOffset(cmd.Context(), botID, next); err != nil {
						return err
					}
				}

				printUpdates(cmd, updates, fresh)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "ignore the stored offset")
	cmd.Flags().IntVar(&limit, "limit", defaultUpdatesLimit, "maximum number of updates")

	return cmd
}

func newBotSendersCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "senders",
		Short: "List senders seen in earlier updates",
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := app.gateway()
			if err != nil {
				return err
			}

			return app.withState(cmd, func(store *offsets.Store) error {
				senders, err := store.ListSenders(cmd.Context(), gw.Me().ID)
				if err != nil {
					return err
				}
				if len(senders) == 0 {
					printf(cmd.OutOrStdout(), "No senders seen yet\n")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				printf(w, "TELEGRAM ID\tUSERNAME\tNAME\tLAST SEEN\n")
				for _, s := range senders {
					printf(w, "%d\t%s\t%s\t%s\n", s.TelegramID, atUsername(s.Username),
						fullName(s.FirstName, s.LastName), s.LastSeen.Format("2006-01-02 15:04:05"))
				}
				return w.Flush()
			})
		},
	}
}

func newBotSendCommand(app *App) *cobra.Command {
	var (
		chatID int64
		text   string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a text message to a chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			if text == "" {
				return fmt.Errorf("text must not be empty")
			}

			gw, err := app.gateway()
			if err != nil {
				return err
			}

			messageID, err := gw.SendMessage(chatID, text)
			if err != nil {
				return fmt.Errorf("failed to send message: %w", err)
			}

			printf(cmd.OutOrStdout(), "Message %d sent to %d\n", messageID, chatID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&chatID, "chat-id", 0, "target chat id")
	cmd.Flags().StringVar(&text, "text", "", "message text")
	_ = cmd.MarkFlagRequired("chat-id")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}

func toStateSenders(updates []telegram.Update) []offsets.Sender {
	senders := make([]offsets.Sender, 0, len(updates))
	for _, u := range updates {
		senders = append(senders, offsets.Sender{
			LastSeen:   u.Date,
			Username:   u.Sender.Username,
			FirstName:  u.Sender.FirstName,
			LastName:   u.Sender.LastName,
			TelegramID: u.Sender.ID,
		})
	}
	return senders
}

func printUpdates(cmd *cobra.Command, updates []telegram.Update, fresh []offsets.Sender) {
	out := cmd.OutOrStdout()
	if len(updates) == 0 {
		printf(out, "No new updates\n")
		return
	}

	isNew := make(map[int64]bool, len(fresh))
	for _, s := range fresh {
		isNew[s.TelegramID] = true
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	printf(w, "UPDATE\tTELEGRAM ID\tUSERNAME\tNAME\tTEXT\t\n")
	for _, u := range updates {
		mark := ""
		if isNew[u.Sender.ID] {
			mark = "new"
			delete(isNew, u.Sender.ID)
		}
		printf(w, "%d\t%d\t%s\t%s\t%s\t%s\n", u.ID, u.Sender.ID, atUsername(u.Sender.Username),
			fullName(u.Sender.FirstName, u.Sender.LastName), u.Text, mark)
	}
	_ = w.Flush()
}

func atUsername(username string) string {
	if username == "" {
		return "-"
	}
	return "@" + username
}

func fullName(first, last string) string {
	if last == "" {
		return first
	}
	return first + " " + last
}
