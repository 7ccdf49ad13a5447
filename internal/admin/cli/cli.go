// Package cli реализует команды tgadmin
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/iudanet/tgbridge/internal/admin/offsets"
	"github.com/iudanet/tgbridge/internal/admin/prompt"
	"github.com/iudanet/tgbridge/internal/bootstrap"
	"github.com/iudanet/tgbridge/internal/config"
	"github.com/iudanet/tgbridge/internal/directory"
	"github.com/iudanet/tgbridge/internal/logger"
	"github.com/iudanet/tgbridge/internal/telegram"
)

// Gateway операции Bot API, которые использует tgadmin
type Gateway interface {
	Me() telegram.BotInfo
	Updates(offset, limit int) ([]telegram.Update, int, error)
	SendMessage(chatID int64, text string) (int, error)
}

// App зависимости команд. Фабрики подменяются в тестах.
type App struct {
	OpenAdmin   func(ctx context.Context, cfg *config.Config) (directory.Admin, func() error, error)
	OpenGateway func(token string) (Gateway, error)
	OpenState   func(ctx context.Context, path string) (*offsets.Store, error)
	ReadSecret  func(prompt string) (string, error)

	cfg        *config.Config
	configPath string
	version    string
}

// NewApp создает App с реальными зависимостями
func NewApp(version string) *App {
	return &App{
		OpenAdmin:   openAdmin,
		OpenGateway: openGateway,
		OpenState:   offsets.Open,
		ReadSecret:  prompt.New(os.Stdin, os.Stderr).ReadSecret,
		version:     version,
	}
}

func openAdmin(ctx context.Context, cfg *config.Config) (directory.Admin, func() error, error) {
	log := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	dir, err := bootstrap.OpenDirectory(ctx, cfg.Directory, log)
	if err != nil {
		return nil, nil, err
	}
	if dir.Admin == nil {
		_ = dir.Close()
		return nil, nil, fmt.Errorf("account directory is not configured: set directory.url and directory.service_key or use the sqlite driver")
	}

	return dir.Admin, dir.Close, nil
}

func openGateway(token string) (Gateway, error) {
	gw, err := telegram.New(token)
	if err != nil {
		return nil, err
	}
	return gw, nil
}

// NewRootCommand собирает дерево команд tgadmin
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "tgadmin",
		Short:         "Maintenance tool for the Telegram Mini App auth bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       app.version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(app.configPath)
			if err != nil {
				return err
			}
			app.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&app.configPath, "config", "", "path to config file (default: ./tgbridge.yaml)")

	root.AddCommand(
		newAccountCommand(app),
		newLinkCommand(app),
		newUnlinkCommand(app),
		newInitDataCommand(app),
		newBotCommand(app),
		newTokenCommand(app),
		newProbeCommand(app),
	)

	return root
}

// withAdmin открывает directory на время выполнения fn
func (a *App) withAdmin(ctx context.Context, fn func(admin directory.Admin) error) error {
	admin, closeFn, err := a.OpenAdmin(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			slog.Error("failed to close directory", slog.Any("error", err))
		}
	}()

	return fn(admin)
}

// botToken токен из конфигурации, иначе интерактивный ввод
func (a *App) botToken() (string, error) {
	if a.cfg.Telegram.BotToken != "" {
		return a.cfg.Telegram.BotToken, nil
	}

	token, err := a.ReadSecret("Bot token: ")
	if err != nil {
		return "", fmt.Errorf("bot token is not configured (telegram.bot_token / TELEGRAM_BOT_TOKEN): %w", err)
	}
	if token == "" {
		return "", telegram.ErrBotTokenRequired
	}
	return token, nil
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
