// Package bootstrap собирает зависимости бинарников из конфигурации
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iudanet/tgbridge/internal/config"
	"github.com/iudanet/tgbridge/internal/crypto"
	"github.com/iudanet/tgbridge/internal/directory"
	"github.com/iudanet/tgbridge/internal/directory/sqlite"
	"github.com/iudanet/tgbridge/internal/directory/supabase"
)

// Directory открытый account directory.
// Directory и Admin nil, если удаленный directory не настроен.
// Local не nil только для sqlite драйвера.
type Directory struct {
	Directory directory.Directory
	Admin     directory.Admin
	Local     *sqlite.Storage
}

// Close освобождает ресурсы directory
func (d *Directory) Close() error {
	if d.Local != nil {
		return d.Local.Close()
	}
	return nil
}

// OpenDirectory создает directory по directory.driver
func OpenDirectory(ctx context.Context, cfg config.DirectoryConfig, logger *slog.Logger) (*Directory, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		keys, err := crypto.DeriveKeys([]byte(cfg.JWTSecret))
		if err != nil {
			return nil, fmt.Errorf("failed to derive directory keys: %w", err)
		}

		store, err := sqlite.New(ctx, cfg.SQLitePath, sqlite.Options{
			Keys:            keys,
			AccessTokenTTL:  cfg.AccessTokenTTL,
			RefreshTokenTTL: cfg.RefreshTokenTTL,
			OTPTTL:          cfg.OTPTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite directory: %w", err)
		}

		logger.Info("Using local sqlite directory", slog.String("path", cfg.SQLitePath))
		return &Directory{Directory: store, Admin: store, Local: store}, nil

	case config.DriverSupabase:
		if !cfg.Configured() {
			logger.Warn("Account directory is not configured, session endpoint will answer supabase_env_not_set")
			return &Directory{}, nil
		}

		client := supabase.NewClient(cfg.URL, cfg.ServiceKey, cfg.Timeout)
		logger.Info("Using remote directory", slog.String("url", cfg.URL))
		return &Directory{Directory: client, Admin: client}, nil

	default:
		return nil, fmt.Errorf("unknown directory driver %q", cfg.Driver)
	}
}
