// Package config загружает конфигурацию tgbridge: defaults, YAML файл, окружение
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Драйверы account directory
const (
	DriverSupabase = "supabase"
	DriverSQLite   = "sqlite"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "TGBRIDGE"

// Config конфигурация процесса. Собирается один раз при старте.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Directory DirectoryConfig `mapstructure:"directory"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig параметры HTTP сервера
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig параметры логирования
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelegramConfig параметры бота
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	InitDataMaxAge time.Duration `mapstructure:"init_data_max_age"`
}

// DirectoryConfig параметры account directory
type DirectoryConfig struct {
	Driver          string        `mapstructure:"driver"`
	URL             string        `mapstructure:"url"`
	ServiceKey      string        `mapstructure:"service_key"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	JWTSecret       string        `mapstructure:"jwt_secret"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule"`
	Timeout         time.Duration `mapstructure:"timeout"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	OTPTTL          time.Duration `mapstructure:"otp_ttl"`
}

// RateLimitConfig ограничение запросов на IP. Requests == 0 отключает лимит.
// TrustForwarded включать только за reverse proxy, который перезаписывает X-Forwarded-For.
type RateLimitConfig struct {
	Requests       int           `mapstructure:"requests"`
	Window         time.Duration `mapstructure:"window"`
	TrustForwarded bool          `mapstructure:"trust_forwarded"`
}

// MetricsConfig Prometheus метрики на GET /metrics
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// AdminConfig параметры tgadmin
type AdminConfig struct {
	StatePath string `mapstructure:"state_path"`
}

// legacyEnv исторические имена переменных окружения
var legacyEnv = map[string]string{
	"telegram.bot_token":    "TELEGRAM_BOT_TOKEN",
	"directory.url":         "SUPABASE_URL",
	"directory.service_key": "SUPABASE_SERVICE_ROLE_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.init_data_max_age", time.Duration(0))

	v.SetDefault("directory.driver", DriverSupabase)
	v.SetDefault("directory.url", "")
	v.SetDefault("directory.service_key", "")
	v.SetDefault("directory.timeout", 30*time.Second)
	v.SetDefault("directory.sqlite_path", "tgbridge.db")
	v.SetDefault("directory.jwt_secret", "")
	v.SetDefault("directory.access_token_ttl", time.Hour)
	v.SetDefault("directory.refresh_token_ttl", 30*24*time.Hour)
	v.SetDefault("directory.otp_ttl", time.Hour)
	v.SetDefault("directory.cleanup_schedule", "@hourly")

	v.SetDefault("ratelimit.requests", 30)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.trust_forwarded", false)

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("admin.state_path", "tgadmin.db")
}

// Load читает конфигурацию. path пустой: ищем tgbridge.yaml в текущей
// директории и /etc/tgbridge, отсутствие файла не ошибка.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tgbridge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/tgbridge")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// префиксная переменная приоритетнее исторической
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", legacy, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// явно заданный файл обязан существовать
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет значения, без которых процесс не может стартовать.
// Пустой bot token и не настроенный directory не ошибка: эндпоинты
// отвечают bot_token_not_set / supabase_env_not_set.
func (c *Config) Validate() error {
	switch c.Directory.Driver {
	case DriverSupabase:
	case DriverSQLite:
		if c.Directory.SQLitePath == "" {
			return errors.New("directory.sqlite_path is required for sqlite driver")
		}
		if len(c.Directory.JWTSecret) < 32 {
			return errors.New("directory.jwt_secret must be at least 32 bytes for sqlite driver")
		}
		if c.Directory.AccessTokenTTL <= 0 {
			return errors.New("directory.access_token_ttl must be positive for sqlite driver")
		}
		if c.Directory.RefreshTokenTTL <= 0 {
			return errors.New("directory.refresh_token_ttl must be positive for sqlite driver")
		}
		if c.Directory.OTPTTL <= 0 {
			return errors.New("directory.otp_ttl must be positive for sqlite driver")
		}
	default:
		return fmt.Errorf("unknown directory.driver %q", c.Directory.Driver)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	if c.RateLimit.Requests < 0 {
		return errors.New("ratelimit.requests must not be negative")
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		return errors.New("ratelimit.window must be positive when ratelimit.requests is set")
	}

	return nil
}

// Configured сообщает, достаточно ли параметров для подключения directory
func (c *DirectoryConfig) Configured() bool {
	if c.Driver == DriverSQLite {
		return true
	}
	return c.URL != "" && c.ServiceKey != ""
}
