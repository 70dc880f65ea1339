package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type ModerationConfig struct {
	ForbiddenWords []string
}

type PaymentsConfig struct {
	FeePercent      float64
	ProviderTimeout time.Duration

	YooKassaShopID    string
	YooKassaSecretKey string
	YooKassaReturnURL string

	CloudPaymentsPublicID  string
	CloudPaymentsAPISecret string
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Moderation  ModerationConfig
	Payments    PaymentsConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Moderation: ModerationConfig{
			ForbiddenWords: parseList(v.GetString("MODERATION_FORBIDDEN_WORDS")),
		},
		Payments: PaymentsConfig{
			FeePercent:             v.GetFloat64("PLATFORM_FEE_PERCENT"),
			ProviderTimeout:        v.GetDuration("PROVIDER_TIMEOUT"),
			YooKassaShopID:         v.GetString("YOOKASSA_SHOP_ID"),
			YooKassaSecretKey:      v.GetString("YOOKASSA_SECRET_KEY"),
			YooKassaReturnURL:      v.GetString("YOOKASSA_RETURN_URL"),
			CloudPaymentsPublicID:  v.GetString("CLOUDPAYMENTS_PUBLIC_ID"),
			CloudPaymentsAPISecret: v.GetString("CLOUDPAYMENTS_API_SECRET"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7102
	}
	if cfg.Payments.FeePercent == 0 {
		cfg.Payments.FeePercent = 0.15
	}
	if cfg.Payments.ProviderTimeout == 0 {
		cfg.Payments.ProviderTimeout = 10 * time.Second
	}
	if len(cfg.Moderation.ForbiddenWords) == 0 {
		cfg.Moderation.ForbiddenWords = []string{"weapon", "drugs", "explosive"}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Payments.FeePercent < 0 || cfg.Payments.FeePercent >= 1 {
		return fmt.Errorf("PLATFORM_FEE_PERCENT must be in [0, 1)")
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
