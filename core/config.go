package core

import (
	"fmt"
	"strings"
	"time"
)

type HTTPConfig struct {
	Addr      string `koanf:"addr" mapstructure:"addr"`
	BodyLimit int    `koanf:"body_limit" mapstructure:"body_limit"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
}

type WebhookConfig struct {
	Secret           string `koanf:"secret" mapstructure:"secret"`
	AckUnknownOrders bool   `koanf:"ack_unknown_orders" mapstructure:"ack_unknown_orders"`
}

type DispatchConfig struct {
	Timeout         time.Duration `koanf:"timeout" mapstructure:"timeout"`
	UserAgent       string        `koanf:"user_agent" mapstructure:"user_agent"`
	MaxResponseBody int           `koanf:"max_response_body" mapstructure:"max_response_body"`
	CacheTTL        time.Duration `koanf:"cache_ttl" mapstructure:"cache_ttl"`
}

type RetryConfig struct {
	Schedule  []time.Duration `koanf:"schedule" mapstructure:"schedule"`
	BatchSize int             `koanf:"batch_size" mapstructure:"batch_size"`
	Interval  time.Duration   `koanf:"interval" mapstructure:"interval"`
}

type AbandonConfig struct {
	Threshold time.Duration `koanf:"threshold" mapstructure:"threshold"`
	BatchSize int           `koanf:"batch_size" mapstructure:"batch_size"`
	Interval  time.Duration `koanf:"interval" mapstructure:"interval"`
}

type GatewayConfig struct {
	Environment        string        `koanf:"environment" mapstructure:"environment"`
	WebhookURL         string        `koanf:"webhook_url" mapstructure:"webhook_url"`
	PlatformFeePercent float64       `koanf:"platform_fee_percent" mapstructure:"platform_fee_percent"`
	PlatformAccountID  string        `koanf:"platform_account_id" mapstructure:"platform_account_id"`
	Timeout            time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

type SecurityConfig struct {
	AppKey string `koanf:"app_key" mapstructure:"app_key"`
	KeyID  string `koanf:"key_id" mapstructure:"key_id"`
	// PreviousAppKey only decrypts; it keeps rows written before a key
	// rotation readable.
	PreviousAppKey string `koanf:"previous_app_key" mapstructure:"previous_app_key"`
	PreviousKeyID  string `koanf:"previous_key_id" mapstructure:"previous_key_id"`
}

type CronConfig struct {
	Secret string `koanf:"secret" mapstructure:"secret"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr" mapstructure:"addr"`
	Password string `koanf:"password" mapstructure:"password"`
	DB       int    `koanf:"db" mapstructure:"db"`
}

type UTMifyConfig struct {
	Enabled bool   `koanf:"enabled" mapstructure:"enabled"`
	URL     string `koanf:"url" mapstructure:"url"`
	Token   string `koanf:"token" mapstructure:"token"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	HTTP        HTTPConfig     `koanf:"http" mapstructure:"http"`
	Database    DatabaseConfig `koanf:"database" mapstructure:"database"`
	Webhook     WebhookConfig  `koanf:"webhook" mapstructure:"webhook"`
	Dispatch    DispatchConfig `koanf:"dispatch" mapstructure:"dispatch"`
	Retry       RetryConfig    `koanf:"retry" mapstructure:"retry"`
	Abandon     AbandonConfig  `koanf:"abandon" mapstructure:"abandon"`
	Gateway     GatewayConfig  `koanf:"gateway" mapstructure:"gateway"`
	Security    SecurityConfig `koanf:"security" mapstructure:"security"`
	Cron        CronConfig     `koanf:"cron" mapstructure:"cron"`
	Redis       RedisConfig    `koanf:"redis" mapstructure:"redis"`
	UTMify      UTMifyConfig   `koanf:"utmify" mapstructure:"utmify"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "checkout",
		HTTP: HTTPConfig{
			Addr:      ":8080",
			BodyLimit: 1 << 20,
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "file:checkout.db?cache=shared&_foreign_keys=on",
		},
		Dispatch: DispatchConfig{
			Timeout:         10 * time.Second,
			UserAgent:       "go-checkout-webhook/1.0",
			MaxResponseBody: MaxResponseBodyChars,
			CacheTTL:        time.Minute,
		},
		Retry: RetryConfig{
			Schedule:  DefaultBackoffSchedule(),
			BatchSize: 100,
			Interval:  5 * time.Minute,
		},
		Abandon: AbandonConfig{
			Threshold: 30 * time.Minute,
			BatchSize: 100,
			Interval:  10 * time.Minute,
		},
		Gateway: GatewayConfig{
			Environment:        GatewayEnvironmentSandbox,
			PlatformFeePercent: 7.5,
			Timeout:            15 * time.Second,
		},
		Security: SecurityConfig{
			KeyID: "app-key",
		},
		UTMify: UTMifyConfig{
			URL: "https://api.utmify.com.br/api-credentials/orders",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	switch strings.TrimSpace(c.Database.Driver) {
	case "", "sqlite3", "postgres":
	default:
		return fmt.Errorf("core: unsupported database driver %q", c.Database.Driver)
	}
	switch strings.TrimSpace(c.Gateway.Environment) {
	case "", GatewayEnvironmentSandbox, GatewayEnvironmentProduction:
	default:
		return fmt.Errorf("core: invalid gateway environment %q", c.Gateway.Environment)
	}
	if c.Gateway.PlatformFeePercent < 0 || c.Gateway.PlatformFeePercent > 50 {
		return fmt.Errorf("core: gateway platform_fee_percent must be between 0 and 50")
	}
	for i, delay := range c.Retry.Schedule {
		if delay <= 0 {
			return fmt.Errorf("core: retry schedule entry %d must be positive", i)
		}
	}
	if c.Retry.BatchSize < 0 || c.Abandon.BatchSize < 0 {
		return fmt.Errorf("core: batch sizes must not be negative")
	}
	if c.UTMify.Enabled && strings.TrimSpace(c.UTMify.Token) == "" {
		return fmt.Errorf("core: utmify token is required when utmify is enabled")
	}
	return nil
}

// BackoffSchedule returns the configured retry schedule or the default one.
func (c Config) BackoffSchedule() BackoffSchedule {
	if len(c.Retry.Schedule) == 0 {
		return DefaultBackoffSchedule()
	}
	return append(BackoffSchedule(nil), c.Retry.Schedule...)
}

// sweepLockMargin covers store round trips on top of the dispatch budget.
const sweepLockMargin = time.Minute

// SweepLockTTL is how long a sweep may hold its lock. A sweep dispatches
// up to a full batch sequentially and each dispatch is bounded by the
// dispatch timeout, so the lease must outlive that worst case.
func (c Config) SweepLockTTL() time.Duration {
	batch := max(c.Retry.BatchSize, c.Abandon.BatchSize)
	if batch <= 0 {
		batch = DefaultSweepBatchSize
	}
	timeout := c.Dispatch.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Dispatch.Timeout
	}
	ttl := time.Duration(batch)*timeout + sweepLockMargin
	return max(ttl, c.Retry.Interval)
}
