// Package config loads x-oauth2 CLI configuration from a YAML file, a .env
// file and XOAUTH_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	oauth "github.com/giantswarm/x-oauth2"
	"github.com/giantswarm/x-oauth2/providers/x"
	"github.com/giantswarm/x-oauth2/retry"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "XOAUTH"

// allScopesKeyword selects the full X scope vocabulary.
const allScopesKeyword = "all"

// Config is the CLI configuration.
type Config struct {
	ClientID       string          `mapstructure:"client_id" validate:"required"`
	ClientSecret   string          `mapstructure:"client_secret"`
	RedirectURI    string          `mapstructure:"redirect_uri" validate:"required,url"`
	Scopes         []string        `mapstructure:"scopes" validate:"required,min=1,dive,required"`
	AttemptTimeout time.Duration   `mapstructure:"attempt_timeout" validate:"gt=0"`
	LogLevel       string          `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Retry          RetryConfig     `mapstructure:"retry"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
	Telemetry      TelemetryConfig `mapstructure:"telemetry"`
}

// RetryConfig mirrors retry.Config.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"gte=1"`
	BaseDelay      time.Duration `mapstructure:"base_delay" validate:"gt=0"`
	MaxDelay       time.Duration `mapstructure:"max_delay" validate:"gtefield=BaseDelay"`
	JitterFactor   float64       `mapstructure:"jitter_factor" validate:"gte=0,lte=1"`
	OverallTimeout time.Duration `mapstructure:"overall_timeout" validate:"gt=0"`
}

// RateLimitConfig paces token requests.
type RateLimitConfig struct {
	Rate  float64 `mapstructure:"rate" validate:"gte=0"`
	Burst int     `mapstructure:"burst" validate:"gte=0"`
}

// TelemetryConfig enables OpenTelemetry instrumentation.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Endpoint    string `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	Insecure    bool   `mapstructure:"insecure"`
}

// Options selects the files Load reads. Empty paths are skipped.
type Options struct {
	ConfigFile string
	EnvFile    string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// setDefaults registers every key so AutomaticEnv can find it.
func setDefaults(v *viper.Viper) {
	d := retry.DefaultConfig()
	v.SetDefault("client_id", "")
	v.SetDefault("client_secret", "")
	v.SetDefault("redirect_uri", "")
	v.SetDefault("scopes", []string{})
	v.SetDefault("attempt_timeout", oauth.DefaultAttemptTimeout)
	v.SetDefault("log_level", "info")
	v.SetDefault("retry.max_attempts", d.MaxAttempts)
	v.SetDefault("retry.base_delay", d.BaseDelay)
	v.SetDefault("retry.max_delay", d.MaxDelay)
	v.SetDefault("retry.jitter_factor", d.JitterFactor)
	v.SetDefault("retry.overall_timeout", d.OverallTimeout)
	v.SetDefault("rate_limit.rate", 0)
	v.SetDefault("rate_limit.burst", 0)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "x-oauth2")
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", false)
}

// Load reads and validates the configuration.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Scopes = splitScopes(cfg.Scopes)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitScopes flattens entries that hold several scopes separated by spaces
// or commas, as they arrive from environment variables.
func splitScopes(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.FieldsFunc(v, func(r rune) bool {
			return r == ' ' || r == ','
		})...)
	}
	return out
}

// Validate checks struct tags and the scope vocabulary.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := c.scopeSet(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) scopeSet() (x.ScopeSet, error) {
	for _, s := range c.Scopes {
		if s == allScopesKeyword {
			return x.NewScopeSet(x.AllScopes()...), nil
		}
	}
	return x.ParseScopes(c.Scopes...)
}

// ClientConfig converts the configuration into an oauth.Config.
func (c *Config) ClientConfig() (oauth.Config, error) {
	scopes, err := c.scopeSet()
	if err != nil {
		return oauth.Config{}, err
	}
	return oauth.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURI:  c.RedirectURI,
		Scopes:       scopes.Scopes(),
		Retry: retry.Config{
			MaxAttempts:    c.Retry.MaxAttempts,
			BaseDelay:      c.Retry.BaseDelay,
			MaxDelay:       c.Retry.MaxDelay,
			JitterFactor:   c.Retry.JitterFactor,
			OverallTimeout: c.Retry.OverallTimeout,
		},
		AttemptTimeout: c.AttemptTimeout,
		RateLimit: oauth.RateLimitConfig{
			Rate:  c.RateLimit.Rate,
			Burst: c.RateLimit.Burst,
		},
	}, nil
}

// Logger builds a text logger on stderr at the configured level.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
