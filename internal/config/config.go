package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/jwalitptl/password-policy/internal/policy"
	"github.com/jwalitptl/password-policy/pkg/logger"
	"github.com/jwalitptl/password-policy/pkg/messaging/redis"
)

// EnvPrefix prefixes every environment override, e.g. PWPOLICY_SERVER_PORT.
const EnvPrefix = "PWPOLICY"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Policy     policy.Config    `mapstructure:"policy" validate:"-"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Redis      RedisConfig      `mapstructure:"redis"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Security   SecurityConfig   `mapstructure:"security"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" validate:"gt=0"`
}

// LogConfig is optional; empty fields fall back to the bootstrap environment.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error fatal"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=console json"`
}

// LoggerConfig resolves the logger settings, taking Level and Format from c
// when set and from boot otherwise.
func (c LogConfig) LoggerConfig(boot *Bootstrap) *logger.Config {
	level, format := c.Level, c.Format
	if boot != nil {
		if level == "" {
			level = boot.LogLevel
		}
		if format == "" {
			format = boot.LogFormat
		}
	}
	return &logger.Config{
		Level:  logger.ParseLevel(level),
		Format: format,
	}
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	AdminRole string `mapstructure:"admin_role" validate:"required"`
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	URL          string        `mapstructure:"url" validate:"required_if=Enabled true"`
	Channel      string        `mapstructure:"channel" validate:"required_if=Enabled true"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=0"`
	ClientTTL         time.Duration `mapstructure:"client_ttl"`
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `mapstructure:"prometheus_enabled"`
	MetricsPath       string `mapstructure:"metrics_path"`
	Namespace         string `mapstructure:"namespace"`
}

// ToBrokerConfig converts the redis section for the broker.
func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.max_body_bytes", 64<<10)

	p := policy.DefaultConfig()
	v.SetDefault("policy.minimum_length", p.MinimumLength)
	v.SetDefault("policy.maximum_length", p.MaximumLength)
	v.SetDefault("policy.require_uppercase", p.RequireUppercase)
	v.SetDefault("policy.require_lowercase", p.RequireLowercase)
	v.SetDefault("policy.require_digits", p.RequireDigits)
	v.SetDefault("policy.require_special_chars", p.RequireSpecialChars)
	v.SetDefault("policy.special_characters", p.SpecialCharacters)
	v.SetDefault("policy.password_expiration_days", p.PasswordExpirationDays)
	v.SetDefault("policy.password_history_size", p.PasswordHistorySize)
	v.SetDefault("policy.custom_error_messages", map[string]string{})

	v.SetDefault("auth.issuer", "password-policy")
	v.SetDefault("auth.admin_role", "policy:admin")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.channel", "password-policy.updates")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("rate_limit.client_ttl", 10*time.Minute)

	v.SetDefault("security.allowed_origins", []string{"*"})

	v.SetDefault("monitoring.prometheus_enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.namespace", "pwpolicy")
}

// newViper builds a viper instance reading path (if set), defaults and env.
func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// No defaults for log.*, so bind them for Unmarshal to see the env.
	_ = v.BindEnv("log.level")
	_ = v.BindEnv("log.format")

	return v
}

// LoadConfig reads configuration from path, or from ./config.yaml and
// ./config/config.yaml when path is empty. A missing default file is not an
// error; a missing explicit path is.
func LoadConfig(path string) (*Config, error) {
	cfg, _, err := load(path)
	return cfg, err
}

func load(path string) (*Config, *viper.Viper, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if config.Policy.CustomErrorMessages == nil {
		config.Policy.CustomErrorMessages = map[policy.RuleKey]string{}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every section, including the policy rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("invalid policy config: %w", err)
	}
	return nil
}
