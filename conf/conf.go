package conf

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/looplj/todohub/internal/log"
	"github.com/looplj/todohub/internal/mail"
	"github.com/looplj/todohub/internal/metrics"
	"github.com/looplj/todohub/internal/pkg/xcache"
	"github.com/looplj/todohub/internal/server"
	"github.com/looplj/todohub/internal/server/biz"
	"github.com/looplj/todohub/internal/server/db"
	"github.com/looplj/todohub/internal/server/middleware"
)

const EnvPrefix = "TODOHUB"

type Config struct {
	fx.Out `yaml:"-" json:"-"`

	APIServer server.Config  `conf:"server" yaml:"server" json:"server"`
	DB        db.Config      `conf:"db" yaml:"db" json:"db"`
	Log       log.Config     `conf:"log" yaml:"log" json:"log"`
	Cache     xcache.Config  `conf:"cache" yaml:"cache" json:"cache"`
	Auth      biz.AuthConfig `conf:"auth" yaml:"auth" json:"auth"`
	Mail      mail.Config    `conf:"mail" yaml:"mail" json:"mail"`
	Metrics   metrics.Config `conf:"metrics" yaml:"metrics" json:"metrics"`
}

// Load reads config.yml from ".", "./conf" or "/etc/todohub", then TODOHUB_ prefixed environment variables,
// e.g. TODOHUB_SERVER_PORT or TODOHUB_DB_DSN. A missing file is not an error.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./conf")
	v.AddConfigPath("/etc/todohub/")

	return load(v)
}

// LoadFile reads the config from path instead of the search paths.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	return load(v)
}

func load(v *viper.Viper) (Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config

	err := v.Unmarshal(&config, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "conf"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.name", "todohub")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.trace.trace_header", "TH-Trace-Id")
	v.SetDefault("server.trace.request_header", "TH-Request-Id")

	rateLimit := middleware.DefaultRateLimitConfig()
	v.SetDefault("server.rate_limit.enabled", rateLimit.Enabled)
	v.SetDefault("server.rate_limit.window", rateLimit.Window)
	v.SetDefault("server.rate_limit.max", rateLimit.Max)
	v.SetDefault("server.rate_limit.strict_paths", rateLimit.StrictPaths)
	v.SetDefault("server.rate_limit.strict_max", rateLimit.StrictMax)

	v.SetDefault("server.cors.enabled", false)
	v.SetDefault("server.cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("server.cors.allowed_headers", []string{"Content-Type", "Authorization", "TH-Trace-Id"})
	v.SetDefault("server.cors.exposed_headers", []string{"Set-Auth-Token", "TH-Request-Id"})
	v.SetDefault("server.cors.allow_credentials", true)
	v.SetDefault("server.cors.max_age", 12*time.Hour)

	v.SetDefault("db.dialect", "sqlite3")
	v.SetDefault("db.dsn", "file:todohub.db?cache=shared")
	v.SetDefault("db.debug", false)
	v.SetDefault("db.max_open_conns", 0)
	v.SetDefault("db.max_idle_conns", 0)

	v.SetDefault("log.name", "todohub")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", log.EncodingJSON)
	v.SetDefault("log.debug", false)
	v.SetDefault("log.output", log.OutputStdio)
	v.SetDefault("log.file.path", "logs/todohub.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 10)
	v.SetDefault("log.file.local_time", true)

	v.SetDefault("cache.mode", xcache.ModeMemory)
	v.SetDefault("cache.memory.expiration", 5*time.Minute)
	v.SetDefault("cache.memory.cleanup_interval", 10*time.Minute)
	v.SetDefault("cache.redis.addr", "")
	v.SetDefault("cache.redis.url", "")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.tls_insecure_skip_verify", false)
	v.SetDefault("cache.redis.key_prefix", "todohub:")
	v.SetDefault("cache.redis.expiration", 30*time.Minute)

	auth := biz.DefaultAuthConfig()
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.base_url", auth.BaseURL)
	v.SetDefault("auth.session_expires_in", auth.SessionExpiresIn)
	v.SetDefault("auth.short_session_expires_in", auth.ShortSessionExpiresIn)
	v.SetDefault("auth.verification_expires_in", auth.VerificationExpiresIn)
	v.SetDefault("auth.reset_password_expires_in", auth.ResetPasswordExpiresIn)
	v.SetDefault("auth.invitation_expires_in", auth.InvitationExpiresIn)
	v.SetDefault("auth.min_password_length", auth.MinPasswordLength)
	v.SetDefault("auth.max_password_length", auth.MaxPasswordLength)
	v.SetDefault("auth.require_email_verification", false)
	v.SetDefault("auth.admin_emails", []string{})
	v.SetDefault("auth.cookie_secure", false)

	v.SetDefault("mail.provider", mail.ProviderDisabled)
	v.SetDefault("mail.api_key", "")
	v.SetDefault("mail.base_url", "")
	v.SetDefault("mail.from", mail.DefaultFrom)
	v.SetDefault("mail.test_to", "")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.exporter.type", metrics.ExporterStdout)
	v.SetDefault("metrics.exporter.endpoint", "")
	v.SetDefault("metrics.exporter.insecure", false)
	v.SetDefault("metrics.interval", time.Minute)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var result *multierror.Error

	if c.APIServer.Port <= 0 || c.APIServer.Port > 65535 {
		result = multierror.Append(result, errors.New("server.port must be between 1 and 65535"))
	}

	if c.APIServer.CORS.Enabled && len(c.APIServer.CORS.AllowedOrigins) == 0 {
		result = multierror.Append(result, errors.New("server.cors.allowed_origins cannot be empty when CORS is enabled"))
	}

	if c.APIServer.RateLimit.Enabled && (c.APIServer.RateLimit.Window <= 0 || c.APIServer.RateLimit.Max <= 0) {
		result = multierror.Append(result, errors.New("server.rate_limit.window and server.rate_limit.max must be positive"))
	}

	if !slices.Contains([]string{"", "sqlite", "sqlite3", "postgres", "pgx", "postgresdb", "pg", "postgresql", "mysql", "tidb"}, strings.ToLower(c.DB.Dialect)) {
		result = multierror.Append(result, fmt.Errorf("db.dialect %q is not supported", c.DB.Dialect))
	}

	if c.DB.DSN == "" {
		result = multierror.Append(result, errors.New("db.dsn cannot be empty"))
	}

	if c.Log.Name == "" {
		result = multierror.Append(result, errors.New("log.name cannot be empty"))
	}

	if err := c.Cache.Validate(); err != nil {
		result = multierror.Append(result, fmt.Errorf("cache: %w", err))
	}

	if u, err := url.Parse(c.Auth.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		result = multierror.Append(result, errors.New("auth.base_url must be an absolute url"))
	}

	if c.Auth.MinPasswordLength > c.Auth.MaxPasswordLength {
		result = multierror.Append(result, errors.New("auth.min_password_length cannot exceed auth.max_password_length"))
	}

	switch c.Mail.Provider {
	case "", mail.ProviderDisabled:
	case mail.ProviderResend:
		if c.Mail.APIKey == "" {
			result = multierror.Append(result, errors.New("mail.api_key is required for the resend provider"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("mail.provider %q is not supported", c.Mail.Provider))
	}

	if c.Metrics.Enabled && !slices.Contains([]string{metrics.ExporterStdout, metrics.ExporterOTLPHTTP, metrics.ExporterOTLPGRPC}, c.Metrics.Exporter.Type) {
		result = multierror.Append(result, fmt.Errorf("metrics.exporter.type %q is not supported", c.Metrics.Exporter.Type))
	}

	return result.ErrorOrNil()
}
