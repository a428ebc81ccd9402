package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository/postgres"
	"github.com/jwalitptl/office-portal/pkg/messaging/redis"
	"github.com/jwalitptl/office-portal/pkg/notify"
	"github.com/jwalitptl/office-portal/pkg/worker"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Debug           bool          `mapstructure:"debug"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	ReadRetry       struct {
		MaxRetries      uint64        `mapstructure:"max_retries"`
		InitialInterval time.Duration `mapstructure:"initial_interval"`
		MaxInterval     time.Duration `mapstructure:"max_interval"`
	} `mapstructure:"read_retry"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	Lease         time.Duration `mapstructure:"lease"`
	PublishTries  uint64        `mapstructure:"publish_tries"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	MaxRetryDelay time.Duration `mapstructure:"max_retry_delay"`
	Retention     time.Duration `mapstructure:"retention"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	Expiry time.Duration `mapstructure:"expiry"`
}

type SecurityConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

type RBACConfig struct {
	Seed      bool            `mapstructure:"seed"`
	RoleNames model.RoleNames `mapstructure:"role_names"`
	Admin     struct {
		Phone    string `mapstructure:"phone"`
		Name     string `mapstructure:"name"`
		Password string `mapstructure:"password"`
	} `mapstructure:"admin"`
}

type NotifyConfig struct {
	Channel string `mapstructure:"channel"`
	SMTP    struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		From     string `mapstructure:"from"`
	} `mapstructure:"smtp"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Insecure     bool   `mapstructure:"insecure"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Security  SecurityConfig  `mapstructure:"security"`
	RBAC      RBACConfig      `mapstructure:"rbac"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   struct {
		Namespace string `mapstructure:"namespace"`
	} `mapstructure:"metrics"`
}

// Secrets are read from PORTAL_* environment variables and override the file.
type Secrets struct {
	DBPassword    string `envconfig:"DB_PASSWORD"`
	JWTSecret     string `envconfig:"JWT_SECRET"`
	SMTPPassword  string `envconfig:"SMTP_PASSWORD"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.read_retry.max_retries", 3)
	v.SetDefault("database.read_retry.initial_interval", 50*time.Millisecond)
	v.SetDefault("database.read_retry.max_interval", time.Second)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.lease", 30*time.Second)
	v.SetDefault("outbox.publish_tries", 3)
	v.SetDefault("outbox.retry_attempts", 5)
	v.SetDefault("outbox.retry_delay", time.Second)
	v.SetDefault("outbox.max_retry_delay", 10*time.Minute)
	v.SetDefault("outbox.retention", 7*24*time.Hour)
	v.SetDefault("jwt.issuer", "office-portal")
	v.SetDefault("jwt.expiry", 24*time.Hour)
	v.SetDefault("security.bcrypt_cost", bcrypt.DefaultCost)
	v.SetDefault("rbac.seed", true)
	v.SetDefault("rbac.role_names.admin", "admin")
	v.SetDefault("rbac.role_names.manager", "manager")
	v.SetDefault("rbac.role_names.staff", "staff")
	v.SetDefault("rbac.role_names.customer", "customer")
	v.SetDefault("rbac.admin.name", "Administrator")
	v.SetDefault("notify.channel", "portal.notifications")
	v.SetDefault("notify.smtp.port", 587)
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("telemetry.service_name", "office-portal")
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.namespace", "portal")
}

// LoadConfig reads config.yml from the usual locations. A missing file is
// not an error; defaults and environment variables still apply.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app/config")

	v.SetEnvPrefix("portal")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var secrets Secrets
	if err := envconfig.Process("portal", &secrets); err != nil {
		return nil, fmt.Errorf("failed to process secrets: %w", err)
	}
	cfg.applySecrets(secrets)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applySecrets(s Secrets) {
	if s.DBPassword != "" {
		c.Database.Password = s.DBPassword
	}
	if s.JWTSecret != "" {
		c.JWT.Secret = s.JWTSecret
	}
	if s.SMTPPassword != "" {
		c.Notify.SMTP.Password = s.SMTPPassword
	}
	if s.AdminPassword != "" {
		c.RBAC.Admin.Password = s.AdminPassword
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt secret is required, set PORTAL_JWT_SECRET")
	}
	if c.Security.BcryptCost != 0 && (c.Security.BcryptCost < bcrypt.MinCost || c.Security.BcryptCost > bcrypt.MaxCost) {
		return fmt.Errorf("security.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.RBAC.RoleNames.Admin == "" || c.RBAC.RoleNames.Customer == "" {
		return errors.New("admin and customer role names are required")
	}
	return nil
}

func (c *DatabaseConfig) ToPostgresConfig() postgres.Config {
	return postgres.Config{
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		Name:            c.Name,
		SSLMode:         c.SSLMode,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}

func (c *DatabaseConfig) ToReadRetry() postgres.ReadRetry {
	return postgres.ReadRetry{
		MaxRetries:      c.ReadRetry.MaxRetries,
		InitialInterval: c.ReadRetry.InitialInterval,
		MaxInterval:     c.ReadRetry.MaxInterval,
	}
}

func (c *OutboxConfig) ToWorkerConfig(channel string) worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		Channel:       channel,
		BatchSize:     c.BatchSize,
		PollInterval:  c.PollInterval,
		Lease:         c.Lease,
		PublishTries:  c.PublishTries,
		MaxAttempts:   c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
		MaxRetryDelay: c.MaxRetryDelay,
		Retention:     c.Retention,
	}
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

// SMTPEnabled reports whether email delivery is configured.
func (c *NotifyConfig) SMTPEnabled() bool {
	return c.SMTP.Host != "" && c.SMTP.From != ""
}

func (c *NotifyConfig) ToSMTPConfig() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
	}
}

// AdminRequest returns the bootstrap admin account, or false when no
// password is configured.
func (c *RBACConfig) AdminRequest() (model.RegisterRequest, bool) {
	if c.Admin.Phone == "" || c.Admin.Password == "" {
		return model.RegisterRequest{}, false
	}
	return model.RegisterRequest{
		Phone:    c.Admin.Phone,
		Password: c.Admin.Password,
		Name:     c.Admin.Name,
	}, true
}
