// Package config loads server configuration from YAML, .env and STORYHUB_* environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full server configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	JWT       JWTConfig       `mapstructure:"jwt" yaml:"jwt"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Blob      BlobConfig      `mapstructure:"blob" yaml:"blob"`
	Catalog   CatalogConfig   `mapstructure:"catalog" yaml:"catalog"`
	Publish   PublishConfig   `mapstructure:"publish" yaml:"publish"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Events    EventsConfig    `mapstructure:"events" yaml:"events"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	Mode            string        `mapstructure:"mode" yaml:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// DatabaseConfig selects where user accounts live. Driver is sqlite or postgres.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"`
	Path            string        `mapstructure:"path" yaml:"path"`
	UsePGX          bool          `mapstructure:"use_pgx" yaml:"use_pgx"`
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	User            string        `mapstructure:"user" yaml:"user"`
	Password        string        `mapstructure:"password" yaml:"password"`
	Database        string        `mapstructure:"database" yaml:"database"`
	SSLMode         string        `mapstructure:"ssl_mode" yaml:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret" yaml:"secret"`
	Issuer     string        `mapstructure:"issuer" yaml:"issuer"`
	Expiration time.Duration `mapstructure:"expiration" yaml:"expiration"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	Output     string `mapstructure:"output" yaml:"output"`
	TimeFormat string `mapstructure:"time_format" yaml:"time_format"`
}

// StorageConfig selects the document backend: file or redis
type StorageConfig struct {
	Backend   string `mapstructure:"backend" yaml:"backend"`
	DataDir   string `mapstructure:"data_dir" yaml:"data_dir"`
	UploadDir string `mapstructure:"upload_dir" yaml:"upload_dir"`
	PublicURL string `mapstructure:"public_url" yaml:"public_url"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
}

// BlobConfig configures the remote ("drive") image backend
type BlobConfig struct {
	CloudinaryCloud  string `mapstructure:"cloudinary_cloud" yaml:"cloudinary_cloud"`
	CloudinaryKey    string `mapstructure:"cloudinary_key" yaml:"cloudinary_key"`
	CloudinarySecret string `mapstructure:"cloudinary_secret" yaml:"cloudinary_secret"`
	CloudinaryFolder string `mapstructure:"cloudinary_folder" yaml:"cloudinary_folder"`
}

// CloudinaryEnabled reports whether remote uploads are configured
func (b BlobConfig) CloudinaryEnabled() bool {
	return b.CloudinaryCloud != "" && b.CloudinaryKey != "" && b.CloudinarySecret != ""
}

type CatalogConfig struct {
	OptimisticWrites bool     `mapstructure:"optimistic_writes" yaml:"optimistic_writes"`
	SensitiveTags    []string `mapstructure:"sensitive_tags" yaml:"sensitive_tags"`
}

type PublishConfig struct {
	Attempts   int           `mapstructure:"attempts" yaml:"attempts"`
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

type AuthConfig struct {
	BootstrapAdminPassword string `mapstructure:"bootstrap_admin_password" yaml:"bootstrap_admin_password"`
	AutoProvision          bool   `mapstructure:"auto_provision" yaml:"auto_provision"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// EventsConfig enables the AMQP publisher when AMQPURL is set
type EventsConfig struct {
	AMQPURL string `mapstructure:"amqp_url" yaml:"amqp_url"`
	Queue   string `mapstructure:"queue" yaml:"queue"`
}

// Load reads path (optional), a .env file in the working directory (optional) and the environment.
// Environment variables use the STORYHUB_ prefix with dots replaced by underscores,
// e.g. STORYHUB_SERVER_PORT.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STORYHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "file", "redis":
	default:
		return fmt.Errorf("storage.backend must be file or redis, got %q", c.Storage.Backend)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("jwt.secret is required")
	}
	if c.Publish.Attempts < 1 {
		return errors.New("publish.attempts must be at least 1")
	}
	return nil
}

// Addr is the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.max_upload_bytes", int64(20<<20))
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/users.db")
	v.SetDefault("database.use_pgx", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "storyhub")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "storyhub")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)
	v.SetDefault("database.timeout", 5*time.Second)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "storyhub")
	v.SetDefault("jwt.expiration", 72*time.Hour)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.upload_dir", "./data")
	v.SetDefault("storage.public_url", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "storyhub:doc:")

	v.SetDefault("blob.cloudinary_cloud", "")
	v.SetDefault("blob.cloudinary_key", "")
	v.SetDefault("blob.cloudinary_secret", "")
	v.SetDefault("blob.cloudinary_folder", "storyhub")

	v.SetDefault("catalog.optimistic_writes", false)
	v.SetDefault("catalog.sensitive_tags", []string{"NSFW", "18+"})

	v.SetDefault("publish.attempts", 3)
	v.SetDefault("publish.retry_delay", time.Second)

	v.SetDefault("auth.bootstrap_admin_password", "")
	v.SetDefault("auth.auto_provision", false)

	v.SetDefault("rate_limit.requests_per_second", 5.0)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.queue", "story.chapter_published")
}
