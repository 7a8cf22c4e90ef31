package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fabseal/fabseal/internal/keyspace"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Defaults shared by the producer and the worker fleet. Stream and group
// names must match on both sides or entries silently go nowhere.
const (
	DefaultStream        = "fabseal:submissions"
	DefaultGroup         = "fabseal:converters"
	DefaultBlockTimeout  = time.Second
	DefaultQueueMaxLen   = 50
	DefaultArtifactTTL   = 10 * time.Minute
	DefaultSessionTTL    = 30 * time.Minute
	DefaultMaxUploadSize = 8 << 20
	DefaultEngineTool    = "/usr/bin/blender"
	DefaultRedisAddr     = "127.0.0.1:6379"
)

// Environment variables that override the file
const (
	EnvRedisAddr   = "REDIS_ADDR"
	EnvResourceDir = "DMSTL_DIR"
)

// Config represents the complete application configuration
type Config struct {
	App         AppConfig         `yaml:"app"`
	Logging     LoggingConfig     `yaml:"logging"`
	Server      ServerConfig      `yaml:"server"`
	Redis       RedisConfig       `yaml:"redis"`
	Queue       QueueConfig       `yaml:"queue"`
	Limits      LimitsConfig      `yaml:"limits"`
	Engine      EngineConfig      `yaml:"engine"`
	Database    DatabaseConfig    `yaml:"database"`
	RabbitMQ    RabbitMQConfig    `yaml:"rabbitmq"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// IsDevelopment reports whether the app runs in development mode
func (a AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableSource bool   `yaml:"enable_source"`
	TimeFormat   string `yaml:"time_format"`
	NoColor      bool   `yaml:"no_color"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// RedisConfig holds the store connection
type RedisConfig struct {
	Addr          string        `yaml:"addr"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	PoolSize      int           `yaml:"pool_size"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// QueueConfig names the submission stream and consumer group
type QueueConfig struct {
	Stream       string        `yaml:"stream"`
	Group        string        `yaml:"group"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
	MaxLen       int64         `yaml:"max_len"`
}

// LimitsConfig holds key expirations and upload limits
type LimitsConfig struct {
	Namespace         string        `yaml:"namespace"`
	InputTTL          time.Duration `yaml:"input_ttl"`
	ImageTTL          time.Duration `yaml:"image_ttl"`
	ProcessedImageTTL time.Duration `yaml:"processed_image_ttl"`
	ResultTTL         time.Duration `yaml:"result_ttl"`
	SessionTTL        time.Duration `yaml:"session_ttl"`
	MaxUploadSize     int64         `yaml:"max_upload_size"`
}

// Expirations returns the per-category TTLs
func (l LimitsConfig) Expirations() keyspace.Expirations {
	return keyspace.Expirations{
		Input:          l.InputTTL,
		Image:          l.ImageTTL,
		ProcessedImage: l.ProcessedImageTTL,
		Result:         l.ResultTTL,
	}
}

// EngineConfig locates the conversion engine
type EngineConfig struct {
	Tool        string `yaml:"tool"`
	ResourceDir string `yaml:"resource_dir"`
	TempDir     string `yaml:"temp_dir"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange configuration
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Durable bool   `yaml:"durable"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ObjectStoreConfig holds the S3-compatible result archive
type ObjectStoreConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Load reads and parses the configuration file, then applies defaults and
// environment overrides
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	config.ApplyEnv(os.LookupEnv)

	return &config, nil
}

// ApplyDefaults fills zero values with the defaults
func (c *Config) ApplyDefaults() {
	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
	if c.Redis.RetryAttempts <= 0 {
		c.Redis.RetryAttempts = 1
	}

	if c.Queue.Stream == "" {
		c.Queue.Stream = DefaultStream
	}
	if c.Queue.Group == "" {
		c.Queue.Group = DefaultGroup
	}
	if c.Queue.BlockTimeout == 0 {
		c.Queue.BlockTimeout = DefaultBlockTimeout
	}
	if c.Queue.MaxLen == 0 {
		c.Queue.MaxLen = DefaultQueueMaxLen
	}

	if c.Limits.Namespace == "" {
		c.Limits.Namespace = keyspace.DefaultNamespace
	}
	for _, ttl := range []*time.Duration{
		&c.Limits.InputTTL,
		&c.Limits.ImageTTL,
		&c.Limits.ProcessedImageTTL,
		&c.Limits.ResultTTL,
	} {
		if *ttl == 0 {
			*ttl = DefaultArtifactTTL
		}
	}
	if c.Limits.SessionTTL == 0 {
		c.Limits.SessionTTL = DefaultSessionTTL
	}
	if c.Limits.MaxUploadSize == 0 {
		c.Limits.MaxUploadSize = DefaultMaxUploadSize
	}

	if c.Engine.Tool == "" {
		c.Engine.Tool = DefaultEngineTool
	}

	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.RabbitMQ.Exchange.Type == "" {
		c.RabbitMQ.Exchange.Type = "topic"
	}
}

// ApplyEnv overrides file values with the environment
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvRedisAddr); ok && v != "" {
		c.Redis.Addr = v
	}
	if v, ok := lookup(EnvResourceDir); ok && v != "" {
		c.Engine.ResourceDir = v
	}
}

// ValidateAPIConfig checks the producer configuration
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateShared(); err != nil {
		return err
	}

	if c.Limits.ProcessedImageTTL <= 0 {
		return errors.New("limits processed_image_ttl must be greater than 0")
	}

	if c.Limits.SessionTTL <= 0 {
		return errors.New("limits session_ttl must be greater than 0")
	}

	if c.Limits.MaxUploadSize <= 0 {
		return errors.New("limits max_upload_size must be greater than 0")
	}

	return nil
}

// ValidateWorkerConfig checks the worker configuration
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateShared(); err != nil {
		return err
	}

	if c.Limits.ResultTTL <= 0 {
		return errors.New("limits result_ttl must be greater than 0")
	}

	if c.Queue.BlockTimeout <= 0 {
		return errors.New("queue block_timeout must be greater than 0")
	}

	if c.Engine.ResourceDir == "" {
		return fmt.Errorf("engine resource_dir is required (or set %s)", EnvResourceDir)
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return errors.New("database host is required")
		}
		if c.Database.Port < MinPort || c.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
		}
		if c.Database.Database == "" {
			return errors.New("database name is required")
		}
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Host == "" {
			return errors.New("rabbitmq host is required")
		}
		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
		}
		if c.RabbitMQ.Exchange.Name == "" {
			return errors.New("rabbitmq exchange name is required")
		}
	}

	if c.ObjectStore.Enabled {
		if c.ObjectStore.Endpoint == "" {
			return errors.New("object_store endpoint is required")
		}
		if c.ObjectStore.Bucket == "" {
			return errors.New("object_store bucket is required")
		}
	}

	return nil
}

func (c *Config) validateShared() error {
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required (or set %s)", EnvRedisAddr)
	}

	if c.Queue.Stream == "" || c.Queue.Group == "" {
		return errors.New("queue stream and group are required")
	}

	if c.Queue.MaxLen <= 0 {
		return errors.New("queue max_len must be greater than 0")
	}

	if c.Limits.ImageTTL <= 0 {
		return errors.New("limits image_ttl must be greater than 0")
	}

	return nil
}
