package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"
)

// Config holds the main configuration for the application.
type Config struct {
	Server   Server   `mapstructure:"server"`
	OpenAI   OpenAI   `mapstructure:"openai"`
	Storage  Storage  `mapstructure:"storage"`
	Database Database `mapstructure:"database"`
	Kafka    Kafka    `mapstructure:"kafka"`
	Retry    Retry    `mapstructure:"retry"`
	Pipeline Pipeline `mapstructure:"pipeline"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	HTTPPort     string        `mapstructure:"http_port"`      // HTTP address to listen on
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`   // Max time to read the request
	WriteTimeout time.Duration `mapstructure:"write_timeout"`  // Must exceed the whole pipeline
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"` // Upper bound for request bodies
}

// OpenAI holds the language and image model provider settings.
type OpenAI struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	ResearchModel string        `mapstructure:"research_model"`
	CopyModel     string        `mapstructure:"copy_model"`
	ImageModel    string        `mapstructure:"image_model"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	PreferIPv4    bool          `mapstructure:"prefer_ipv4"`
}

// Storage holds configuration for the object storage backend.
type Storage struct {
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	BucketName    string `mapstructure:"bucket_name"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	Region        string `mapstructure:"region"`
	PublicBaseURL string `mapstructure:"public_base_url"` // Defaults to <scheme>://<endpoint>/<bucket>
}

// Database holds database master and slave configuration.
type Database struct {
	Master DatabaseNode   `mapstructure:"master"`
	Slaves []DatabaseNode `mapstructure:"slaves"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DatabaseNode holds connection parameters for a single database node.
type DatabaseNode struct {
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
	User    string `mapstructure:"user"`
	Pass    string `mapstructure:"pass"`
	Name    string `mapstructure:"name"`
	SSLMode string `mapstructure:"ssl_mode"`
}

// Kafka holds configuration for the Kafka message queue.
type Kafka struct {
	GroupID         string   `mapstructure:"group_id"`          // Consumer group ID
	Topic           string   `mapstructure:"topic"`             // Kafka topic name
	DeadLetterTopic string   `mapstructure:"dead_letter_topic"` // Topic for events that could not be handled
	Brokers         []string `mapstructure:"brokers"`           // List of Kafka broker addresses
}

// Retry defines retry policy configuration.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of retry attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

// Pipeline bounds a single ad generation run.
type Pipeline struct {
	StageTimeout  time.Duration `mapstructure:"stage_timeout"`
	MaxImageBytes int           `mapstructure:"max_image_bytes"`
}

// DSN returns the PostgreSQL DSN string for connecting to this database node.
func (n DatabaseNode) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		n.User, n.Pass, n.Host, n.Port, n.Name, n.SSLMode,
	)
}

// Validate reports every required value that is missing.
func (c *Config) Validate() error {
	var errs []error

	required := map[string]string{
		"openai.api_key":      c.OpenAI.APIKey,
		"storage.endpoint":    c.Storage.Endpoint,
		"storage.access_key":  c.Storage.AccessKey,
		"storage.secret_key":  c.Storage.SecretKey,
		"storage.bucket_name": c.Storage.BucketName,
	}
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}

	if c.Pipeline.StageTimeout <= 0 {
		errs = append(errs, errors.New("pipeline.stage_timeout must be positive"))
	}
	if c.Pipeline.MaxImageBytes <= 0 {
		errs = append(errs, errors.New("pipeline.max_image_bytes must be positive"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Minute)
	v.SetDefault("server.max_body_bytes", 16<<20)

	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.research_model", "gpt-4o-mini")
	v.SetDefault("openai.copy_model", "gpt-4o")
	v.SetDefault("openai.image_model", "gpt-image-1")
	v.SetDefault("openai.http_timeout", 3*time.Minute)
	v.SetDefault("openai.prefer_ipv4", false)

	v.SetDefault("storage.bucket_name", "generated-ads")
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("kafka.dead_letter_topic", "ads.generated.dlq")

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", 500*time.Millisecond)
	v.SetDefault("retry.backoff", 2.0)

	v.SetDefault("pipeline.stage_timeout", 2*time.Minute)
	v.SetDefault("pipeline.max_image_bytes", 10<<20)
}

// bindEnv binds secrets and connection settings to their environment variables.
func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"openai.api_key":       "OPENAI_API_KEY",
		"openai.base_url":      "OPENAI_BASE_URL",
		"storage.endpoint":     "STORAGE_ENDPOINT",
		"storage.access_key":   "STORAGE_ACCESS_KEY",
		"storage.secret_key":   "STORAGE_SECRET_KEY",
		"storage.bucket_name":  "STORAGE_BUCKET",
		"database.master.host": "DB_HOST",
		"database.master.port": "DB_PORT",
		"database.master.user": "DB_USER",
		"database.master.pass": "DB_PASSWORD",
		"database.master.name": "DB_NAME",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	return nil
}

// Load reads the YAML file at path, overlays the environment and validates the result.
// A missing .env file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	v.SetConfigName(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	v.SetConfigType(ext)
	v.AddConfigPath(filepath.Dir(path))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads the configuration from the specified file path.
// It panics if the configuration cannot be loaded or a required value is missing.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to load config")
	}

	return cfg
}
