package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		CORSOrigins     []string      `yaml:"corsOrigins"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres | sqlite
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
		Path     string `yaml:"path"` // sqlite file, ":memory:" allowed
	} `yaml:"database"`

	Minio struct {
		Endpoint   string        `yaml:"endpoint"`
		AccessKey  string        `yaml:"accessKey"`
		SecretKey  string        `yaml:"secretKey"`
		BucketName string        `yaml:"bucketName"`
		Region     string        `yaml:"region"`
		UseSSL     bool          `yaml:"useSSL"`
		LinkExpiry time.Duration `yaml:"linkExpiry"`
	} `yaml:"minio"`

	AI struct {
		Provider string        `yaml:"provider"` // openai | gemini | relay
		APIKey   string        `yaml:"apiKey"`
		BaseURL  string        `yaml:"baseURL"`
		Model    string        `yaml:"model"`
		JSONMode bool          `yaml:"jsonMode"`
		RelayURL string        `yaml:"relayURL"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"ai"`

	Auth struct {
		// APIKeys maps an owner id to its bearer key.
		APIKeys map[string]string `yaml:"apiKeys"`
		Admins  []string          `yaml:"admins"`
	} `yaml:"auth"`

	RateLimit struct {
		RequestsPerMinute int `yaml:"requestsPerMinute"`
		Burst             int `yaml:"burst"`
	} `yaml:"rateLimit"`
}

// Load baca file config.yaml (optional), lalu .env dan environment AUDITOR_*
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !(errors.Is(err, os.ErrNotExist) && path == DefaultPath) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultPath may be absent; any other explicit path must exist.
const DefaultPath = "config.yaml"

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
		return nil
	}
	setBool := func(key string, dst *bool) error {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
		return nil
	}

	if err := setInt("AUDITOR_PORT", &c.Server.Port); err != nil {
		return err
	}
	if v := os.Getenv("AUDITOR_CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	setString("AUDITOR_LOG_LEVEL", &c.Log.Level)

	setString("AUDITOR_DB_DRIVER", &c.Database.Driver)
	setString("AUDITOR_DB_HOST", &c.Database.Host)
	if err := setInt("AUDITOR_DB_PORT", &c.Database.Port); err != nil {
		return err
	}
	setString("AUDITOR_DB_USER", &c.Database.User)
	setString("AUDITOR_DB_PASSWORD", &c.Database.Password)
	setString("AUDITOR_DB_NAME", &c.Database.Name)
	setString("AUDITOR_DB_SSLMODE", &c.Database.SSLMode)
	setString("AUDITOR_DB_PATH", &c.Database.Path)

	setString("AUDITOR_MINIO_ENDPOINT", &c.Minio.Endpoint)
	setString("AUDITOR_MINIO_ACCESS_KEY", &c.Minio.AccessKey)
	setString("AUDITOR_MINIO_SECRET_KEY", &c.Minio.SecretKey)
	setString("AUDITOR_MINIO_BUCKET", &c.Minio.BucketName)
	setString("AUDITOR_MINIO_REGION", &c.Minio.Region)
	if err := setBool("AUDITOR_MINIO_USE_SSL", &c.Minio.UseSSL); err != nil {
		return err
	}

	setString("AUDITOR_AI_PROVIDER", &c.AI.Provider)
	setString("AUDITOR_AI_API_KEY", &c.AI.APIKey)
	setString("AUDITOR_AI_BASE_URL", &c.AI.BaseURL)
	setString("AUDITOR_AI_MODEL", &c.AI.Model)
	setString("AUDITOR_RELAY_URL", &c.AI.RelayURL)

	// Format: AUDITOR_API_KEYS="owner1:key1,owner2:key2"
	if v := os.Getenv("AUDITOR_API_KEYS"); v != "" {
		if c.Auth.APIKeys == nil {
			c.Auth.APIKeys = map[string]string{}
		}
		for _, pair := range splitList(v) {
			parts := strings.SplitN(pair, ":", 2)
			if len(parts) == 2 && strings.TrimSpace(parts[0]) != "" && strings.TrimSpace(parts[1]) != "" {
				c.Auth.APIKeys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
			}
		}
	}
	if v := os.Getenv("AUDITOR_ADMINS"); v != "" {
		c.Auth.Admins = splitList(v)
	}
	return setInt("AUDITOR_RATE_LIMIT_RPM", &c.RateLimit.RequestsPerMinute)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "auditor.db"
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case "mysql":
			c.Database.Port = 3306
		case "postgres":
			c.Database.Port = 5432
		}
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Minio.BucketName == "" {
		c.Minio.BucketName = "auditor-exports"
	}
	if c.Minio.Region == "" {
		c.Minio.Region = "us-east-1"
	}
	if c.Minio.LinkExpiry == 0 {
		c.Minio.LinkExpiry = 15 * time.Minute
	}
	if c.AI.Provider == "" {
		c.AI.Provider = "openai"
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = 60 * time.Second
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = 30
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 5
	}
}

// Validate checks the enums and the fields each choice depends on.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver: unsupported %q", c.Database.Driver)
	}
	switch c.AI.Provider {
	case "openai", "gemini":
	case "relay":
		if c.AI.RelayURL == "" {
			return errors.New("ai.relayURL is required for the relay provider")
		}
	default:
		return fmt.Errorf("ai.provider: unsupported %q", c.AI.Provider)
	}
	return nil
}

// IsAdmin reports whether owner is listed in auth.admins.
func (c *Config) IsAdmin(owner string) bool {
	for _, a := range c.Auth.Admins {
		if a == owner {
			return true
		}
	}
	return false
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres (URL form)
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: url.Values{"sslmode": []string{c.Database.SSLMode}}.Encode(),
	}
	return u.String()
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
