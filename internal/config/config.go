package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	// Redis is optional; without URL audits are processed in-process.
	Redis struct {
		URL   string `yaml:"url"`
		Queue string `yaml:"queue"`
	} `yaml:"redis"`

	Upload struct {
		MaxBytes          int64    `yaml:"maxBytes"`
		AllowedExtensions []string `yaml:"allowedExtensions"`
		// Dir is used instead of MinIO when minio.endpoint is empty.
		Dir string `yaml:"dir"`
	} `yaml:"upload"`

	Auth struct {
		// organization id -> API key
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`

	RateLimit struct {
		Capacity        int     `yaml:"capacity"`
		RefillPerSecond float64 `yaml:"refillPerSecond"`
	} `yaml:"rateLimit"`

	OpenAI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`

	Log struct {
		Format string `yaml:"format"` // json | text
		Level  string `yaml:"level"`
	} `yaml:"log"`

	Processing struct {
		CostField  string        `yaml:"costField"`
		StaleAfter time.Duration `yaml:"staleAfter"`
	} `yaml:"processing"`
}

// Load baca file config.yaml
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML and fills in defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case "postgres":
			c.Database.Port = 5432
		default:
			c.Database.Port = 3306
		}
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Redis.Queue == "" {
		c.Redis.Queue = "audits:process"
	}
	if c.Upload.MaxBytes == 0 {
		c.Upload.MaxBytes = 10 << 20
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		c.Upload.AllowedExtensions = []string{".csv", ".xlsx"}
	}
	if c.Upload.Dir == "" {
		c.Upload.Dir = "data/uploads"
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 60
	}
	if c.RateLimit.RefillPerSecond == 0 {
		c.RateLimit.RefillPerSecond = 1
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Processing.CostField == "" {
		c.Processing.CostField = "cost"
	}
	if c.Processing.StaleAfter == 0 {
		c.Processing.StaleAfter = 30 * time.Minute
	}
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("config: unsupported database.driver %q (mysql, postgres)", c.Database.Driver)
	}
	if c.Upload.MaxBytes < 0 {
		return fmt.Errorf("config: upload.maxBytes must be positive")
	}
	if c.Processing.StaleAfter < 0 {
		return fmt.Errorf("config: processing.staleAfter must not be negative")
	}
	return nil
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

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}
