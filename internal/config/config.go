package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"exit-readiness-service/internal/domain"
	"exit-readiness-service/internal/retry"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	CRM      CRMConfig      `yaml:"crm"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Quiz     QuizConfig     `yaml:"quiz"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	// PublicURL is where this service is reachable; used for /api/report links.
	PublicURL     string `yaml:"public_url"`
	SubmitTimeout string `yaml:"submit_timeout"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type RetryConfig struct {
	Timeout     string `yaml:"timeout"`
	MaxAttempts int    `yaml:"max_attempts"`
	Backoff     string `yaml:"backoff"`
}

// Policy converts the raw settings, falling back to retry.DefaultPolicy per field.
func (r RetryConfig) Policy() retry.Policy {
	def := retry.DefaultPolicy()
	p := retry.Policy{
		Timeout:     TTLDuration(r.Timeout, def.Timeout),
		MaxAttempts: r.MaxAttempts,
		Backoff:     TTLDuration(r.Backoff, def.Backoff),
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	return p
}

type FieldsConfig struct {
	OverallScore string            `yaml:"overall_score"`
	ReportURL    string            `yaml:"report_url"`
	Domains      map[string]string `yaml:"domains"`
}

type CRMConfig struct {
	BaseURL        string       `yaml:"base_url"`
	APIToken       string       `yaml:"api_token"`
	ListID         string       `yaml:"list_id"`
	CompletedTag   string       `yaml:"completed_tag"`
	ScoreTagPrefix string       `yaml:"score_tag_prefix"`
	Retry          RetryConfig  `yaml:"retry"`
	Fields         FieldsConfig `yaml:"fields"`
}

type S3Config struct {
	AccountID       string `yaml:"account_id"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// ResolvedEndpoint derives the R2 endpoint from the account id when no endpoint is set.
func (s S3Config) ResolvedEndpoint() string {
	if s.Endpoint != "" || s.AccountID == "" {
		return s.Endpoint
	}
	return "https://" + s.AccountID + ".r2.cloudflarestorage.com"
}

func (s S3Config) configured() bool {
	return s.Bucket != "" && s.AccessKeyID != "" && s.SecretAccessKey != ""
}

type StorageConfig struct {
	// Driver is one of memory, redis, postgres, mongo, s3. memory keeps reports
	// in this process only and is meant for local development.
	Driver string `yaml:"driver"`
	// PublicBaseURL serves stored reports directly (e.g. an R2 public bucket).
	PublicBaseURL string      `yaml:"public_base_url"`
	TTL           string      `yaml:"ttl"`
	Retry         RetryConfig `yaml:"retry"`
	S3            S3Config    `yaml:"s3"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type QuizConfig struct {
	DefaultID string `yaml:"default_id"`
	TTL       string `yaml:"ttl"`
}

const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverS3       = "s3"
)

// Default returns the configuration used when neither file nor environment sets a value.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.SubmitTimeout = "30s"
	cfg.Log.Level = "info"
	cfg.Log.MaxSizeMB = 100
	cfg.Log.MaxBackups = 5
	cfg.Log.MaxAgeDays = 30
	cfg.CRM.CompletedTag = "exit-readiness-completed"
	cfg.CRM.ScoreTagPrefix = "score-"
	cfg.CRM.Retry = RetryConfig{Timeout: "8s", MaxAttempts: 3, Backoff: "1s"}
	cfg.CRM.Fields = FieldsConfig{
		OverallScore: "11",
		ReportURL:    "21",
		Domains: map[string]string{
			"customer_clarity":   "12",
			"messaging_strength": "13",
			"brand_positioning":  "14",
			"corporate_story":    "15",
			"market_presence":    "16",
		},
	}
	cfg.Storage.Driver = DriverMemory
	cfg.Storage.Retry = RetryConfig{Timeout: "8s", MaxAttempts: 3, Backoff: "1s"}
	cfg.Storage.S3.Region = "auto"
	cfg.Mongo.Database = "exit_readiness"
	cfg.Quiz.DefaultID = "exit-readiness"
	cfg.Quiz.TTL = "10m"
	return cfg
}

// Load reads YAML config from path over the defaults, then applies environment
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load with an injectable environment lookup.
func LoadWithEnv(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}

	set(&cfg.Server.PublicURL, "PUBLIC_URL", "URL")
	set(&cfg.Log.Level, "LOG_LEVEL")
	set(&cfg.Log.File, "LOG_FILE")

	set(&cfg.CRM.BaseURL, "AC_API_URL", "ACTIVECAMPAIGN_API_URL")
	set(&cfg.CRM.APIToken, "AC_API_TOKEN", "ACTIVECAMPAIGN_API_KEY")
	set(&cfg.CRM.ListID, "AC_LIST_ID", "ACTIVECAMPAIGN_LIST_ID")
	set(&cfg.CRM.CompletedTag, "AC_COMPLETED_TAG")

	set(&cfg.Storage.Driver, "STORAGE_DRIVER")
	set(&cfg.Storage.PublicBaseURL, "R2_PUBLIC_URL", "CLOUDFLARE_R2_PUBLIC_URL")
	set(&cfg.Storage.S3.AccountID, "R2_ACCOUNT_ID", "CLOUDFLARE_ACCOUNT_ID")
	set(&cfg.Storage.S3.Endpoint, "R2_ENDPOINT")
	set(&cfg.Storage.S3.Bucket, "R2_BUCKET_NAME", "CLOUDFLARE_R2_BUCKET_NAME")
	set(&cfg.Storage.S3.AccessKeyID, "R2_ACCESS_KEY_ID", "CLOUDFLARE_R2_ACCESS_KEY_ID")
	set(&cfg.Storage.S3.SecretAccessKey, "R2_SECRET_ACCESS_KEY", "CLOUDFLARE_R2_SECRET_ACCESS_KEY")

	set(&cfg.Redis.Addr, "REDIS_ADDR")
	set(&cfg.Redis.Password, "REDIS_PASSWORD")
	if raw := getenv("REDIS_DB"); raw != "" {
		db, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		cfg.Redis.DB = db
	}
	set(&cfg.Postgres.URL, "POSTGRES_URL", "DATABASE_URL")
	set(&cfg.Mongo.URI, "MONGO_URI")
	set(&cfg.Mongo.Database, "MONGO_DATABASE")

	// R2 credentials without an explicit driver mean the bucket should be used.
	if strings.TrimSpace(getenv("STORAGE_DRIVER")) == "" && cfg.Storage.Driver == DriverMemory && cfg.Storage.S3.configured() {
		cfg.Storage.Driver = DriverS3
	}
	return nil
}

// Validate reports every required setting that is missing. Only key names are
// reported, never values.
func (c Config) Validate() error {
	var missing []string
	need := func(value, key string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	need(c.CRM.BaseURL, "AC_API_URL")
	need(c.CRM.APIToken, "AC_API_TOKEN")
	need(c.CRM.ListID, "AC_LIST_ID")

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverRedis:
		need(c.Redis.Addr, "REDIS_ADDR")
	case DriverPostgres:
		need(c.Postgres.URL, "POSTGRES_URL")
	case DriverMongo:
		need(c.Mongo.URI, "MONGO_URI")
	case DriverS3:
		need(c.Storage.S3.ResolvedEndpoint(), "R2_ACCOUNT_ID")
		need(c.Storage.S3.Bucket, "R2_BUCKET_NAME")
		need(c.Storage.S3.AccessKeyID, "R2_ACCESS_KEY_ID")
		need(c.Storage.S3.SecretAccessKey, "R2_SECRET_ACCESS_KEY")
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if len(missing) > 0 {
		return &domain.ConfigurationError{Missing: missing}
	}
	return nil
}

// ReportURL builds the reference stored on the CRM contact for a report key.
func (c Config) ReportURL(key string) string {
	if base := strings.TrimRight(c.Storage.PublicBaseURL, "/"); base != "" {
		return base + "/" + key
	}
	if base := strings.TrimRight(c.Server.PublicURL, "/"); base != "" {
		return base + "/api/report?id=" + url.QueryEscape(key)
	}
	return key
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
