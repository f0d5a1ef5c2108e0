package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Source    SourceConfig    `yaml:"source"`
	Snowflake SnowflakeConfig `yaml:"snowflake"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	AWS       AWSConfig       `yaml:"aws"`
	Report    ReportConfig    `yaml:"report"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxBatchSize   int      `yaml:"max_batch_size"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// LogConfig controls the structured logger
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPAN *bool  `yaml:"redact_pan"`
}

// Redact reports whether identifiers are masked in logs (default true).
func (c LogConfig) Redact() bool {
	return c.RedactPAN == nil || *c.RedactPAN
}

// PipelineConfig tunes the validation pipeline
type PipelineConfig struct {
	Workers         int `yaml:"workers"`
	DedupPartitions int `yaml:"dedup_partitions"`
	LockTTLSeconds  int `yaml:"lock_ttl_seconds"`
	ResultTTLHours  int `yaml:"result_ttl_hours"`
}

// LockTTL returns the run lock TTL as a duration
func (c PipelineConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// ResultTTL returns how long run results stay in redis
func (c PipelineConfig) ResultTTL() time.Duration {
	return time.Duration(c.ResultTTLHours) * time.Hour
}

// SourceConfig selects where raw records are read from
type SourceConfig struct {
	Kind       string   `yaml:"kind"` // "csv", "s3", "snowflake", "postgres"
	Path       string   `yaml:"path"`
	Bucket     string   `yaml:"bucket"`
	Key        string   `yaml:"key"`
	Table      string   `yaml:"table"`
	Column     string   `yaml:"column"`
	Headerless bool     `yaml:"headerless"`
	NullTokens []string `yaml:"null_tokens"`
}

// SnowflakeConfig holds Snowflake staging table access
type SnowflakeConfig struct {
	ConnectionString string `yaml:"connection_string"`
	Account          string `yaml:"account"`
	User             string `yaml:"user"`
	Password         string `yaml:"password"`
	Database         string `yaml:"database"`
	Schema           string `yaml:"schema"`
	Warehouse        string `yaml:"warehouse"`
	Enabled          bool   `yaml:"enabled"`
}

// PostgresConfig holds the staging / audit database
type PostgresConfig struct {
	DatabaseURL string `yaml:"database_url"`
	Enabled     bool   `yaml:"enabled"`
}

// RedisConfig holds the result cache and lock backend
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

// AWSConfig holds shared AWS settings for S3 and DynamoDB
type AWSConfig struct {
	Region     string `yaml:"region"`
	Profile    string `yaml:"profile"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	S3Endpoint string `yaml:"s3_endpoint"`
}

// GetAWSProfile returns the AWS profile, checking environment first
func (c AWSConfig) GetAWSProfile() string {
	if profile := os.Getenv("AWS_PROFILE"); profile != "" {
		return profile
	}
	return c.Profile
}

// ReportConfig selects how summaries are delivered
type ReportConfig struct {
	Sinks         []string `yaml:"sinks"` // "console", "file", "s3", "dynamodb"
	Template      string   `yaml:"template"`
	LocalDir      string   `yaml:"local_dir"`
	S3Bucket      string   `yaml:"s3_bucket"`
	S3Prefix      string   `yaml:"s3_prefix"`
	DynamoDBTable string   `yaml:"dynamodb_table"`
	IncludeDetail bool     `yaml:"include_detail"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration with every default applied, for runs
// that have no config file.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if cfg.Server.MaxBatchSize == 0 {
		cfg.Server.MaxBatchSize = 100000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Pipeline.LockTTLSeconds == 0 {
		cfg.Pipeline.LockTTLSeconds = 900
	}
	if cfg.Pipeline.ResultTTLHours == 0 {
		cfg.Pipeline.ResultTTLHours = 72
	}
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = "csv"
	}
	if cfg.Source.Column == "" {
		cfg.Source.Column = "pan"
	}
	if len(cfg.Source.NullTokens) == 0 {
		cfg.Source.NullTokens = []string{"NULL", `\N`}
	}
	if cfg.Snowflake.Schema == "" {
		cfg.Snowflake.Schema = "PUBLIC"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "ap-south-1"
	}
	if len(cfg.Report.Sinks) == 0 {
		cfg.Report.Sinks = []string{"console"}
	}
	if cfg.Report.LocalDir == "" {
		cfg.Report.LocalDir = "./reports"
	}
	if cfg.Report.S3Prefix == "" {
		cfg.Report.S3Prefix = "pan-reports/"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

// DefaultFromEnv is LoadFromEnv without a config file.
func DefaultFromEnv() *Config {
	_ = godotenv.Load()
	cfg := Default()
	applyEnv(cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PAN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Workers = n
		}
	}

	// Database override (critical for ECS deployment where config.yaml has local defaults)
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Postgres.DatabaseURL = dbURL
		cfg.Postgres.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("SNOWFLAKE_CONNECTION_STRING"); v != "" {
		cfg.Snowflake.ConnectionString = v
		cfg.Snowflake.Enabled = true
	}
	if v := os.Getenv("SNOWFLAKE_PASSWORD"); v != "" {
		cfg.Snowflake.Password = v
	}

	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.AWS.AccessKey = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.AWS.SecretKey = v
	}
	if v := os.Getenv("PAN_REPORT_BUCKET"); v != "" {
		cfg.Report.S3Bucket = v
	}
	if v := os.Getenv("PAN_REPORT_TABLE"); v != "" {
		cfg.Report.DynamoDBTable = v
	}
}
