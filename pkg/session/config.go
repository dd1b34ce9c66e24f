package session

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/viper"

	"github.com/theory-cloud/docquery/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. DOCQUERY_BACKEND
const EnvPrefix = "DOCQUERY"

// Supported backends
const (
	BackendMemory    = "memory"
	BackendDynamoDB  = "dynamodb"
	BackendSQL       = "sql"
	BackendFirestore = "firestore"
)

// Supported SQL drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config holds the configuration for docquery
type Config struct {
	CredentialsProvider aws.CredentialsProvider           `yaml:"-" mapstructure:"-"`
	AWSConfigOptions    []func(*config.LoadOptions) error `yaml:"-" mapstructure:"-"`
	DynamoDBOptions     []func(*dynamodb.Options)         `yaml:"-" mapstructure:"-"`

	Backend  string `yaml:"backend" mapstructure:"backend"`
	Region   string `yaml:"region" mapstructure:"region"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// AccessKeyID and SecretAccessKey are meant for local endpoints such as DynamoDB Local
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
	AssumeRoleARN   string `yaml:"assume_role_arn" mapstructure:"assume_role_arn"`
	TablePrefix     string `yaml:"table_prefix" mapstructure:"table_prefix"`

	SQLDriver string `yaml:"sql_driver" mapstructure:"sql_driver"`
	SQLDSN    string `yaml:"sql_dsn" mapstructure:"sql_dsn"`

	FirestoreProject         string `yaml:"firestore_project" mapstructure:"firestore_project"`
	FirestoreCredentialsFile string `yaml:"firestore_credentials_file" mapstructure:"firestore_credentials_file"`

	LogLevel  string `yaml:"log_level" mapstructure:"log_level"`
	LogFormat string `yaml:"log_format" mapstructure:"log_format"`

	MaxRetries          int  `yaml:"max_retries" mapstructure:"max_retries"`
	PopulateConcurrency int  `yaml:"populate_concurrency" mapstructure:"populate_concurrency"`
	ReferenceCacheSize  int  `yaml:"reference_cache_size" mapstructure:"reference_cache_size"`
	ConsistentRead      bool `yaml:"consistent_read" mapstructure:"consistent_read"`
	SQLDebug            bool `yaml:"sql_debug" mapstructure:"sql_debug"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Backend:             BackendMemory,
		Region:              "us-east-1",
		MaxRetries:          3,
		SQLDriver:           DriverSQLite,
		SQLDSN:              "file::memory:?cache=shared",
		PopulateConcurrency: 4,
		LogLevel:            "INFO",
		LogFormat:           "text",
	}
}

// LoadConfig reads configuration from an optional YAML file and DOCQUERY_*
// environment variables, on top of DefaultConfig. Values already bound on v
// (for example command line flags) take precedence over both.
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	defaults := DefaultConfig()
	v.SetDefault("backend", defaults.Backend)
	v.SetDefault("region", defaults.Region)
	v.SetDefault("endpoint", defaults.Endpoint)
	v.SetDefault("access_key_id", "")
	v.SetDefault("secret_access_key", "")
	v.SetDefault("assume_role_arn", "")
	v.SetDefault("table_prefix", "")
	v.SetDefault("sql_driver", defaults.SQLDriver)
	v.SetDefault("sql_dsn", defaults.SQLDSN)
	v.SetDefault("firestore_project", "")
	v.SetDefault("firestore_credentials_file", "")
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_format", defaults.LogFormat)
	v.SetDefault("max_retries", defaults.MaxRetries)
	v.SetDefault("populate_concurrency", defaults.PopulateConcurrency)
	v.SetDefault("reference_cache_size", 0)
	v.SetDefault("consistent_read", false)
	v.SetDefault("sql_debug", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration names a usable backend
func (c *Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if c.PopulateConcurrency < 0 {
		return fmt.Errorf("populate_concurrency must not be negative")
	}
	if c.ReferenceCacheSize < 0 {
		return fmt.Errorf("reference_cache_size must not be negative")
	}

	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendDynamoDB:
		if c.Region == "" {
			return fmt.Errorf("region is required for the %s backend", c.Backend)
		}
		if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
			return fmt.Errorf("access_key_id and secret_access_key must be set together")
		}
		return nil
	case BackendSQL:
		switch c.SQLDriver {
		case DriverSQLite, DriverPostgres, DriverMySQL:
		default:
			return fmt.Errorf("%w: sql driver %q", errors.ErrUnsupportedBackend, c.SQLDriver)
		}
		if c.SQLDSN == "" {
			return fmt.Errorf("sql_dsn is required for the %s backend", c.Backend)
		}
		return nil
	case BackendFirestore:
		if c.FirestoreProject == "" {
			return fmt.Errorf("firestore_project is required for the %s backend", c.Backend)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", errors.ErrUnsupportedBackend, c.Backend)
	}
}
