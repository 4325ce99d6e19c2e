package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for catalogd.
// Values come from a YAML file with environment variable overrides; secrets
// (catalog store password, credentials encryption key) must only come from
// environment variables.
type Config struct {
	Env string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`

	// Catalog store: the PostgreSQL database that holds snapshots, diff
	// runs, quality metrics, and encrypted source credentials.
	Store StoreConfig `yaml:"store"`

	// Extraction controls which schemas are inventoried and how business
	// context is gathered from the source database.
	Extraction ExtractionConfig `yaml:"extraction"`

	// Metrics controls quality-metrics sampling.
	Metrics MetricsConfig `yaml:"metrics"`

	// Output directories for file exports.
	Output OutputConfig `yaml:"output"`

	// CredentialsKey encrypts stored source-database passwords.
	// Either a base64-encoded 32-byte key (openssl rand -base64 32) or a
	// passphrase. Commands touching credentials fail without it.
	CredentialsKey string `yaml:"-" env:"CATALOGD_CREDENTIALS_KEY"`
}

// StoreConfig holds catalog store connection settings.
type StoreConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"catalogd"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"catalogd"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`

	// MigrationsPath is the directory holding catalog store DDL migrations.
	MigrationsPath string `yaml:"migrations_path" env:"CATALOGD_MIGRATIONS_PATH" env-default:"migrations"`
}

// ExtractionConfig controls metadata extraction from source databases.
type ExtractionConfig struct {
	// Schemas restricts extraction to the listed schemas. Empty means all
	// non-system schemas discovered on the source.
	Schemas []string `yaml:"schemas" env:"CATALOGD_SCHEMAS" env-separator:","`

	// TenantID and ConnectorName identify the deployment on every
	// normalized entity.
	TenantID      string `yaml:"tenant_id" env:"CATALOGD_TENANT_ID" env-default:"default"`
	ConnectorName string `yaml:"connector_name" env:"CATALOGD_CONNECTOR_NAME" env-default:"postgres"`

	ExtractComments bool `yaml:"extract_comments" env:"CATALOGD_EXTRACT_COMMENTS" env-default:"true"`
	ParseTags       bool `yaml:"parse_tags" env:"CATALOGD_PARSE_TAGS" env-default:"true"`

	// MetadataYAML optionally points to a YAML file overlaying business
	// tags onto tables and columns.
	MetadataYAML string `yaml:"metadata_yaml" env:"CATALOGD_METADATA_YAML" env-default:""`
}

// MetricsConfig controls quality-metrics extraction.
type MetricsConfig struct {
	Enabled     bool `yaml:"enabled" env:"CATALOGD_METRICS_ENABLED" env-default:"true"`
	TopKValues  int  `yaml:"top_k_values" env:"CATALOGD_METRICS_TOP_K" env-default:"10"`
	SampleLimit int  `yaml:"sample_limit" env:"CATALOGD_METRICS_SAMPLE_LIMIT" env-default:"10000"`
}

// OutputConfig holds file export destinations.
type OutputConfig struct {
	JSONDir string `yaml:"json_dir" env:"CATALOGD_JSON_DIR" env-default:"./output/json"`
	CSVDir  string `yaml:"csv_dir" env:"CATALOGD_CSV_DIR" env-default:"./output/csv"`
}

// Load reads configuration from the given YAML file with environment
// variable overrides. A missing file is not an error when every field has a
// default or an environment value.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return cfg, nil
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string for the catalog
// store.
func (c *StoreConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
