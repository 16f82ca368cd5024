// Package config loads docrepo configuration from defaults, a file and the environment.
package config

import "time"

// DefaultEnvPrefix prefixes every environment variable read by the loader.
const DefaultEnvPrefix = "DOCREPO"

// Config is the root configuration.
type Config struct {
	Service       ServiceConfig       `mapstructure:"service" yaml:"service"`
	Database      DatabaseConfig      `mapstructure:"database" yaml:"database"`
	Query         QueryConfig         `mapstructure:"query" yaml:"query"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// DatabaseConfig configures the MongoDB connection.
type DatabaseConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	DatabaseName   string        `mapstructure:"database_name" yaml:"database_name"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`
}

// QueryConfig tunes collection access.
type QueryConfig struct {
	// HydrateConcurrency bounds parallel hydration of a page.
	HydrateConcurrency int `mapstructure:"hydrate_concurrency" yaml:"hydrate_concurrency"`
	// SearchableFields maps a collection name to the fields free-text search matches against.
	SearchableFields map[string][]string `mapstructure:"searchable_fields" yaml:"searchable_fields"`
	// BreakerMaxFailures opens the store circuit after this many consecutive store faults; 0 disables it.
	BreakerMaxFailures int `mapstructure:"breaker_max_failures" yaml:"breaker_max_failures"`
	// BreakerOpenTimeout is how long an open circuit rejects calls before probing the store again.
	BreakerOpenTimeout time.Duration `mapstructure:"breaker_open_timeout" yaml:"breaker_open_timeout"`
}

// ObservabilityConfig configures logging, metrics, and tracing
type ObservabilityConfig struct {
	LogLevel          string  `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string  `mapstructure:"log_format" yaml:"log_format"` // json, text
	ServiceName       string  `mapstructure:"service_name" yaml:"service_name"`
	MetricsEnabled    bool    `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
	TracingEnabled    bool    `mapstructure:"tracing_enabled" yaml:"tracing_enabled"`
	TracingEndpoint   string  `mapstructure:"tracing_endpoint" yaml:"tracing_endpoint"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate" yaml:"tracing_sample_rate"`
}

// DefaultConfig returns a configuration pointing at a local MongoDB.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "docrepo",
			Environment: "development",
		},
		Database: DatabaseConfig{
			URL:            "mongodb://localhost:27017",
			DatabaseName:   "docrepo",
			ConnectTimeout: 10 * time.Second,
			QueryTimeout:   5 * time.Second,
		},
		Query: QueryConfig{
			HydrateConcurrency: 8,
			SearchableFields:   map[string][]string{},
			BreakerMaxFailures: 5,
			BreakerOpenTimeout: 30 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "json",
			ServiceName:       "docrepo",
			TracingEndpoint:   "localhost:4317",
			TracingSampleRate: 0.1,
		},
	}
}

// SearchableFieldsFor returns the configured search fields of a collection, or nil.
func (c *Config) SearchableFieldsFor(collection string) []string {
	if c == nil {
		return nil
	}
	return c.Query.SearchableFields[collection]
}
