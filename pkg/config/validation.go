package config

import (
	"fmt"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"
)

const redactedPassword = "xxxxx"

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return fmt.Errorf("database.url is required")
	}
	if !strings.HasPrefix(c.Database.URL, "mongodb://") && !strings.HasPrefix(c.Database.URL, "mongodb+srv://") {
		return fmt.Errorf("database.url must use the mongodb:// or mongodb+srv:// scheme")
	}
	if strings.TrimSpace(c.Database.DatabaseName) == "" {
		return fmt.Errorf("database.database_name is required for MongoDB")
	}
	if c.Database.ConnectTimeout <= 0 {
		return fmt.Errorf("database.connect_timeout must be positive")
	}
	if c.Database.QueryTimeout < 0 {
		return fmt.Errorf("database.query_timeout must not be negative")
	}

	if c.Query.HydrateConcurrency < 1 {
		return fmt.Errorf("query.hydrate_concurrency must be at least 1")
	}
	if c.Query.BreakerMaxFailures < 0 {
		return fmt.Errorf("query.breaker_max_failures must not be negative")
	}
	if c.Query.BreakerMaxFailures > 0 && c.Query.BreakerOpenTimeout <= 0 {
		return fmt.Errorf("query.breaker_open_timeout must be positive when the breaker is enabled")
	}
	for collection, fields := range c.Query.SearchableFields {
		for _, field := range fields {
			if strings.TrimSpace(field) == "" {
				return fmt.Errorf("query.searchable_fields.%s contains an empty field name", collection)
			}
		}
	}

	switch c.Observability.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("observability.log_level %q is not one of debug, info, warn, error", c.Observability.LogLevel)
	}
	switch c.Observability.LogFormat {
	case "json", "text", "console":
	default:
		return fmt.Errorf("observability.log_format %q is not one of json, text", c.Observability.LogFormat)
	}
	if c.Observability.TracingEnabled {
		if c.Observability.TracingEndpoint == "" {
			return fmt.Errorf("observability.tracing_endpoint is required when tracing is enabled")
		}
		if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
			return fmt.Errorf("observability.tracing_sample_rate must be between 0 and 1")
		}
	}

	return nil
}

// String renders the configuration as YAML with database credentials masked.
func (c *Config) String() string {
	redacted := *c
	redacted.Database.URL = RedactURL(c.Database.URL)
	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return string(out)
}

// RedactURL masks the password of a connection string. Unparseable input is masked entirely.
func RedactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return redactedPassword
	}
	if u.User == nil {
		return raw
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), redactedPassword)
	}
	return u.String()
}
