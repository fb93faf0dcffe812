// Package config handles configuration loading for the digital mail sender.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows keystore
// passwords and database credentials to be injected at runtime.
//
// # Configuration Sections
//
//   - sender: Sending organization and accepted mailbox suppliers
//   - keystore: Signing certificate and key (PKCS#12 or PEM)
//   - endpoints: Recipient service URL, timeouts and retries
//   - storage: Optional MongoDB delivery log
//   - observability: Metrics endpoint
//   - logging: Log level and format
//
// # Example Configuration
//
//	sender:
//	  organizationNumber: "2120002411"
//	  name: Sundsvalls kommun
//	  supportedSuppliers: [kivra, billo, minmyndighetspost, fortnox]
//
//	keystore:
//	  path: /etc/digitalmail/sender.p12
//	  password: ${KEYSTORE_PASSWORD}
//	  alias: sender
//
//	endpoints:
//	  reachabilityUrl: https://notarealhost.skatteverket.se/webservice/accao/Recipient
//	  timeout: 30s
//	  maxRetries: 3
//
//	storage:
//	  mongodb:
//	    uri: ${MONGODB_URI}
//	    database: digitalmail
//
// See [Load] for loading configuration from a file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	Sender        SenderConfig        `yaml:"sender"`
	Keystore      KeystoreConfig      `yaml:"keystore"`
	Endpoints     EndpointsConfig     `yaml:"endpoints"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// SenderConfig identifies the sending organization
type SenderConfig struct {
	OrganizationNumber string `yaml:"organizationNumber"`
	Name               string `yaml:"name"`
	// Lower-case short names of the mailbox operators we deliver to
	SupportedSuppliers []string `yaml:"supportedSuppliers"`
}

// KeystoreConfig locates the signing credentials. Exactly one of Path and
// Data (base64) is set.
type KeystoreConfig struct {
	Path     string `yaml:"path"`
	Data     string `yaml:"data"`
	Password string `yaml:"password"`
	Alias    string `yaml:"alias"`
}

// EndpointsConfig holds the remote service settings
type EndpointsConfig struct {
	ReachabilityURL string        `yaml:"reachabilityUrl"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"maxRetries"`
	RetryInterval   time.Duration `yaml:"retryInterval"`
	TLS             struct {
		// Only for tests against self-signed endpoints
		Insecure bool   `yaml:"insecure"`
		CAFile   string `yaml:"caFile"`
	} `yaml:"tls"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	MongoDB MongoDBConfig `yaml:"mongodb"`
}

// MongoDBConfig holds MongoDB connection settings. An empty URI selects
// the in-memory delivery log.
type MongoDBConfig struct {
	URI        string        `yaml:"uri"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ObservabilityConfig holds metrics settings
type ObservabilityConfig struct {
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Address string `yaml:"address"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// LoggingConfig selects the slog handler
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse reads configuration from YAML bytes
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SenderConfigured reports whether the sender identity and the supplier
// list are present. Without them nothing can be delivered.
func (c *Config) SenderConfigured() bool {
	if strings.TrimSpace(c.Sender.OrganizationNumber) == "" || strings.TrimSpace(c.Sender.Name) == "" {
		return false
	}
	for _, s := range c.Sender.SupportedSuppliers {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

func (c *Config) applyDefaults() {
	if c.Endpoints.Timeout == 0 {
		c.Endpoints.Timeout = 30 * time.Second
	}
	if c.Endpoints.MaxRetries == 0 {
		c.Endpoints.MaxRetries = 3
	}
	if c.Endpoints.RetryInterval == 0 {
		c.Endpoints.RetryInterval = time.Second
	}
	if c.Storage.MongoDB.Database == "" {
		c.Storage.MongoDB.Database = "digitalmail"
	}
	if c.Storage.MongoDB.Collection == "" {
		c.Storage.MongoDB.Collection = "deliveries"
	}
	if c.Storage.MongoDB.Timeout == 0 {
		c.Storage.MongoDB.Timeout = 10 * time.Second
	}
	if c.Observability.Metrics.Address == "" {
		c.Observability.Metrics.Address = ":9090"
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	for i, s := range c.Sender.SupportedSuppliers {
		c.Sender.SupportedSuppliers[i] = strings.ToLower(strings.TrimSpace(s))
	}
}

func (c *Config) validate() error {
	switch {
	case c.Keystore.Path == "" && c.Keystore.Data == "":
		return fmt.Errorf("keystore.path or keystore.data is required")
	case c.Keystore.Path != "" && c.Keystore.Data != "":
		return fmt.Errorf("keystore.path and keystore.data are mutually exclusive")
	}

	if c.Endpoints.ReachabilityURL == "" {
		return fmt.Errorf("endpoints.reachabilityUrl is required")
	}
	if c.Endpoints.MaxRetries < 0 {
		return fmt.Errorf("endpoints.maxRetries must not be negative, got %d", c.Endpoints.MaxRetries)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn' or 'error', got '%s'", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be 'text' or 'json', got '%s'", c.Logging.Format)
	}

	return nil
}
