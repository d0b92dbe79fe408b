// Package config loads the configuration of the aggregate command from a
// YAML file and AGGREGATE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/syssam/aggregate/dialect"
)

// EnvPrefix prefixes the environment variables overriding config keys,
// e.g. AGGREGATE_DSN.
const EnvPrefix = "AGGREGATE"

// Config is the configuration of the aggregate command.
type Config struct {
	// Dialect is the target database dialect.
	Dialect string `mapstructure:"dialect"`
	// DSN is the data source name of the database connection.
	DSN string `mapstructure:"dsn"`
	// Descriptors are the descriptor files and directories to load.
	Descriptors []string `mapstructure:"descriptors"`
	// Roots restricts the built aggregates. Empty means all roots.
	Roots []string `mapstructure:"roots"`
	// Output is the directory of generated files.
	Output string `mapstructure:"output"`
	// Package is the name of the generated Go package.
	Package string `mapstructure:"package"`
	// Tables maps class names to table names.
	Tables map[string]string `mapstructure:"tables"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `mapstructure:"log_level"`
	// SlowQueryThreshold is the duration above which statements are
	// logged as slow. Zero disables the warning.
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
	// MetricsFile receives the SQL statement metrics in the Prometheus
	// text format after the statements ran. Empty disables metrics.
	MetricsFile string `mapstructure:"metrics_file"`
}

// New returns a viper instance with the defaults and the environment
// bindings of all keys.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dialect", dialect.SQLite)
	v.SetDefault("dsn", "")
	v.SetDefault("descriptors", []string{"."})
	v.SetDefault("roots", []string{})
	v.SetDefault("output", "tables")
	v.SetDefault("package", "tables")
	v.SetDefault("tables", map[string]string{})
	v.SetDefault("log_level", "info")
	v.SetDefault("slow_query_threshold", "200ms")
	v.SetDefault("metrics_file", "")
}

// Load reads the config file, if any, and decodes the configuration. An
// empty path searches aggregate.yaml in the working directory and in
// ./configs; a missing file is not an error then.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("aggregate")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}
	return Decode(v)
}

// Decode decodes and validates the configuration held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	// Comma separated lists from the environment.
	c.Descriptors = splitList(c.Descriptors)
	c.Roots = splitList(c.Roots)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if _, err := dialect.Get(c.Dialect); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if len(c.Descriptors) == 0 {
		return errors.New("config: no descriptors configured")
	}
	if c.Package == "" {
		return errors.New("config: package cannot be empty")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.SlowQueryThreshold < 0 {
		return fmt.Errorf("config: negative slow query threshold %s", c.SlowQueryThreshold)
	}
	return nil
}

// Adapter returns the adapter of the configured dialect.
func (c *Config) Adapter() (dialect.Adapter, error) {
	return dialect.Get(c.Dialect)
}

// Level returns the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// TableOverrides returns the configured table names keyed by the class
// names they match. Config keys are case-insensitive.
func (c *Config) TableOverrides(classes []string) map[string]string {
	tables := make(map[string]string, len(c.Tables))
	for key, table := range c.Tables {
		for _, class := range classes {
			if strings.EqualFold(key, class) {
				tables[class] = table
			}
		}
	}
	return tables
}
