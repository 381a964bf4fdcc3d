package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/syssam/relmap/dialect"
)

// Config of the relmap commands. Values come from flags, RELMAP_*
// environment variables (also read from a .env file) and the config file,
// in that order of precedence.
type Config struct {
	Dialect  string        `mapstructure:"dialect"`
	DSN      string        `mapstructure:"dsn"`
	Metadata string        `mapstructure:"metadata"`
	Schemas  []string      `mapstructure:"schemas"`
	Logging  LoggingConfig `mapstructure:"logging"`
}

// LoggingConfig configures the slog handler of the commands.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("relmap")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("relmap")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("dialect", "")
	v.SetDefault("dsn", "")
	v.SetDefault("metadata", "schema.yaml")
	v.SetDefault("schemas", []string{})
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	return v
}

// loadConfig reads the configuration. An explicit config file must exist;
// the default relmap.yaml is optional.
func loadConfig(v *viper.Viper, file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if file != "" {
		v.SetConfigFile(file)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if cfg.Dialect == "" {
		cfg.Dialect = dialectOf(cfg.DSN)
	}
	return &cfg, nil
}

// dialectOf guesses the dialect of a data source name.
func dialectOf(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return dialect.Postgres
	case strings.HasPrefix(dsn, "file:"), strings.HasSuffix(dsn, ".db"), dsn == ":memory:":
		return dialect.SQLite
	case strings.Contains(dsn, "@tcp("):
		return dialect.MySQL
	}
	return ""
}

// driverName returns the database/sql driver registered for the dialect.
func (c *Config) driverName() (string, error) {
	switch c.Dialect {
	case dialect.Postgres:
		return "pgx", nil
	case dialect.MySQL:
		return "mysql", nil
	case dialect.SQLite:
		return "sqlite", nil
	case "":
		return "", errors.New("missing dialect: set --dialect or RELMAP_DIALECT")
	}
	return "", fmt.Errorf("unsupported dialect %q", c.Dialect)
}

func (c *Config) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return nil, fmt.Errorf("logging level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch c.Logging.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown logging format %q", c.Logging.Format)
}
