package config

import (
	"strconv"
	"time"

	"github.com/ajitpratap0/onix/pkg/errors"
)

// Config is the configuration of one extraction run.
type Config struct {
	// Name identifies the run in logs and metrics
	Name string `yaml:"name" json:"name"`

	Source        SourceConfig        `yaml:"source" json:"source"`
	Parser        ParserConfig        `yaml:"parser" json:"parser"`
	Plugins       []string            `yaml:"plugins" json:"plugins"`
	Sinks         []SinkConfig        `yaml:"sinks" json:"sinks"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// SourceConfig locates the feed document.
type SourceConfig struct {
	// URI is a local path, file://, s3://bucket/key or gs://bucket/object
	URI string `yaml:"uri" json:"uri"`
	// Compression overrides detection by extension (none, gzip, zstd, ...)
	Compression string `yaml:"compression" json:"compression"`
	// Region and Endpoint configure the S3 client
	Region   string `yaml:"region" json:"region"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// CredentialsFile is a GCS service account file
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	// Charset overrides the encoding declared in the XML prolog
	Charset string `yaml:"charset" json:"charset"`
}

// ParserConfig controls the feed parser.
type ParserConfig struct {
	// FailFast aborts the run on the first record error
	FailFast bool `yaml:"fail_fast" json:"fail_fast"`
}

// SinkConfig declares one import sink.
type SinkConfig struct {
	Type    string            `yaml:"type" json:"type"`
	Name    string            `yaml:"name" json:"name"`
	Options map[string]string `yaml:"options" json:"options"`
	Retry   RetryConfig       `yaml:"retry" json:"retry"`
}

// RetryConfig wraps a sink in a retry decorator when Attempts > 1.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts" json:"attempts"`
	Delay      time.Duration `yaml:"delay" json:"delay"`
	Multiplier float64       `yaml:"multiplier" json:"multiplier"`
	MaxDelay   time.Duration `yaml:"max_delay" json:"max_delay"`
}

// ObservabilityConfig contains logging, metrics and tracing settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogEncoding is json or console
	LogEncoding string `yaml:"log_encoding" json:"log_encoding"`
	Development bool   `yaml:"development" json:"development"`
	// EnableMetrics serves Prometheus metrics on MetricsAddr
	EnableMetrics bool   `yaml:"enable_metrics" json:"enable_metrics"`
	MetricsAddr   string `yaml:"metrics_addr" json:"metrics_addr"`
	// EnableTracing exports spans to stdout
	EnableTracing     bool    `yaml:"enable_tracing" json:"enable_tracing"`
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
}

// Default returns a configuration with the default values filled in.
func Default() *Config {
	return &Config{
		Name: "onix",
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogEncoding:       "json",
			MetricsAddr:       ":9090",
			TracingSampleRate: 0.1,
		},
	}
}

// DefaultRetry returns the retry settings used when a sink enables retries
// without tuning them.
func DefaultRetry() RetryConfig {
	return RetryConfig{
		Attempts:   3,
		Delay:      time.Second,
		Multiplier: 2.0,
		MaxDelay:   time.Minute,
	}
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "fatal": true}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Source.URI == "" {
		return invalid("source.uri", "source uri is required")
	}
	if c.Observability.LogLevel != "" && !logLevels[c.Observability.LogLevel] {
		return invalid("observability.log_level", "unknown log level "+c.Observability.LogLevel)
	}
	switch c.Observability.LogEncoding {
	case "", "json", "console":
	default:
		return invalid("observability.log_encoding", "log encoding must be json or console")
	}
	if r := c.Observability.TracingSampleRate; r < 0 || r > 1 {
		return invalid("observability.tracing_sample_rate", "sample rate must be within [0, 1]")
	}
	if c.Observability.EnableMetrics && c.Observability.MetricsAddr == "" {
		return invalid("observability.metrics_addr", "metrics address is required when metrics are enabled")
	}

	seenPlugins := make(map[string]bool, len(c.Plugins))
	for _, p := range c.Plugins {
		if p == "" {
			return invalid("plugins", "plugin name is empty")
		}
		if seenPlugins[p] {
			return invalid("plugins", "plugin "+p+" listed twice")
		}
		seenPlugins[p] = true
	}

	seenSinks := make(map[string]bool, len(c.Sinks))
	for i := range c.Sinks {
		s := &c.Sinks[i]
		field := "sinks[" + strconv.Itoa(i) + "]"
		if s.Type == "" {
			return invalid(field+".type", "sink type is required")
		}
		if s.Name == "" {
			s.Name = s.Type
		}
		if seenSinks[s.Name] {
			return invalid(field+".name", "sink name "+s.Name+" is not unique")
		}
		seenSinks[s.Name] = true
		if s.Retry.Attempts < 0 {
			return invalid(field+".retry.attempts", "retry attempts cannot be negative")
		}
		if s.Retry.Multiplier < 0 {
			return invalid(field+".retry.multiplier", "retry multiplier cannot be negative")
		}
	}
	return nil
}

func invalid(field, msg string) error {
	return errors.New(errors.ErrorTypeConfig, msg).WithDetail("field", field)
}

// Option returns the option value for key, or def when unset.
func (s SinkConfig) Option(key, def string) string {
	if v, ok := s.Options[key]; ok && v != "" {
		return v
	}
	return def
}

// OptionInt parses the option value for key as an integer.
func (s SinkConfig) OptionInt(key string, def int) (int, error) {
	v, ok := s.Options[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeConfig, "option "+key+" is not an integer").
			WithDetail("sink", s.Name)
	}
	return n, nil
}

// OptionBool parses the option value for key as a boolean.
func (s SinkConfig) OptionBool(key string, def bool) (bool, error) {
	v, ok := s.Options[key]
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeConfig, "option "+key+" is not a boolean").
			WithDetail("sink", s.Name)
	}
	return b, nil
}

// RequireOption returns the option value for key or a config error.
func (s SinkConfig) RequireOption(key string) (string, error) {
	v := s.Option(key, "")
	if v == "" {
		return "", errors.Newf(errors.ErrorTypeConfig, "sink %s requires option %s", s.Name, key).
			WithDetail("sink", s.Name).
			WithDetail("field", "options."+key)
	}
	return v, nil
}
