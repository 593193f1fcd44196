package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/onix/pkg/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ONIX"

// Load reads a YAML configuration over Default and applies environment
// overrides.
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read config file").
			WithDetail("path", filePath)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML data over Default after ${VAR} substitution.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	content := substituteEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML")
	}
	return cfg, nil
}

// Save writes cfg to filePath as YAML.
func Save(filePath string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}
	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write config file").
			WithDetail("path", filePath)
	}
	return nil
}

// envKeys are the scalar settings that can be overridden by ONIX_<KEY>,
// with dots replaced by underscores.
var envKeys = []string{
	"name",
	"source.uri",
	"source.compression",
	"source.region",
	"source.endpoint",
	"source.credentials_file",
	"source.charset",
	"parser.fail_fast",
	"observability.log_level",
	"observability.log_encoding",
	"observability.development",
	"observability.enable_metrics",
	"observability.metrics_addr",
	"observability.enable_tracing",
	"observability.tracing_sample_rate",
}

// ApplyEnv overrides cfg with ONIX_* environment variables.
func ApplyEnv(cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "failed to bind environment override").
				WithDetail("key", key)
		}
	}

	set := func(key string, apply func()) {
		if v.IsSet(key) {
			apply()
		}
	}
	set("name", func() { cfg.Name = v.GetString("name") })
	set("source.uri", func() { cfg.Source.URI = v.GetString("source.uri") })
	set("source.compression", func() { cfg.Source.Compression = v.GetString("source.compression") })
	set("source.region", func() { cfg.Source.Region = v.GetString("source.region") })
	set("source.endpoint", func() { cfg.Source.Endpoint = v.GetString("source.endpoint") })
	set("source.credentials_file", func() { cfg.Source.CredentialsFile = v.GetString("source.credentials_file") })
	set("source.charset", func() { cfg.Source.Charset = v.GetString("source.charset") })
	set("parser.fail_fast", func() { cfg.Parser.FailFast = v.GetBool("parser.fail_fast") })
	set("observability.log_level", func() { cfg.Observability.LogLevel = v.GetString("observability.log_level") })
	set("observability.log_encoding", func() { cfg.Observability.LogEncoding = v.GetString("observability.log_encoding") })
	set("observability.development", func() { cfg.Observability.Development = v.GetBool("observability.development") })
	set("observability.enable_metrics", func() { cfg.Observability.EnableMetrics = v.GetBool("observability.enable_metrics") })
	set("observability.metrics_addr", func() { cfg.Observability.MetricsAddr = v.GetString("observability.metrics_addr") })
	set("observability.enable_tracing", func() { cfg.Observability.EnableTracing = v.GetBool("observability.enable_tracing") })
	set("observability.tracing_sample_rate", func() {
		cfg.Observability.TracingSampleRate = v.GetFloat64("observability.tracing_sample_rate")
	})
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
