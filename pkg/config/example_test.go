package config_test

import (
	"fmt"

	"github.com/ajitpratap0/onix/pkg/config"
)

// ExampleDefault shows the defaults applied before a file is decoded.
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
	fmt.Printf("Metrics address: %s\n", cfg.Observability.MetricsAddr)
	fmt.Printf("Sample rate: %.1f\n", cfg.Observability.TracingSampleRate)

	// Output:
	// Log level: info
	// Metrics address: :9090
	// Sample rate: 0.1
}

// ExampleParse decodes a configuration and validates it.
func ExampleParse() {
	cfg, err := config.Parse([]byte(`
name: daily
source:
  uri: feeds/daily.xml
plugins: [headers, prices]
sinks:
  - type: jsonl
    options:
      path: out/records.jsonl.zst
`))
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := cfg.Validate(); err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(cfg.Name, cfg.Plugins, cfg.Sinks[0].Name, cfg.Sinks[0].Option("path", ""))

	// Output:
	// daily [headers prices] jsonl out/records.jsonl.zst
}
