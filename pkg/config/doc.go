// Package config provides the run configuration of the onix extractor.
//
// A run is described by a single YAML file: where the feed comes from, which
// field plugins build each record, which sinks receive the records and how
// the process is observed.
//
//	name: daily-feed
//	source:
//	  uri: s3://feeds/onix/daily.xml.gz
//	  region: eu-west-1
//	parser:
//	  fail_fast: false
//	plugins: [headers, identifiers, authors, prices]
//	sinks:
//	  - type: postgres
//	    name: catalog
//	    options:
//	      dsn: ${CATALOG_DSN}
//	    retry:
//	      attempts: 3
//	      delay: 500ms
//	observability:
//	  log_level: info
//	  enable_metrics: true
//	  metrics_addr: ":9090"
//
// # Loading
//
// Load reads the file, substitutes ${VAR_NAME} references with environment
// variables, decodes it over Default and applies ONIX_* environment
// overrides (ONIX_SOURCE_URI, ONIX_OBSERVABILITY_LOG_LEVEL, ...):
//
//	cfg, err := config.Load("onix.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
package config
